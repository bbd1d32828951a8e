package domain

import dErrors "farmshield/pkg/domain-errors"

// NotificationCategory classifies a farmer notification.
// Invariant: the value must be one of the supported categories.
//
// Usage: construct via ParseNotificationCategory at trust boundaries to enforce
// the allowlist; direct casting bypasses validation.
type NotificationCategory string

const (
	NotificationGeneral      NotificationCategory = "general"
	NotificationPolicy       NotificationCategory = "policy"
	NotificationClaim        NotificationCategory = "claim"
	NotificationVerification NotificationCategory = "verification"
	NotificationPayment      NotificationCategory = "payment"
)

var validNotificationCategories = map[NotificationCategory]bool{
	NotificationGeneral:      true,
	NotificationPolicy:       true,
	NotificationClaim:        true,
	NotificationVerification: true,
	NotificationPayment:      true,
}

// ParseNotificationCategory constructs a category from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseNotificationCategory(s string) (NotificationCategory, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
	}
	c := NotificationCategory(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid notification category")
	}
	return c, nil
}

func (c NotificationCategory) IsValid() bool {
	return validNotificationCategories[c]
}

// SendsSMS reports whether the category is also delivered as a text message.
func (c NotificationCategory) SendsSMS() bool {
	return c == NotificationClaim || c == NotificationPayment
}

func (c NotificationCategory) String() string {
	return string(c)
}
