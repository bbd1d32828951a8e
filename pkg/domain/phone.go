package domain

import (
	"strings"

	dErrors "farmshield/pkg/domain-errors"
)

// Phone is a 10-digit Indian mobile number with formatting and country code removed.
// Invariant: exactly ten ASCII digits.
//
// Construct via NormalizePhone; direct conversion skips normalization and
// lets "+91 98765-43210" and "9876543210" become different OTP keys.
type Phone string

// NormalizePhone strips every non-digit and drops a leading 91 country code
// from 12-digit numbers.
func NormalizePhone(raw string) (Phone, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "phone number must have 10 digits")
	}
	return Phone(digits), nil
}

func (p Phone) String() string {
	return string(p)
}

// Masked hides all but the last four digits for logs.
func (p Phone) Masked() string {
	if len(p) < 4 {
		return "****"
	}
	return "******" + string(p[len(p)-4:])
}
