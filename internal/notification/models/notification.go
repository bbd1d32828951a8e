package models

import (
	"strings"
	"time"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

const (
	maxTitleLength   = 200
	maxMessageLength = 2000
)

// Notification is a message shown in a farmer's inbox.
type Notification struct {
	ID       id.NotificationID
	FarmerID id.FarmerID
	Title    string
	Message  string
	Category id.NotificationCategory
	Read     bool
	SentAt   time.Time
}

func NewNotification(notificationID id.NotificationID, farmerID id.FarmerID, title, message string, category id.NotificationCategory, now time.Time) (*Notification, error) {
	if farmerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification requires a farmer")
	}
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification title and message are required")
	}
	if len(title) > maxTitleLength || len(message) > maxMessageLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification text too long")
	}
	if category == "" {
		category = id.NotificationGeneral
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown notification category")
	}
	return &Notification{
		ID:       notificationID,
		FarmerID: farmerID,
		Title:    title,
		Message:  message,
		Category: category,
		SentAt:   now,
	}, nil
}

// SMSText is the text message copy for categories delivered by SMS.
func (n *Notification) SMSText() string {
	return n.Title + ": " + n.Message
}

func (n *Notification) OwnedBy(farmerID id.FarmerID) bool {
	return n.FarmerID == farmerID
}
