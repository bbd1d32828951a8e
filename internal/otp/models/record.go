package models

import (
	"crypto/subtle"
	"time"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// Record is a single issued code. At most one unused, unexpired record exists
// per phone; stores enforce that when rotating.
type Record struct {
	ID        id.OTPID
	Phone     id.Phone
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func NewRecord(recordID id.OTPID, phone id.Phone, code string, now time.Time, ttl time.Duration) (*Record, error) {
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp phone is required")
	}
	if !isDigits(code, CodeLength) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp code must be 6 digits")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "otp ttl must be positive")
	}
	return &Record{
		ID:        recordID,
		Phone:     phone,
		Code:      code,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsExpired reports whether now is strictly past the expiry instant.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *Record) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(r.Code), []byte(code)) == 1
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
