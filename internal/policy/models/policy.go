package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/sentinel"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusClaimed Status = "claimed"
)

var validStatuses = []Status{StatusPending, StatusPaid, StatusActive, StatusExpired, StatusClaimed}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !slices.Contains(validStatuses, s) {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown policy status %q", raw))
	}
	return s, nil
}

// Terminal statuses never transition again.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusClaimed
}

// ErrNumberTaken is returned by stores when a generated policy number
// collides with an existing one. The service regenerates and retries.
var ErrNumberTaken = fmt.Errorf("policy number taken: %w", sentinel.ErrConflict)

// Policy is one season's cover on one land.
//
// Lifecycle: pending -> paid -> active -> claimed | expired. Every transition
// is a conditional store update keyed on the current status.
type Policy struct {
	ID         id.PolicyID
	FarmerID   id.FarmerID
	LandID     id.LandID
	Number     string
	Premium    decimal.Decimal
	Coverage   decimal.Decimal
	CropType   string
	StartDate  time.Time
	EndDate    time.Time
	OrderRef   string
	PaymentRef string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NewPolicyParams struct {
	ID             id.PolicyID
	FarmerID       id.FarmerID
	LandID         id.LandID
	Number         string
	Quote          Quote
	OrderRef       string
	Now            time.Time
	ValidityMonths int
}

func NewPolicy(p NewPolicyParams) (*Policy, error) {
	if p.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy id is required")
	}
	if p.FarmerID.IsNil() || p.LandID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy requires a farmer and a land")
	}
	if p.Number == "" || p.OrderRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy number and order reference are required")
	}
	if p.ValidityMonths < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "validity must be at least one month")
	}
	start := DateOf(p.Now)
	return &Policy{
		ID:        p.ID,
		FarmerID:  p.FarmerID,
		LandID:    p.LandID,
		Number:    p.Number,
		Premium:   p.Quote.Premium,
		Coverage:  p.Quote.Coverage,
		CropType:  p.Quote.Crop,
		StartDate: start,
		EndDate:   start.AddDate(0, p.ValidityMonths, 0),
		OrderRef:  p.OrderRef,
		Status:    StatusPending,
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}, nil
}

// OwnedBy reports whether farmerID holds the policy.
func (p *Policy) OwnedBy(farmerID id.FarmerID) bool {
	return p.FarmerID == farmerID
}

// Lapsed reports whether the validity window ended before today.
func (p *Policy) Lapsed(today time.Time) bool {
	return p.EndDate.Before(DateOf(today))
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summary aggregates policies for the admin dashboard.
type Summary struct {
	ByStatus       map[Status]int
	ActiveCoverage decimal.Decimal
}

func (s Summary) Count(status Status) int {
	return s.ByStatus[status]
}
