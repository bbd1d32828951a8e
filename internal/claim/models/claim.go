package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Claim is a farmer's request for payout against a policy. A policy carries
// at most one claim.
type Claim struct {
	ID             id.ClaimID
	PolicyID       id.PolicyID
	PolicyNumber   string
	FarmerID       id.FarmerID
	SensorID       *id.SensorID
	Latitude       float64
	Longitude      float64
	DistanceMeters float64
	Status         Status
	DamagePercent  *decimal.Decimal
	Payout         decimal.Decimal
	Finding        string
	FiledAt        time.Time
	ProcessedAt    *time.Time
	Images         []Image
	Assessment     *Assessment
}

// Image is one evidence photo with the location it was taken at.
type Image struct {
	ID        uuid.UUID
	ClaimID   id.ClaimID
	Path      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

type NewClaimParams struct {
	ID             id.ClaimID
	PolicyID       id.PolicyID
	PolicyNumber   string
	FarmerID       id.FarmerID
	SensorID       *id.SensorID
	Latitude       float64
	Longitude      float64
	DistanceMeters float64
	Images         []Image
	Now            time.Time
}

// NewProcessing builds a claim that has reserved its policy and is waiting
// for the damage assessment.
func NewProcessing(p NewClaimParams) (*Claim, error) {
	if p.ID.IsNil() || p.PolicyID.IsNil() || p.FarmerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim requires id, policy and farmer")
	}
	if len(p.Images) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim requires at least one image")
	}
	images := make([]Image, len(p.Images))
	for i, img := range p.Images {
		if strings.TrimSpace(img.Path) == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim image requires a path")
		}
		img.ClaimID = p.ID
		if img.ID == uuid.Nil {
			img.ID = uuid.New()
		}
		if img.CreatedAt.IsZero() {
			img.CreatedAt = p.Now
		}
		images[i] = img
	}
	return &Claim{
		ID:             p.ID,
		PolicyID:       p.PolicyID,
		PolicyNumber:   p.PolicyNumber,
		FarmerID:       p.FarmerID,
		SensorID:       p.SensorID,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		DistanceMeters: p.DistanceMeters,
		Status:         StatusProcessing,
		Payout:         decimal.Zero,
		FiledAt:        p.Now,
		Images:         images,
	}, nil
}

func (c *Claim) OwnedBy(farmerID id.FarmerID) bool {
	return c.FarmerID == farmerID
}

func (c *Claim) ImagePaths() []string {
	paths := make([]string, len(c.Images))
	for i, img := range c.Images {
		paths[i] = img.Path
	}
	return paths
}

// Apply records the adjudication outcome. Only a processing claim can be
// adjudicated.
func (c *Claim) Apply(d Decision, a *Assessment, now time.Time) error {
	if c.Status != StatusProcessing {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim is not awaiting adjudication")
	}
	damage := a.DamagePercent
	c.Status = d.Status
	c.Payout = d.Payout
	c.DamagePercent = &damage
	c.Finding = a.Finding
	c.ProcessedAt = &now
	c.Assessment = a
	return nil
}

// Counts summarises claims by outcome.
type Counts struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Approved   int `json:"approved"`
	Rejected   int `json:"rejected"`
}
