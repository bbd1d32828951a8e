package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
)

// FallbackModelVersion tags estimates produced without the assessor service.
const FallbackModelVersion = "SIMULATED-1.0"

// Prediction is what a damage assessor reports for a set of images.
type Prediction struct {
	DamagePercent decimal.Decimal
	Finding       string
	ModelVersion  string
	Details       map[string]any
	Fallback      bool
}

// Assessment is the stored prediction for one claim.
type Assessment struct {
	ClaimID       id.ClaimID
	DamagePercent decimal.Decimal
	Finding       string
	ModelVersion  string
	Details       map[string]any
	Fallback      bool
	CreatedAt     time.Time
}

func NewAssessment(claimID id.ClaimID, p *Prediction, now time.Time) *Assessment {
	details := p.Details
	if details == nil {
		details = map[string]any{}
	}
	return &Assessment{
		ClaimID:       claimID,
		DamagePercent: p.DamagePercent.Round(2),
		Finding:       p.Finding,
		ModelVersion:  p.ModelVersion,
		Details:       details,
		Fallback:      p.Fallback,
		CreatedAt:     now,
	}
}
