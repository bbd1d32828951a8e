package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClaimResponse struct {
	ID             string           `json:"id"`
	PolicyID       string           `json:"policy_id"`
	PolicyNumber   string           `json:"policy_number"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	DistanceMeters float64          `json:"distance_meters"`
	Status         Status           `json:"status"`
	DamagePercent  *decimal.Decimal `json:"damage_percent,omitempty"`
	Payout         decimal.Decimal  `json:"payout"`
	Finding        string           `json:"disease_detected,omitempty"`
	ModelVersion   string           `json:"model_version,omitempty"`
	Fallback       bool             `json:"fallback"`
	ImageURLs      []string         `json:"image_urls"`
	FiledAt        time.Time        `json:"filed_at"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`
}

func ToClaimResponse(c *Claim) *ClaimResponse {
	resp := &ClaimResponse{
		ID:             c.ID.String(),
		PolicyID:       c.PolicyID.String(),
		PolicyNumber:   c.PolicyNumber,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		DistanceMeters: c.DistanceMeters,
		Status:         c.Status,
		DamagePercent:  c.DamagePercent,
		Payout:         c.Payout,
		Finding:        c.Finding,
		ImageURLs:      c.ImagePaths(),
		FiledAt:        c.FiledAt,
		ProcessedAt:    c.ProcessedAt,
	}
	if c.Assessment != nil {
		resp.ModelVersion = c.Assessment.ModelVersion
		resp.Fallback = c.Assessment.Fallback
	}
	return resp
}

func ToClaimResponses(claims []*Claim) []*ClaimResponse {
	out := make([]*ClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, ToClaimResponse(c))
	}
	return out
}
