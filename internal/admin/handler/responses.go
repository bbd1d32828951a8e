package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"farmshield/internal/admin/types"
)

// ClaimReviewResponse is one claim in the official review list.
type ClaimReviewResponse struct {
	ID            string           `json:"id"`
	PolicyNumber  string           `json:"policy_number"`
	FarmerName    string           `json:"farmer_name"`
	FarmerPhone   string           `json:"farmer_phone"`
	District      string           `json:"district"`
	Status        string           `json:"status"`
	DamagePercent *decimal.Decimal `json:"damage_percent,omitempty"`
	Payout        decimal.Decimal  `json:"payout"`
	Finding       string           `json:"disease_detected,omitempty"`
	ModelVersion  string           `json:"model_version,omitempty"`
	Fallback      bool             `json:"fallback"`
	Images        int              `json:"images"`
	FiledAt       time.Time        `json:"filed_at"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
}

type ClaimListResponse struct {
	Claims []*ClaimReviewResponse `json:"claims"`
	Total  int                    `json:"total"`
}

func ToClaimListResponse(rows []*types.ClaimRow) *ClaimListResponse {
	out := make([]*ClaimReviewResponse, len(rows))
	for i, r := range rows {
		c := r.Claim
		resp := &ClaimReviewResponse{
			ID:            c.ID.String(),
			PolicyNumber:  c.PolicyNumber,
			Status:        c.Status,
			DamagePercent: c.DamagePercent,
			Payout:        c.Payout,
			Finding:       c.Finding,
			ModelVersion:  c.ModelVersion,
			Fallback:      c.Fallback,
			Images:        c.Images,
			FiledAt:       c.FiledAt,
			ProcessedAt:   c.ProcessedAt,
		}
		if r.Farmer != nil {
			resp.FarmerName = r.Farmer.Name
			resp.FarmerPhone = string(r.Farmer.Phone)
			resp.District = r.Farmer.District
		}
		out[i] = resp
	}
	return &ClaimListResponse{Claims: out, Total: len(out)}
}
