package adapters

import (
	"context"

	"farmshield/internal/admin/types"
	claimmodels "farmshield/internal/claim/models"
)

// ClaimSource is the part of the claim service admin reads from.
type ClaimSource interface {
	ListAll(ctx context.Context) ([]*claimmodels.Claim, error)
	Counts(ctx context.Context) (claimmodels.Counts, error)
}

// ClaimSourceAdapter adapts the claim service to admin's ClaimSource interface.
type ClaimSourceAdapter struct {
	source ClaimSource
}

func NewClaimSourceAdapter(source ClaimSource) *ClaimSourceAdapter {
	return &ClaimSourceAdapter{source: source}
}

// ListAll returns every claim, newest first, mapped to admin types.
func (a *ClaimSourceAdapter) ListAll(ctx context.Context) ([]*types.AdminClaim, error) {
	claims, err := a.source.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*types.AdminClaim, len(claims))
	for i, c := range claims {
		result[i] = mapClaim(c)
	}
	return result, nil
}

func (a *ClaimSourceAdapter) Counts(ctx context.Context) (types.ClaimCounts, error) {
	c, err := a.source.Counts(ctx)
	if err != nil {
		return types.ClaimCounts{}, err
	}
	return types.ClaimCounts{Total: c.Total, Processing: c.Processing, Approved: c.Approved, Rejected: c.Rejected}, nil
}

func mapClaim(c *claimmodels.Claim) *types.AdminClaim {
	out := &types.AdminClaim{
		ID:            c.ID,
		PolicyNumber:  c.PolicyNumber,
		FarmerID:      c.FarmerID,
		Status:        string(c.Status),
		DamagePercent: c.DamagePercent,
		Payout:        c.Payout,
		Finding:       c.Finding,
		Images:        len(c.Images),
		FiledAt:       c.FiledAt,
		ProcessedAt:   c.ProcessedAt,
	}
	if c.Assessment != nil {
		out.ModelVersion = c.Assessment.ModelVersion
		out.Fallback = c.Assessment.Fallback
	}
	return out
}
