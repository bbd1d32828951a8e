// Package types holds the admin read models. Other modules' types are mapped
// into these by the adapters so admin never depends on their stores.
package types

import (
	"time"

	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
)

type AdminFarmer struct {
	ID       id.FarmerID
	Name     string
	Phone    id.Phone
	District string
	Village  string
}

type AdminClaim struct {
	ID            id.ClaimID
	PolicyNumber  string
	FarmerID      id.FarmerID
	Status        string
	DamagePercent *decimal.Decimal
	Payout        decimal.Decimal
	Finding       string
	ModelVersion  string
	Fallback      bool
	Images        int
	FiledAt       time.Time
	ProcessedAt   *time.Time
}

type ClaimCounts struct {
	Total      int
	Processing int
	Approved   int
	Rejected   int
}

// ClaimRow is one claim joined with its farmer for review and export.
type ClaimRow struct {
	Claim  *AdminClaim
	Farmer *AdminFarmer
}
