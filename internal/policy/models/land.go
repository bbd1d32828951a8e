package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// Land is a surveyed parcel identified by its khasra number. The khasra is
// unique across all farmers and never changes once registered.
type Land struct {
	ID           id.LandID
	FarmerID     id.FarmerID
	KhasraNumber string
	AreaAcres    decimal.Decimal
	CropType     string
	Latitude     float64
	Longitude    float64
	SensorID     *id.SensorID
	CreatedAt    time.Time
}

func NewLand(landID id.LandID, farmerID id.FarmerID, khasra string, area decimal.Decimal, crop string, lat, lon float64, now time.Time) (*Land, error) {
	if landID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "land id is required")
	}
	if farmerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farmer id is required")
	}
	khasra = NormalizeKhasra(khasra)
	if khasra == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "khasra number is required")
	}
	if !area.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "area must be positive")
	}
	return &Land{
		ID:           landID,
		FarmerID:     farmerID,
		KhasraNumber: khasra,
		AreaAcres:    area,
		CropType:     NormalizeCrop(crop),
		Latitude:     lat,
		Longitude:    lon,
		CreatedAt:    now,
	}, nil
}

// NormalizeKhasra trims and upper-cases so "12/3a" and "12/3A " collide.
func NormalizeKhasra(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func NormalizeCrop(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
