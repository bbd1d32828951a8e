package models

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "farmshield/pkg/domain-errors"
)

const maxKhasraLength = 50

var maxAreaAcres = decimal.NewFromInt(10000)

// ApplyRequest registers a land and opens a pending policy on it.
type ApplyRequest struct {
	KhasraNumber string           `json:"khasra_number"`
	AreaAcres    *decimal.Decimal `json:"area_acres"`
	CropType     string           `json:"crop_type"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
}

func (r *ApplyRequest) Validate() error {
	khasra := strings.TrimSpace(r.KhasraNumber)
	switch {
	case khasra == "":
		return dErrors.New(dErrors.CodeValidation, "khasra_number is required")
	case len(khasra) > maxKhasraLength:
		return dErrors.New(dErrors.CodeValidation, "khasra_number is too long")
	case r.AreaAcres == nil:
		return dErrors.New(dErrors.CodeValidation, "area_acres is required")
	case !r.AreaAcres.IsPositive():
		return dErrors.New(dErrors.CodeValidation, "area_acres must be positive")
	case r.AreaAcres.GreaterThan(maxAreaAcres):
		return dErrors.New(dErrors.CodeValidation, "area_acres is out of range")
	case strings.TrimSpace(r.CropType) == "":
		return dErrors.New(dErrors.CodeValidation, "crop_type is required")
	case r.Latitude == nil || r.Longitude == nil:
		return dErrors.New(dErrors.CodeValidation, "latitude and longitude are required")
	case *r.Latitude < -90 || *r.Latitude > 90:
		return dErrors.New(dErrors.CodeValidation, "latitude is out of range")
	case *r.Longitude < -180 || *r.Longitude > 180:
		return dErrors.New(dErrors.CodeValidation, "longitude is out of range")
	}
	return nil
}

type ConfirmPaymentRequest struct {
	OrderRef   string `json:"order_id"`
	PaymentRef string `json:"payment_id"`
}

func (r *ConfirmPaymentRequest) Validate() error {
	if strings.TrimSpace(r.OrderRef) == "" {
		return dErrors.New(dErrors.CodeValidation, "order_id is required")
	}
	if strings.TrimSpace(r.PaymentRef) == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_id is required")
	}
	return nil
}
