package models

import (
	"time"

	"github.com/shopspring/decimal"

	"farmshield/internal/platform/config"
)

const dateLayout = "2006-01-02"

// PaymentOrderResponse is what the client needs to open the payment sheet.
type PaymentOrderResponse struct {
	PolicyID     string          `json:"policy_id"`
	PolicyNumber string          `json:"policy_number"`
	OrderID      string          `json:"order_id"`
	Amount       decimal.Decimal `json:"amount"`
	Coverage     decimal.Decimal `json:"coverage"`
	Currency     string          `json:"currency"`
	KeyID        string          `json:"key_id"`
}

type LandResponse struct {
	ID           string          `json:"id"`
	KhasraNumber string          `json:"khasra_number"`
	AreaAcres    decimal.Decimal `json:"area_acres"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	SensorCode   string          `json:"sensor_code,omitempty"`
}

type PolicyResponse struct {
	ID                  string          `json:"id"`
	PolicyNumber        string          `json:"policy_number"`
	Status              Status          `json:"status"`
	CropType            string          `json:"crop_type"`
	Premium             decimal.Decimal `json:"premium"`
	Coverage            decimal.Decimal `json:"coverage"`
	StartDate           string          `json:"start_date"`
	EndDate             string          `json:"end_date"`
	Land                LandResponse    `json:"land"`
	VerificationStatus  string          `json:"verification_status,omitempty"`
	VerificationRemarks string          `json:"verification_remarks,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Details joins a policy with the records shown alongside it.
type Details struct {
	Policy              *Policy
	Land                *Land
	SensorCode          string
	VerificationStatus  string
	VerificationRemarks string
}

func ToPolicyResponse(d *Details) *PolicyResponse {
	p := d.Policy
	resp := &PolicyResponse{
		ID:                  p.ID.String(),
		PolicyNumber:        p.Number,
		Status:              p.Status,
		CropType:            p.CropType,
		Premium:             p.Premium,
		Coverage:            p.Coverage,
		StartDate:           p.StartDate.Format(dateLayout),
		EndDate:             p.EndDate.Format(dateLayout),
		VerificationStatus:  d.VerificationStatus,
		VerificationRemarks: d.VerificationRemarks,
		CreatedAt:           p.CreatedAt,
	}
	if d.Land != nil {
		resp.Land = LandResponse{
			ID:           d.Land.ID.String(),
			KhasraNumber: d.Land.KhasraNumber,
			AreaAcres:    d.Land.AreaAcres,
			Latitude:     d.Land.Latitude,
			Longitude:    d.Land.Longitude,
			SensorCode:   d.SensorCode,
		}
	}
	return resp
}

type CropResponse struct {
	Name        string          `json:"name"`
	LocalName   string          `json:"local_name"`
	Season      string          `json:"season"`
	PremiumRate decimal.Decimal `json:"premium_rate"`
	MaxCoverage decimal.Decimal `json:"max_coverage"`
}

func ToCropResponses(rates []config.CropRate) []CropResponse {
	out := make([]CropResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, CropResponse{
			Name:        r.Name,
			LocalName:   r.LocalName,
			Season:      r.Season,
			PremiumRate: r.PremiumRate,
			MaxCoverage: r.MaxCoverage,
		})
	}
	return out
}
