package models

import (
	"github.com/shopspring/decimal"

	dErrors "farmshield/pkg/domain-errors"
)

type RegisterRequest struct {
	Code string `json:"code"`
}

// ReadingRequest is posted by field devices and the simulator.
type ReadingRequest struct {
	SensorCode   string           `json:"sensor_code"`
	SoilMoisture *decimal.Decimal `json:"soil_moisture"`
	Humidity     *decimal.Decimal `json:"humidity"`
	Temperature  *decimal.Decimal `json:"temperature"`
	Rainfall     *decimal.Decimal `json:"rainfall,omitempty"`
}

var (
	hundred     = decimal.NewFromInt(100)
	minTemp     = decimal.NewFromInt(-50)
	maxTemp     = decimal.NewFromInt(70)
	maxRainfall = decimal.NewFromInt(2000)
)

func (r *ReadingRequest) Validate() error {
	if r.SoilMoisture == nil {
		return dErrors.New(dErrors.CodeValidation, "soil_moisture is required")
	}
	if r.Humidity == nil {
		return dErrors.New(dErrors.CodeValidation, "humidity is required")
	}
	if r.Temperature == nil {
		return dErrors.New(dErrors.CodeValidation, "temperature is required")
	}
	if !percentage(*r.SoilMoisture) {
		return dErrors.New(dErrors.CodeValidation, "soil_moisture must be between 0 and 100")
	}
	if !percentage(*r.Humidity) {
		return dErrors.New(dErrors.CodeValidation, "humidity must be between 0 and 100")
	}
	if r.Temperature.LessThan(minTemp) || r.Temperature.GreaterThan(maxTemp) {
		return dErrors.New(dErrors.CodeValidation, "temperature is out of range")
	}
	if r.Rainfall != nil && (r.Rainfall.IsNegative() || r.Rainfall.GreaterThan(maxRainfall)) {
		return dErrors.New(dErrors.CodeValidation, "rainfall is out of range")
	}
	return nil
}

func percentage(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(hundred)
}
