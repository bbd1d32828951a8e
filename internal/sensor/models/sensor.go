package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,19}$`)

// Sensor is a field device. It is bound to at most one land, and a land has at
// most one sensor; the binding is made once, at verification approval.
type Sensor struct {
	ID            id.SensorID `json:"id"`
	Code          string      `json:"code"`
	LandID        *id.LandID  `json:"land_id,omitempty"`
	Active        bool        `json:"active"`
	LastReadingAt *time.Time  `json:"last_reading_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Available reports whether the sensor can be assigned to a land.
func (s *Sensor) Available() bool {
	return s.Active && s.LandID == nil
}

// Reading is one sample from a sensor. Rainfall is optional; older devices
// do not carry a gauge.
type Reading struct {
	ID           int64            `json:"id"`
	SensorID     id.SensorID      `json:"sensor_id"`
	SoilMoisture decimal.Decimal  `json:"soil_moisture"`
	Humidity     decimal.Decimal  `json:"humidity"`
	Temperature  decimal.Decimal  `json:"temperature"`
	Rainfall     *decimal.Decimal `json:"rainfall,omitempty"`
	RecordedAt   time.Time        `json:"recorded_at"`
}

// NormalizeCode upper-cases and validates a sensor code such as "SNS-0042".
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", dErrors.New(dErrors.CodeValidation, "sensor code is required")
	}
	if !codePattern.MatchString(code) {
		return "", dErrors.New(dErrors.CodeValidation, "sensor code must be 3-20 letters, digits or dashes")
	}
	return code, nil
}

func NewSensor(sensorID id.SensorID, rawCode string, now time.Time) (*Sensor, error) {
	if sensorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sensor id is required")
	}
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	return &Sensor{ID: sensorID, Code: code, Active: true, CreatedAt: now}, nil
}

// Stats summarises the sensor fleet for dashboards.
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}
