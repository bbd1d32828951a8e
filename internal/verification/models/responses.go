package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// View is what an official sees when reviewing a verification: the farmer,
// the land and the priced policy on one card.
type View struct {
	VerificationID string          `json:"verification_id"`
	PolicyID       string          `json:"policy_id"`
	PolicyNumber   string          `json:"policy_number"`
	PolicyStatus   string          `json:"policy_status"`
	FarmerName     string          `json:"farmer_name"`
	FarmerPhone    string          `json:"farmer_phone"`
	FarmerAddress  string          `json:"farmer_address"`
	State          string          `json:"state"`
	District       string          `json:"district"`
	Village        string          `json:"village"`
	KhasraNumber   string          `json:"khasra_number"`
	AreaAcres      decimal.Decimal `json:"area_acres"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	CropType       string          `json:"crop_type"`
	Premium        decimal.Decimal `json:"premium"`
	Coverage       decimal.Decimal `json:"coverage"`
	Status         Status          `json:"status"`
	Remarks        string          `json:"remarks,omitempty"`
	SensorCode     string          `json:"sensor_code,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
}

// Dashboard is the official's landing summary.
type Dashboard struct {
	Counts
	AvailableSensors int `json:"available_sensors"`
	TotalProcessed   int `json:"total_processed"`
}
