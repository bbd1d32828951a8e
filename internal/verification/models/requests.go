package models

import (
	"strings"

	dErrors "farmshield/pkg/domain-errors"
)

const maxRemarksLength = 500

// DecideRequest is an official's verdict on a pending verification.
// SensorCode is only honoured for approvals.
type DecideRequest struct {
	Outcome    string `json:"outcome"`
	Remarks    string `json:"remarks"`
	SensorCode string `json:"sensor_code"`
}

func (r *DecideRequest) Validate() (Status, error) {
	outcome, err := ParseOutcome(strings.ToLower(strings.TrimSpace(r.Outcome)))
	if err != nil {
		return "", err
	}
	r.Remarks = strings.TrimSpace(r.Remarks)
	if len(r.Remarks) > maxRemarksLength {
		return "", dErrors.New(dErrors.CodeValidation, "remarks are too long")
	}
	r.SensorCode = strings.TrimSpace(r.SensorCode)
	if outcome == StatusRejected {
		r.SensorCode = ""
	}
	return outcome, nil
}
