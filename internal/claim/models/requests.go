package models

import (
	"strings"

	"farmshield/internal/imagestore"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// EvidenceImage is an uploaded photo with the coordinates it was taken at.
type EvidenceImage struct {
	File      imagestore.File
	Latitude  float64
	Longitude float64
}

// FileRequest is the parsed multipart claim submission.
type FileRequest struct {
	PolicyID  string
	Latitude  *float64
	Longitude *float64
	Images    []EvidenceImage
}

// Validate checks the filing location and policy reference. The evidence
// count is checked later in the pipeline against configuration.
func (r *FileRequest) Validate() (id.PolicyID, error) {
	policyID, err := id.ParsePolicyID(strings.TrimSpace(r.PolicyID))
	if err != nil {
		return id.PolicyID{}, err
	}
	if r.Latitude == nil || r.Longitude == nil {
		return id.PolicyID{}, dErrors.New(dErrors.CodeValidation, "latitude and longitude are required")
	}
	if !ValidCoordinates(*r.Latitude, *r.Longitude) {
		return id.PolicyID{}, dErrors.New(dErrors.CodeValidation, "coordinates out of range")
	}
	for _, img := range r.Images {
		if !ValidCoordinates(img.Latitude, img.Longitude) {
			return id.PolicyID{}, dErrors.New(dErrors.CodeValidation, "image coordinates out of range")
		}
	}
	return policyID, nil
}

func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
