package models

import (
	"strings"

	dErrors "farmshield/pkg/domain-errors"
)

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

func (r *VerifyOTPRequest) Validate() error {
	if strings.TrimSpace(r.OTP) == "" {
		return dErrors.New(dErrors.CodeValidation, "otp is required")
	}
	return nil
}

// RegisterRequest completes onboarding. RegistrationToken is the short-lived
// ticket returned by a successful code verification for an unknown phone.
type RegisterRequest struct {
	RegistrationToken string `json:"registration_token"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	State             string `json:"state"`
	District          string `json:"district"`
	Village           string `json:"village"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.State = strings.TrimSpace(r.State)
	r.District = strings.TrimSpace(r.District)
	r.Village = strings.TrimSpace(r.Village)
}

func (r *RegisterRequest) Validate() error {
	if r.RegistrationToken == "" {
		return dErrors.New(dErrors.CodeValidation, "registration_token is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 100 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	return nil
}

// ProfileUpdate carries optional fields; nil means unchanged.
type ProfileUpdate struct {
	Name     *string      `json:"name,omitempty"`
	Address  *string      `json:"address,omitempty"`
	State    *string      `json:"state,omitempty"`
	District *string      `json:"district,omitempty"`
	Village  *string      `json:"village,omitempty"`
	Bank     *BankDetails `json:"bank,omitempty"`
}

func (u *ProfileUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be blank")
	}
	if u.Bank != nil && u.Bank.IFSC != "" && len(u.Bank.IFSC) != 11 {
		return dErrors.New(dErrors.CodeValidation, "ifsc must be 11 characters")
	}
	return nil
}

type OfficialLoginRequest struct {
	GovernmentID string `json:"government_id"`
	Password     string `json:"password"`
}

func (r *OfficialLoginRequest) Validate() error {
	if strings.TrimSpace(r.GovernmentID) == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "government_id and password are required")
	}
	return nil
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
