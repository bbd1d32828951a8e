package models

import "time"

type OTPSentResponse struct {
	Phone           string    `json:"phone"`
	Delivered       bool      `json:"delivered"`
	IsNewUser       bool      `json:"is_new_user"`
	ExpiresAt       time.Time `json:"expires_at"`
	OTPValidMinutes int       `json:"otp_valid_minutes"`
	DebugOTP        string    `json:"debug_otp,omitempty"`
}

// AuthResult is returned by every flow that ends in a session. When a new
// phone verifies its code, only RequiresRegistration and RegistrationToken are set.
type AuthResult struct {
	AccessToken          string `json:"access_token,omitempty"`
	RefreshToken         string `json:"refresh_token,omitempty"`
	TokenType            string `json:"token_type,omitempty"`
	ExpiresIn            int    `json:"expires_in,omitempty"`
	SubjectID            string `json:"user_id,omitempty"`
	Role                 string `json:"role,omitempty"`
	Name                 string `json:"name,omitempty"`
	Phone                string `json:"phone,omitempty"`
	ProfileComplete      bool   `json:"profile_complete"`
	RequiresRegistration bool   `json:"requires_registration"`
	RegistrationToken    string `json:"registration_token,omitempty"`
}

type ProfileResponse struct {
	ID              string      `json:"id"`
	Phone           string      `json:"phone"`
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	State           string      `json:"state"`
	District        string      `json:"district"`
	Village         string      `json:"village"`
	Bank            BankDetails `json:"bank"`
	ProfileImage    string      `json:"profile_image,omitempty"`
	ProfileComplete bool        `json:"profile_complete"`
	CreatedAt       time.Time   `json:"created_at"`
}

func ToProfileResponse(f *Farmer) *ProfileResponse {
	return &ProfileResponse{
		ID:              f.ID.String(),
		Phone:           string(f.Phone),
		Name:            f.Name,
		Address:         f.Address,
		State:           f.State,
		District:        f.District,
		Village:         f.Village,
		Bank:            f.Bank,
		ProfileImage:    f.ProfileImage,
		ProfileComplete: f.ProfileComplete(),
		CreatedAt:       f.CreatedAt,
	}
}
