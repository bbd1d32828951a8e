package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

// SendOTP issues a login code and reports whether the phone belongs to a
// registered farmer so the app can show the right next screen.
func (s *Service) SendOTP(ctx context.Context, req *models.SendOTPRequest) (*models.OTPSentResponse, error) {
	issued, err := s.otp.Issue(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	isNew, err := s.isNewFarmer(ctx, issued.Phone)
	if err != nil {
		return nil, err
	}
	return &models.OTPSentResponse{
		Phone:           string(issued.Phone),
		Delivered:       issued.Delivered,
		IsNewUser:       isNew,
		ExpiresAt:       issued.ExpiresAt,
		OTPValidMinutes: int(s.cfg.OTPTTL.Minutes()),
		DebugOTP:        issued.DebugCode,
	}, nil
}

// VerifyOTP consumes the code. A known farmer gets a session; an unknown
// phone gets a registration ticket instead.
func (s *Service) VerifyOTP(ctx context.Context, req *models.VerifyOTPRequest) (*models.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.otp.Verify(ctx, req.Phone, req.OTP)
	if err != nil {
		s.authFailure(ctx, "otp_rejected", "phone", maskRaw(req.Phone))
		return nil, err
	}

	farmer, err := s.farmers.FindByPhone(ctx, rec.Phone)
	if errors.Is(err, sentinel.ErrNotFound) {
		ticket, err := s.tokens.GenerateRegistrationToken(rec.Phone, s.cfg.RegistrationTTL)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue registration token")
		}
		return &models.AuthResult{
			Phone:                string(rec.Phone),
			RequiresRegistration: true,
			RegistrationToken:    ticket,
		}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load farmer")
	}

	result, err := s.startSession(ctx, farmerCaller(farmer))
	if err != nil {
		return nil, err
	}
	fillFarmer(result, farmer)
	if s.metrics != nil {
		s.metrics.IncrementLogin(string(requestcontext.RoleFarmer))
	}
	return result, nil
}

// Register creates the farmer for a phone that proved ownership through
// VerifyOTP, then signs them in.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := s.tokens.ValidateRegistrationToken(req.RegistrationToken)
	if err != nil {
		s.authFailure(ctx, "registration_token_invalid")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	farmer, err := models.NewFarmer(id.FarmerID(s.newID()), phone, req.Name, now)
	if err != nil {
		return nil, err
	}
	farmer.Address = req.Address
	farmer.State = req.State
	farmer.District = req.District
	farmer.Village = req.Village

	if err := s.farmers.Create(ctx, farmer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "phone number is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create farmer")
	}
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	s.logAudit(ctx, string(audit.EventFarmerRegistered),
		"farmer_id", farmer.ID.String(),
		"phone", farmer.Phone.Masked(),
	)

	result, err := s.startSession(ctx, farmerCaller(farmer))
	if err != nil {
		return nil, err
	}
	fillFarmer(result, farmer)
	return result, nil
}

func (s *Service) isNewFarmer(ctx context.Context, phone id.Phone) (bool, error) {
	_, err := s.farmers.FindByPhone(ctx, phone)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load farmer")
	}
	return false, nil
}

func farmerCaller(f *models.Farmer) requestcontext.Caller {
	return requestcontext.Caller{SubjectID: uuid.UUID(f.ID), Role: requestcontext.RoleFarmer}
}

func fillFarmer(result *models.AuthResult, f *models.Farmer) {
	result.Name = f.Name
	result.Phone = string(f.Phone)
	result.ProfileComplete = f.ProfileComplete()
}

// maskRaw masks an unnormalized phone for logs.
func maskRaw(raw string) string {
	if phone, err := id.NormalizePhone(raw); err == nil {
		return phone.Masked()
	}
	return "invalid"
}
