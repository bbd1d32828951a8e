package auth

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	OTPCode() string
	NewPhone() string
	Phone() string
	SetAccessToken(token string)
	Remember(key, value string)
	Recall(key string) (string, error)
}

// RegisterSteps registers the OTP login and registration steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^a new farmer phone number$`, steps.newPhone)
	ctx.Step(`^I request an OTP$`, steps.requestOTP)
	ctx.Step(`^I verify the OTP$`, steps.verifyOTP)
	ctx.Step(`^I verify the OTP with code "([^"]*)"$`, steps.verifyOTPWithCode)
	ctx.Step(`^I register as "([^"]*)" in "([^"]*)", "([^"]*)"$`, steps.register)
	ctx.Step(`^I am a signed in farmer$`, steps.signedInFarmer)
	ctx.Step(`^I view my profile$`, steps.viewProfile)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) newPhone(context.Context) error {
	s.tc.NewPhone()
	return nil
}

func (s *authSteps) requestOTP(context.Context) error {
	return s.tc.POST("/auth/otp/send", map[string]any{"phone": s.tc.Phone()})
}

func (s *authSteps) verifyOTP(ctx context.Context) error {
	return s.verifyOTPWithCode(ctx, s.tc.OTPCode())
}

func (s *authSteps) verifyOTPWithCode(_ context.Context, code string) error {
	if err := s.tc.POST("/auth/otp/verify", map[string]any{"phone": s.tc.Phone(), "otp": code}); err != nil {
		return err
	}
	if token, err := s.tc.GetResponseField("registration_token"); err == nil {
		s.tc.Remember("registration_token", fmt.Sprint(token))
	}
	return nil
}

func (s *authSteps) register(_ context.Context, name, district, state string) error {
	regToken, err := s.tc.Recall("registration_token")
	if err != nil {
		return err
	}
	err = s.tc.POST("/auth/register", map[string]any{
		"registration_token": regToken,
		"name":               name,
		"address":            "Ward 4",
		"state":              state,
		"district":           district,
		"village":            "Rampur",
	})
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("registration failed with %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

func (s *authSteps) signedInFarmer(ctx context.Context) error {
	s.tc.NewPhone()
	if err := s.requestOTP(ctx); err != nil {
		return err
	}
	if err := s.verifyOTP(ctx); err != nil {
		return err
	}
	return s.register(ctx, "Ramesh Kumar", "Sehore", "Madhya Pradesh")
}

func (s *authSteps) viewProfile(context.Context) error {
	return s.tc.GET("/farmers/me")
}
