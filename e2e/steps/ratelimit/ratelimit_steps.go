package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	NewPhone() string
	SetClientIP(ip string)
}

// RegisterSteps registers the per-IP throttling steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I am calling from IP "([^"]*)"$`, steps.callingFromIP)
	ctx.Step(`^I request OTPs for (\d+) different phones$`, steps.requestOTPs)
	ctx.Step(`^the last response should be throttled$`, steps.lastResponseThrottled)
}

type ratelimitSteps struct {
	tc      TestContext
	allowed int
}

func (s *ratelimitSteps) callingFromIP(_ context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

// requestOTPs varies the phone so only the per-IP budget can reject.
func (s *ratelimitSteps) requestOTPs(_ context.Context, n int) error {
	for range n {
		phone := s.tc.NewPhone()
		if err := s.tc.POST("/auth/otp/send", map[string]any{"phone": phone}); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 200 {
			s.allowed++
		}
	}
	return nil
}

func (s *ratelimitSteps) lastResponseThrottled(context.Context) error {
	if got := s.tc.GetLastResponseStatus(); got != 429 {
		return fmt.Errorf("expected 429 after %d allowed requests, got %d: %s", s.allowed, got, s.tc.GetLastResponseBody())
	}
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("429 without Retry-After")
	}
	if s.tc.GetLastResponseHeader("X-RateLimit-Remaining") != "0" {
		return fmt.Errorf("expected X-RateLimit-Remaining 0, got %q", s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	}
	return nil
}
