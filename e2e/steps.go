package e2e

import (
	"github.com/cucumber/godog"

	"farmshield/e2e/steps/auth"
	"farmshield/e2e/steps/common"
	"farmshield/e2e/steps/policy"
	"farmshield/e2e/steps/ratelimit"
)

// RegisterSteps registers every step package against one scenario context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	policy.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
