package e2e

import (
	"github.com/cucumber/godog"

	"findthem/e2e/steps/auth"
	"findthem/e2e/steps/cases"
	"findthem/e2e/steps/common"
	"findthem/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	cases.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
