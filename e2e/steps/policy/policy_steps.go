package policy

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
	Remember(key, value string)
	Recall(key string) (string, error)
	Phone() string
}

// RegisterSteps registers the policy application and payment steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &policySteps{tc: tc}

	ctx.Step(`^I list the insurable crops$`, steps.listCrops)
	ctx.Step(`^I apply for a "([^"]*)" policy on ([\d.]+) acres$`, steps.apply)
	ctx.Step(`^I confirm payment for the order$`, steps.confirmPayment)
	ctx.Step(`^I fetch the policy$`, steps.fetchPolicy)
}

type policySteps struct {
	tc TestContext
}

func (s *policySteps) listCrops(context.Context) error {
	return s.tc.GET("/crops")
}

func (s *policySteps) apply(_ context.Context, crop, acres string) error {
	err := s.tc.POST("/policies", map[string]any{
		"khasra_number": "KH/" + s.tc.Phone() + "/" + crop,
		"area_acres":    acres,
		"crop_type":     crop,
		"latitude":      23.2599,
		"longitude":     77.4126,
	})
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	for _, field := range []string{"policy_id", "order_id"} {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		s.tc.Remember(field, fmt.Sprint(v))
	}
	return nil
}

func (s *policySteps) confirmPayment(context.Context) error {
	orderID, err := s.tc.Recall("order_id")
	if err != nil {
		return err
	}
	return s.tc.POST("/policies/payment/confirm", map[string]any{
		"order_id":   orderID,
		"payment_id": "pay_" + orderID,
	})
}

func (s *policySteps) fetchPolicy(context.Context) error {
	policyID, err := s.tc.Recall("policy_id")
	if err != nil {
		return err
	}
	return s.tc.GET("/policies/" + policyID)
}
