package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	AdminGET(path string) error
	AdminPOST(path string) error
	GetLastStatusCode() int
	GetResponseField(field string) (interface{}, error)
	SetAccessToken(token string)
	Save(key, value string)
	Load(key string) string
}

// RegisterSteps registers registration, login and verification steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I register an? "([^"]*)" organization named "([^"]*)"$`, steps.registerOrganization)
	ctx.Step(`^I log in$`, steps.login)
	ctx.Step(`^an administrator approves my verification request$`, steps.approveOwnRequest)
	ctx.Step(`^I am a verified "([^"]*)" organization named "([^"]*)"$`, steps.verifiedOrganization)
}

type authSteps struct {
	tc TestContext
}

const password = "correct-horse-1"

func (s *authSteps) registerOrganization(ctx context.Context, role, org string) error {
	// unique per run so scenarios can share a server
	email := fmt.Sprintf("e2e-%d@findthem.example", time.Now().UnixNano())
	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"confirm_password":  password,
		"full_name":         "E2E Operator",
		"organization_name": org,
		"role":              role,
	}
	if role == "police" {
		body["police_id"] = "PD-4471"
	}
	if err := s.tc.POST("/auth/register", body); err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != 201 {
		return fmt.Errorf("registration failed with status %d", s.tc.GetLastStatusCode())
	}
	userID, err := s.tc.GetResponseField("user_id")
	if err != nil {
		return err
	}
	s.tc.Save("email", email)
	s.tc.Save("user_id", fmt.Sprint(userID))
	return nil
}

func (s *authSteps) login(ctx context.Context) error {
	if err := s.tc.POST("/auth/login", map[string]interface{}{
		"email":    s.tc.Load("email"),
		"password": password,
	}); err != nil {
		return err
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

func (s *authSteps) approveOwnRequest(ctx context.Context) error {
	if err := s.tc.AdminGET("/admin/verification-requests/"); err != nil {
		return err
	}
	items, err := s.tc.GetResponseField("items")
	if err != nil {
		return err
	}
	list, _ := items.([]interface{})
	for _, item := range list {
		req, _ := item.(map[string]interface{})
		if fmt.Sprint(req["user_id"]) != s.tc.Load("user_id") {
			continue
		}
		if err := s.tc.AdminPOST(fmt.Sprintf("/admin/verification-requests/%v/approve", req["id"])); err != nil {
			return err
		}
		if s.tc.GetLastStatusCode() != 200 {
			return fmt.Errorf("approval failed with status %d", s.tc.GetLastStatusCode())
		}
		return nil
	}
	return fmt.Errorf("no pending verification request for %s", s.tc.Load("user_id"))
}

func (s *authSteps) verifiedOrganization(ctx context.Context, role, org string) error {
	if err := s.registerOrganization(ctx, role, org); err != nil {
		return err
	}
	if err := s.approveOwnRequest(ctx); err != nil {
		return err
	}
	return s.login(ctx)
}
