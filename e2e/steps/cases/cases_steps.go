package cases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	PATCH(path string, body interface{}) error
	GetLastStatusCode() int
	GetResponseField(field string) (interface{}, error)
	Save(key, value string)
	Load(key string) string
}

// RegisterSteps registers case and sighting steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &caseSteps{tc: tc}

	ctx.Step(`^I report a missing child named "([^"]*)" aged (\d+) of gender "([^"]*)"$`, steps.reportCase)
	ctx.Step(`^I mark the case as "([^"]*)"$`, steps.markCase)
	ctx.Step(`^a member of the public reports a sighting of the case$`, steps.submitSighting)
	ctx.Step(`^I search for "([^"]*)"$`, steps.search)
	ctx.Step(`^I search for "([^"]*)" with gender "([^"]*)"$`, steps.searchWithGender)
	ctx.Step(`^the search results should include the case$`, steps.resultsIncludeCase)
	ctx.Step(`^the search results should not include the case$`, steps.resultsExcludeCase)
}

type caseSteps struct {
	tc TestContext
}

func (s *caseSteps) reportCase(ctx context.Context, name string, age int, gender string) error {
	if err := s.tc.POST("/dashboard/cases", map[string]interface{}{
		"name":               name,
		"age":                age,
		"gender":             gender,
		"description":        "Red jacket, blue backpack",
		"last_seen_date":     "2025-05-30",
		"last_seen_location": "Central Station",
		"contact_info":       "+1 555 0100",
	}); err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != 201 {
		return nil
	}
	caseID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("case_id", fmt.Sprint(caseID))
	return nil
}

func (s *caseSteps) markCase(ctx context.Context, status string) error {
	return s.tc.PATCH("/dashboard/cases/"+s.tc.Load("case_id")+"/status", map[string]interface{}{"status": status})
}

func (s *caseSteps) submitSighting(ctx context.Context) error {
	return s.tc.POST("/sightings", map[string]interface{}{
		"case_id":           s.tc.Load("case_id"),
		"reporter_name":     "Sam Witness",
		"reporter_phone":    "+1 555 0199",
		"sighting_date":     "2025-06-01",
		"sighting_location": "Harbor Road",
		"description":       "Seen near the ferry terminal",
	})
}

func (s *caseSteps) search(ctx context.Context, q string) error {
	return s.tc.GET("/cases?limit=100&q="+url.QueryEscape(q), nil)
}

func (s *caseSteps) searchWithGender(ctx context.Context, q, gender string) error {
	return s.tc.GET("/cases?limit=100&q="+url.QueryEscape(q)+"&gender="+url.QueryEscape(gender), nil)
}

func (s *caseSteps) resultsIncludeCase(ctx context.Context) error {
	found, err := s.containsCase()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("case %s missing from search results", s.tc.Load("case_id"))
	}
	return nil
}

func (s *caseSteps) resultsExcludeCase(ctx context.Context) error {
	found, err := s.containsCase()
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("case %s unexpectedly in search results", s.tc.Load("case_id"))
	}
	return nil
}

func (s *caseSteps) containsCase() (bool, error) {
	items, err := s.tc.GetResponseField("items")
	if err != nil {
		return false, err
	}
	list, _ := items.([]interface{})
	for i := range list {
		caseID, err := s.tc.GetResponseField("items." + strconv.Itoa(i) + ".id")
		if err != nil {
			return false, err
		}
		if fmt.Sprint(caseID) == s.tc.Load("case_id") {
			return true, nil
		}
	}
	return false, nil
}
