package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetLastStatusCode() int
	Load(key string) string
}

// RegisterSteps registers sighting throttling steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^the same client submits (\d+) sightings in a row$`, steps.submitMany)
	ctx.Step(`^at least one submission should be rejected with (\d+)$`, steps.someRejectedWith)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) submitMany(ctx context.Context, n int) error {
	s.statuses = s.statuses[:0]
	for range n {
		if err := s.tc.POST("/sightings", map[string]interface{}{
			"case_id":           s.tc.Load("case_id"),
			"reporter_name":     "Repeat Caller",
			"reporter_phone":    "+1 555 0142",
			"sighting_date":     "2025-06-02",
			"sighting_location": "Market Square",
			"description":       "Same child again",
		}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastStatusCode())
	}
	return nil
}

func (s *ratelimitSteps) someRejectedWith(ctx context.Context, status int) error {
	for _, got := range s.statuses {
		if got == status {
			return nil
		}
	}
	return fmt.Errorf("no submission returned %d: %v", status, s.statuses)
}
