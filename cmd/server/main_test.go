package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	casemodels "findthem/internal/cases/models"
	"findthem/internal/cases/search"
	dashboardmodels "findthem/internal/dashboard/models"
	identitymodels "findthem/internal/identity/models"
	"findthem/internal/platform/config"
	profilemodels "findthem/internal/profile/models"
	sightingmodels "findthem/internal/sightings/models"
	"findthem/pkg/platform/middleware/admin"
	"findthem/pkg/testutil"
)

const adminToken = "review-token"

func testConfig() config.Server {
	return config.Server{
		Addr:       ":0",
		AdminToken: adminToken,
		Database:   config.DatabaseConfig{Driver: "postgres"},
		Kafka:      config.KafkaConfig{AuditTopic: "findthem.audit"},
		Auth: config.AuthConfig{
			JWTSigningKey: "test-signing-key",
			JWTIssuer:     "findthem-test",
			SessionTTL:    time.Hour,
		},
		Sightings:     config.SightingsConfig{RateLimitPerMinute: 10},
		Registrations: config.RegistrationConfig{RetryInterval: time.Minute},
	}
}

func newTestApp(t *testing.T, cfg config.Server) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := buildApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.Len(t, a.runners, 1, "only the registration worker runs without kafka")
	return a.router
}

func TestReportingFlow(t *testing.T) {
	router := newTestApp(t, testConfig())

	var token string
	var caseID string

	testutil.Given(t, "an NGO registers and signs in", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
			"email":             "ops@hope.example",
			"password":          "correct-horse-1",
			"confirm_password":  "correct-horse-1",
			"full_name":         "Ada Ops",
			"organization_name": "Hope Foundation",
			"role":              "ngo",
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "ops@hope.example",
			"password": "correct-horse-1",
		}))
		testutil.AssertStatus(t, rr, http.StatusOK)
		token = testutil.UnmarshalResponse[identitymodels.Session](t, rr).AccessToken
		require.NotEmpty(t, token)

		me := testutil.DoRequest(router, testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/me"), token))
		testutil.AssertStatus(t, me, http.StatusOK)
		status := testutil.UnmarshalResponse[profilemodels.Status](t, me)
		assert.False(t, status.Profile.IsVerified)
		require.NotNil(t, status.VerificationRequest)
		assert.Equal(t, profilemodels.VerificationPending, status.VerificationRequest.Status)
	})

	testutil.When(t, "the unverified organization reports a case", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/dashboard/cases", janeDoe()), token))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "verification_pending")
	})

	testutil.When(t, "an administrator approves the organization", func(t *testing.T) {
		list := testutil.NewRequest(t, http.MethodGet, "/admin/verification-requests/")
		list.Header.Set(admin.HeaderAdminToken, adminToken)
		rr := testutil.DoRequest(router, list)
		testutil.AssertStatus(t, rr, http.StatusOK)
		pending := testutil.UnmarshalResponse[struct {
			Items []profilemodels.VerificationRequest `json:"items"`
		}](t, rr)
		require.Len(t, pending.Items, 1)

		approve := testutil.NewRequest(t, http.MethodPost, "/admin/verification-requests/"+pending.Items[0].ID.String()+"/approve")
		approve.Header.Set(admin.HeaderAdminToken, adminToken)
		testutil.AssertStatus(t, testutil.DoRequest(router, approve), http.StatusOK)
	})

	testutil.Then(t, "the case can be reported and receives a sighting", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/dashboard/cases", janeDoe()), token))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		created := testutil.UnmarshalResponse[casemodels.Case](t, rr)
		assert.Equal(t, casemodels.StatusActive, created.Status)
		assert.Regexp(t, `^MC\d{6}[A-Z0-9]{3}$`, created.CaseNumber)
		caseID = created.ID.String()

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/sightings", sighting(caseID)))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		s := testutil.UnmarshalResponse[sightingmodels.Sighting](t, rr)
		assert.Equal(t, sightingmodels.StatusPending, s.Status)
	})

	testutil.Then(t, "a second organization awaiting review cannot open the case on its dashboard", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
			"email":             "desk@lookout.example",
			"password":          "correct-horse-2",
			"confirm_password":  "correct-horse-2",
			"full_name":         "Bo Desk",
			"organization_name": "Lookout Network",
			"role":              "ngo",
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "desk@lookout.example",
			"password": "correct-horse-2",
		}))
		testutil.AssertStatus(t, rr, http.StatusOK)
		pendingToken := testutil.UnmarshalResponse[identitymodels.Session](t, rr).AccessToken

		rr = testutil.DoRequest(router, testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/dashboard/cases/"+caseID), pendingToken))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "verification_pending")

		rr = testutil.DoRequest(router, testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/dashboard/cases/"+caseID), token))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	testutil.Then(t, "public search finds the case only with matching filters", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/cases?q=Jane"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		page := testutil.UnmarshalResponse[search.Page](t, rr)
		require.Len(t, page.Items, 1)
		assert.Equal(t, caseID, page.Items[0].ID.String())

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/cases?q=Jane&gender=male"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Empty(t, testutil.UnmarshalResponse[search.Page](t, rr).Items)
	})

	testutil.Then(t, "the dashboard counts the case and its sighting", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/dashboard/stats"), token))
		testutil.AssertStatus(t, rr, http.StatusOK)
		stats := testutil.UnmarshalResponse[dashboardmodels.Stats](t, rr)
		assert.Equal(t, dashboardmodels.Stats{TotalCases: 1, ActiveCases: 1, TotalSightings: 1}, *stats)
	})

	testutil.Then(t, "sighting submissions are throttled per client IP", func(t *testing.T) {
		var last int
		for range 10 {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/sightings", sighting(caseID)))
			last = rr.Code
			if last == http.StatusTooManyRequests {
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
				break
			}
		}
		assert.Equal(t, http.StatusTooManyRequests, last)
	})
}

func TestDemoModeDisablesRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.DemoMode = true
	cfg.Sightings.RateLimitPerMinute = 1
	router := newTestApp(t, cfg)

	for range 3 {
		// unknown case, but the limiter runs first
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/sightings", sighting("00000000-0000-0000-0000-000000000001")))
		assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestApp(t, testConfig())

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func janeDoe() map[string]any {
	return map[string]any{
		"name":               "Jane Doe",
		"age":                10,
		"gender":             "female",
		"description":        "Red jacket, blue backpack",
		"last_seen_date":     "2025-05-30",
		"last_seen_location": "Central Station",
		"contact_info":       "+1 555 0100",
	}
}

func sighting(caseID string) map[string]any {
	return map[string]any{
		"case_id":           caseID,
		"reporter_name":     "Sam Witness",
		"reporter_phone":    "+1 555 0199",
		"sighting_date":     "2025-06-01",
		"sighting_location": "Harbor Road",
		"description":       "Seen near the ferry terminal",
	}
}
