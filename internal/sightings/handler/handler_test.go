package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"findthem/internal/policy"
	"findthem/internal/sightings/handler/mocks"
	"findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	authmocks "findthem/pkg/platform/middleware/auth/mocks"
	"findthem/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,CallerResolver
type SightingsHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	callers *mocks.MockCallerResolver
	authn   *authmocks.MockSessionAuthenticator
	router  http.Handler
	owner   policy.Caller
	limited int
}

func TestSightingsHandlerSuite(t *testing.T) {
	suite.Run(t, new(SightingsHandlerSuite))
}

func (s *SightingsHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.callers = mocks.NewMockCallerResolver(ctrl)
	s.authn = authmocks.NewMockSessionAuthenticator(ctrl)
	s.owner = policy.Caller{ProfileID: id.NewUserID(), Authenticated: true, Verified: true}
	s.limited = 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	countingLimiter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.limited++
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewRouter()
	New(s.service, s.callers, s.authn, logger, WithSubmitLimiter(countingLimiter)).Register(r)
	s.router = r
}

func (s *SightingsHandlerSuite) signedIn(req *http.Request) *http.Request {
	s.authn.EXPECT().CurrentUser(gomock.Any(), "token-abc").Return(s.owner.ProfileID, nil)
	s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(s.owner, nil)
	return testutil.WithBearer(req, "token-abc")
}

func (s *SightingsHandlerSuite) TestSubmit() {
	caseID := id.NewCaseID()
	body := map[string]string{
		"case_id":           caseID.String(),
		"reporter_name":     "Musa",
		"reporter_phone":    "+234 1",
		"sighting_date":     "2025-06-14",
		"sighting_location": "Wuse Market",
		"description":       "Seen near the gate",
	}

	s.Run("anonymous submissions are accepted through the limiter", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&models.Sighting{
			ID: id.NewSightingID(), CaseID: caseID, Status: models.StatusPending,
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/sightings", body))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "status", "pending")
		s.Equal(1, s.limited)
	})

	s.Run("unknown case is 404", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeNotFound, "case not found"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/sightings", body))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("missing fields are 422", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/sightings",
			map[string]string{"case_id": caseID.String()}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})
}

func (s *SightingsHandlerSuite) TestUpdateStatus() {
	s.Run("owner dismisses a sighting", func() {
		sightingID := id.NewSightingID()
		s.service.EXPECT().UpdateStatus(gomock.Any(), s.owner, sightingID, models.StatusDismissed).
			Return(&models.Sighting{ID: sightingID, Status: models.StatusDismissed}, nil)

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/dashboard/sightings/"+sightingID.String()+"/status", map[string]string{"status": "Dismissed"}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", "dismissed")
	})

	s.Run("moderated sightings are 409", func() {
		sightingID := id.NewSightingID()
		s.service.EXPECT().UpdateStatus(gomock.Any(), s.owner, sightingID, models.StatusVerified).
			Return(nil, dErrors.New(dErrors.CodeConflict, "sighting cannot move from dismissed to verified"))

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/dashboard/sightings/"+sightingID.String()+"/status", map[string]string{"status": "verified"}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("requires a session", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/dashboard/sightings/"+id.NewSightingID().String()+"/status", map[string]string{"status": "verified"}))

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *SightingsHandlerSuite) TestListForCase() {
	caseID := id.NewCaseID()
	s.service.EXPECT().ListForCase(gomock.Any(), s.owner, caseID).Return([]*models.Sighting{
		{ID: id.NewSightingID(), CaseID: caseID, Status: models.StatusPending},
	}, nil)

	req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases/"+caseID.String()+"/sightings"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string][]map[string]any](s.T(), rr)
	s.Len((*body)["items"], 1)
}
