package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	casemodels "findthem/internal/cases/models"
	"findthem/internal/dashboard/handler/mocks"
	"findthem/internal/dashboard/models"
	"findthem/internal/policy"
	sightingmodels "findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	authmocks "findthem/pkg/platform/middleware/auth/mocks"
	"findthem/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,CallerResolver
type DashboardHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	callers *mocks.MockCallerResolver
	authn   *authmocks.MockSessionAuthenticator
	router  http.Handler
	owner   policy.Caller
}

func TestDashboardHandlerSuite(t *testing.T) {
	suite.Run(t, new(DashboardHandlerSuite))
}

func (s *DashboardHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.callers = mocks.NewMockCallerResolver(ctrl)
	s.authn = authmocks.NewMockSessionAuthenticator(ctrl)
	s.owner = policy.Caller{ProfileID: id.NewUserID(), Authenticated: true, Verified: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.service, s.callers, s.authn, logger).Register(r)
	s.router = r
}

func (s *DashboardHandlerSuite) signedIn(req *http.Request, caller policy.Caller) *http.Request {
	s.authn.EXPECT().CurrentUser(gomock.Any(), "token-abc").Return(caller.ProfileID, nil)
	s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(caller, nil)
	return testutil.WithBearer(req, "token-abc")
}

func (s *DashboardHandlerSuite) TestStats() {
	s.Run("verified owner", func() {
		s.service.EXPECT().Stats(gomock.Any(), s.owner).Return(&models.Stats{
			TotalCases: 4, ActiveCases: 2, FoundCases: 1, TotalSightings: 7,
		}, nil)

		rr := testutil.DoRequest(s.router, s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/stats"), s.owner))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.Stats](s.T(), rr)
		s.Equal(7, got.TotalSightings)
		s.Equal(2, got.ActiveCases)
	})

	s.Run("pending verification is 403", func() {
		pending := policy.Caller{ProfileID: id.NewUserID(), Authenticated: true}
		s.service.EXPECT().Stats(gomock.Any(), pending).
			Return(nil, dErrors.New(dErrors.CodeVerificationPending, "profile verification is pending"))

		rr := testutil.DoRequest(s.router, s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/stats"), pending))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "verification_pending")
	})

	s.Run("anonymous is 401", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/stats"))

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *DashboardHandlerSuite) TestRecent() {
	caseID := id.NewCaseID()
	s.service.EXPECT().Recent(gomock.Any(), s.owner).Return(&models.Recent{
		Cases:     []*casemodels.Case{{ID: caseID, Name: "Jane Doe", Status: casemodels.StatusActive}},
		Sightings: []*sightingmodels.Sighting{{ID: id.NewSightingID(), CaseID: caseID, Status: sightingmodels.StatusPending}},
	}, nil)

	rr := testutil.DoRequest(s.router, s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/recent"), s.owner))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[models.Recent](s.T(), rr)
	s.Require().Len(got.Cases, 1)
	s.Equal("Jane Doe", got.Cases[0].Name)
	s.Require().Len(got.Sightings, 1)
	s.Equal(caseID, got.Sightings[0].CaseID)
}
