package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"findthem/internal/cases/handler/mocks"
	"findthem/internal/cases/models"
	"findthem/internal/cases/search"
	"findthem/internal/policy"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	authmocks "findthem/pkg/platform/middleware/auth/mocks"
	"findthem/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Searcher,CallerResolver
type CasesHandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	searcher *mocks.MockSearcher
	callers  *mocks.MockCallerResolver
	authn    *authmocks.MockSessionAuthenticator
	router   http.Handler
	reporter policy.Caller
}

func TestCasesHandlerSuite(t *testing.T) {
	suite.Run(t, new(CasesHandlerSuite))
}

func (s *CasesHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.searcher = mocks.NewMockSearcher(ctrl)
	s.callers = mocks.NewMockCallerResolver(ctrl)
	s.authn = authmocks.NewMockSessionAuthenticator(ctrl)
	s.reporter = policy.Caller{ProfileID: id.NewUserID(), Authenticated: true, Verified: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.service, s.searcher, s.callers, s.authn, logger).Register(r)
	s.router = r
}

func (s *CasesHandlerSuite) signedIn(req *http.Request) *http.Request {
	s.authn.EXPECT().CurrentUser(gomock.Any(), "token-abc").Return(s.reporter.ProfileID, nil)
	s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(s.reporter, nil)
	return testutil.WithBearer(req, "token-abc")
}

func sampleCase(owner id.UserID) *models.Case {
	return &models.Case{
		ID:               id.NewCaseID(),
		CaseNumber:       "MC123456XYZ",
		Name:             "Jane Doe",
		Age:              10,
		Gender:           models.GenderFemale,
		LastSeenDate:     id.NewDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		LastSeenLocation: "Lagos",
		AdditionalPhotos: []string{},
		Status:           models.StatusActive,
		ReportedBy:       owner,
		CreatedAt:        time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}
}

func (s *CasesHandlerSuite) TestSearch() {
	s.Run("passes parsed filters to the engine", func() {
		c := sampleCase(s.reporter.ProfileID)
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), search.PageRequest{Limit: 5}).
			DoAndReturn(func(_ any, f search.Filters, _ search.PageRequest) (*search.Page, error) {
				s.Equal("Jane", f.Query)
				s.Equal(models.GenderFemale, f.Gender)
				s.Require().NotNil(f.AgeMin)
				s.Equal(8, *f.AgeMin)
				return &search.Page{Items: []*models.Case{c}, NextCursor: "next"}, nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases?q=Jane&gender=female&age_min=8&limit=5"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("next", (*body)["next_cursor"])
		s.Len((*body)["items"], 1)
	})

	s.Run("invalid filters are 422 and list the fields", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases?age_min=x&gender=robot"))

		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.ElementsMatch([]any{"age_min", "gender"}, body["fields"])
	})
}

func (s *CasesHandlerSuite) TestRecent() {
	s.searcher.EXPECT().Recent(gomock.Any(), search.DefaultRecent).Return([]*models.Case{}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases/recent"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *CasesHandlerSuite) TestPublicDetail() {
	s.Run("anonymous readers resolve to the anonymous caller", func() {
		c := sampleCase(s.reporter.ProfileID)
		s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(policy.Anonymous(), nil)
		s.service.EXPECT().Get(gomock.Any(), policy.Anonymous(), c.ID).Return(c, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+c.ID.String()))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "case_number", "MC123456XYZ")
	})

	s.Run("hidden cases are 404", func() {
		caseID := id.NewCaseID()
		s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(policy.Anonymous(), nil)
		s.service.EXPECT().Get(gomock.Any(), policy.Anonymous(), caseID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "case not found"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+caseID.String()))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed ids are 400", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/cases/not-a-uuid"))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *CasesHandlerSuite) TestDashboardDetail() {
	s.Run("owners read through the owner-scoped lookup", func() {
		c := sampleCase(s.reporter.ProfileID)
		req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases/"+c.ID.String()))
		s.service.EXPECT().GetOwned(gomock.Any(), s.reporter, c.ID).Return(c, nil)

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "case_number", "MC123456XYZ")
	})

	s.Run("pending profiles are refused", func() {
		caseID := id.NewCaseID()
		req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases/"+caseID.String()))
		s.service.EXPECT().GetOwned(gomock.Any(), s.reporter, caseID).
			Return(nil, dErrors.New(dErrors.CodeVerificationPending, "profile verification is pending"))

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "verification_pending")
	})

	s.Run("foreign cases are 404", func() {
		caseID := id.NewCaseID()
		req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases/"+caseID.String()))
		s.service.EXPECT().GetOwned(gomock.Any(), s.reporter, caseID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "case not found"))

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *CasesHandlerSuite) TestCreate() {
	s.Run("returns 201 with the stored case", func() {
		c := sampleCase(s.reporter.ProfileID)
		s.service.EXPECT().Create(gomock.Any(), s.reporter, gomock.Any()).
			DoAndReturn(func(_ any, _ policy.Caller, req *models.CreateCaseRequest) (*models.Case, error) {
				s.Equal("Jane Doe", req.Name)
				s.Equal("female", req.Gender)
				return c, nil
			})

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPost, "/dashboard/cases", map[string]any{
			"name":               " Jane Doe ",
			"age":                10,
			"gender":             "Female",
			"description":        "Red jacket",
			"last_seen_date":     "2025-06-01",
			"last_seen_location": "Lagos",
			"contact_info":       "+234 1",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "id", c.ID.String())
	})

	s.Run("unverified reporters are 403", func() {
		s.service.EXPECT().Create(gomock.Any(), s.reporter, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeVerificationPending, "profile verification is pending"))

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPost, "/dashboard/cases", map[string]any{
			"name": "Jane Doe", "age": 10, "gender": "female", "description": "d",
			"last_seen_date": "2025-06-01", "last_seen_location": "Lagos", "contact_info": "c",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "verification_pending")
	})

	s.Run("missing fields never reach the service", func() {
		s.authn.EXPECT().CurrentUser(gomock.Any(), "token-abc").Return(s.reporter.ProfileID, nil)
		s.callers.EXPECT().ResolveCaller(gomock.Any()).Return(s.reporter, nil)
		req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/dashboard/cases", map[string]any{
			"name": "Jane Doe",
		}), "token-abc")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("requires a session", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/dashboard/cases", map[string]any{}))

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *CasesHandlerSuite) TestUpdateStatus() {
	s.Run("passes the normalized status", func() {
		c := sampleCase(s.reporter.ProfileID)
		c.Status = models.StatusFound
		s.service.EXPECT().UpdateStatus(gomock.Any(), s.reporter, c.ID, models.StatusFound).Return(c, nil)

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/dashboard/cases/"+c.ID.String()+"/status",
			map[string]string{"status": " FOUND "}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", "found")
	})

	s.Run("non-owners are 403", func() {
		caseID := id.NewCaseID()
		s.service.EXPECT().UpdateStatus(gomock.Any(), s.reporter, caseID, models.StatusClosed).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "access denied"))

		req := s.signedIn(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/dashboard/cases/"+caseID.String()+"/status",
			map[string]string{"status": "closed"}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *CasesHandlerSuite) TestListOwned() {
	s.Run("parses the owner filter", func() {
		s.service.EXPECT().ListOwned(gomock.Any(), s.reporter,
			search.OwnerFilter{Query: "Jane", Status: models.StatusFound},
			search.PageRequest{Limit: search.DefaultPageSize},
		).Return(&search.Page{Items: []*models.Case{}}, nil)

		req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases?q=Jane&status=found"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("status all lists everything", func() {
		s.service.EXPECT().ListOwned(gomock.Any(), s.reporter, search.OwnerFilter{},
			search.PageRequest{Limit: search.DefaultPageSize},
		).Return(&search.Page{Items: []*models.Case{}}, nil)

		req := s.signedIn(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/cases?status=all"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})
}
