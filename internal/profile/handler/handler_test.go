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
	"findthem/internal/profile/handler/mocks"
	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/middleware/admin"
	authmocks "findthem/pkg/platform/middleware/auth/mocks"
	"findthem/pkg/testutil"
)

const adminToken = "admin-secret"

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ProfileHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	authn   *authmocks.MockSessionAuthenticator
	router  http.Handler
}

func TestProfileHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProfileHandlerSuite))
}

func (s *ProfileHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.authn = authmocks.NewMockSessionAuthenticator(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.service, s.authn, adminToken, logger).Register(r)
	s.router = r
}

func (s *ProfileHandlerSuite) asAdmin(req *http.Request) *http.Request {
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	return req
}

func (s *ProfileHandlerSuite) TestRegister() {
	body := map[string]string{
		"email":             "ops@helpers.org",
		"password":          "correct-horse",
		"confirm_password":  "correct-horse",
		"full_name":         "Amina Bello",
		"organization_name": "Helpers Foundation",
		"role":              "NGO",
	}

	s.Run("returns the new profile id", func() {
		userID := id.NewUserID()
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req *models.RegisterRequest) (id.UserID, error) {
				s.Equal("ngo", req.Role)
				return userID, nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", body))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "user_id", userID.String())
	})

	s.Run("mismatched confirmation is 422 without calling the service", func() {
		bad := map[string]string{}
		for k, v := range body {
			bad[k] = v
		}
		bad["confirm_password"] = "other-horse"

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", bad))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("taken email is 409", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(id.UserID{}, dErrors.New(dErrors.CodeConflict, "email is already registered"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", body))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *ProfileHandlerSuite) TestMe() {
	s.Run("unverified caller sees own status", func() {
		userID := id.NewUserID()
		caller := policy.Caller{ProfileID: userID, Authenticated: true}
		s.authn.EXPECT().CurrentUser(gomock.Any(), "token-abc").Return(userID, nil)
		s.service.EXPECT().ResolveCaller(gomock.Any()).Return(caller, nil)
		s.service.EXPECT().Status(gomock.Any(), caller).Return(&models.Status{
			Profile: &models.Profile{ID: userID, Role: models.RoleNGO},
			VerificationRequest: &models.VerificationRequest{
				ID: id.NewVerificationRequestID(), UserID: userID, Status: models.VerificationPending,
			},
		}, nil)

		req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/me"), "token-abc")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.Status](s.T(), rr)
		s.Equal(userID, got.Profile.ID)
		s.Equal(models.VerificationPending, got.VerificationRequest.Status)
	})

	s.Run("requires a session", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/me"))

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *ProfileHandlerSuite) TestAdminReview() {
	s.Run("missing admin token is 401", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/verification-requests"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("lists pending requests", func() {
		s.service.EXPECT().ListPending(gomock.Any()).Return([]*models.VerificationRequest{
			{ID: id.NewVerificationRequestID(), Status: models.VerificationPending},
		}, nil)

		rr := testutil.DoRequest(s.router, s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/admin/verification-requests")))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[struct {
			Items []models.VerificationRequest `json:"items"`
		}](s.T(), rr)
		s.Len(got.Items, 1)
	})

	s.Run("approve", func() {
		requestID := id.NewVerificationRequestID()
		s.service.EXPECT().Approve(gomock.Any(), requestID).
			Return(&models.VerificationRequest{ID: requestID, Status: models.VerificationApproved}, nil)

		req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification-requests/"+requestID.String()+"/approve"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", "approved")
	})

	s.Run("reversing a decision is 409", func() {
		requestID := id.NewVerificationRequestID()
		s.service.EXPECT().Reject(gomock.Any(), requestID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "verification request was already approved"))

		req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification-requests/"+requestID.String()+"/reject"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("malformed id is 400", func() {
		req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, "/admin/verification-requests/nope/approve"))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}
