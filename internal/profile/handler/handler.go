package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findthem/internal/policy"
	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/platform/middleware/admin"
	"findthem/pkg/platform/middleware/auth"
	"findthem/pkg/requestcontext"
)

// Service defines the registration and review operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (id.UserID, error)
	ResolveCaller(ctx context.Context) (policy.Caller, error)
	Status(ctx context.Context, caller policy.Caller) (*models.Status, error)
	ListPending(ctx context.Context) ([]*models.VerificationRequest, error)
	Approve(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error)
	Reject(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error)
}

// Handler serves registration, the caller's own status and the admin
// verification review.
type Handler struct {
	logger     *slog.Logger
	service    Service
	authn      auth.SessionAuthenticator
	adminToken string
}

func New(service Service, authn auth.SessionAuthenticator, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		authn:      authn,
		adminToken: adminToken,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.With(auth.RequireAuth(h.authn, h.logger)).Get("/me", h.handleMe)

	r.Route("/admin/verification-requests", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/", h.handleListPending)
		r.Post("/{id}/approve", h.handleApprove)
		r.Post("/{id}/reject", h.handleReject)
	})
}

type registerResponse struct {
	UserID  id.UserID `json:"user_id"`
	Message string    `json:"message"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	userID, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		UserID:  userID,
		Message: "registration received; your organization will be verified before dashboard access is granted",
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := h.service.ResolveCaller(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve caller",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.Status(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.service.ListPending(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list verification requests failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, decide func(context.Context, id.VerificationRequestID) (*models.VerificationRequest, error)) {
	ctx := r.Context()

	requestID, err := id.ParseVerificationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reviewed, err := decide(ctx, requestID)
	if err != nil {
		h.logger.WarnContext(ctx, "verification review failed",
			"verification_request_id", requestID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reviewed)
}
