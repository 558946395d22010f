package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findthem/internal/identity/models"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/platform/middleware/auth"
	"findthem/pkg/requestcontext"
)

// Service defines the session operations exposed over HTTP.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Handler serves login and logout.
type Handler struct {
	logger  *slog.Logger
	service Service
	authn   auth.SessionAuthenticator
}

func New(service Service, authn auth.SessionAuthenticator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		authn:   authn,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.With(auth.RequireAuth(h.authn, h.logger)).Post("/auth/logout", h.handleLogout)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	token := requestcontext.SessionToken(ctx)
	if token == "" {
		h.logger.ErrorContext(ctx, "session token missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	if err := h.service.SignOut(ctx, token); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
