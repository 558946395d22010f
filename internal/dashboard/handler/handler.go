package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findthem/internal/dashboard/models"
	"findthem/internal/policy"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/platform/middleware/auth"
	"findthem/pkg/requestcontext"
)

type Service interface {
	Stats(ctx context.Context, caller policy.Caller) (*models.Stats, error)
	Recent(ctx context.Context, caller policy.Caller) (*models.Recent, error)
}

// CallerResolver turns the authenticated user in ctx into a policy caller.
type CallerResolver interface {
	ResolveCaller(ctx context.Context) (policy.Caller, error)
}

// Handler serves the dashboard overview panels.
type Handler struct {
	logger  *slog.Logger
	service Service
	callers CallerResolver
	authn   auth.SessionAuthenticator
}

func New(service Service, callers CallerResolver, authn auth.SessionAuthenticator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		callers: callers,
		authn:   authn,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.authn, h.logger))
		r.Get("/dashboard/stats", h.handleStats)
		r.Get("/dashboard/recent", h.handleRecent)
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	recent, err := h.service.Recent(r.Context(), caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recent)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (policy.Caller, bool) {
	ctx := r.Context()
	caller, err := h.callers.ResolveCaller(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve caller",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return policy.Caller{}, false
	}
	return caller, true
}
