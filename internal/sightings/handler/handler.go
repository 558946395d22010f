package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findthem/internal/policy"
	"findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/platform/middleware/auth"
	"findthem/pkg/requestcontext"
)

// Service defines the sighting operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitSightingRequest) (*models.Sighting, error)
	UpdateStatus(ctx context.Context, caller policy.Caller, sightingID id.SightingID, status models.Status) (*models.Sighting, error)
	ListForCase(ctx context.Context, caller policy.Caller, caseID id.CaseID) ([]*models.Sighting, error)
}

// CallerResolver turns the authenticated user in ctx into a policy caller.
type CallerResolver interface {
	ResolveCaller(ctx context.Context) (policy.Caller, error)
}

// Handler serves public sighting intake and owner moderation.
type Handler struct {
	logger      *slog.Logger
	service     Service
	callers     CallerResolver
	authn       auth.SessionAuthenticator
	submitLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSubmitLimiter wraps POST /sightings, typically with the per-IP rate limiter.
func WithSubmitLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimit = mw
	}
}

func New(service Service, callers CallerResolver, authn auth.SessionAuthenticator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		service: service,
		callers: callers,
		authn:   authn,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	submit := r
	if h.submitLimit != nil {
		submit = r.With(h.submitLimit)
	}
	submit.Post("/sightings", h.handleSubmit)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.authn, h.logger))
		r.Get("/dashboard/cases/{id}/sightings", h.handleListForCase)
		r.Patch("/dashboard/sightings/{id}/status", h.handleUpdateStatus)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubmitSightingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sighting, err := h.service.Submit(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "sighting submission failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sighting)
}

func (h *Handler) handleListForCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	sightings, err := h.service.ListForCase(ctx, caller, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": sightings})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sightingID, err := id.ParseSightingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sighting, err := h.service.UpdateStatus(ctx, caller, sightingID, models.Status(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sighting)
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
