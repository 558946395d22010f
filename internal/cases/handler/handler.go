package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"findthem/internal/cases/models"
	"findthem/internal/cases/search"
	"findthem/internal/policy"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/platform/middleware/auth"
	"findthem/pkg/requestcontext"
)

// Service defines the case operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, caller policy.Caller, req *models.CreateCaseRequest) (*models.Case, error)
	Update(ctx context.Context, caller policy.Caller, caseID id.CaseID, req *models.UpdateCaseRequest) (*models.Case, error)
	UpdateStatus(ctx context.Context, caller policy.Caller, caseID id.CaseID, status models.Status) (*models.Case, error)
	Get(ctx context.Context, caller policy.Caller, caseID id.CaseID) (*models.Case, error)
	GetOwned(ctx context.Context, caller policy.Caller, caseID id.CaseID) (*models.Case, error)
	ListOwned(ctx context.Context, caller policy.Caller, filter search.OwnerFilter, page search.PageRequest) (*search.Page, error)
}

// Searcher runs the public search.
type Searcher interface {
	Search(ctx context.Context, f search.Filters, page search.PageRequest) (*search.Page, error)
	Recent(ctx context.Context, n int) ([]*models.Case, error)
}

// CallerResolver turns the authenticated user in ctx into a policy caller.
// Requests without a user resolve to the anonymous caller.
type CallerResolver interface {
	ResolveCaller(ctx context.Context) (policy.Caller, error)
}

// Handler serves the public case pages and the reporter dashboard.
type Handler struct {
	logger   *slog.Logger
	service  Service
	searcher Searcher
	callers  CallerResolver
	authn    auth.SessionAuthenticator
}

func New(service Service, searcher Searcher, callers CallerResolver, authn auth.SessionAuthenticator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		searcher: searcher,
		callers:  callers,
		authn:    authn,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/cases", h.handleSearch)
	r.Get("/cases/recent", h.handleRecent)
	r.With(auth.OptionalAuth(h.authn, h.logger)).Get("/cases/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.authn, h.logger))
		r.Get("/dashboard/cases", h.handleListOwned)
		r.Post("/dashboard/cases", h.handleCreate)
		r.Get("/dashboard/cases/{id}", h.handleGetOwned)
		r.Patch("/dashboard/cases/{id}", h.handleUpdate)
		r.Patch("/dashboard/cases/{id}/status", h.handleUpdateStatus)
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	query := r.URL.Query()
	filters, err := search.ParseFilters(query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := search.ParsePage(query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.searcher.Search(ctx, filters, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "case search failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n := search.DefaultRecent
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.WithFields(dErrors.CodeValidation, "limit must be a positive whole number", "limit"))
			return
		}
		n = min(parsed, search.MaxPageSize)
	}

	items, err := h.searcher.Recent(ctx, n)
	if err != nil {
		h.logger.ErrorContext(ctx, "recent cases failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(ctx, caller, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetOwned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetOwned(ctx, caller, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListOwned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter, err := search.ParseOwnerFilter(query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := search.ParsePage(query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ListOwned(ctx, caller, filter, page)
	if err != nil {
		h.logger.WarnContext(ctx, "list own cases failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Create(ctx, caller, req)
	if err != nil {
		h.logger.WarnContext(ctx, "create case failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Update(ctx, caller, caseID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caseID, ok := h.caseID(w, r)
	if !ok {
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

	c, err := h.service.UpdateStatus(ctx, caller, caseID, models.Status(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) caseID(w http.ResponseWriter, r *http.Request) (id.CaseID, bool) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CaseID{}, false
	}
	return caseID, true
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
