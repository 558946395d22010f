// Package service implements the case lifecycle: creation with case number
// allocation, owner edits and status changes, owner listing and public reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"findthem/internal/cases/metrics"
	"findthem/internal/cases/models"
	"findthem/internal/cases/search"
	"findthem/internal/policy"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/predicate"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/requestcontext"
)

// maxCaseNumberAttempts is the first try plus five regenerations.
const maxCaseNumberAttempts = 6

var tracer = otel.Tracer("findthem/cases")

type Store interface {
	Insert(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error)
	Update(ctx context.Context, c *models.Case, where predicate.Predicate) error
	Query(ctx context.Context, where predicate.Predicate, after *cursor.Cursor, limit int) ([]*models.Case, error)
}

// StoreTx runs fn in one unit of work. The PostgreSQL runner also scopes
// row-level policies to the user in ctx.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CaseNumberGenerator interface {
	Next(now time.Time) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	tx             StoreTx
	caseNumbers    CaseNumberGenerator
	transitions    models.TransitionTable
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithTransitions(table models.TransitionTable) Option {
	return func(s *Service) {
		s.transitions = table
	}
}

func WithCaseNumbers(gen CaseNumberGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.caseNumbers = gen
		}
	}
}

type noopTx struct{}

func (noopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tx:          noopTx{},
		caseNumbers: models.RandomCaseNumbers{},
		transitions: models.Unrestricted(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, allocates a case number and stores an active case
// owned by the caller. Only case number collisions are retried.
func (s *Service) Create(ctx context.Context, caller policy.Caller, req *models.CreateCaseRequest) (*models.Case, error) {
	ctx, span := tracer.Start(ctx, "cases.Create")
	defer span.End()
	start := time.Now()

	if err := s.authorize(ctx, caller, policy.Resource{Kind: policy.KindCase, OwnerID: caller.ProfileID}, policy.ActionCreate, ""); err != nil {
		return nil, err
	}

	now := clock(ctx)
	details, err := req.Details(id.NewDate(now))
	if err != nil {
		return nil, err
	}

	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	for attempt := 1; attempt <= maxCaseNumberAttempts; attempt++ {
		number, err := s.caseNumbers.Next(now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate case number")
		}
		c := &models.Case{
			ID:         id.NewCaseID(),
			CaseNumber: number,
			Status:     models.StatusActive,
			ReportedBy: caller.ProfileID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		details.ApplyTo(c)

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Insert(ctx, c); err != nil {
				return err
			}
			return s.emit(ctx, audit.EventCaseCreated, caller.ProfileID, c.ID.String(), "")
		})
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			if s.metrics != nil {
				s.metrics.IncCaseNumberCollision()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "case number collision, regenerating",
					"attempt", attempt,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			continue
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to create case")
		}

		span.SetAttributes(attribute.String("case.id", c.ID.String()), attribute.Int("case.attempts", attempt))
		if s.metrics != nil {
			s.metrics.IncCaseCreated()
			s.metrics.ObserveCreate(start)
		}
		s.logAudit(ctx, audit.EventCaseCreated, caller.ProfileID, "case_id", c.ID.String(), "case_number", c.CaseNumber)
		return c, nil
	}

	span.SetStatus(codes.Error, "case number space exhausted")
	return nil, dErrors.New(dErrors.CodeConflict, "cannot allocate case number")
}

// UpdateStatus moves an owned case to status. Repeating the current status is
// a no-op.
func (s *Service) UpdateStatus(ctx context.Context, caller policy.Caller, caseID id.CaseID, status models.Status) (*models.Case, error) {
	ctx, span := tracer.Start(ctx, "cases.UpdateStatus", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()

	if !status.IsValid() {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "status must be one of active, found, closed", "status")
	}

	var updated *models.Case
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.loadForUpdate(ctx, caller, caseID)
		if err != nil {
			return err
		}
		if current.Status == status {
			updated = current
			return nil
		}
		if !s.transitions.Allows(current.Status, status) {
			return dErrors.New(dErrors.CodeConflict, "case cannot move from "+string(current.Status)+" to "+string(status))
		}

		previous := current.Status
		current.Status = status
		current.UpdatedAt = clock(ctx)
		if err := s.store.Update(ctx, current, ownedBy(caller.ProfileID)); err != nil {
			return s.translateStoreErr(err, "failed to update case status")
		}
		if err := s.emit(ctx, audit.EventCaseStatusChanged, caller.ProfileID, caseID.String(), string(previous)+"->"+string(status)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to record case status change")
		}
		if s.metrics != nil {
			s.metrics.IncStatusChange(string(status))
		}
		s.logAudit(ctx, audit.EventCaseStatusChanged, caller.ProfileID,
			"case_id", caseID.String(), "from", string(previous), "to", string(status))
		updated = current
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return updated, nil
}

// Update edits the mutable fields of an owned case. Case number, owner and
// creation time are never changed.
func (s *Service) Update(ctx context.Context, caller policy.Caller, caseID id.CaseID, req *models.UpdateCaseRequest) (*models.Case, error) {
	ctx, span := tracer.Start(ctx, "cases.Update", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Case
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.loadForUpdate(ctx, caller, caseID)
		if err != nil {
			return err
		}
		now := clock(ctx)
		details, err := req.Apply(current, id.NewDate(now))
		if err != nil {
			return err
		}
		details.ApplyTo(current)
		current.UpdatedAt = now
		if err := s.store.Update(ctx, current, ownedBy(caller.ProfileID)); err != nil {
			return s.translateStoreErr(err, "failed to update case")
		}
		if err := s.emit(ctx, audit.EventCaseUpdated, caller.ProfileID, caseID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to record case update")
		}
		s.logAudit(ctx, audit.EventCaseUpdated, caller.ProfileID, "case_id", caseID.String())
		updated = current
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return updated, nil
}

// Get returns a case the caller may read. Cases the caller may not see are
// reported as not found.
func (s *Service) Get(ctx context.Context, caller policy.Caller, caseID id.CaseID) (*models.Case, error) {
	ctx, span := tracer.Start(ctx, "cases.Get", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()

	var found *models.Case
	if caller.Authenticated {
		ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, caseID)
		if err != nil {
			return s.translateStoreErr(err, "failed to load case")
		}
		found = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := policy.Authorize(caller, resourceOf(found), policy.ActionRead)
	if !decision.Allowed {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return found, nil
}

// GetOwned returns one of the caller's own cases for the dashboard. Pending
// profiles are refused before the store is touched; foreign cases are
// reported as not found whatever their status.
func (s *Service) GetOwned(ctx context.Context, caller policy.Caller, caseID id.CaseID) (*models.Case, error) {
	ctx, span := tracer.Start(ctx, "cases.GetOwned", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()

	if err := s.authorize(ctx, caller, policy.Resource{Kind: policy.KindDashboard, OwnerID: caller.ProfileID}, policy.ActionRead, caseID.String()); err != nil {
		return nil, err
	}

	var found *models.Case
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, caseID)
		if err != nil {
			return s.translateStoreErr(err, "failed to load case")
		}
		found = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	owned := policy.Resource{Kind: policy.KindCase, OwnerID: found.ReportedBy}
	if !policy.Authorize(caller, owned, policy.ActionList).Allowed {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return found, nil
}

// ListOwned pages through the caller's own cases, newest first.
func (s *Service) ListOwned(ctx context.Context, caller policy.Caller, filter search.OwnerFilter, page search.PageRequest) (*search.Page, error) {
	ctx, span := tracer.Start(ctx, "cases.ListOwned")
	defer span.End()

	if err := s.authorize(ctx, caller, policy.Resource{Kind: policy.KindCase, OwnerID: caller.ProfileID}, policy.ActionList, ""); err != nil {
		return nil, err
	}

	var result *search.Page
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = search.FetchPage(ctx, s.store, filter.Predicate(caller.ProfileID), page)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to list cases")
	}
	return result, nil
}

// loadForUpdate fetches the case and checks the caller owns it.
func (s *Service) loadForUpdate(ctx context.Context, caller policy.Caller, caseID id.CaseID) (*models.Case, error) {
	current, err := s.store.FindByID(ctx, caseID)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to load case")
	}
	if err := s.authorize(ctx, caller, resourceOf(current), policy.ActionUpdate, caseID.String()); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) authorize(ctx context.Context, caller policy.Caller, resource policy.Resource, action policy.Action, subject string) error {
	decision := policy.Authorize(caller, resource, action)
	if decision.Allowed {
		return nil
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "case access denied",
			"event", string(audit.EventAccessDenied),
			"log_type", "audit",
			"user_id", caller.ProfileID.String(),
			"action", string(action),
			"reason", decision.Reason,
			"case_id", subject,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return decision.Err()
}

func (s *Service) translateStoreErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}

// emit writes a compliance event in the current transaction.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, actor id.UserID, subject, reason string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: clock(ctx),
		UserID:    actor,
		Subject:   subject,
		Resource:  "case",
		Action:    string(event),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor id.UserID, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes,
		"event", string(event),
		"log_type", "audit",
		"user_id", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.InfoContext(ctx, string(event), args...)
}

func resourceOf(c *models.Case) policy.Resource {
	return policy.Resource{Kind: policy.KindCase, OwnerID: c.ReportedBy, CaseStatus: string(c.Status)}
}

func ownedBy(owner id.UserID) predicate.Predicate {
	return predicate.Eq(models.FieldReportedBy, owner)
}

// clock is the request time at the precision PostgreSQL stores, so cursors
// built from in-memory values match persisted ones.
func clock(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}
