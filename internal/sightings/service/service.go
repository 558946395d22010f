// Package service accepts public sighting reports and lets case owners
// moderate them.
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

	casemodels "findthem/internal/cases/models"
	"findthem/internal/policy"
	"findthem/internal/sightings/metrics"
	"findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/device"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/requestcontext"
)

var tracer = otel.Tracer("findthem/sightings")

type Store interface {
	Insert(ctx context.Context, sighting *models.Sighting) error
	FindByID(ctx context.Context, sightingID id.SightingID) (*models.Sighting, error)
	UpdateStatus(ctx context.Context, sightingID id.SightingID, from, to models.Status, at time.Time) error
	ListByCase(ctx context.Context, caseID id.CaseID, limit int) ([]*models.Sighting, error)
}

// CaseReader is the part of the case store sightings depend on. Exists must
// answer for cases in any status, including ones the caller cannot read.
type CaseReader interface {
	FindByID(ctx context.Context, caseID id.CaseID) (*casemodels.Case, error)
	Exists(ctx context.Context, caseID id.CaseID) (bool, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	cases          CaseReader
	tx             StoreTx
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

type noopTx struct{}

func (noopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func New(store Store, cases CaseReader, opts ...Option) *Service {
	s := &Service{store: store, cases: cases, tx: noopTx{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records an anonymous sighting against a case in any status. Every
// valid submission is stored as a new pending sighting.
func (s *Service) Submit(ctx context.Context, req *models.SubmitSightingRequest) (*models.Sighting, error) {
	ctx, span := tracer.Start(ctx, "sightings.Submit")
	defer span.End()
	start := time.Now()

	decision := policy.Authorize(policy.Anonymous(), policy.Resource{Kind: policy.KindSighting}, policy.ActionCreate)
	if err := decision.Err(); err != nil {
		return nil, err
	}

	now := clock(ctx)
	sighting, err := req.Build(id.NewDate(now))
	if err != nil {
		return nil, err
	}
	sighting.ID = id.NewSightingID()
	sighting.Status = models.StatusPending
	sighting.SubmittedFrom = device.Describe(requestcontext.UserAgent(ctx))
	sighting.CreatedAt = now
	sighting.UpdatedAt = now
	span.SetAttributes(attribute.String("case.id", sighting.CaseID.String()))

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.cases.Exists(ctx, sighting.CaseID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to look up case")
		}
		if !exists {
			return dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		if err := s.store.Insert(ctx, sighting); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to store sighting")
		}
		if err := s.emit(ctx, audit.EventSightingSubmitted, id.UserID{}, sighting.ID.String(), sighting.CaseID.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to record sighting")
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncSubmitted()
		s.metrics.ObserveSubmit(start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(audit.EventSightingSubmitted),
			"event", string(audit.EventSightingSubmitted),
			"log_type", "audit",
			"sighting_id", sighting.ID.String(),
			"case_id", sighting.CaseID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return sighting, nil
}

// UpdateStatus lets the owner of the parent case verify or dismiss a pending
// sighting. Repeating the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, caller policy.Caller, sightingID id.SightingID, status models.Status) (*models.Sighting, error) {
	ctx, span := tracer.Start(ctx, "sightings.UpdateStatus", trace.WithAttributes(attribute.String("sighting.id", sightingID.String())))
	defer span.End()

	if !status.IsValid() {
		return nil, dErrors.WithFields(dErrors.CodeValidation, "status must be one of pending, verified, dismissed", "status")
	}

	var updated *models.Sighting
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, sightingID)
		if err != nil {
			return translate(err, "sighting not found", "failed to load sighting")
		}
		if _, err := s.authorizeCase(ctx, caller, current.CaseID, policy.ActionUpdate); err != nil {
			return err
		}
		if current.Status == status {
			updated = current
			return nil
		}
		if current.Status != models.StatusPending || status == models.StatusPending {
			return dErrors.New(dErrors.CodeConflict, "sighting cannot move from "+string(current.Status)+" to "+string(status))
		}

		now := clock(ctx)
		if err := s.store.UpdateStatus(ctx, sightingID, current.Status, status, now); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeConflict, "sighting was already moderated")
			}
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to update sighting")
		}
		if err := s.emit(ctx, audit.EventSightingStatusChanged, caller.ProfileID, sightingID.String(), string(current.Status)+"->"+string(status)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to record sighting status change")
		}
		if s.metrics != nil {
			s.metrics.IncStatusChange(string(status))
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, string(audit.EventSightingStatusChanged),
				"event", string(audit.EventSightingStatusChanged),
				"log_type", "audit",
				"user_id", caller.ProfileID.String(),
				"sighting_id", sightingID.String(),
				"to", string(status),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		current.Status = status
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return updated, nil
}

// ListForCase returns every sighting of an owned case, newest first.
func (s *Service) ListForCase(ctx context.Context, caller policy.Caller, caseID id.CaseID) ([]*models.Sighting, error) {
	ctx, span := tracer.Start(ctx, "sightings.ListForCase", trace.WithAttributes(attribute.String("case.id", caseID.String())))
	defer span.End()

	var out []*models.Sighting
	ctx = requestcontext.WithUserID(ctx, caller.ProfileID)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.authorizeCase(ctx, caller, caseID, policy.ActionList); err != nil {
			return err
		}
		var err error
		out, err = s.store.ListByCase(ctx, caseID, 0)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to list sightings")
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// authorizeCase loads the parent case and checks the caller owns it.
func (s *Service) authorizeCase(ctx context.Context, caller policy.Caller, caseID id.CaseID, action policy.Action) (*casemodels.Case, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, translate(err, "case not found", "failed to load case")
	}
	decision := policy.Authorize(caller, policy.Resource{Kind: policy.KindSighting, OwnerID: c.ReportedBy}, action)
	if decision.Allowed {
		return c, nil
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "sighting access denied",
			"event", string(audit.EventAccessDenied),
			"log_type", "audit",
			"user_id", caller.ProfileID.String(),
			"case_id", caseID.String(),
			"action", string(action),
			"reason", decision.Reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil, decision.Err()
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, actor id.UserID, subject, reason string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: clock(ctx),
		UserID:    actor,
		Subject:   subject,
		Resource:  "sighting",
		Action:    string(event),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func translate(err error, notFound, upstream string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, upstream)
}

func clock(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}
