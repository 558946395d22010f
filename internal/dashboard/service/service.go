// Package service aggregates a verified organization's own cases and the
// sightings filed against them.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	casemodels "findthem/internal/cases/models"
	"findthem/internal/dashboard/metrics"
	"findthem/internal/dashboard/models"
	"findthem/internal/policy"
	sightingmodels "findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/predicate"
	"findthem/pkg/requestcontext"
)

const queryTimeout = 5 * time.Second

var tracer = otel.Tracer("findthem/dashboard")

type CaseReader interface {
	Count(ctx context.Context, where predicate.Predicate) (int, error)
	ListIDs(ctx context.Context, where predicate.Predicate) ([]id.CaseID, error)
	Query(ctx context.Context, where predicate.Predicate, after *cursor.Cursor, limit int) ([]*casemodels.Case, error)
}

type SightingReader interface {
	CountByCases(ctx context.Context, caseIDs []id.CaseID) (int, error)
	ListRecentByCases(ctx context.Context, caseIDs []id.CaseID, limit int) ([]*sightingmodels.Sighting, error)
}

// StoreTx scopes each read to the caller. Every parallel query runs in its
// own unit of work.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	cases     CaseReader
	sightings SightingReader
	tx        StoreTx
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
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

func New(cases CaseReader, sightings SightingReader, opts ...Option) *Service {
	s := &Service{
		cases:     cases,
		sightings: sightings,
		tx:        noopTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats counts the caller's cases by status and the sightings on them. The
// four counts run in parallel; the first failure cancels the rest.
func (s *Service) Stats(ctx context.Context, caller policy.Caller) (*models.Stats, error) {
	ctx, span := tracer.Start(ctx, "dashboard.Stats")
	defer span.End()

	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(requestcontext.WithUserID(ctx, caller.ProfileID), queryTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	owned := ownedBy(caller.ProfileID)
	stats := &models.Stats{}
	s.count(ctx, g, "cases_total", owned, &stats.TotalCases)
	s.count(ctx, g, "cases_active", predicate.And(owned, predicate.Eq(casemodels.FieldStatus, casemodels.StatusActive)), &stats.ActiveCases)
	s.count(ctx, g, "cases_found", predicate.And(owned, predicate.Eq(casemodels.FieldStatus, casemodels.StatusFound)), &stats.FoundCases)
	g.Go(func() error {
		return s.observe(ctx, "sightings_total", func(ctx context.Context) error {
			caseIDs, err := s.cases.ListIDs(ctx, owned)
			if err != nil {
				return err
			}
			stats.TotalSightings, err = s.sightings.CountByCases(ctx, caseIDs)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.upstream(ctx, err, "failed to load dashboard stats")
	}
	return stats, nil
}

// Recent returns the newest own cases and the newest sightings on own cases.
func (s *Service) Recent(ctx context.Context, caller policy.Caller) (*models.Recent, error) {
	ctx, span := tracer.Start(ctx, "dashboard.Recent")
	defer span.End()

	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(requestcontext.WithUserID(ctx, caller.ProfileID), queryTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	owned := ownedBy(caller.ProfileID)
	recent := &models.Recent{}
	g.Go(func() error {
		return s.observe(ctx, "cases_recent", func(ctx context.Context) error {
			var err error
			recent.Cases, err = s.cases.Query(ctx, owned, nil, models.RecentLimit)
			return err
		})
	})
	g.Go(func() error {
		return s.observe(ctx, "sightings_recent", func(ctx context.Context) error {
			caseIDs, err := s.cases.ListIDs(ctx, owned)
			if err != nil {
				return err
			}
			recent.Sightings, err = s.sightings.ListRecentByCases(ctx, caseIDs, models.RecentLimit)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.upstream(ctx, err, "failed to load recent activity")
	}
	return recent, nil
}

func (s *Service) count(ctx context.Context, g *errgroup.Group, source string, where predicate.Predicate, dst *int) {
	g.Go(func() error {
		return s.observe(ctx, source, func(ctx context.Context) error {
			n, err := s.cases.Count(ctx, where)
			*dst = n
			return err
		})
	})
}

// observe runs fn in its own transaction and records its latency.
func (s *Service) observe(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := s.tx.RunInTx(ctx, fn)
	if s.metrics != nil {
		s.metrics.ObserveQuery(source, time.Since(start))
	}
	return err
}

func (s *Service) authorize(ctx context.Context, caller policy.Caller) error {
	decision := policy.Authorize(caller, policy.Resource{Kind: policy.KindDashboard, OwnerID: caller.ProfileID}, policy.ActionRead)
	if decision.Allowed {
		return nil
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "dashboard access denied",
			"event", string(audit.EventAccessDenied),
			"log_type", "audit",
			"user_id", caller.ProfileID.String(),
			"reason", decision.Reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return decision.Err()
}

func (s *Service) upstream(ctx context.Context, err error, msg string) error {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}

func ownedBy(owner id.UserID) predicate.Predicate {
	return predicate.Eq(casemodels.FieldReportedBy, owner)
}
