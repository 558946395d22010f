package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"findthem/internal/cases/metrics"
	"findthem/internal/cases/models"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/predicate"
	"findthem/pkg/requestcontext"
)

// DefaultRecent is the number of cases shown on the home page.
const DefaultRecent = 6

var tracer = otel.Tracer("findthem/cases/search")

// Engine runs public searches over active cases.
type Engine struct {
	store   Querier
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(store Querier, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns one page of active cases matching f, newest first.
func (e *Engine) Search(ctx context.Context, f Filters, page PageRequest) (*Page, error) {
	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()
	start := time.Now()

	where := f.Predicate()
	span.SetAttributes(
		attribute.StringSlice("search.fields", where.Fields()),
		attribute.Int("search.limit", page.Limit),
	)

	result, err := FetchPage(ctx, e.store, where, page)
	if e.metrics != nil {
		e.metrics.ObserveSearch(start)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "case search failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to search cases")
	}
	span.SetAttributes(attribute.Int("search.results", len(result.Items)))
	return result, nil
}

// Recent returns the n newest active cases.
func (e *Engine) Recent(ctx context.Context, n int) ([]*models.Case, error) {
	ctx, span := tracer.Start(ctx, "search.Recent")
	defer span.End()

	if n <= 0 {
		n = DefaultRecent
	}
	n = min(n, MaxPageSize)
	rows, err := e.store.Query(ctx, predicate.Eq(models.FieldStatus, models.StatusActive), nil, n)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to load recent cases")
	}
	if rows == nil {
		rows = []*models.Case{}
	}
	return rows, nil
}
