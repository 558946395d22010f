// Package middleware throttles public endpoints per client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"findthem/internal/ratelimit/metrics"
	"findthem/internal/ratelimit/models"
	dErrors "findthem/pkg/domain-errors"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/circuit"
	"findthem/pkg/platform/httputil"
	"findthem/pkg/requestcontext"
)

// Limiter is a bucket store.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// HeaderStatus is set to "degraded" while the fallback store answers.
const HeaderStatus = "X-RateLimit-Status"

type Middleware struct {
	limiter  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	window   time.Duration
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(met *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = met
	}
}

// WithFallback answers from fallback, usually an in-memory store, once the
// primary store has failed repeatedly, until it recovers.
func WithFallback(fallback Limiter) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = circuit.New("ratelimit")
	}
}

// WithWindow overrides models.DefaultWindow.
func WithWindow(window time.Duration) Option {
	return func(m *Middleware) {
		if window > 0 {
			m.window = window
		}
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		window:  models.DefaultWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// PerIP allows limit requests per window for each client IP under scope.
// Store failures fail open until the fallback, when configured, takes over.
// ClientMetadata must run first.
func (m *Middleware) PerIP(scope string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded, err := m.check(ctx, models.Key(scope, ip), limit)
			if err != nil {
				if m.metrics != nil {
					m.metrics.IncStoreError()
				}
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"scope", scope,
					"ip_prefix", anonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if m.metrics != nil {
				m.metrics.IncDecision(scope, result.Allowed)
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"event", string(audit.EventRateLimitExceeded),
					"log_type", "audit",
					"scope", scope,
					"ip_prefix", anonymizeIP(ip),
					"retry_after", result.RetryAfter,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary store, switching to the fallback while the breaker
// is open. Without a fallback every primary error is returned.
func (m *Middleware) check(ctx context.Context, key string, limit int) (*models.Result, bool, error) {
	result, err := m.limiter.Allow(ctx, key, limit, m.window)
	if m.breaker == nil {
		return result, false, err
	}
	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using fallback", "error", err)
		}
		if !useFallback {
			return nil, false, err
		}
		result, err = m.fallback.Allow(ctx, key, limit, m.window)
		return result, true, err
	}
	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered")
	}
	if usePrimary {
		return result, false, nil
	}
	result, err = m.fallback.Allow(ctx, key, limit, m.window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	retryAfter := max(result.RetryAfter, 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      string(dErrors.CodeRateLimited),
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: retryAfter,
	})
}

// anonymizeIP keeps the /24 (IPv4) or /48 (IPv6) network.
func anonymizeIP(raw string) string {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "invalid"
	}
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
