package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findthem/internal/ratelimit/metrics"
	"findthem/internal/ratelimit/models"
	"findthem/internal/ratelimit/store/bucket"
	"findthem/pkg/platform/middleware/metadata"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis: connection refused")
}

func newHandler(limiter Limiter, limit int, opts ...Option) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append(opts, WithMetrics(metrics.New(nil)))
	mw := New(limiter, logger, opts...)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) })
	return metadata.ClientMetadata(mw.PerIP("sightings", limit)(ok))
}

func submit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sightings", nil)
	req.RemoteAddr = ip + ":40000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPerIP(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := bucket.NewInMemoryStore(bucket.WithClock(func() time.Time { return now }))
	h := newHandler(store, 2)

	first := submit(h, "203.0.113.7")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusCreated, submit(h, "203.0.113.7").Code)

	denied := submit(h, "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "30", denied.Header().Get("Retry-After"))
	assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))

	var body models.ExceededResponse
	require.NoError(t, json.Unmarshal(denied.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.Equal(t, 30, body.RetryAfter)

	assert.Equal(t, http.StatusCreated, submit(h, "198.51.100.9").Code, "other IPs keep their own budget")
}

func TestPerIPDisabled(t *testing.T) {
	h := newHandler(bucket.NewInMemoryStore(), 1, WithDisabled(true))
	for range 5 {
		rr := submit(h, "203.0.113.7")
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestPerIPStoreFailureFailsOpen(t *testing.T) {
	h := newHandler(failingLimiter{}, 1)
	assert.Equal(t, http.StatusCreated, submit(h, "203.0.113.7").Code)
	assert.Equal(t, http.StatusCreated, submit(h, "203.0.113.7").Code)
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0/24", anonymizeIP("203.0.113.7"))
	assert.Equal(t, "2001:db8:1::/48", anonymizeIP("2001:db8:1:2::5"))
	assert.Equal(t, "invalid", anonymizeIP("unknown"))
}

func TestPerIPFallbackAfterRepeatedStoreFailures(t *testing.T) {
	h := newHandler(failingLimiter{}, 1, WithFallback(bucket.NewInMemoryStore()))

	for i := range 4 {
		rr := submit(h, "203.0.113.7")
		assert.Equal(t, http.StatusCreated, rr.Code, "request %d fails open", i+1)
		assert.Empty(t, rr.Header().Get(HeaderStatus))
	}

	opened := submit(h, "203.0.113.7")
	assert.Equal(t, http.StatusCreated, opened.Code)
	assert.Equal(t, "degraded", opened.Header().Get(HeaderStatus))

	denied := submit(h, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "degraded", denied.Header().Get(HeaderStatus))
}
