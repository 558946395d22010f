package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "findthem/pkg/domain"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestPublisher_Emit(t *testing.T) {
	t.Run("persists event with derived category", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		metrics := NewMetrics(nil)
		pub := New(store, WithMetrics(metrics))

		err := pub.Emit(context.Background(), audit.Event{
			UserID:  id.UserID(uuid.New()),
			Subject: uuid.NewString(),
			Action:  string(audit.EventCaseCreated),
		})
		require.NoError(t, err)

		events, err := store.ListByAction(context.Background(), audit.EventCaseCreated)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsEmitted.WithLabelValues("compliance")))
	})

	t.Run("anonymous events need a subject", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventSightingSubmitted)})
		require.Error(t, err)
	})

	t.Run("store failure is returned to the caller", func(t *testing.T) {
		metrics := NewMetrics(nil)
		pub := New(failingStore{}, WithMetrics(metrics))

		err := pub.Emit(context.Background(), audit.Event{
			Subject: uuid.NewString(),
			Action:  string(audit.EventSightingSubmitted),
		})
		require.Error(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
	})
}
