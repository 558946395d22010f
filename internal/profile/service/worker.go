package service

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const defaultRetryInterval = time.Minute

// RegistrationRetrier is the part of Service the worker drives.
type RegistrationRetrier interface {
	RetryIncompleteRegistrations(ctx context.Context) (int, error)
}

// Worker retries incomplete registrations on a fixed interval until its
// context is cancelled.
type Worker struct {
	retrier  RegistrationRetrier
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(retrier RegistrationRetrier, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &Worker{retrier: retrier, interval: interval, logger: logger}
}

// Run blocks until ctx is done. A failed pass is logged and retried on the
// next tick. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	completed, err := w.retrier.RetryIncompleteRegistrations(ctx)
	if w.logger == nil {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "registration retry pass failed", "error", err)
		return
	}
	if completed > 0 {
		w.logger.InfoContext(ctx, "completed incomplete registrations", "count", completed)
	}
}
