package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "findthem/pkg/domain-errors"
	txcontext "findthem/pkg/platform/tx"
	"findthem/pkg/requestcontext"
)

const defaultTxTimeout = 5 * time.Second

// TxRunner runs a unit of work in one transaction. When the context carries
// an authenticated user, app.profile_id is set for the row-level policies.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db, timeout: defaultTxTimeout}
}

// RunInTx joins an enclosing transaction when ctx already carries one.
func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if owner := requestcontext.UserID(ctx); !owner.IsNil() {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('app.profile_id', $1, true)`, owner.String()); err != nil {
			return err
		}
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
