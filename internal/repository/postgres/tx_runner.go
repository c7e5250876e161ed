package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monetaapp/moneta-backend/internal/domain"
)

// TxRunner implements domain.TxRunner on a pgx connection pool
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a new TxRunner
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

var _ domain.TxRunner = (*TxRunner)(nil)

// WithinTx runs fn inside a single transaction; any error from fn rolls
// the whole transaction back.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(tx interface{}) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
