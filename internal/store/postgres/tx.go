package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// querier is the subset of pgx operations the stores use. Both *pgxpool.Pool
// and pgx.Tx satisfy it, which lets every store method transparently join a
// transaction carried in the context.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// q resolves the querier for a call: the ambient transaction when one is
// running, the pool otherwise.
func q(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return pool
}

// TxRunner implements domain.TxRunner with a database transaction. Store
// calls made inside fn observe the same transaction, so validate-then-mutate
// sequences commit or roll back as a unit.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a transaction runner on the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction.
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(withTx(ctx, tx))
	})
}

// Compile-time interface check.
var _ domain.TxRunner = (*TxRunner)(nil)
