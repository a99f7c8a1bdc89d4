package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
// Receipts are insert-only; the interface exposes no update operation.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionCols = `id, property_id, cycle_id, cycle_type, type,
	counterpart_id, counterpart_name, amount, commission, date, status, created_at`

func (s *TransactionStore) Create(ctx context.Context, t domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, property_id, cycle_id, cycle_type, type, counterpart_id,
			counterpart_name, amount, commission, date, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := q(ctx, s.pool).Exec(ctx, query,
		t.ID, t.PropertyID, t.CycleID, string(t.CycleType), string(t.Type),
		t.CounterpartID, t.CounterpartName, t.Amount, t.Commission,
		t.Date, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create transaction %s: %w", t.ID, err)
	}
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := q(ctx, s.pool).QueryRow(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *TransactionStore) GetByProperty(ctx context.Context, propertyID string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE property_id = $1 ORDER BY date DESC`,
		propertyID)
}

func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE date < $1 ORDER BY date ASC`,
		before)
}

func (s *TransactionStore) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions rows: %w", err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t         domain.Transaction
		cycleType string
		txType    string
	)
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.CycleID, &cycleType, &txType,
		&t.CounterpartID, &t.CounterpartName, &t.Amount, &t.Commission,
		&t.Date, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.CycleType = domain.CycleType(cycleType)
	t.Type = domain.TransactionType(txType)
	return t, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
