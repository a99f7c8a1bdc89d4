package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// SellCycleStore implements domain.SellCycleStore using PostgreSQL.
type SellCycleStore struct {
	pool *pgxpool.Pool
}

// NewSellCycleStore creates a new SellCycleStore backed by the given pool.
func NewSellCycleStore(pool *pgxpool.Pool) *SellCycleStore {
	return &SellCycleStore{pool: pool}
}

const sellCols = `id, property_id, agent_id, agent_name, seller_id, seller_name,
	asking_price, accepted_price, commission_rate, commission_type, commission_amount,
	status, listed_at, closed_at, notes, created_at, updated_at`

func (s *SellCycleStore) Create(ctx context.Context, c domain.SellCycle) error {
	notes, err := marshalNotes(c.Notes)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO sell_cycles (
			id, property_id, agent_id, agent_name, seller_id, seller_name,
			asking_price, accepted_price, commission_rate, commission_type,
			commission_amount, status, listed_at, closed_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.PropertyID, c.AgentID, c.AgentName, c.SellerID, c.SellerName,
		c.AskingPrice, c.AcceptedPrice, c.CommissionRate, string(c.CommissionType),
		c.CommissionAmount, string(c.Status), c.ListedAt, c.ClosedAt, notes,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create sell cycle %s: %w", c.ID, err)
	}
	return nil
}

func (s *SellCycleStore) Update(ctx context.Context, c domain.SellCycle) error {
	notes, err := marshalNotes(c.Notes)
	if err != nil {
		return err
	}
	const query = `
		UPDATE sell_cycles SET
			agent_id = $2, agent_name = $3, seller_id = $4, seller_name = $5,
			asking_price = $6, accepted_price = $7, commission_rate = $8,
			commission_type = $9, commission_amount = $10, status = $11,
			listed_at = $12, closed_at = $13, notes = $14, updated_at = $15
		WHERE id = $1`
	tag, err := q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.AgentID, c.AgentName, c.SellerID, c.SellerName,
		c.AskingPrice, c.AcceptedPrice, c.CommissionRate,
		string(c.CommissionType), c.CommissionAmount, string(c.Status),
		c.ListedAt, c.ClosedAt, notes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update sell cycle %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SellCycleStore) GetByID(ctx context.Context, id string) (domain.SellCycle, error) {
	row := q(ctx, s.pool).QueryRow(ctx,
		`SELECT `+sellCols+` FROM sell_cycles WHERE id = $1`, id)
	c, err := scanSellCycle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SellCycle{}, domain.ErrNotFound
		}
		return domain.SellCycle{}, fmt.Errorf("postgres: get sell cycle %s: %w", id, err)
	}
	return c, nil
}

func (s *SellCycleStore) GetByProperty(ctx context.Context, propertyID string) ([]domain.SellCycle, error) {
	return s.querySellCycles(ctx,
		`SELECT `+sellCols+` FROM sell_cycles WHERE property_id = $1 ORDER BY created_at DESC`,
		propertyID)
}

func (s *SellCycleStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.SellCycle, error) {
	query := `SELECT ` + sellCols + ` FROM sell_cycles WHERE agent_id = $1 ORDER BY created_at DESC`
	args := []any{agentID}
	query, args = appendPagination(query, args, opts)
	return s.querySellCycles(ctx, query, args...)
}

// ListClosedBefore returns sell cycles that closed strictly before the cutoff,
// oldest first. Used by the archiver.
func (s *SellCycleStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.SellCycle, error) {
	return s.querySellCycles(ctx,
		`SELECT `+sellCols+` FROM sell_cycles WHERE closed_at IS NOT NULL AND closed_at < $1 ORDER BY closed_at ASC`,
		before)
}

func (s *SellCycleStore) CountByStatus(ctx context.Context) (map[domain.SellCycleStatus]int64, error) {
	rows, err := q(ctx, s.pool).Query(ctx,
		`SELECT status, COUNT(*) FROM sell_cycles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count sell cycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SellCycleStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan sell cycle count: %w", err)
		}
		counts[domain.SellCycleStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count sell cycles rows: %w", err)
	}
	return counts, nil
}

func (s *SellCycleStore) querySellCycles(ctx context.Context, query string, args ...any) ([]domain.SellCycle, error) {
	rows, err := q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sell cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.SellCycle
	for rows.Next() {
		c, err := scanSellCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan sell cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list sell cycles rows: %w", err)
	}
	return cycles, nil
}

func scanSellCycle(row pgx.Row) (domain.SellCycle, error) {
	var (
		c              domain.SellCycle
		commissionType string
		status         string
		notes          []byte
	)
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.AgentID, &c.AgentName, &c.SellerID, &c.SellerName,
		&c.AskingPrice, &c.AcceptedPrice, &c.CommissionRate, &commissionType,
		&c.CommissionAmount, &status, &c.ListedAt, &c.ClosedAt, &notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.SellCycle{}, err
	}
	c.CommissionType = domain.CommissionType(commissionType)
	c.Status = domain.SellCycleStatus(status)
	if err := json.Unmarshal(notes, &c.Notes); err != nil {
		return domain.SellCycle{}, fmt.Errorf("unmarshal notes: %w", err)
	}
	return c, nil
}

// marshalNotes serializes a communication log for JSONB storage, normalizing
// nil to an empty array.
func marshalNotes(notes []domain.CycleNote) ([]byte, error) {
	if notes == nil {
		notes = []domain.CycleNote{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal notes: %w", err)
	}
	return data, nil
}

// appendPagination appends LIMIT/OFFSET clauses for positive opts values.
func appendPagination(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// Compile-time interface check.
var _ domain.SellCycleStore = (*SellCycleStore)(nil)
