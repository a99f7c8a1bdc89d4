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

// RentCycleStore implements domain.RentCycleStore using PostgreSQL.
type RentCycleStore struct {
	pool *pgxpool.Pool
}

// NewRentCycleStore creates a new RentCycleStore backed by the given pool.
func NewRentCycleStore(pool *pgxpool.Pool) *RentCycleStore {
	return &RentCycleStore{pool: pool}
}

const rentCols = `id, property_id, agent_id, agent_name, tenant_id, tenant_name,
	monthly_rent, deposit_amount, lease_start, lease_end, status, opened_at,
	closed_at, notes, created_at, updated_at`

func (s *RentCycleStore) Create(ctx context.Context, c domain.RentCycle) error {
	notes, err := marshalNotes(c.Notes)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO rent_cycles (
			id, property_id, agent_id, agent_name, tenant_id, tenant_name,
			monthly_rent, deposit_amount, lease_start, lease_end, status,
			opened_at, closed_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.PropertyID, c.AgentID, c.AgentName, c.TenantID, c.TenantName,
		c.MonthlyRent, c.DepositAmount, c.LeaseStart, c.LeaseEnd, string(c.Status),
		c.OpenedAt, c.ClosedAt, notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create rent cycle %s: %w", c.ID, err)
	}
	return nil
}

func (s *RentCycleStore) Update(ctx context.Context, c domain.RentCycle) error {
	notes, err := marshalNotes(c.Notes)
	if err != nil {
		return err
	}
	const query = `
		UPDATE rent_cycles SET
			agent_id = $2, agent_name = $3, tenant_id = $4, tenant_name = $5,
			monthly_rent = $6, deposit_amount = $7, lease_start = $8,
			lease_end = $9, status = $10, opened_at = $11, closed_at = $12,
			notes = $13, updated_at = $14
		WHERE id = $1`
	tag, err := q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.AgentID, c.AgentName, c.TenantID, c.TenantName,
		c.MonthlyRent, c.DepositAmount, c.LeaseStart, c.LeaseEnd,
		string(c.Status), c.OpenedAt, c.ClosedAt, notes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update rent cycle %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RentCycleStore) GetByID(ctx context.Context, id string) (domain.RentCycle, error) {
	row := q(ctx, s.pool).QueryRow(ctx,
		`SELECT `+rentCols+` FROM rent_cycles WHERE id = $1`, id)
	c, err := scanRentCycle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RentCycle{}, domain.ErrNotFound
		}
		return domain.RentCycle{}, fmt.Errorf("postgres: get rent cycle %s: %w", id, err)
	}
	return c, nil
}

func (s *RentCycleStore) GetByProperty(ctx context.Context, propertyID string) ([]domain.RentCycle, error) {
	return s.queryRentCycles(ctx,
		`SELECT `+rentCols+` FROM rent_cycles WHERE property_id = $1 ORDER BY created_at DESC`,
		propertyID)
}

func (s *RentCycleStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.RentCycle, error) {
	query := `SELECT ` + rentCols + ` FROM rent_cycles WHERE agent_id = $1 ORDER BY created_at DESC`
	args := []any{agentID}
	query, args = appendPagination(query, args, opts)
	return s.queryRentCycles(ctx, query, args...)
}

// ListClosedBefore returns rent cycles that closed strictly before the cutoff,
// oldest first. Used by the archiver.
func (s *RentCycleStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.RentCycle, error) {
	return s.queryRentCycles(ctx,
		`SELECT `+rentCols+` FROM rent_cycles WHERE closed_at IS NOT NULL AND closed_at < $1 ORDER BY closed_at ASC`,
		before)
}

func (s *RentCycleStore) CountByStatus(ctx context.Context) (map[domain.RentCycleStatus]int64, error) {
	rows, err := q(ctx, s.pool).Query(ctx,
		`SELECT status, COUNT(*) FROM rent_cycles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count rent cycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RentCycleStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan rent cycle count: %w", err)
		}
		counts[domain.RentCycleStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count rent cycles rows: %w", err)
	}
	return counts, nil
}

func (s *RentCycleStore) queryRentCycles(ctx context.Context, query string, args ...any) ([]domain.RentCycle, error) {
	rows, err := q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.RentCycle
	for rows.Next() {
		c, err := scanRentCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan rent cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rent cycles rows: %w", err)
	}
	return cycles, nil
}

func scanRentCycle(row pgx.Row) (domain.RentCycle, error) {
	var (
		c      domain.RentCycle
		status string
		notes  []byte
	)
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.AgentID, &c.AgentName, &c.TenantID, &c.TenantName,
		&c.MonthlyRent, &c.DepositAmount, &c.LeaseStart, &c.LeaseEnd, &status,
		&c.OpenedAt, &c.ClosedAt, &notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.RentCycle{}, err
	}
	c.Status = domain.RentCycleStatus(status)
	if err := json.Unmarshal(notes, &c.Notes); err != nil {
		return domain.RentCycle{}, fmt.Errorf("unmarshal notes: %w", err)
	}
	return c, nil
}

// Compile-time interface check.
var _ domain.RentCycleStore = (*RentCycleStore)(nil)
