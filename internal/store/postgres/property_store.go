package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// PropertyStore implements domain.PropertyStore using PostgreSQL. The
// ownership and cycle histories are stored as JSONB columns; the active-id
// sets as text arrays.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore creates a new PropertyStore backed by the given pool.
func NewPropertyStore(pool *pgxpool.Pool) *PropertyStore {
	return &PropertyStore{pool: pool}
}

const propertyCols = `id, address, active_sell_cycle_ids, active_purchase_cycle_ids,
	active_rent_cycle_ids, status, current_owner_id, current_owner_name,
	current_owner_kind, ownership_history, cycle_history, created_at, updated_at`

func (s *PropertyStore) Create(ctx context.Context, p domain.Property) error {
	ownership, cycles, err := marshalHistories(p)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO properties (
			id, address, active_sell_cycle_ids, active_purchase_cycle_ids,
			active_rent_cycle_ids, status, current_owner_id, current_owner_name,
			current_owner_kind, ownership_history, cycle_history, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = q(ctx, s.pool).Exec(ctx, query,
		p.ID, p.Address,
		p.ActiveSellCycleIDs, p.ActivePurchaseCycleIDs, p.ActiveRentCycleIDs,
		p.Status, p.CurrentOwnerID, p.CurrentOwnerName, string(p.CurrentOwnerKind),
		ownership, cycles, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create property %s: %w", p.ID, err)
	}
	return nil
}

func (s *PropertyStore) Update(ctx context.Context, p domain.Property) error {
	ownership, cycles, err := marshalHistories(p)
	if err != nil {
		return err
	}

	const query = `
		UPDATE properties SET
			address = $2,
			active_sell_cycle_ids = $3,
			active_purchase_cycle_ids = $4,
			active_rent_cycle_ids = $5,
			status = $6,
			current_owner_id = $7,
			current_owner_name = $8,
			current_owner_kind = $9,
			ownership_history = $10,
			cycle_history = $11,
			updated_at = $12
		WHERE id = $1`

	tag, err := q(ctx, s.pool).Exec(ctx, query,
		p.ID, p.Address,
		p.ActiveSellCycleIDs, p.ActivePurchaseCycleIDs, p.ActiveRentCycleIDs,
		p.Status, p.CurrentOwnerID, p.CurrentOwnerName, string(p.CurrentOwnerKind),
		ownership, cycles, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update property %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PropertyStore) GetByID(ctx context.Context, id string) (domain.Property, error) {
	row := q(ctx, s.pool).QueryRow(ctx,
		`SELECT `+propertyCols+` FROM properties WHERE id = $1`, id)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Property{}, domain.ErrNotFound
		}
		return domain.Property{}, fmt.Errorf("postgres: get property %s: %w", id, err)
	}
	return p, nil
}

func (s *PropertyStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	query := `SELECT ` + propertyCols + ` FROM properties WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.queryProperties(ctx, query, args...)
}

func (s *PropertyStore) ListWithOpenSellAndPurchase(ctx context.Context) ([]domain.Property, error) {
	const query = `SELECT ` + propertyCols + ` FROM properties
		WHERE cardinality(active_sell_cycle_ids) > 0
		  AND cardinality(active_purchase_cycle_ids) > 0
		ORDER BY created_at DESC`
	return s.queryProperties(ctx, query)
}

func (s *PropertyStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := q(ctx, s.pool).QueryRow(ctx, "SELECT COUNT(*) FROM properties").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count properties: %w", err)
	}
	return count, nil
}

func (s *PropertyStore) queryProperties(ctx context.Context, query string, args ...any) ([]domain.Property, error) {
	rows, err := q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list properties: %w", err)
	}
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list properties rows: %w", err)
	}
	return props, nil
}

func marshalHistories(p domain.Property) (ownership, cycles []byte, err error) {
	ownership, err = json.Marshal(emptyIfNilOwnership(p.OwnershipHistory))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal ownership history: %w", err)
	}
	cycles, err = json.Marshal(emptyIfNilRefs(p.CycleHistory))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal cycle history: %w", err)
	}
	return ownership, cycles, nil
}

func emptyIfNilOwnership(in []domain.OwnershipRecord) []domain.OwnershipRecord {
	if in == nil {
		return []domain.OwnershipRecord{}
	}
	return in
}

func emptyIfNilRefs(in []domain.ClosedCycleRef) []domain.ClosedCycleRef {
	if in == nil {
		return []domain.ClosedCycleRef{}
	}
	return in
}

func scanProperty(row pgx.Row) (domain.Property, error) {
	var (
		p         domain.Property
		ownerKind string
		ownership []byte
		cycles    []byte
	)
	err := row.Scan(
		&p.ID, &p.Address,
		&p.ActiveSellCycleIDs, &p.ActivePurchaseCycleIDs, &p.ActiveRentCycleIDs,
		&p.Status, &p.CurrentOwnerID, &p.CurrentOwnerName, &ownerKind,
		&ownership, &cycles, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Property{}, err
	}
	p.CurrentOwnerKind = domain.OwnerKind(ownerKind)
	if err := json.Unmarshal(ownership, &p.OwnershipHistory); err != nil {
		return domain.Property{}, fmt.Errorf("unmarshal ownership history: %w", err)
	}
	if err := json.Unmarshal(cycles, &p.CycleHistory); err != nil {
		return domain.Property{}, fmt.Errorf("unmarshal cycle history: %w", err)
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.PropertyStore = (*PropertyStore)(nil)
