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

// PurchaseCycleStore implements domain.PurchaseCycleStore using PostgreSQL.
// Investor shares are stored as a JSONB column alongside the cycle row.
type PurchaseCycleStore struct {
	pool *pgxpool.Pool
}

// NewPurchaseCycleStore creates a new PurchaseCycleStore backed by the given pool.
func NewPurchaseCycleStore(pool *pgxpool.Pool) *PurchaseCycleStore {
	return &PurchaseCycleStore{pool: pool}
}

const purchaseCols = `id, property_id, agent_id, agent_name, purchaser_type,
	buyer_id, buyer_name, offer_amount, final_price, investment_budget,
	expected_roi, investors, facilitation_fee, commission_rate, commission_type,
	commission_amount, buyer_budget, status, opened_at, closed_at, notes,
	created_at, updated_at`

func (s *PurchaseCycleStore) Create(ctx context.Context, c domain.PurchaseCycle) error {
	investors, notes, err := marshalPurchaseJSON(c)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO purchase_cycles (
			id, property_id, agent_id, agent_name, purchaser_type,
			buyer_id, buyer_name, offer_amount, final_price, investment_budget,
			expected_roi, investors, facilitation_fee, commission_rate,
			commission_type, commission_amount, buyer_budget, status,
			opened_at, closed_at, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)`
	_, err = q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.PropertyID, c.AgentID, c.AgentName, string(c.PurchaserType),
		c.BuyerID, c.BuyerName, c.OfferAmount, c.FinalPrice, c.InvestmentBudget,
		c.ExpectedROI, investors, c.FacilitationFee, c.CommissionRate,
		string(c.CommissionType), c.CommissionAmount, c.BuyerBudget, string(c.Status),
		c.OpenedAt, c.ClosedAt, notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create purchase cycle %s: %w", c.ID, err)
	}
	return nil
}

func (s *PurchaseCycleStore) Update(ctx context.Context, c domain.PurchaseCycle) error {
	investors, notes, err := marshalPurchaseJSON(c)
	if err != nil {
		return err
	}
	const query = `
		UPDATE purchase_cycles SET
			agent_id = $2, agent_name = $3, purchaser_type = $4,
			buyer_id = $5, buyer_name = $6, offer_amount = $7, final_price = $8,
			investment_budget = $9, expected_roi = $10, investors = $11,
			facilitation_fee = $12, commission_rate = $13, commission_type = $14,
			commission_amount = $15, buyer_budget = $16, status = $17,
			opened_at = $18, closed_at = $19, notes = $20, updated_at = $21
		WHERE id = $1`
	tag, err := q(ctx, s.pool).Exec(ctx, query,
		c.ID, c.AgentID, c.AgentName, string(c.PurchaserType),
		c.BuyerID, c.BuyerName, c.OfferAmount, c.FinalPrice,
		c.InvestmentBudget, c.ExpectedROI, investors,
		c.FacilitationFee, c.CommissionRate, string(c.CommissionType),
		c.CommissionAmount, c.BuyerBudget, string(c.Status),
		c.OpenedAt, c.ClosedAt, notes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update purchase cycle %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PurchaseCycleStore) GetByID(ctx context.Context, id string) (domain.PurchaseCycle, error) {
	row := q(ctx, s.pool).QueryRow(ctx,
		`SELECT `+purchaseCols+` FROM purchase_cycles WHERE id = $1`, id)
	c, err := scanPurchaseCycle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PurchaseCycle{}, domain.ErrNotFound
		}
		return domain.PurchaseCycle{}, fmt.Errorf("postgres: get purchase cycle %s: %w", id, err)
	}
	return c, nil
}

func (s *PurchaseCycleStore) GetByProperty(ctx context.Context, propertyID string) ([]domain.PurchaseCycle, error) {
	return s.queryPurchaseCycles(ctx,
		`SELECT `+purchaseCols+` FROM purchase_cycles WHERE property_id = $1 ORDER BY created_at DESC`,
		propertyID)
}

func (s *PurchaseCycleStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.PurchaseCycle, error) {
	query := `SELECT ` + purchaseCols + ` FROM purchase_cycles WHERE agent_id = $1 ORDER BY created_at DESC`
	args := []any{agentID}
	query, args = appendPagination(query, args, opts)
	return s.queryPurchaseCycles(ctx, query, args...)
}

// ListClosedBefore returns purchase cycles that closed strictly before the
// cutoff, oldest first. Used by the archiver.
func (s *PurchaseCycleStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.PurchaseCycle, error) {
	return s.queryPurchaseCycles(ctx,
		`SELECT `+purchaseCols+` FROM purchase_cycles WHERE closed_at IS NOT NULL AND closed_at < $1 ORDER BY closed_at ASC`,
		before)
}

func (s *PurchaseCycleStore) CountByStatus(ctx context.Context) (map[domain.PurchaseCycleStatus]int64, error) {
	rows, err := q(ctx, s.pool).Query(ctx,
		`SELECT status, COUNT(*) FROM purchase_cycles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count purchase cycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PurchaseCycleStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan purchase cycle count: %w", err)
		}
		counts[domain.PurchaseCycleStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count purchase cycles rows: %w", err)
	}
	return counts, nil
}

func (s *PurchaseCycleStore) queryPurchaseCycles(ctx context.Context, query string, args ...any) ([]domain.PurchaseCycle, error) {
	rows, err := q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list purchase cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.PurchaseCycle
	for rows.Next() {
		c, err := scanPurchaseCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan purchase cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list purchase cycles rows: %w", err)
	}
	return cycles, nil
}

func marshalPurchaseJSON(c domain.PurchaseCycle) (investors, notes []byte, err error) {
	shares := c.Investors
	if shares == nil {
		shares = []domain.InvestorShare{}
	}
	investors, err = json.Marshal(shares)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal investors: %w", err)
	}
	notes, err = marshalNotes(c.Notes)
	if err != nil {
		return nil, nil, err
	}
	return investors, notes, nil
}

func scanPurchaseCycle(row pgx.Row) (domain.PurchaseCycle, error) {
	var (
		c              domain.PurchaseCycle
		purchaserType  string
		commissionType string
		status         string
		investors      []byte
		notes          []byte
	)
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.AgentID, &c.AgentName, &purchaserType,
		&c.BuyerID, &c.BuyerName, &c.OfferAmount, &c.FinalPrice, &c.InvestmentBudget,
		&c.ExpectedROI, &investors, &c.FacilitationFee, &c.CommissionRate,
		&commissionType, &c.CommissionAmount, &c.BuyerBudget, &status,
		&c.OpenedAt, &c.ClosedAt, &notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.PurchaseCycle{}, err
	}
	c.PurchaserType = domain.PurchaserType(purchaserType)
	c.CommissionType = domain.CommissionType(commissionType)
	c.Status = domain.PurchaseCycleStatus(status)
	if err := json.Unmarshal(investors, &c.Investors); err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("unmarshal investors: %w", err)
	}
	if err := json.Unmarshal(notes, &c.Notes); err != nil {
		return domain.PurchaseCycle{}, fmt.Errorf("unmarshal notes: %w", err)
	}
	return c, nil
}

// Compile-time interface check.
var _ domain.PurchaseCycleStore = (*PurchaseCycleStore)(nil)
