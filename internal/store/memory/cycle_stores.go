package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// SellCycleStore implements domain.SellCycleStore in memory.
type SellCycleStore struct {
	mu     sync.RWMutex
	cycles map[string]domain.SellCycle
}

// NewSellCycleStore creates an empty in-memory sell cycle store.
func NewSellCycleStore() *SellCycleStore {
	return &SellCycleStore{cycles: make(map[string]domain.SellCycle)}
}

func (s *SellCycleStore) Create(_ context.Context, c domain.SellCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.cycles[c.ID] = c
	return nil
}

func (s *SellCycleStore) Update(_ context.Context, c domain.SellCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.cycles[c.ID] = c
	return nil
}

func (s *SellCycleStore) GetByID(_ context.Context, id string) (domain.SellCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cycles[id]
	if !ok {
		return domain.SellCycle{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *SellCycleStore) GetByProperty(_ context.Context, propertyID string) ([]domain.SellCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SellCycle
	for _, c := range s.cycles {
		if c.PropertyID == propertyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SellCycleStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.SellCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SellCycle
	for _, c := range s.cycles {
		if c.AgentID == agentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// ListClosedBefore returns sell cycles that closed strictly before the cutoff,
// oldest first.
func (s *SellCycleStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.SellCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SellCycle
	for _, c := range s.cycles {
		if c.ClosedAt != nil && c.ClosedAt.Before(before) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

func (s *SellCycleStore) CountByStatus(_ context.Context) (map[domain.SellCycleStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.SellCycleStatus]int64)
	for _, c := range s.cycles {
		counts[c.Status]++
	}
	return counts, nil
}

// PurchaseCycleStore implements domain.PurchaseCycleStore in memory.
type PurchaseCycleStore struct {
	mu     sync.RWMutex
	cycles map[string]domain.PurchaseCycle
}

// NewPurchaseCycleStore creates an empty in-memory purchase cycle store.
func NewPurchaseCycleStore() *PurchaseCycleStore {
	return &PurchaseCycleStore{cycles: make(map[string]domain.PurchaseCycle)}
}

func (s *PurchaseCycleStore) Create(_ context.Context, c domain.PurchaseCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.cycles[c.ID] = clonePurchase(c)
	return nil
}

func (s *PurchaseCycleStore) Update(_ context.Context, c domain.PurchaseCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.cycles[c.ID] = clonePurchase(c)
	return nil
}

func (s *PurchaseCycleStore) GetByID(_ context.Context, id string) (domain.PurchaseCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cycles[id]
	if !ok {
		return domain.PurchaseCycle{}, domain.ErrNotFound
	}
	return clonePurchase(c), nil
}

func (s *PurchaseCycleStore) GetByProperty(_ context.Context, propertyID string) ([]domain.PurchaseCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PurchaseCycle
	for _, c := range s.cycles {
		if c.PropertyID == propertyID {
			out = append(out, clonePurchase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PurchaseCycleStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.PurchaseCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PurchaseCycle
	for _, c := range s.cycles {
		if c.AgentID == agentID {
			out = append(out, clonePurchase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// ListClosedBefore returns purchase cycles that closed strictly before the
// cutoff, oldest first.
func (s *PurchaseCycleStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.PurchaseCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PurchaseCycle
	for _, c := range s.cycles {
		if c.ClosedAt != nil && c.ClosedAt.Before(before) {
			out = append(out, clonePurchase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

func (s *PurchaseCycleStore) CountByStatus(_ context.Context) (map[domain.PurchaseCycleStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.PurchaseCycleStatus]int64)
	for _, c := range s.cycles {
		counts[c.Status]++
	}
	return counts, nil
}

func clonePurchase(c domain.PurchaseCycle) domain.PurchaseCycle {
	out := c
	out.Investors = append([]domain.InvestorShare(nil), c.Investors...)
	out.Notes = append([]domain.CycleNote(nil), c.Notes...)
	return out
}

// RentCycleStore implements domain.RentCycleStore in memory.
type RentCycleStore struct {
	mu     sync.RWMutex
	cycles map[string]domain.RentCycle
}

// NewRentCycleStore creates an empty in-memory rent cycle store.
func NewRentCycleStore() *RentCycleStore {
	return &RentCycleStore{cycles: make(map[string]domain.RentCycle)}
}

func (s *RentCycleStore) Create(_ context.Context, c domain.RentCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.cycles[c.ID] = c
	return nil
}

func (s *RentCycleStore) Update(_ context.Context, c domain.RentCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.cycles[c.ID] = c
	return nil
}

func (s *RentCycleStore) GetByID(_ context.Context, id string) (domain.RentCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cycles[id]
	if !ok {
		return domain.RentCycle{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *RentCycleStore) GetByProperty(_ context.Context, propertyID string) ([]domain.RentCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RentCycle
	for _, c := range s.cycles {
		if c.PropertyID == propertyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RentCycleStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.RentCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RentCycle
	for _, c := range s.cycles {
		if c.AgentID == agentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// ListClosedBefore returns rent cycles that closed strictly before the cutoff,
// oldest first.
func (s *RentCycleStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.RentCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RentCycle
	for _, c := range s.cycles {
		if c.ClosedAt != nil && c.ClosedAt.Before(before) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

func (s *RentCycleStore) CountByStatus(_ context.Context) (map[domain.RentCycleStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.RentCycleStatus]int64)
	for _, c := range s.cycles {
		counts[c.Status]++
	}
	return counts, nil
}

// paginate applies Limit/Offset to an already sorted slice.
func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

// Compile-time interface checks.
var (
	_ domain.SellCycleStore     = (*SellCycleStore)(nil)
	_ domain.PurchaseCycleStore = (*PurchaseCycleStore)(nil)
	_ domain.RentCycleStore     = (*RentCycleStore)(nil)
)
