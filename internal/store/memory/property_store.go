// Package memory implements the domain store and bus interfaces with
// mutex-guarded maps. It backs unit tests and single-process deployments
// where PostgreSQL is not wired.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// PropertyStore implements domain.PropertyStore in memory.
type PropertyStore struct {
	mu         sync.RWMutex
	properties map[string]domain.Property
}

// NewPropertyStore creates an empty in-memory property store.
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{properties: make(map[string]domain.Property)}
}

func (s *PropertyStore) Create(_ context.Context, p domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.properties[p.ID] = cloneProperty(p)
	return nil
}

func (s *PropertyStore) Update(_ context.Context, p domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; !ok {
		return domain.ErrNotFound
	}
	s.properties[p.ID] = cloneProperty(p)
	return nil
}

func (s *PropertyStore) GetByID(_ context.Context, id string) (domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return cloneProperty(p), nil
}

func (s *PropertyStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Property
	for _, p := range s.properties {
		if opts.Since != nil && p.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && p.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, cloneProperty(p))
	}
	sortByCreatedDesc(out, func(p domain.Property) time.Time { return p.CreatedAt })
	return paginate(out, opts), nil
}

func (s *PropertyStore) ListWithOpenSellAndPurchase(_ context.Context) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Property
	for _, p := range s.properties {
		if len(p.ActiveSellCycleIDs) > 0 && len(p.ActivePurchaseCycleIDs) > 0 {
			out = append(out, cloneProperty(p))
		}
	}
	sortByCreatedDesc(out, func(p domain.Property) time.Time { return p.CreatedAt })
	return out, nil
}

func (s *PropertyStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.properties)), nil
}

// sortByCreatedDesc orders a slice newest-first by the given timestamp.
func sortByCreatedDesc[T any](in []T, at func(T) time.Time) {
	sort.Slice(in, func(i, j int) bool { return at(in[i]).After(at(in[j])) })
}

// cloneProperty copies the record including its slices so callers can never
// mutate stored state through a returned value.
func cloneProperty(p domain.Property) domain.Property {
	out := p
	out.ActiveSellCycleIDs = append([]string(nil), p.ActiveSellCycleIDs...)
	out.ActivePurchaseCycleIDs = append([]string(nil), p.ActivePurchaseCycleIDs...)
	out.ActiveRentCycleIDs = append([]string(nil), p.ActiveRentCycleIDs...)
	out.OwnershipHistory = append([]domain.OwnershipRecord(nil), p.OwnershipHistory...)
	out.CycleHistory = append([]domain.ClosedCycleRef(nil), p.CycleHistory...)
	return out
}

// Compile-time interface check.
var _ domain.PropertyStore = (*PropertyStore)(nil)
