package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// TransactionStore implements domain.TransactionStore in memory. Receipts are
// write-once; there is no update path.
type TransactionStore struct {
	mu       sync.RWMutex
	receipts map[string]domain.Transaction
}

// NewTransactionStore creates an empty in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{receipts: make(map[string]domain.Transaction)}
}

func (s *TransactionStore) Create(_ context.Context, t domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.receipts[t.ID] = t
	return nil
}

func (s *TransactionStore) GetByID(_ context.Context, id string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.receipts[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *TransactionStore) GetByProperty(_ context.Context, propertyID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range s.receipts {
		if t.PropertyID == propertyID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *TransactionStore) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range s.receipts {
		if t.Date.Before(before) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
