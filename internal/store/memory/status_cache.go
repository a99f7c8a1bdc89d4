package memory

import (
	"context"
	"sync"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// StatusCache implements domain.StatusCache with a plain map.
type StatusCache struct {
	mu       sync.RWMutex
	statuses map[string]string
}

// NewStatusCache creates an empty in-memory status cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{statuses: make(map[string]string)}
}

func (c *StatusCache) Set(_ context.Context, propertyID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[propertyID] = status
	return nil
}

func (c *StatusCache) Get(_ context.Context, propertyID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.statuses[propertyID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return status, nil
}

func (c *StatusCache) Invalidate(_ context.Context, propertyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.statuses, propertyID)
	return nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
