package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estatedesk/brokercycle/internal/domain"
)

const statusTTL = 10 * time.Minute

// StatusCache implements domain.StatusCache using plain Redis strings.
//
// Key schema:
//
//	property:status:{propertyID} - composite status string
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache creates a StatusCache backed by the given Client.
func NewStatusCache(c *Client) *StatusCache {
	return &StatusCache{rdb: c.Underlying()}
}

func statusKey(propertyID string) string { return "property:status:" + propertyID }

// Set stores the derived composite status for a property with a 10-minute TTL.
func (sc *StatusCache) Set(ctx context.Context, propertyID, status string) error {
	if err := sc.rdb.Set(ctx, statusKey(propertyID), status, statusTTL).Err(); err != nil {
		return fmt.Errorf("redis: set status %s: %w", propertyID, err)
	}
	return nil
}

// Get retrieves the cached composite status for a property.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *StatusCache) Get(ctx context.Context, propertyID string) (string, error) {
	status, err := sc.rdb.Get(ctx, statusKey(propertyID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get status %s: %w", propertyID, err)
	}
	return status, nil
}

// Invalidate removes the cached status for a property.
func (sc *StatusCache) Invalidate(ctx context.Context, propertyID string) error {
	if err := sc.rdb.Del(ctx, statusKey(propertyID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate status %s: %w", propertyID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
