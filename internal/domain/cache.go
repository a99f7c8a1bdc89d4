package domain

import "context"

// StatusCache holds the derived composite status per property so read-heavy
// collaborators can avoid resolving every active cycle. The store remains the
// source of truth; the cache is refreshed on every resync.
type StatusCache interface {
	Set(ctx context.Context, propertyID, status string) error
	Get(ctx context.Context, propertyID string) (string, error)
	Invalidate(ctx context.Context, propertyID string) error
}
