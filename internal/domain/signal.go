package domain

import (
	"context"
	"time"
)

// Bus channel names. External collaborators (UI shells, report generators)
// subscribe to these to re-render or re-fetch.
const (
	ChannelCycles     = "cycles"
	ChannelProperties = "properties"
	ChannelMatches    = "matches"
)

// Event names published on the cycle and property channels.
const (
	EventCycleCreated          = "cycle_created"
	EventCycleStatusChanged    = "cycle_status_changed"
	EventCycleCancelled        = "cycle_cancelled"
	EventOwnershipTransferred  = "ownership_transferred"
	EventPropertyStatusChanged = "property_status_changed"
)

// CycleEvent is the JSON payload published for cycle lifecycle signals.
type CycleEvent struct {
	Event      string    `json:"event"`
	PropertyID string    `json:"property_id"`
	CycleID    string    `json:"cycle_id"`
	CycleType  CycleType `json:"cycle_type"`
	Status     string    `json:"status,omitempty"`
	At         time.Time `json:"at"`
}

// PropertyEvent is the JSON payload published for property mutation signals.
type PropertyEvent struct {
	Event         string    `json:"event"`
	PropertyID    string    `json:"property_id"`
	Status        string    `json:"status,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	OwnerKind     OwnerKind `json:"owner_kind,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	At            time.Time `json:"at"`
}

// SignalBus is the explicit event channel the engine publishes to instead of
// the ambient dispatch the original design relied on. Subscribe returns a
// channel of raw payloads that closes when ctx is cancelled.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides a coarse mutual-exclusion primitive for multi-writer
// deployments. Acquire returns an unlock function, or ErrLockHeld when the
// lock is taken.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
