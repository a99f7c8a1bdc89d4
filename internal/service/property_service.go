package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// PropertyService manages the permanent asset records. Properties are only
// ever created and updated; nothing in the engine deletes one.
type PropertyService struct {
	properties domain.PropertyStore
	cache      domain.StatusCache
	logger     *slog.Logger
}

// NewPropertyService creates a PropertyService with all required dependencies.
func NewPropertyService(properties domain.PropertyStore, cache domain.StatusCache, logger *slog.Logger) *PropertyService {
	return &PropertyService{
		properties: properties,
		cache:      cache,
		logger:     logger,
	}
}

// RegisterPropertyInput carries the fields needed to register a new property.
// Owner fields are optional: a freshly scouted property may have no known
// owner yet.
type RegisterPropertyInput struct {
	Address   string
	OwnerID   string
	OwnerName string
	OwnerKind domain.OwnerKind
}

// Register creates a new property with no active cycles.
func (s *PropertyService) Register(ctx context.Context, in RegisterPropertyInput) (domain.Property, error) {
	if in.Address == "" {
		return domain.Property{}, fmt.Errorf("property_service: address must not be empty")
	}

	now := time.Now().UTC()
	p := domain.Property{
		ID:                     uuid.New().String(),
		Address:                in.Address,
		ActiveSellCycleIDs:     []string{},
		ActivePurchaseCycleIDs: []string{},
		ActiveRentCycleIDs:     []string{},
		Status:                 NoActiveCycleStatus,
		CurrentOwnerID:         in.OwnerID,
		CurrentOwnerName:       in.OwnerName,
		CurrentOwnerKind:       in.OwnerKind,
		OwnershipHistory:       []domain.OwnershipRecord{},
		CycleHistory:           []domain.ClosedCycleRef{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.properties.Create(ctx, p); err != nil {
		return domain.Property{}, fmt.Errorf("property_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "property registered",
		slog.String("property_id", p.ID),
		slog.String("address", p.Address),
	)
	return p, nil
}

// Get retrieves a property by id, checking the status cache so read-heavy
// callers see a fresh composite status without a resync.
func (s *PropertyService) Get(ctx context.Context, id string) (domain.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("property_service: get %s: %w", id, err)
	}
	if s.cache != nil {
		if status, cacheErr := s.cache.Get(ctx, id); cacheErr == nil && status != "" {
			p.Status = status
		}
	}
	return p, nil
}

// List returns properties from the persistent store.
func (s *PropertyService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	props, err := s.properties.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("property_service: list: %w", err)
	}
	return props, nil
}

// Count returns the total number of properties.
func (s *PropertyService) Count(ctx context.Context) (int64, error) {
	count, err := s.properties.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("property_service: count: %w", err)
	}
	return count, nil
}
