package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device link data access
type Repository interface {
	// Create persists a new device link
	Create(ctx context.Context, link *DeviceLink) error

	// GetByID retrieves a link regardless of owner
	GetByID(ctx context.Context, id uuid.UUID) (*DeviceLink, error)

	// GetByUserAndID retrieves a link owned by the given user
	GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*DeviceLink, error)

	// GetByUserAndVendor retrieves the non-revoked link for a (user, vendor)
	// pair, or nil when none exists
	GetByUserAndVendor(ctx context.Context, userID uuid.UUID, vendor string) (*DeviceLink, error)

	// ListByUser retrieves all links for a user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*DeviceLink, error)

	// Update persists changes; fails with CONFLICT when the stored version
	// no longer matches the in-memory one
	Update(ctx context.Context, link *DeviceLink) error

	// ListNeedingSync retrieves active links not synced since the cutoff
	ListNeedingSync(ctx context.Context, since time.Time) ([]*DeviceLink, error)

	// ListNeedingTokenRefresh retrieves active links whose token expires
	// before the threshold
	ListNeedingTokenRefresh(ctx context.Context, threshold time.Time) ([]*DeviceLink, error)
}
