package portal

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for portal connection data access
type Repository interface {
	// Create persists a new connection attempt
	Create(ctx context.Context, conn *PortalConnection) error

	// GetByID retrieves a connection regardless of owner
	GetByID(ctx context.Context, id uuid.UUID) (*PortalConnection, error)

	// GetByUserAndID retrieves a connection owned by the given user
	GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*PortalConnection, error)

	// ListByUser retrieves all connection attempts for a user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*PortalConnection, error)

	// ListByUserAndType retrieves a user's attempts for one portal type
	ListByUserAndType(ctx context.Context, userID uuid.UUID, portalType string) ([]*PortalConnection, error)

	// Update persists changes; fails with CONFLICT when the stored version
	// no longer matches the in-memory one
	Update(ctx context.Context, conn *PortalConnection) error
}
