package portal

import (
	"context"

	"github.com/google/uuid"
)

// ConnectParams carries the inputs for connecting a portal
type ConnectParams struct {
	PortalType  string
	PortalID    string
	Credentials map[string]string
}

// Service defines the interface for portal connection business logic.
// Connect never fails on unsupported portals or rejected credentials: the
// outcome is encoded in the returned connection's status.
type Service interface {
	// List retrieves all connection attempts for a user
	List(ctx context.Context, userID uuid.UUID) ([]*PortalConnection, error)

	// Connect authenticates against the portal and persists the outcome
	Connect(ctx context.Context, userID uuid.UUID, params ConnectParams) (*PortalConnection, error)

	// Disconnect revokes the connection and its consent
	Disconnect(ctx context.Context, userID, connID uuid.UUID) error

	// Sync pulls checkup and medical records for one connection
	Sync(ctx context.Context, userID, connID uuid.UUID) (*SyncResult, error)
}
