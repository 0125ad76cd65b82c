package device

import (
	"context"

	"github.com/google/uuid"
)

// ConnectParams carries the inputs for linking a new device
type ConnectParams struct {
	Vendor           string
	DeviceType       string
	AuthCode         string
	ConsentDataTypes []string
	ConsentFrequency string
	RetentionPeriod  string
}

// Service defines the interface for device link business logic
type Service interface {
	// List retrieves all device links for a user
	List(ctx context.Context, userID uuid.UUID) ([]*DeviceLink, error)

	// Connect exchanges an OAuth code, persists the link, grants consent
	// and kicks off a best-effort initial sync
	Connect(ctx context.Context, userID uuid.UUID, params ConnectParams) (*DeviceLink, error)

	// Disconnect revokes the link, its consent and the vendor-side access
	Disconnect(ctx context.Context, userID, linkID uuid.UUID) error

	// Sync pulls health data for one link; provider failures are reported
	// in the result rather than returned as errors
	Sync(ctx context.Context, userID, linkID uuid.UUID) (*SyncResult, error)

	// SyncLink syncs a link without an ownership check, for scheduler use
	SyncLink(ctx context.Context, linkID uuid.UUID) (*SyncResult, error)

	// RefreshToken rotates the OAuth tokens of a link
	RefreshToken(ctx context.Context, linkID uuid.UUID) error
}
