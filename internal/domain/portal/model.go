package portal

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a portal connection
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusActive      Status = "ACTIVE"
	StatusFailed      Status = "FAILED"
	StatusUnsupported Status = "UNSUPPORTED"
	StatusRevoked     Status = "REVOKED"
)

// Well-known error codes stored on failed connections
const (
	ErrCodeAuthFailed  = "AUTH_FAILED"
	ErrCodeSyncFailed  = "SYNC_FAILED"
	ErrCodeUnreachable = "PORTAL_UNREACHABLE"
)

// PortalConnection represents a credential-based link to a national or
// institutional health portal. Every connect attempt is kept as its own row;
// failed and unsupported attempts are terminal.
type PortalConnection struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	PortalType   string     `json:"portal_type"`
	PortalID     string     `json:"portal_id,omitempty"`
	PortalName   string     `json:"portal_name,omitempty"`
	PortalUserID string     `json:"portal_user_id,omitempty"`
	Credentials  *string    `json:"-"`
	Status       Status     `json:"status"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	Version      int64      `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New creates a pending connection attempt
func New(userID uuid.UUID, portalType, portalID string) *PortalConnection {
	return &PortalConnection{
		ID:         uuid.New(),
		UserID:     userID,
		PortalType: portalType,
		PortalID:   portalID,
		Status:     StatusPending,
	}
}

// MarkActive activates the connection and clears any previous error
func (c *PortalConnection) MarkActive() {
	c.Status = StatusActive
	c.ErrorCode = ""
	c.ErrorMessage = ""
}

// MarkFailed records a terminal failure with its code and message
func (c *PortalConnection) MarkFailed(code, message string) {
	c.Status = StatusFailed
	c.ErrorCode = code
	c.ErrorMessage = message
}

// MarkUnsupported records that the requested portal is not supported
func (c *PortalConnection) MarkUnsupported() {
	c.Status = StatusUnsupported
}

// MarkSynced records a successful sync
func (c *PortalConnection) MarkSynced(now time.Time) {
	c.LastSyncAt = &now
	c.Status = StatusActive
}

// Revoke terminates the connection and clears the stored credentials
func (c *PortalConnection) Revoke() {
	c.Status = StatusRevoked
	c.Credentials = nil
}

// CanSync reports whether the connection is eligible for a sync
func (c *PortalConnection) CanSync() bool {
	return c.Status == StatusActive
}

// SyncResult summarizes the outcome of one portal sync run
type SyncResult struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	PortalType   string    `json:"portal_type"`
	Status       string    `json:"status"` // SUCCESS or FAILED
	CheckupCount int       `json:"checkup_count"`
	MedicalCount int       `json:"medical_count"`
	Errors       []string  `json:"errors,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`
}

const (
	SyncSuccess = "SUCCESS"
	SyncFailed  = "FAILED"
)
