package device

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a device link
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
	StatusError   Status = "ERROR"
)

// SyncConfig controls what and how often a link pulls from its vendor
type SyncConfig struct {
	Version   string   `json:"version"`
	Frequency string   `json:"syncFrequency"`
	DataTypes []string `json:"dataTypes"`
	BatchSize int      `json:"batchSize"`
}

// DefaultSyncConfig returns the config applied to every new link
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Version:   "1.0",
		Frequency: "hourly",
		DataTypes: []string{"steps", "heartRate", "sleep"},
		BatchSize: 1000,
	}
}

// DeviceLink represents an OAuth link to an external wearable or measurement
// device. Tokens are cleared on revocation and never come back.
type DeviceLink struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Vendor         string     `json:"vendor"`
	DeviceType     string     `json:"device_type"`
	VendorUserID   string     `json:"vendor_user_id,omitempty"`
	AccessToken    *string    `json:"-"`
	RefreshToken   *string    `json:"-"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	Status         Status     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	SyncConfig     SyncConfig `json:"sync_config"`
	// Version guards concurrent updates; repositories reject stale writes
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending link with the default sync config
func New(userID uuid.UUID, vendor, deviceType string) *DeviceLink {
	return &DeviceLink{
		ID:         uuid.New(),
		UserID:     userID,
		Vendor:     vendor,
		DeviceType: deviceType,
		Status:     StatusPending,
		SyncConfig: DefaultSyncConfig(),
	}
}

// SetTokens stores a fresh token set and activates the link
func (l *DeviceLink) SetTokens(accessToken, refreshToken string, expiresAt time.Time) {
	l.AccessToken = &accessToken
	l.RefreshToken = &refreshToken
	l.TokenExpiresAt = expiresAt
	l.Status = StatusActive
	l.ErrorMessage = ""
}

// RefreshTokens rotates the access token. An empty refresh token keeps the
// current one, as vendors may omit it on refresh.
func (l *DeviceLink) RefreshTokens(accessToken, refreshToken string, expiresAt time.Time) {
	l.AccessToken = &accessToken
	if refreshToken != "" {
		l.RefreshToken = &refreshToken
	}
	l.TokenExpiresAt = expiresAt
	l.Status = StatusActive
	l.ErrorMessage = ""
}

// MarkSynced records a successful sync and clears any previous error
func (l *DeviceLink) MarkSynced(now time.Time) {
	l.LastSyncAt = &now
	l.Status = StatusActive
	l.ErrorMessage = ""
}

// MarkError puts the link into the ERROR state
func (l *DeviceLink) MarkError(message string) {
	l.Status = StatusError
	l.ErrorMessage = message
}

// MarkExpired puts the link into the EXPIRED state
func (l *DeviceLink) MarkExpired() {
	l.Status = StatusExpired
}

// Revoke terminates the link and clears both tokens
func (l *DeviceLink) Revoke() {
	l.Status = StatusRevoked
	l.AccessToken = nil
	l.RefreshToken = nil
}

// IsTokenExpired reports whether the access token has expired as of now
func (l *DeviceLink) IsTokenExpired(now time.Time) bool {
	return now.After(l.TokenExpiresAt)
}

// NeedsTokenRefresh reports whether the token expires within the lookahead window
func (l *DeviceLink) NeedsTokenRefresh(now time.Time, lookahead time.Duration) bool {
	return now.Add(lookahead).After(l.TokenExpiresAt)
}

// CanSync reports whether the link is eligible for a sync
func (l *DeviceLink) CanSync(now time.Time) bool {
	return l.Status == StatusActive && !l.IsTokenExpired(now)
}

// SyncResult summarizes the outcome of one sync run
type SyncResult struct {
	LinkID    uuid.UUID `json:"link_id"`
	Vendor    string    `json:"vendor"`
	Status    string    `json:"status"` // SUCCESS or FAILED
	ItemCount int       `json:"item_count"`
	Errors    []string  `json:"errors,omitempty"`
	SyncedAt  time.Time `json:"synced_at"`
}

const (
	SyncSuccess = "SUCCESS"
	SyncFailed  = "FAILED"
)
