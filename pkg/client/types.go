package client

import "time"

// DeviceLink represents a wearable device link
type DeviceLink struct {
	ID             string     `json:"id"`
	Vendor         string     `json:"vendor"`
	DeviceType     string     `json:"deviceType"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	TokenExpiresAt time.Time  `json:"tokenExpiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// DeviceSyncResult represents the outcome of a device sync
type DeviceSyncResult struct {
	LinkID    string    `json:"linkId"`
	Vendor    string    `json:"vendor"`
	Status    string    `json:"status"`
	ItemCount int       `json:"itemCount"`
	Errors    []string  `json:"errors,omitempty"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// PortalConnection represents a health portal connection attempt
type PortalConnection struct {
	ID           string     `json:"id"`
	PortalType   string     `json:"portalType"`
	PortalID     string     `json:"portalId,omitempty"`
	PortalName   string     `json:"portalName,omitempty"`
	Status       string     `json:"status"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PortalSyncResult represents the outcome of a portal sync
type PortalSyncResult struct {
	ConnectionID string    `json:"connectionId"`
	PortalType   string    `json:"portalType"`
	Status       string    `json:"status"`
	CheckupCount int       `json:"checkupCount"`
	MedicalCount int       `json:"medicalCount"`
	Errors       []string  `json:"errors,omitempty"`
	SyncedAt     time.Time `json:"syncedAt"`
}

// Consent represents a consent ledger entry
type Consent struct {
	ID             string     `json:"id"`
	SubjectType    string     `json:"subjectType"`
	SubjectID      string     `json:"subjectId"`
	SubjectName    string     `json:"subjectName"`
	ConsentType    string     `json:"consentType"`
	Status         string     `json:"status"`
	ConsentVersion string     `json:"consentVersion"`
	ConsentedAt    time.Time  `json:"consentedAt"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	RevokeReason   string     `json:"revokeReason,omitempty"`
}

// SupportedIntegrations lists the available vendors and portals
type SupportedIntegrations struct {
	Vendors []string `json:"vendors"`
	Portals []string `json:"portals"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
