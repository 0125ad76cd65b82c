package dto

import "time"

// ConnectDeviceRequest represents a device linking request
type ConnectDeviceRequest struct {
	Vendor     string `json:"vendor" validate:"required"`
	DeviceType string `json:"deviceType" validate:"required"`
	AuthCode   string `json:"authCode" validate:"required"`

	// Optional consent scope overrides; defaults to the vendor's
	// supported data types with hourly frequency
	ConsentDataTypes []string `json:"consentDataTypes,omitempty"`
	ConsentFrequency string   `json:"consentFrequency,omitempty"`
	RetentionPeriod  string   `json:"retentionPeriod,omitempty"`
}

// DeviceLinkDTO represents a device link in API responses
type DeviceLinkDTO struct {
	ID             string     `json:"id"`
	Vendor         string     `json:"vendor"`
	DeviceType     string     `json:"deviceType"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	TokenExpiresAt time.Time  `json:"tokenExpiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// DeviceSyncResponse represents the outcome of a device sync
type DeviceSyncResponse struct {
	LinkID    string    `json:"linkId"`
	Vendor    string    `json:"vendor"`
	Status    string    `json:"status"`
	ItemCount int       `json:"itemCount"`
	Errors    []string  `json:"errors,omitempty"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// ConnectPortalRequest represents a portal connection request
type ConnectPortalRequest struct {
	PortalType  string            `json:"portalType" validate:"required"`
	PortalID    string            `json:"portalId,omitempty"`
	Credentials map[string]string `json:"credentials" validate:"required"`
}

// PortalConnectionDTO represents a portal connection in API responses
type PortalConnectionDTO struct {
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

// PortalSyncResponse represents the outcome of a portal sync
type PortalSyncResponse struct {
	ConnectionID string    `json:"connectionId"`
	PortalType   string    `json:"portalType"`
	Status       string    `json:"status"`
	CheckupCount int       `json:"checkupCount"`
	MedicalCount int       `json:"medicalCount"`
	Errors       []string  `json:"errors,omitempty"`
	SyncedAt     time.Time `json:"syncedAt"`
}

// ConsentDTO represents a consent ledger entry in API responses
type ConsentDTO struct {
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

// RevokeConsentRequest represents a consent revocation request
type RevokeConsentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SupportedIntegrationsResponse lists the vendors and portals the
// service can talk to
type SupportedIntegrationsResponse struct {
	Vendors []string `json:"vendors"`
	Portals []string `json:"portals"`
}
