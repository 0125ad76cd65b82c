// Package provider defines the contracts external data sources must satisfy:
// wearable device vendors speaking OAuth, and national health portals speaking
// credential-based auth. Concrete implementations register themselves on a
// Registry at startup.
package provider

import (
	"context"
	"time"
)

// TokenSet is the result of an OAuth token exchange or refresh.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds until the access token expires
	TokenType    string `json:"tokenType"`
}

// HealthDataPoint is a single measurement pulled from a device vendor.
type HealthDataPoint struct {
	RecordDate time.Time              `json:"recordDate"`
	MetricType string                 `json:"metricType"`
	Values     map[string]interface{} `json:"values"`
	MeasuredAt time.Time              `json:"measuredAt"`
}

// CheckupRecord is a health checkup result pulled from a portal.
type CheckupRecord struct {
	CheckupDate     time.Time              `json:"checkupDate"`
	InstitutionName string                 `json:"institutionName"`
	CheckupType     string                 `json:"checkupType"`
	Results         map[string]interface{} `json:"results"`
}

// MedicalRecord is a clinic or hospital visit record pulled from a portal.
type MedicalRecord struct {
	VisitDate       time.Time              `json:"visitDate"`
	InstitutionName string                 `json:"institutionName"`
	Department      string                 `json:"department"`
	Diagnosis       string                 `json:"diagnosis"`
	Details         map[string]interface{} `json:"details"`
}

// AuthResult is the outcome of a portal authentication attempt. Success=false
// with a nil error means the portal rejected the credentials; a non-nil error
// means the portal could not be reached at all.
type AuthResult struct {
	Token        string `json:"token"`
	PortalUserID string `json:"portalUserId"`
	PortalName   string `json:"portalName"`
	Success      bool   `json:"success"`
}

// DeviceDataProvider is implemented once per wearable vendor.
type DeviceDataProvider interface {
	// Authorize exchanges an OAuth authorization code for tokens.
	Authorize(ctx context.Context, authCode, redirectURI string) (*TokenSet, error)

	// RefreshToken exchanges a refresh token for a fresh token set.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// GetHealthData pulls measurements recorded in [start, end], inclusive.
	GetHealthData(ctx context.Context, accessToken string, start, end time.Time) ([]HealthDataPoint, error)

	// RevokeAccess invalidates the access token at the vendor.
	RevokeAccess(ctx context.Context, accessToken string) error

	// Vendor returns the vendor identifier used in device links.
	Vendor() string

	// SupportedDataTypes lists the metric types this vendor can deliver.
	SupportedDataTypes() []string
}

// PortalDataProvider is implemented once per health portal.
type PortalDataProvider interface {
	// Authenticate verifies portal credentials and returns a session token.
	Authenticate(ctx context.Context, credentials map[string]string) (*AuthResult, error)

	// GetCheckupRecords pulls checkup results in [start, end], inclusive.
	GetCheckupRecords(ctx context.Context, token string, start, end time.Time) ([]CheckupRecord, error)

	// GetMedicalRecords pulls visit records in [start, end], inclusive.
	GetMedicalRecords(ctx context.Context, token string, start, end time.Time) ([]MedicalRecord, error)

	// PortalType returns the portal identifier used in portal connections.
	PortalType() string
}
