package consent

import (
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/pkg/errors"
)

// SubjectType identifies what a consent applies to
type SubjectType string

const (
	SubjectDevice      SubjectType = "DEVICE"
	SubjectPortal      SubjectType = "PORTAL"
	SubjectFamilyBoard SubjectType = "FAMILY_BOARD"
)

// Type identifies the kind of consent given
type Type string

const (
	TypeDataCollection Type = "DATA_COLLECTION"
	TypeDataSharing    Type = "DATA_SHARING"
)

// Status represents the lifecycle state of a consent
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

// CurrentVersion is stamped on every newly granted consent
const CurrentVersion = "1.0"

// Scope describes what a consent covers
type Scope struct {
	Version         string          `json:"version,omitempty"`
	DataTypes       []string        `json:"dataTypes,omitempty"`
	Frequency       string          `json:"frequency,omitempty"`
	RetentionPeriod string          `json:"retentionPeriod,omitempty"`
	SharingAllowed  map[string]bool `json:"sharingAllowed,omitempty"`
}

// ConsentRecord is an append-only ledger entry. Revocation is one-way:
// a revoked or expired consent never becomes active again.
type ConsentRecord struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	SubjectType    SubjectType `json:"subject_type"`
	SubjectID      uuid.UUID   `json:"subject_id"`
	ConsentType    Type        `json:"consent_type"`
	Scope          Scope       `json:"scope"`
	Status         Status      `json:"status"`
	ConsentVersion string      `json:"consent_version"`
	ConsentedAt    time.Time   `json:"consented_at"`
	RevokedAt      *time.Time  `json:"revoked_at,omitempty"`
	RevokeReason   string      `json:"revoke_reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// GrantDevice creates an active data-collection consent for a device link
func GrantDevice(userID, deviceID uuid.UUID, scope Scope, now time.Time) *ConsentRecord {
	return newRecord(userID, SubjectDevice, deviceID, TypeDataCollection, scope, now)
}

// GrantPortal creates an active data-collection consent for a portal connection
func GrantPortal(userID, portalID uuid.UUID, scope Scope, now time.Time) *ConsentRecord {
	return newRecord(userID, SubjectPortal, portalID, TypeDataCollection, scope, now)
}

// GrantFamilyBoard creates an active data-sharing consent for a family board
func GrantFamilyBoard(userID, boardID uuid.UUID, scope Scope, now time.Time) *ConsentRecord {
	return newRecord(userID, SubjectFamilyBoard, boardID, TypeDataSharing, scope, now)
}

func newRecord(userID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID, consentType Type, scope Scope, now time.Time) *ConsentRecord {
	if scope.Version == "" {
		scope.Version = CurrentVersion
	}
	return &ConsentRecord{
		ID:             uuid.New(),
		UserID:         userID,
		SubjectType:    subjectType,
		SubjectID:      subjectID,
		ConsentType:    consentType,
		Scope:          scope,
		Status:         StatusActive,
		ConsentVersion: CurrentVersion,
		ConsentedAt:    now,
	}
}

// Revoke withdraws the consent. Only an active consent can be revoked.
func (c *ConsentRecord) Revoke(reason string, now time.Time) error {
	if c.Status != StatusActive {
		return errors.InvalidState("only an active consent can be revoked")
	}
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevokeReason = reason
	return nil
}

// Expire marks an active consent as expired; superseded consents end up here
func (c *ConsentRecord) Expire() {
	if c.Status == StatusActive {
		c.Status = StatusExpired
	}
}

// IsActive reports whether the consent is currently in force
func (c *ConsentRecord) IsActive() bool {
	return c.Status == StatusActive
}

// AllowsDataType reports whether the scope covers a given data type
func (c *ConsentRecord) AllowsDataType(dataType string) bool {
	for _, dt := range c.Scope.DataTypes {
		if dt == dataType {
			return true
		}
	}
	return false
}
