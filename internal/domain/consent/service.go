package consent

import (
	"context"

	"github.com/google/uuid"
)

// Detail pairs a consent with a human-readable subject name
type Detail struct {
	*ConsentRecord
	SubjectName string `json:"subject_name"`
}

// Service defines the interface for consent business logic
type Service interface {
	// List retrieves a user's consents with subject names resolved
	List(ctx context.Context, userID uuid.UUID) ([]*Detail, error)

	// Grant creates an active consent for a subject; a previous active
	// consent on the same subject is expired, not duplicated
	Grant(ctx context.Context, userID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID, scope Scope) (*ConsentRecord, error)

	// Revoke withdraws a consent and revokes the linked device or portal
	Revoke(ctx context.Context, userID, consentID uuid.UUID, reason string) error

	// HasActive reports whether a subject has an active consent
	HasActive(ctx context.Context, userID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID) (bool, error)
}
