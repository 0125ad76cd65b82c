package consent

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for consent ledger data access
type Repository interface {
	// Create persists a new consent record
	Create(ctx context.Context, record *ConsentRecord) error

	// GetByID retrieves a consent record
	GetByID(ctx context.Context, id uuid.UUID) (*ConsentRecord, error)

	// ListByUser retrieves all consents of a user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ConsentRecord, error)

	// FindActive retrieves the active consent for a subject, or nil
	FindActive(ctx context.Context, userID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID) (*ConsentRecord, error)

	// ExistsActive reports whether an active consent exists for a subject
	ExistsActive(ctx context.Context, userID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID) (bool, error)

	// Update persists status transitions
	Update(ctx context.Context, record *ConsentRecord) error
}
