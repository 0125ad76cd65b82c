package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
)

const consentColumns = `id, user_id, subject_type, subject_id, consent_type,
	consent_scope, status, consent_version, consented_at, revoked_at,
	revoke_reason, created_at, updated_at`

// ConsentRepository implements consent.Repository
type ConsentRepository struct {
	db *sql.DB
}

// NewConsentRepository creates a new consent ledger repository
func NewConsentRepository(db *sql.DB) consent.Repository {
	return &ConsentRepository{db: db}
}

// Create persists a new consent record
func (r *ConsentRepository) Create(ctx context.Context, record *consent.ConsentRecord) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "consent_records", time.Since(started)) }()

	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	scope, err := json.Marshal(record.Scope)
	if err != nil {
		return errors.Internal("failed to encode consent scope", err)
	}

	query := `
		INSERT INTO consent_records (` + consentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		record.ID.String(), record.UserID.String(), string(record.SubjectType), record.SubjectID.String(),
		string(record.ConsentType), string(scope), string(record.Status), record.ConsentVersion,
		record.ConsentedAt.Unix(), nullableUnix(record.RevokedAt), record.RevokeReason,
		record.CreatedAt.Unix(), record.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("failed to create consent record", err)
	}
	return nil
}

// GetByID retrieves a consent record, or nil when it does not exist
func (r *ConsentRepository) GetByID(ctx context.Context, id uuid.UUID) (*consent.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE id = ?`
	rec, err := scanConsent(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListByUser retrieves all consents of a user, newest first
func (r *ConsentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*consent.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE user_id = ? ORDER BY consented_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to list consent records", err)
	}
	defer rows.Close()

	var records []*consent.ConsentRecord
	for rows.Next() {
		rec, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to iterate consent records", err)
	}
	return records, nil
}

// FindActive retrieves the active consent for a subject, or nil
func (r *ConsentRepository) FindActive(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID) (*consent.ConsentRecord, error) {
	query := `
		SELECT ` + consentColumns + ` FROM consent_records
		WHERE user_id = ? AND subject_type = ? AND subject_id = ? AND status = 'ACTIVE'
		ORDER BY consented_at DESC LIMIT 1
	`
	rec, err := scanConsent(r.db.QueryRowContext(ctx, query, userID.String(), string(subjectType), subjectID.String()))
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ExistsActive reports whether an active consent exists for a subject
func (r *ConsentRepository) ExistsActive(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID) (bool, error) {
	query := `
		SELECT COUNT(1) FROM consent_records
		WHERE user_id = ? AND subject_type = ? AND subject_id = ? AND status = 'ACTIVE'
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID.String(), string(subjectType), subjectID.String()).Scan(&count)
	if err != nil {
		return false, errors.DatabaseError("failed to check active consent", err)
	}
	return count > 0, nil
}

// Update persists status transitions
func (r *ConsentRepository) Update(ctx context.Context, record *consent.ConsentRecord) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("update", "consent_records", time.Since(started)) }()

	record.UpdatedAt = time.Now()

	query := `
		UPDATE consent_records SET
			status = ?, revoked_at = ?, revoke_reason = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(record.Status), nullableUnix(record.RevokedAt), record.RevokeReason,
		record.UpdatedAt.Unix(), record.ID.String(),
	)
	if err != nil {
		return errors.DatabaseError("failed to update consent record", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("consent")
	}
	return nil
}

func scanConsent(row rowScanner) (*consent.ConsentRecord, error) {
	var (
		rec                              consent.ConsentRecord
		id, userID, subjectType          string
		subjectID, consentType, status   string
		scope                            string
		revokeReason                     sql.NullString
		consented, created, updated      int64
		revoked                          sql.NullInt64
	)

	err := row.Scan(&id, &userID, &subjectType, &subjectID, &consentType,
		&scope, &status, &rec.ConsentVersion, &consented, &revoked,
		&revokeReason, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("consent")
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan consent record", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, errors.Internal("invalid consent id", err)
	}
	rec.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, errors.Internal("invalid user id", err)
	}
	rec.SubjectID, err = uuid.Parse(subjectID)
	if err != nil {
		return nil, errors.Internal("invalid subject id", err)
	}

	rec.SubjectType = consent.SubjectType(subjectType)
	rec.ConsentType = consent.Type(consentType)
	rec.Status = consent.Status(status)
	rec.RevokeReason = revokeReason.String
	rec.ConsentedAt = time.Unix(consented, 0)
	if revoked.Valid {
		t := time.Unix(revoked.Int64, 0)
		rec.RevokedAt = &t
	}
	rec.CreatedAt = time.Unix(created, 0)
	rec.UpdatedAt = time.Unix(updated, 0)

	if err := json.Unmarshal([]byte(scope), &rec.Scope); err != nil {
		return nil, errors.Internal("invalid consent scope payload", err)
	}

	return &rec, nil
}
