package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/portal"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
)

const portalColumns = `id, user_id, portal_type, portal_id, portal_name,
	portal_user_id, credentials, status, error_code, error_message,
	last_sync_at, version, created_at, updated_at`

// PortalRepository implements portal.Repository
type PortalRepository struct {
	db *sql.DB
}

// NewPortalRepository creates a new portal connection repository
func NewPortalRepository(db *sql.DB) portal.Repository {
	return &PortalRepository{db: db}
}

// Create persists a new connection attempt
func (r *PortalRepository) Create(ctx context.Context, conn *portal.PortalConnection) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "portal_connections", time.Since(started)) }()

	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	conn.Version = 1

	query := `
		INSERT INTO portal_connections (` + portalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		conn.ID.String(), conn.UserID.String(), conn.PortalType, conn.PortalID, conn.PortalName,
		conn.PortalUserID, conn.Credentials, string(conn.Status), conn.ErrorCode, conn.ErrorMessage,
		nullableUnix(conn.LastSyncAt), conn.Version, conn.CreatedAt.Unix(), conn.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("failed to create portal connection", err)
	}
	return nil
}

// GetByID retrieves a connection, or nil when it does not exist
func (r *PortalRepository) GetByID(ctx context.Context, id uuid.UUID) (*portal.PortalConnection, error) {
	query := `SELECT ` + portalColumns + ` FROM portal_connections WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByUserAndID retrieves a connection owned by the given user, or nil
func (r *PortalRepository) GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*portal.PortalConnection, error) {
	query := `SELECT ` + portalColumns + ` FROM portal_connections WHERE id = ? AND user_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
}

// ListByUser retrieves all connection attempts for a user, newest first
func (r *PortalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*portal.PortalConnection, error) {
	query := `SELECT ` + portalColumns + ` FROM portal_connections WHERE user_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, userID.String())
}

// ListByUserAndType retrieves a user's attempts for one portal type
func (r *PortalRepository) ListByUserAndType(ctx context.Context, userID uuid.UUID, portalType string) ([]*portal.PortalConnection, error) {
	query := `
		SELECT ` + portalColumns + ` FROM portal_connections
		WHERE user_id = ? AND portal_type = ? ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID.String(), portalType)
}

// Update persists changes guarded by the version column
func (r *PortalRepository) Update(ctx context.Context, conn *portal.PortalConnection) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("update", "portal_connections", time.Since(started)) }()

	conn.UpdatedAt = time.Now()

	query := `
		UPDATE portal_connections SET
			portal_name = ?, portal_user_id = ?, credentials = ?,
			status = ?, error_code = ?, error_message = ?,
			last_sync_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		conn.PortalName, conn.PortalUserID, conn.Credentials,
		string(conn.Status), conn.ErrorCode, conn.ErrorMessage,
		nullableUnix(conn.LastSyncAt), conn.UpdatedAt.Unix(),
		conn.ID.String(), conn.Version,
	)
	if err != nil {
		return errors.DatabaseError("failed to update portal connection", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.Conflict("portal connection was modified concurrently")
	}

	conn.Version++
	return nil
}

func (r *PortalRepository) list(ctx context.Context, query string, args ...interface{}) ([]*portal.PortalConnection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("failed to list portal connections", err)
	}
	defer rows.Close()

	var conns []*portal.PortalConnection
	for rows.Next() {
		conn, err := scanPortal(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to iterate portal connections", err)
	}
	return conns, nil
}

func (r *PortalRepository) scanOne(row *sql.Row) (*portal.PortalConnection, error) {
	conn, err := scanPortal(row)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

func scanPortal(row rowScanner) (*portal.PortalConnection, error) {
	var (
		conn                          portal.PortalConnection
		id, userID, status            string
		portalID, portalName          sql.NullString
		portalUserID, credentials     sql.NullString
		errorCode, errorMessage       sql.NullString
		lastSync                      sql.NullInt64
		created, updated              int64
	)

	err := row.Scan(&id, &userID, &conn.PortalType, &portalID, &portalName,
		&portalUserID, &credentials, &status, &errorCode, &errorMessage,
		&lastSync, &conn.Version, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("portal connection")
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan portal connection", err)
	}

	conn.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, errors.Internal("invalid portal connection id", err)
	}
	conn.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, errors.Internal("invalid user id", err)
	}

	conn.Status = portal.Status(status)
	conn.PortalID = portalID.String
	conn.PortalName = portalName.String
	conn.PortalUserID = portalUserID.String
	conn.ErrorCode = errorCode.String
	conn.ErrorMessage = errorMessage.String
	if credentials.Valid {
		conn.Credentials = &credentials.String
	}
	if lastSync.Valid {
		t := time.Unix(lastSync.Int64, 0)
		conn.LastSyncAt = &t
	}
	conn.CreatedAt = time.Unix(created, 0)
	conn.UpdatedAt = time.Unix(updated, 0)

	return &conn, nil
}
