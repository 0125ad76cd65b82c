package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
)

const deviceColumns = `id, user_id, vendor, device_type, vendor_user_id,
	access_token, refresh_token, token_expires_at, status, error_message,
	last_sync_at, sync_config, version, created_at, updated_at`

// DeviceRepository implements device.Repository
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new device link repository
func NewDeviceRepository(db *sql.DB) device.Repository {
	return &DeviceRepository{db: db}
}

// Create persists a new device link
func (r *DeviceRepository) Create(ctx context.Context, link *device.DeviceLink) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "device_links", time.Since(started)) }()

	now := time.Now()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.Version = 1

	cfg, err := json.Marshal(link.SyncConfig)
	if err != nil {
		return errors.Internal("failed to encode sync config", err)
	}

	query := `
		INSERT INTO device_links (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		link.ID.String(), link.UserID.String(), link.Vendor, link.DeviceType, link.VendorUserID,
		link.AccessToken, link.RefreshToken, link.TokenExpiresAt.Unix(), string(link.Status), link.ErrorMessage,
		nullableUnix(link.LastSyncAt), string(cfg), link.Version, link.CreatedAt.Unix(), link.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("failed to create device link", err)
	}
	return nil
}

// GetByID retrieves a link, or nil when it does not exist
func (r *DeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*device.DeviceLink, error) {
	query := `SELECT ` + deviceColumns + ` FROM device_links WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByUserAndID retrieves a link owned by the given user, or nil
func (r *DeviceRepository) GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*device.DeviceLink, error) {
	query := `SELECT ` + deviceColumns + ` FROM device_links WHERE id = ? AND user_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
}

// GetByUserAndVendor retrieves the non-revoked link for a (user, vendor) pair, or nil
func (r *DeviceRepository) GetByUserAndVendor(ctx context.Context, userID uuid.UUID, vendor string) (*device.DeviceLink, error) {
	query := `
		SELECT ` + deviceColumns + ` FROM device_links
		WHERE user_id = ? AND vendor = ? AND status != 'REVOKED'
		ORDER BY created_at DESC LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID.String(), vendor))
}

// ListByUser retrieves all links for a user, newest first
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*device.DeviceLink, error) {
	query := `SELECT ` + deviceColumns + ` FROM device_links WHERE user_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, userID.String())
}

// Update persists changes guarded by the version column
func (r *DeviceRepository) Update(ctx context.Context, link *device.DeviceLink) error {
	started := time.Now()
	defer func() { metrics.RecordDBQuery("update", "device_links", time.Since(started)) }()

	link.UpdatedAt = time.Now()

	cfg, err := json.Marshal(link.SyncConfig)
	if err != nil {
		return errors.Internal("failed to encode sync config", err)
	}

	query := `
		UPDATE device_links SET
			vendor_user_id = ?, access_token = ?, refresh_token = ?,
			token_expires_at = ?, status = ?, error_message = ?,
			last_sync_at = ?, sync_config = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		link.VendorUserID, link.AccessToken, link.RefreshToken,
		link.TokenExpiresAt.Unix(), string(link.Status), link.ErrorMessage,
		nullableUnix(link.LastSyncAt), string(cfg), link.UpdatedAt.Unix(),
		link.ID.String(), link.Version,
	)
	if err != nil {
		return errors.DatabaseError("failed to update device link", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.Conflict("device link was modified concurrently")
	}

	link.Version++
	return nil
}

// ListNeedingSync retrieves active links not synced since the cutoff
func (r *DeviceRepository) ListNeedingSync(ctx context.Context, since time.Time) ([]*device.DeviceLink, error) {
	query := `
		SELECT ` + deviceColumns + ` FROM device_links
		WHERE status = 'ACTIVE' AND (last_sync_at IS NULL OR last_sync_at < ?)
	`
	return r.list(ctx, query, since.Unix())
}

// ListNeedingTokenRefresh retrieves active links expiring before the threshold
func (r *DeviceRepository) ListNeedingTokenRefresh(ctx context.Context, threshold time.Time) ([]*device.DeviceLink, error) {
	query := `
		SELECT ` + deviceColumns + ` FROM device_links
		WHERE status = 'ACTIVE' AND token_expires_at < ?
	`
	return r.list(ctx, query, threshold.Unix())
}

func (r *DeviceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*device.DeviceLink, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("failed to list device links", err)
	}
	defer rows.Close()

	var links []*device.DeviceLink
	for rows.Next() {
		link, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to iterate device links", err)
	}
	return links, nil
}

func (r *DeviceRepository) scanOne(row *sql.Row) (*device.DeviceLink, error) {
	link, err := scanDevice(row)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*device.DeviceLink, error) {
	var (
		link                       device.DeviceLink
		id, userID, status         string
		vendorUserID, errorMessage sql.NullString
		accessToken, refreshToken  sql.NullString
		expiresAt, created, updated int64
		lastSync                   sql.NullInt64
		cfg                        string
	)

	err := row.Scan(&id, &userID, &link.Vendor, &link.DeviceType, &vendorUserID,
		&accessToken, &refreshToken, &expiresAt, &status, &errorMessage,
		&lastSync, &cfg, &link.Version, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("device link")
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan device link", err)
	}

	link.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, errors.Internal("invalid device link id", err)
	}
	link.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, errors.Internal("invalid user id", err)
	}

	link.Status = device.Status(status)
	link.VendorUserID = vendorUserID.String
	link.ErrorMessage = errorMessage.String
	if accessToken.Valid {
		link.AccessToken = &accessToken.String
	}
	if refreshToken.Valid {
		link.RefreshToken = &refreshToken.String
	}
	link.TokenExpiresAt = time.Unix(expiresAt, 0)
	if lastSync.Valid {
		t := time.Unix(lastSync.Int64, 0)
		link.LastSyncAt = &t
	}
	link.CreatedAt = time.Unix(created, 0)
	link.UpdatedAt = time.Unix(updated, 0)

	if err := json.Unmarshal([]byte(cfg), &link.SyncConfig); err != nil {
		return nil, errors.Internal("invalid sync config payload", err)
	}

	return &link, nil
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
