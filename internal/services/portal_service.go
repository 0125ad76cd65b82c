package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
	"github.com/vibehealth/healthsync/internal/provider"
)

type portalService struct {
	repo        portal.Repository
	consents    consent.Service
	consentRepo consent.Repository
	registry    *provider.Registry
	sink        HealthDataSink
	logger      *logger.Logger
	backfill    time.Duration
	locks       *linkLocks
	now         nowFunc
}

// NewPortalService creates the portal connection service. backfill bounds
// how far back the first record pull reaches.
func NewPortalService(
	repo portal.Repository,
	consents consent.Service,
	consentRepo consent.Repository,
	registry *provider.Registry,
	sink HealthDataSink,
	log *logger.Logger,
	backfill time.Duration,
) portal.Service {
	return &portalService{
		repo:        repo,
		consents:    consents,
		consentRepo: consentRepo,
		registry:    registry,
		sink:        sink,
		logger:      log,
		backfill:    backfill,
		locks:       newLinkLocks(),
		now:         time.Now,
	}
}

func (s *portalService) List(ctx context.Context, userID uuid.UUID) ([]*portal.PortalConnection, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Connect records every attempt as its own row. Unsupported portals, rejected
// credentials and unreachable portals all produce a terminal row and a nil
// error; only persistence failures surface to the caller.
func (s *portalService) Connect(ctx context.Context, userID uuid.UUID, params portal.ConnectParams) (*portal.PortalConnection, error) {
	conn := portal.New(userID, params.PortalType, params.PortalID)

	prov, err := s.registry.Portal(params.PortalType)
	if err != nil {
		conn.MarkUnsupported()
		if cerr := s.repo.Create(ctx, conn); cerr != nil {
			return nil, cerr
		}
		s.logger.WithFields(map[string]interface{}{
			"connection_id": conn.ID.String(),
			"portal_type":   params.PortalType,
		}).Warn("unsupported portal type requested")
		return conn, nil
	}

	auth, err := prov.Authenticate(ctx, params.Credentials)
	if err != nil {
		conn.MarkFailed(portal.ErrCodeUnreachable, err.Error())
		if cerr := s.repo.Create(ctx, conn); cerr != nil {
			return nil, cerr
		}
		s.logger.WithError(err).Warn("portal unreachable during connect")
		return conn, nil
	}
	if !auth.Success {
		conn.MarkFailed(portal.ErrCodeAuthFailed, "portal rejected the credentials")
		if cerr := s.repo.Create(ctx, conn); cerr != nil {
			return nil, cerr
		}
		return conn, nil
	}

	conn.PortalName = auth.PortalName
	conn.PortalUserID = auth.PortalUserID
	conn.Credentials = &auth.Token
	conn.MarkActive()

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}

	// A new active connection supersedes any previous one of the same type.
	if err := s.supersedeOlder(ctx, userID, conn); err != nil {
		s.logger.WithError(err).Warn("failed to supersede previous portal connection")
	}

	scope := consent.Scope{
		DataTypes:       []string{"checkup", "medical"},
		Frequency:       "monthly",
		RetentionPeriod: "5years",
	}
	if _, err := s.consents.Grant(ctx, userID, consent.SubjectPortal, conn.ID, scope); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"connection_id": conn.ID.String(),
		"user_id":       userID.String(),
		"portal_type":   conn.PortalType,
	}).Info("portal connected")

	// Initial backfill is best-effort.
	if _, err := s.syncConnection(ctx, conn.ID); err != nil {
		s.logger.WithError(err).Warn("initial portal backfill failed")
	}

	if fresh, err := s.repo.GetByID(ctx, conn.ID); err == nil && fresh != nil {
		return fresh, nil
	}
	return conn, nil
}

// supersedeOlder revokes previously active connections of the same portal
// type, along with their consents, once a newer one is active.
func (s *portalService) supersedeOlder(ctx context.Context, userID uuid.UUID, latest *portal.PortalConnection) error {
	conns, err := s.repo.ListByUserAndType(ctx, userID, latest.PortalType)
	if err != nil {
		return err
	}

	for _, old := range conns {
		if old.ID == latest.ID || old.Status != portal.StatusActive {
			continue
		}

		active, err := s.consentRepo.FindActive(ctx, userID, consent.SubjectPortal, old.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if rerr := active.Revoke("superseded by new connection", s.now()); rerr == nil {
				if err := s.consentRepo.Update(ctx, active); err != nil {
					return err
				}
			}
		}

		old.Revoke()
		if err := s.repo.Update(ctx, old); err != nil {
			return err
		}
	}
	return nil
}

func (s *portalService) Disconnect(ctx context.Context, userID, connID uuid.UUID) error {
	conn, err := s.repo.GetByUserAndID(ctx, userID, connID)
	if err != nil {
		return err
	}
	if conn == nil {
		return apperrors.NotFound("portal connection")
	}

	active, err := s.consentRepo.FindActive(ctx, userID, consent.SubjectPortal, connID)
	if err != nil {
		return err
	}
	if active != nil {
		if err := active.Revoke(RevokeReasonUserRequest, s.now()); err == nil {
			if err := s.consentRepo.Update(ctx, active); err != nil {
				return err
			}
		}
	}

	conn.Revoke()
	if err := s.repo.Update(ctx, conn); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"connection_id": connID.String(),
		"user_id":       userID.String(),
	}).Info("portal disconnected")

	return nil
}

func (s *portalService) Sync(ctx context.Context, userID, connID uuid.UUID) (*portal.SyncResult, error) {
	conn, err := s.repo.GetByUserAndID(ctx, userID, connID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperrors.NotFound("portal connection")
	}
	return s.syncConnection(ctx, connID)
}

func (s *portalService) syncConnection(ctx context.Context, connID uuid.UUID) (*portal.SyncResult, error) {
	mu := s.locks.get(connID)
	mu.Lock()
	defer mu.Unlock()

	conn, err := s.repo.GetByID(ctx, connID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperrors.NotFound("portal connection")
	}

	now := s.now()
	if !conn.CanSync() {
		return nil, apperrors.InvalidState(fmt.Sprintf("connection is not syncable in state %s", conn.Status))
	}

	// Consent gates every pull, even if the revoke cascade missed the row.
	grant, err := s.consentRepo.FindActive(ctx, conn.UserID, consent.SubjectPortal, conn.ID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.IsActive() {
		return nil, apperrors.InvalidState("connection has no active consent")
	}

	start := now.Add(-s.backfill)
	if conn.LastSyncAt != nil {
		start = *conn.LastSyncAt
	}

	began := time.Now()
	checkups, medical, err := s.fetch(ctx, conn, start, now)
	if err != nil {
		conn.MarkFailed(portal.ErrCodeSyncFailed, err.Error())
		if uerr := s.repo.Update(ctx, conn); uerr != nil {
			return nil, uerr
		}
		metrics.RecordSync(conn.PortalType, "failed", time.Since(began))
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"connection_id": connID.String(),
			"portal_type":   conn.PortalType,
		}).Error("portal sync failed")

		return &portal.SyncResult{
			ConnectionID: conn.ID,
			PortalType:   conn.PortalType,
			Status:       portal.SyncFailed,
			Errors:       []string{err.Error()},
			SyncedAt:     now,
		}, nil
	}

	conn.MarkSynced(now)
	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}

	metrics.RecordSync(conn.PortalType, "success", time.Since(began))
	s.logger.WithFields(map[string]interface{}{
		"connection_id": connID.String(),
		"portal_type":   conn.PortalType,
		"checkups":      len(checkups),
		"visits":        len(medical),
	}).Info("portal sync completed")

	return &portal.SyncResult{
		ConnectionID: conn.ID,
		PortalType:   conn.PortalType,
		Status:       portal.SyncSuccess,
		CheckupCount: len(checkups),
		MedicalCount: len(medical),
		SyncedAt:     now,
	}, nil
}

func (s *portalService) fetch(ctx context.Context, conn *portal.PortalConnection, start, end time.Time) ([]provider.CheckupRecord, []provider.MedicalRecord, error) {
	prov, err := s.registry.Portal(conn.PortalType)
	if err != nil {
		return nil, nil, err
	}
	if conn.Credentials == nil {
		return nil, nil, apperrors.InvalidState("connection has no stored credentials")
	}

	checkups, err := prov.GetCheckupRecords(ctx, *conn.Credentials, start, end)
	if err != nil {
		return nil, nil, err
	}
	medical, err := prov.GetMedicalRecords(ctx, *conn.Credentials, start, end)
	if err != nil {
		return nil, nil, err
	}

	if err := s.sink.WriteCheckupRecords(ctx, conn, checkups); err != nil {
		return nil, nil, err
	}
	if err := s.sink.WriteMedicalRecords(ctx, conn, medical); err != nil {
		return nil, nil, err
	}
	return checkups, medical, nil
}
