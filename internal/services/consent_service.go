package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
)

// RevokeReasonUserRequest is stamped on consents revoked through disconnects.
const RevokeReasonUserRequest = "user request"

type consentService struct {
	repo    consent.Repository
	devices device.Repository
	portals portal.Repository
	logger  *logger.Logger
	now     nowFunc
}

// NewConsentService creates the consent ledger service.
func NewConsentService(repo consent.Repository, devices device.Repository, portals portal.Repository, log *logger.Logger) consent.Service {
	return &consentService{
		repo:    repo,
		devices: devices,
		portals: portals,
		logger:  log,
		now:     time.Now,
	}
}

func (s *consentService) List(ctx context.Context, userID uuid.UUID) ([]*consent.Detail, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := make([]*consent.Detail, 0, len(records))
	for _, rec := range records {
		details = append(details, &consent.Detail{
			ConsentRecord: rec,
			SubjectName:   s.subjectName(ctx, rec.SubjectType, rec.SubjectID),
		})
	}
	return details, nil
}

func (s *consentService) Grant(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID, scope consent.Scope) (*consent.ConsentRecord, error) {
	// A repeat grant supersedes the previous consent instead of stacking a
	// duplicate; the old one ends up EXPIRED, never silently ACTIVE twice.
	existing, err := s.repo.FindActive(ctx, userID, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Expire()
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.WithFields(map[string]interface{}{
			"consent_id":   existing.ID.String(),
			"subject_type": string(subjectType),
			"subject_id":   subjectID.String(),
		}).Info("superseded previous consent")
	}

	now := s.now()
	var rec *consent.ConsentRecord
	switch subjectType {
	case consent.SubjectDevice:
		rec = consent.GrantDevice(userID, subjectID, scope, now)
	case consent.SubjectPortal:
		rec = consent.GrantPortal(userID, subjectID, scope, now)
	case consent.SubjectFamilyBoard:
		rec = consent.GrantFamilyBoard(userID, subjectID, scope, now)
	default:
		return nil, apperrors.BadRequest("unsupported consent subject type")
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"consent_id":   rec.ID.String(),
		"user_id":      userID.String(),
		"subject_type": string(subjectType),
		"consent_type": string(rec.ConsentType),
	}).Info("consent granted")

	return rec, nil
}

func (s *consentService) Revoke(ctx context.Context, userID, consentID uuid.UUID, reason string) error {
	rec, err := s.repo.GetByID(ctx, consentID)
	if err != nil {
		return err
	}
	if rec == nil || rec.UserID != userID {
		return apperrors.NotFound("consent")
	}

	if err := rec.Revoke(reason, s.now()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}

	// Withdrawing consent terminates the linked integration as well.
	switch rec.SubjectType {
	case consent.SubjectDevice:
		if link, err := s.devices.GetByID(ctx, rec.SubjectID); err == nil && link != nil {
			link.Revoke()
			if err := s.devices.Update(ctx, link); err != nil {
				s.logger.WithError(err).Warn("failed to revoke device link after consent revocation")
			}
		}
	case consent.SubjectPortal:
		if conn, err := s.portals.GetByID(ctx, rec.SubjectID); err == nil && conn != nil {
			conn.Revoke()
			if err := s.portals.Update(ctx, conn); err != nil {
				s.logger.WithError(err).Warn("failed to revoke portal connection after consent revocation")
			}
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"consent_id": rec.ID.String(),
		"user_id":    userID.String(),
		"reason":     reason,
	}).Info("consent revoked")

	return nil
}

func (s *consentService) HasActive(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID) (bool, error) {
	return s.repo.ExistsActive(ctx, userID, subjectType, subjectID)
}

func (s *consentService) subjectName(ctx context.Context, subjectType consent.SubjectType, subjectID uuid.UUID) string {
	switch subjectType {
	case consent.SubjectDevice:
		if link, err := s.devices.GetByID(ctx, subjectID); err == nil && link != nil {
			return link.Vendor + " " + link.DeviceType
		}
		return "unknown device"
	case consent.SubjectPortal:
		if conn, err := s.portals.GetByID(ctx, subjectID); err == nil && conn != nil && conn.PortalName != "" {
			return conn.PortalName
		}
		return "unknown portal"
	case consent.SubjectFamilyBoard:
		return "family board"
	default:
		return "unknown"
	}
}
