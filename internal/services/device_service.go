package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
	"github.com/vibehealth/healthsync/internal/provider"
)

type deviceService struct {
	repo        device.Repository
	consents    consent.Service
	consentRepo consent.Repository
	registry    *provider.Registry
	sink        HealthDataSink
	logger      *logger.Logger
	callbackURL string
	backfill    time.Duration
	locks       *linkLocks
	now         nowFunc
}

// NewDeviceService creates the device link service. callbackURL is the OAuth
// redirect handed to vendors; backfill bounds the first sync window.
func NewDeviceService(
	repo device.Repository,
	consents consent.Service,
	consentRepo consent.Repository,
	registry *provider.Registry,
	sink HealthDataSink,
	log *logger.Logger,
	callbackURL string,
	backfill time.Duration,
) device.Service {
	return &deviceService{
		repo:        repo,
		consents:    consents,
		consentRepo: consentRepo,
		registry:    registry,
		sink:        sink,
		logger:      log,
		callbackURL: callbackURL,
		backfill:    backfill,
		locks:       newLinkLocks(),
		now:         time.Now,
	}
}

func (s *deviceService) List(ctx context.Context, userID uuid.UUID) ([]*device.DeviceLink, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *deviceService) Connect(ctx context.Context, userID uuid.UUID, params device.ConnectParams) (*device.DeviceLink, error) {
	existing, err := s.repo.GetByUserAndVendor(ctx, userID, params.Vendor)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict(fmt.Sprintf("a device is already linked for vendor %s", params.Vendor))
	}

	prov, err := s.registry.Device(params.Vendor)
	if err != nil {
		return nil, err
	}

	tokens, err := prov.Authorize(ctx, params.AuthCode, s.callbackURL)
	if err != nil {
		return nil, apperrors.TransportFailure(params.Vendor, err)
	}

	link := device.New(userID, params.Vendor, params.DeviceType)
	expiresAt := s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	link.SetTokens(tokens.AccessToken, tokens.RefreshToken, expiresAt)

	if err := s.repo.Create(ctx, link); err != nil {
		return nil, err
	}

	scope := consent.Scope{
		DataTypes:       params.ConsentDataTypes,
		Frequency:       params.ConsentFrequency,
		RetentionPeriod: params.RetentionPeriod,
	}
	if len(scope.DataTypes) == 0 {
		scope.DataTypes = prov.SupportedDataTypes()
	}
	if _, err := s.consents.Grant(ctx, userID, consent.SubjectDevice, link.ID, scope); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"link_id": link.ID.String(),
		"user_id": userID.String(),
		"vendor":  link.Vendor,
	}).Info("device linked")

	// Initial sync is best-effort; a vendor hiccup must not fail the connect.
	if _, err := s.syncLink(ctx, link.ID); err != nil {
		s.logger.WithError(err).Warn("initial device sync failed")
	}

	return s.reload(ctx, link)
}

func (s *deviceService) Disconnect(ctx context.Context, userID, linkID uuid.UUID) error {
	link, err := s.repo.GetByUserAndID(ctx, userID, linkID)
	if err != nil {
		return err
	}
	if link == nil {
		return apperrors.NotFound("device link")
	}

	active, err := s.consentRepo.FindActive(ctx, userID, consent.SubjectDevice, linkID)
	if err != nil {
		return err
	}
	if active != nil {
		// Vendor-side revocation is best-effort; local state wins.
		if prov, perr := s.registry.Device(link.Vendor); perr == nil && link.AccessToken != nil {
			if rerr := prov.RevokeAccess(ctx, *link.AccessToken); rerr != nil {
				s.logger.WithError(rerr).Warn("vendor-side access revocation failed")
			}
		}
		if err := active.Revoke(RevokeReasonUserRequest, s.now()); err == nil {
			if err := s.consentRepo.Update(ctx, active); err != nil {
				return err
			}
		}
	}

	link.Revoke()
	if err := s.repo.Update(ctx, link); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"link_id": linkID.String(),
		"user_id": userID.String(),
	}).Info("device unlinked")

	return nil
}

func (s *deviceService) Sync(ctx context.Context, userID, linkID uuid.UUID) (*device.SyncResult, error) {
	link, err := s.repo.GetByUserAndID(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, apperrors.NotFound("device link")
	}
	return s.syncLink(ctx, linkID)
}

func (s *deviceService) SyncLink(ctx context.Context, linkID uuid.UUID) (*device.SyncResult, error) {
	return s.syncLink(ctx, linkID)
}

func (s *deviceService) syncLink(ctx context.Context, linkID uuid.UUID) (*device.SyncResult, error) {
	mu := s.locks.get(linkID)
	mu.Lock()
	defer mu.Unlock()

	// Reload under the lock so we work on the freshest version.
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, apperrors.NotFound("device link")
	}

	now := s.now()
	if !link.CanSync(now) {
		// Lazy expiry detection: an ACTIVE link with a stale token flips to
		// EXPIRED here rather than waiting for the scheduler to notice.
		if link.Status == device.StatusActive && link.IsTokenExpired(now) {
			link.MarkExpired()
			if uerr := s.repo.Update(ctx, link); uerr != nil {
				return nil, uerr
			}
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("link is not syncable in state %s", link.Status))
	}

	// Consent gates every pull, even if the revoke cascade missed the link.
	grant, err := s.consentRepo.FindActive(ctx, link.UserID, consent.SubjectDevice, link.ID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.IsActive() {
		return nil, apperrors.InvalidState("link has no active consent")
	}

	start := now.Add(-s.backfill)
	if link.LastSyncAt != nil {
		start = *link.LastSyncAt
	}

	began := time.Now()
	points, err := s.fetch(ctx, link, grant, start, now)
	if err != nil {
		link.MarkError(err.Error())
		if uerr := s.repo.Update(ctx, link); uerr != nil {
			return nil, uerr
		}
		metrics.RecordSync(link.Vendor, "failed", time.Since(began))
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"link_id": linkID.String(),
			"vendor":  link.Vendor,
		}).Error("device sync failed")

		return &device.SyncResult{
			LinkID:   link.ID,
			Vendor:   link.Vendor,
			Status:   device.SyncFailed,
			Errors:   []string{err.Error()},
			SyncedAt: now,
		}, nil
	}

	link.MarkSynced(now)
	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}

	metrics.RecordSync(link.Vendor, "success", time.Since(began))
	for _, p := range points {
		metrics.RecordDataPoints(link.Vendor, p.MetricType, 1)
	}

	s.logger.WithFields(map[string]interface{}{
		"link_id": linkID.String(),
		"vendor":  link.Vendor,
		"points":  len(points),
	}).Info("device sync completed")

	return &device.SyncResult{
		LinkID:    link.ID,
		Vendor:    link.Vendor,
		Status:    device.SyncSuccess,
		ItemCount: len(points),
		SyncedAt:  now,
	}, nil
}

// fetch pulls the window from the vendor, drops datapoints outside the
// consented scope, and hands the rest to the sink
func (s *deviceService) fetch(ctx context.Context, link *device.DeviceLink, grant *consent.ConsentRecord, start, end time.Time) ([]provider.HealthDataPoint, error) {
	prov, err := s.registry.Device(link.Vendor)
	if err != nil {
		return nil, err
	}
	if link.AccessToken == nil {
		return nil, apperrors.InvalidState("link has no access token")
	}

	points, err := prov.GetHealthData(ctx, *link.AccessToken, start, end)
	if err != nil {
		return nil, err
	}

	allowed := points[:0]
	for _, p := range points {
		if grant.AllowsDataType(p.MetricType) {
			allowed = append(allowed, p)
		}
	}

	if err := s.sink.WriteHealthData(ctx, link, allowed); err != nil {
		return nil, err
	}
	return allowed, nil
}

func (s *deviceService) RefreshToken(ctx context.Context, linkID uuid.UUID) error {
	mu := s.locks.get(linkID)
	mu.Lock()
	defer mu.Unlock()

	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return err
	}
	if link == nil {
		return apperrors.NotFound("device link")
	}
	if link.RefreshToken == nil {
		return apperrors.InvalidState("link has no refresh token")
	}

	tokens, err := s.refresh(ctx, link)
	if err != nil {
		link.MarkError("token refresh failed: " + err.Error())
		if uerr := s.repo.Update(ctx, link); uerr != nil {
			return uerr
		}
		metrics.RecordTokenRefresh(link.Vendor, "failed")
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"link_id": linkID.String(),
			"vendor":  link.Vendor,
		}).Error("token refresh failed")
		// A refused refresh means the grant itself is gone, not the network.
		return apperrors.ProviderAuthError(link.Vendor, err)
	}

	expiresAt := s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	link.RefreshTokens(tokens.AccessToken, tokens.RefreshToken, expiresAt)
	if err := s.repo.Update(ctx, link); err != nil {
		return err
	}

	metrics.RecordTokenRefresh(link.Vendor, "success")
	return nil
}

func (s *deviceService) refresh(ctx context.Context, link *device.DeviceLink) (*provider.TokenSet, error) {
	prov, err := s.registry.Device(link.Vendor)
	if err != nil {
		return nil, err
	}
	return prov.RefreshToken(ctx, *link.RefreshToken)
}

func (s *deviceService) reload(ctx context.Context, link *device.DeviceLink) (*device.DeviceLink, error) {
	fresh, err := s.repo.GetByID(ctx, link.ID)
	if err != nil || fresh == nil {
		return link, nil
	}
	return fresh, nil
}
