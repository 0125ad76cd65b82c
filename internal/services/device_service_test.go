package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/testutil"
)

type deviceFixture struct {
	repo     *testutil.DeviceRepo
	consents *testutil.ConsentRepo
	portals  *testutil.PortalRepo
	prov     *testutil.FakeDeviceProvider
	sink     *testutil.CaptureSink
	svc      device.Service
}

func newDeviceFixture(t *testing.T) *deviceFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	f := &deviceFixture{
		repo:     testutil.NewDeviceRepo(),
		consents: testutil.NewConsentRepo(),
		portals:  testutil.NewPortalRepo(),
		prov:     &testutil.FakeDeviceProvider{},
		sink:     &testutil.CaptureSink{},
	}

	registry := provider.NewRegistry()
	registry.RegisterDevice(f.prov)

	consentSvc := NewConsentService(f.consents, f.repo, f.portals, log)
	f.svc = NewDeviceService(f.repo, consentSvc, f.consents, registry, f.sink, log,
		"http://localhost:8080/callback", 7*24*time.Hour)
	return f
}

func TestConnectDevice(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, err := f.svc.Connect(ctx, userID, device.ConnectParams{
		Vendor:     "mock",
		DeviceType: "watch",
		AuthCode:   "code",
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if link.Status != device.StatusActive {
		t.Errorf("expected ACTIVE, got %s", link.Status)
	}
	if link.AccessToken == nil || link.RefreshToken == nil {
		t.Error("tokens not stored")
	}
	if f.prov.AuthorizeCalls != 1 {
		t.Errorf("expected 1 authorize call, got %d", f.prov.AuthorizeCalls)
	}

	// consent granted for the link
	active, err := f.consents.FindActive(ctx, userID, consent.SubjectDevice, link.ID)
	if err != nil || active == nil {
		t.Fatal("no active consent after connect")
	}
	if active.ConsentType != consent.TypeDataCollection {
		t.Errorf("expected DATA_COLLECTION consent, got %s", active.ConsentType)
	}

	// initial sync ran
	if f.prov.DataCalls != 1 {
		t.Errorf("expected initial sync, got %d data calls", f.prov.DataCalls)
	}
	if link.LastSyncAt == nil {
		t.Error("initial sync did not record lastSyncAt")
	}
	if len(f.sink.HealthData) == 0 {
		t.Error("initial sync wrote nothing to the sink")
	}
}

func TestConnectDeviceConflict(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"}); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}

	_, err := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "band", AuthCode: "c"})
	if !apperrors.HasCode(err, apperrors.ErrCodeConflict) {
		t.Errorf("expected CONFLICT, got %v", err)
	}
}

func TestConnectDeviceAfterDisconnectAllowed(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, err := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := f.svc.Disconnect(ctx, userID, link.ID); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	if _, err := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"}); err != nil {
		t.Errorf("reconnect after disconnect should succeed, got %v", err)
	}
}

func TestConnectUnknownVendor(t *testing.T) {
	f := newDeviceFixture(t)

	_, err := f.svc.Connect(context.Background(), uuid.New(), device.ConnectParams{
		Vendor: "fitbit", DeviceType: "watch", AuthCode: "c",
	})
	if !apperrors.HasCode(err, apperrors.ErrCodeNotSupported) {
		t.Errorf("expected NOT_SUPPORTED, got %v", err)
	}
}

func TestSyncFailureIsReportedNotRaised(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, err := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	f.prov.DataErr = errors.New("vendor timeout")
	result, err := f.svc.Sync(ctx, userID, link.ID)
	if err != nil {
		t.Fatalf("provider failure must not surface as error, got %v", err)
	}
	if result.Status != device.SyncFailed {
		t.Errorf("expected FAILED result, got %s", result.Status)
	}
	if len(result.Errors) == 0 {
		t.Error("failure result should carry the error message")
	}

	stored, _ := f.repo.GetByID(ctx, link.ID)
	if stored.Status != device.StatusError {
		t.Errorf("link should be in ERROR, got %s", stored.Status)
	}
}

func TestSyncInvalidState(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link := device.New(userID, "mock", "watch")
	if err := f.repo.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Sync(ctx, userID, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for pending link, got %v", err)
	}
}

func TestSyncExpiredTokenMarksExpired(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})
	calls := f.prov.DataCalls

	stored, _ := f.repo.GetByID(ctx, link.ID)
	stored.TokenExpiresAt = time.Now().Add(-time.Minute)
	if err := f.repo.Update(ctx, stored); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Sync(ctx, userID, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for expired token, got %v", err)
	}
	if f.prov.DataCalls != calls {
		t.Error("expired link must not reach the vendor")
	}

	fresh, _ := f.repo.GetByID(ctx, link.ID)
	if fresh.Status != device.StatusExpired {
		t.Errorf("expected EXPIRED after lazy detection, got %s", fresh.Status)
	}
}

func TestSyncRecoversFromError(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})

	f.prov.DataErr = errors.New("vendor timeout")
	if _, err := f.svc.Sync(ctx, userID, link.ID); err != nil {
		t.Fatal(err)
	}

	// an ERROR link is not syncable until its token is refreshed
	_, err := f.svc.Sync(ctx, userID, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE on errored link, got %v", err)
	}

	f.prov.DataErr = nil
	if err := f.svc.RefreshToken(ctx, link.ID); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	result, err := f.svc.Sync(ctx, userID, link.ID)
	if err != nil {
		t.Fatalf("sync after refresh failed: %v", err)
	}
	if result.Status != device.SyncSuccess {
		t.Errorf("expected SUCCESS, got %s", result.Status)
	}
}

func TestSyncWithoutConsentRefused(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})
	calls := f.prov.DataCalls

	// Consent withdrawn but the revoke cascade missed the link: the link is
	// still ACTIVE, yet a pull must be refused.
	grant, _ := f.consents.FindActive(ctx, userID, consent.SubjectDevice, link.ID)
	if err := grant.Revoke("withdrawn", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := f.consents.Update(ctx, grant); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Sync(ctx, userID, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE without consent, got %v", err)
	}
	if f.prov.DataCalls != calls {
		t.Error("unconsented link must not reach the vendor")
	}
}

func TestSyncFiltersUnconsentedDataTypes(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	// Consent only to heart rate; the fake vendor delivers STEPS points.
	link, err := f.svc.Connect(ctx, userID, device.ConnectParams{
		Vendor:           "mock",
		DeviceType:       "watch",
		AuthCode:         "c",
		ConsentDataTypes: []string{"HEART_RATE"},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	result, err := f.svc.Sync(ctx, userID, link.ID)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.ItemCount != 0 {
		t.Errorf("unconsented data types must be dropped, got %d items", result.ItemCount)
	}
	if len(f.sink.HealthData) != 0 {
		t.Errorf("sink received %d unconsented points", len(f.sink.HealthData))
	}
}

func TestRefreshTokenRequiresRefreshToken(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	link := device.New(uuid.New(), "mock", "watch")
	access := "access-only"
	link.AccessToken = &access
	link.Status = device.StatusActive
	link.TokenExpiresAt = time.Now().Add(time.Hour)
	if err := f.repo.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	err := f.svc.RefreshToken(ctx, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE without refresh token, got %v", err)
	}
}

func TestRefreshTokenFailurePropagates(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})

	f.prov.RefreshErr = errors.New("invalid_grant")
	err := f.svc.RefreshToken(ctx, link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeProviderAuth) {
		t.Fatalf("refresh failure must propagate as PROVIDER_AUTH_ERROR, got %v", err)
	}

	stored, _ := f.repo.GetByID(ctx, link.ID)
	if stored.Status != device.StatusError {
		t.Errorf("failed refresh should mark link ERROR, got %s", stored.Status)
	}
}

func TestDisconnectDevice(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})

	if err := f.svc.Disconnect(ctx, userID, link.ID); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	stored, _ := f.repo.GetByID(ctx, link.ID)
	if stored.Status != device.StatusRevoked {
		t.Errorf("expected REVOKED, got %s", stored.Status)
	}
	if stored.AccessToken != nil || stored.RefreshToken != nil {
		t.Error("tokens must be cleared on disconnect")
	}
	if f.prov.RevokeCalls != 1 {
		t.Errorf("expected vendor-side revoke, got %d calls", f.prov.RevokeCalls)
	}

	active, _ := f.consents.FindActive(ctx, userID, consent.SubjectDevice, link.ID)
	if active != nil {
		t.Error("consent should be revoked on disconnect")
	}
}

func TestDisconnectSurvivesVendorFailure(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link, _ := f.svc.Connect(ctx, userID, device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})

	f.prov.RevokeErr = errors.New("vendor down")
	if err := f.svc.Disconnect(ctx, userID, link.ID); err != nil {
		t.Fatalf("vendor failure must not block disconnect: %v", err)
	}

	stored, _ := f.repo.GetByID(ctx, link.ID)
	if stored.Status != device.StatusRevoked {
		t.Errorf("expected REVOKED, got %s", stored.Status)
	}
}

func TestSyncWrongUser(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	link, _ := f.svc.Connect(ctx, uuid.New(), device.ConnectParams{Vendor: "mock", DeviceType: "watch", AuthCode: "c"})

	_, err := f.svc.Sync(ctx, uuid.New(), link.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for foreign link, got %v", err)
	}
}
