package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/testutil"
)

type consentFixture struct {
	repo    *testutil.ConsentRepo
	devices *testutil.DeviceRepo
	portals *testutil.PortalRepo
	svc     consent.Service
}

func newConsentFixture(t *testing.T) *consentFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	f := &consentFixture{
		repo:    testutil.NewConsentRepo(),
		devices: testutil.NewDeviceRepo(),
		portals: testutil.NewPortalRepo(),
	}
	f.svc = NewConsentService(f.repo, f.devices, f.portals, log)
	return f
}

func TestGrantAndHasActive(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()
	userID, deviceID := uuid.New(), uuid.New()

	rec, err := f.svc.Grant(ctx, userID, consent.SubjectDevice, deviceID, consent.Scope{
		DataTypes: []string{"steps"},
	})
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if rec.Status != consent.StatusActive {
		t.Errorf("expected ACTIVE, got %s", rec.Status)
	}

	ok, err := f.svc.HasActive(ctx, userID, consent.SubjectDevice, deviceID)
	if err != nil || !ok {
		t.Error("HasActive should report the granted consent")
	}

	ok, _ = f.svc.HasActive(ctx, userID, consent.SubjectPortal, deviceID)
	if ok {
		t.Error("HasActive must not match across subject types")
	}
}

func TestGrantSupersedesPreviousConsent(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()
	userID, deviceID := uuid.New(), uuid.New()

	first, _ := f.svc.Grant(ctx, userID, consent.SubjectDevice, deviceID, consent.Scope{})
	second, err := f.svc.Grant(ctx, userID, consent.SubjectDevice, deviceID, consent.Scope{})
	if err != nil {
		t.Fatalf("repeat grant failed: %v", err)
	}

	old, _ := f.repo.GetByID(ctx, first.ID)
	if old.Status != consent.StatusExpired {
		t.Errorf("superseded consent should be EXPIRED, got %s", old.Status)
	}

	active, _ := f.repo.FindActive(ctx, userID, consent.SubjectDevice, deviceID)
	if active == nil || active.ID != second.ID {
		t.Error("only the newest consent may be active")
	}
}

func TestRevokeCascadesToDevice(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link := device.New(userID, "mock", "watch")
	link.SetTokens("a", "r", time.Now().Add(time.Hour))
	if err := f.devices.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	rec, _ := f.svc.Grant(ctx, userID, consent.SubjectDevice, link.ID, consent.Scope{})

	if err := f.svc.Revoke(ctx, userID, rec.ID, "privacy request"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	stored, _ := f.repo.GetByID(ctx, rec.ID)
	if stored.Status != consent.StatusRevoked || stored.RevokeReason != "privacy request" {
		t.Error("consent not revoked with reason")
	}

	storedLink, _ := f.devices.GetByID(ctx, link.ID)
	if storedLink.Status != device.StatusRevoked {
		t.Errorf("linked device should be revoked, got %s", storedLink.Status)
	}
	if storedLink.AccessToken != nil {
		t.Error("cascaded revoke must clear tokens")
	}
}

func TestRevokeTwiceFails(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	rec, _ := f.svc.Grant(ctx, userID, consent.SubjectFamilyBoard, uuid.New(), consent.Scope{})

	if err := f.svc.Revoke(ctx, userID, rec.ID, "first"); err != nil {
		t.Fatal(err)
	}
	err := f.svc.Revoke(ctx, userID, rec.ID, "second")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE on double revoke, got %v", err)
	}
}

func TestRevokeForeignConsent(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()

	rec, _ := f.svc.Grant(ctx, uuid.New(), consent.SubjectFamilyBoard, uuid.New(), consent.Scope{})

	err := f.svc.Revoke(ctx, uuid.New(), rec.ID, "not mine")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for foreign consent, got %v", err)
	}
}

func TestListResolvesSubjectNames(t *testing.T) {
	f := newConsentFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	link := device.New(userID, "mock", "watch")
	if err := f.devices.Create(ctx, link); err != nil {
		t.Fatal(err)
	}

	f.svc.Grant(ctx, userID, consent.SubjectDevice, link.ID, consent.Scope{})
	f.svc.Grant(ctx, userID, consent.SubjectDevice, uuid.New(), consent.Scope{})
	f.svc.Grant(ctx, userID, consent.SubjectFamilyBoard, uuid.New(), consent.Scope{})

	details, err := f.svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(details) != 3 {
		t.Fatalf("expected 3 consents, got %d", len(details))
	}

	names := map[string]bool{}
	for _, d := range details {
		names[d.SubjectName] = true
	}
	if !names["mock watch"] {
		t.Error("device subject name not resolved")
	}
	if !names["unknown device"] {
		t.Error("missing device should resolve to placeholder")
	}
	if !names["family board"] {
		t.Error("family board name not resolved")
	}
}
