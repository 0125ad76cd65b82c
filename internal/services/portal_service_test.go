package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/testutil"
)

type portalFixture struct {
	repo     *testutil.PortalRepo
	consents *testutil.ConsentRepo
	devices  *testutil.DeviceRepo
	prov     *testutil.FakePortalProvider
	sink     *testutil.CaptureSink
	svc      portal.Service
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	f := &portalFixture{
		repo:     testutil.NewPortalRepo(),
		consents: testutil.NewConsentRepo(),
		devices:  testutil.NewDeviceRepo(),
		prov:     &testutil.FakePortalProvider{CheckupCount: 2, MedicalCount: 3},
		sink:     &testutil.CaptureSink{},
	}

	registry := provider.NewRegistry()
	registry.RegisterPortal(f.prov)

	consentSvc := NewConsentService(f.consents, f.devices, f.repo, log)
	f.svc = NewPortalService(f.repo, consentSvc, f.consents, registry, f.sink, log,
		6*30*24*time.Hour)
	return f
}

func TestConnectPortal(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	conn, err := f.svc.Connect(ctx, userID, portal.ConnectParams{
		PortalType:  "NHIS",
		Credentials: map[string]string{"id": "u", "password": "p"},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if conn.Status != portal.StatusActive {
		t.Errorf("expected ACTIVE, got %s", conn.Status)
	}
	if conn.Credentials == nil {
		t.Error("session token not stored")
	}
	if conn.PortalName == "" || conn.PortalUserID == "" {
		t.Error("portal identity not stored")
	}

	active, _ := f.consents.FindActive(ctx, userID, consent.SubjectPortal, conn.ID)
	if active == nil {
		t.Fatal("no active consent after connect")
	}

	// initial backfill ran
	if conn.LastSyncAt == nil {
		t.Error("backfill did not record lastSyncAt")
	}
	if len(f.sink.CheckupRecords) != 2 || len(f.sink.MedicalRecords) != 3 {
		t.Errorf("backfill wrote %d/%d records, want 2/3",
			len(f.sink.CheckupRecords), len(f.sink.MedicalRecords))
	}
}

func TestConnectUnsupportedPortal(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	conn, err := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "REGIONAL_X"})
	if err != nil {
		t.Fatalf("unsupported portal must not raise: %v", err)
	}
	if conn.Status != portal.StatusUnsupported {
		t.Errorf("expected UNSUPPORTED, got %s", conn.Status)
	}

	active, _ := f.consents.FindActive(ctx, userID, consent.SubjectPortal, conn.ID)
	if active != nil {
		t.Error("no consent may be granted for an unsupported portal")
	}
}

func TestConnectPortalAuthRejected(t *testing.T) {
	f := newPortalFixture(t)
	f.prov.RejectAuth = true
	ctx := context.Background()
	userID := uuid.New()

	conn, err := f.svc.Connect(ctx, userID, portal.ConnectParams{
		PortalType:  "NHIS",
		Credentials: map[string]string{"id": "u", "password": "wrong"},
	})
	if err != nil {
		t.Fatalf("rejected credentials must not raise: %v", err)
	}
	if conn.Status != portal.StatusFailed {
		t.Errorf("expected FAILED, got %s", conn.Status)
	}
	if conn.ErrorCode != portal.ErrCodeAuthFailed {
		t.Errorf("expected %s, got %s", portal.ErrCodeAuthFailed, conn.ErrorCode)
	}

	active, _ := f.consents.FindActive(ctx, userID, consent.SubjectPortal, conn.ID)
	if active != nil {
		t.Error("no consent may be granted on failed auth")
	}
}

func TestConnectPortalUnreachable(t *testing.T) {
	f := newPortalFixture(t)
	f.prov.AuthErr = errors.New("connection refused")
	ctx := context.Background()

	conn, err := f.svc.Connect(ctx, uuid.New(), portal.ConnectParams{PortalType: "NHIS"})
	if err != nil {
		t.Fatalf("unreachable portal must not raise: %v", err)
	}
	if conn.Status != portal.StatusFailed {
		t.Errorf("expected FAILED, got %s", conn.Status)
	}
	if conn.ErrorCode != portal.ErrCodeUnreachable {
		t.Errorf("expected %s, got %s", portal.ErrCodeUnreachable, conn.ErrorCode)
	}
}

func TestConnectPortalKeepsEveryAttempt(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.prov.RejectAuth = true
	if _, err := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"}); err != nil {
		t.Fatal(err)
	}

	f.prov.RejectAuth = false
	if _, err := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"}); err != nil {
		t.Fatal(err)
	}

	conns, _ := f.repo.ListByUser(ctx, userID)
	if len(conns) != 2 {
		t.Errorf("every attempt keeps its own row, got %d rows", len(conns))
	}
}

func TestConnectPortalSupersedesActive(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"})
	if err != nil {
		t.Fatal(err)
	}

	old, _ := f.repo.GetByID(ctx, first.ID)
	if old.Status != portal.StatusRevoked {
		t.Errorf("expected first connection REVOKED, got %s", old.Status)
	}
	if active, _ := f.consents.FindActive(ctx, userID, consent.SubjectPortal, first.ID); active != nil {
		t.Error("superseded connection still has an active consent")
	}

	fresh, _ := f.repo.GetByID(ctx, second.ID)
	if fresh.Status != portal.StatusActive {
		t.Errorf("expected second connection ACTIVE, got %s", fresh.Status)
	}
}

func TestSyncPortalInvalidState(t *testing.T) {
	f := newPortalFixture(t)
	f.prov.RejectAuth = true
	ctx := context.Background()
	userID := uuid.New()

	conn, _ := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"})

	_, err := f.svc.Sync(ctx, userID, conn.ID)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for failed connection, got %v", err)
	}
}

func TestSyncPortalFailureIsReported(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	conn, _ := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"})

	f.prov.RecordsErr = errors.New("portal timeout")
	result, err := f.svc.Sync(ctx, userID, conn.ID)
	if err != nil {
		t.Fatalf("portal failure must not surface as error, got %v", err)
	}
	if result.Status != portal.SyncFailed {
		t.Errorf("expected FAILED result, got %s", result.Status)
	}

	stored, _ := f.repo.GetByID(ctx, conn.ID)
	if stored.Status != portal.StatusFailed || stored.ErrorCode != portal.ErrCodeSyncFailed {
		t.Errorf("expected FAILED/%s, got %s/%s", portal.ErrCodeSyncFailed, stored.Status, stored.ErrorCode)
	}
}

func TestDisconnectPortal(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	conn, _ := f.svc.Connect(ctx, userID, portal.ConnectParams{PortalType: "NHIS"})

	if err := f.svc.Disconnect(ctx, userID, conn.ID); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	stored, _ := f.repo.GetByID(ctx, conn.ID)
	if stored.Status != portal.StatusRevoked {
		t.Errorf("expected REVOKED, got %s", stored.Status)
	}
	if stored.Credentials != nil {
		t.Error("credentials must be cleared on disconnect")
	}

	active, _ := f.consents.FindActive(ctx, userID, consent.SubjectPortal, conn.ID)
	if active != nil {
		t.Error("consent should be revoked on disconnect")
	}
}
