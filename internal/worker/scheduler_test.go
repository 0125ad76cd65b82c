package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/services"
	"github.com/vibehealth/healthsync/internal/testutil"
)

type schedulerFixture struct {
	repo     *testutil.DeviceRepo
	consents *testutil.ConsentRepo
	prov     *testutil.FakeDeviceProvider
	s        *Scheduler
}

func newScheduler(t *testing.T, repo *testutil.DeviceRepo, prov *testutil.FakeDeviceProvider) *schedulerFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	registry := provider.NewRegistry()
	registry.RegisterDevice(prov)

	consents := testutil.NewConsentRepo()
	portals := testutil.NewPortalRepo()
	consentSvc := services.NewConsentService(consents, repo, portals, log)
	sink := &testutil.CaptureSink{}
	deviceSvc := services.NewDeviceService(repo, consentSvc, consents, registry, sink, log,
		"http://localhost/callback", 7*24*time.Hour)

	return &schedulerFixture{
		repo:     repo,
		consents: consents,
		prov:     prov,
		s:        New(repo, deviceSvc, log, Config{}),
	}
}

func (f *schedulerFixture) activeLink(t *testing.T, vendor string, expiresAt time.Time) *device.DeviceLink {
	t.Helper()
	link := device.New(uuid.New(), vendor, "watch")
	link.SetTokens("access", "refresh", expiresAt)
	if err := f.repo.Create(context.Background(), link); err != nil {
		t.Fatal(err)
	}
	grant := consent.GrantDevice(link.UserID, link.ID,
		consent.Scope{DataTypes: []string{"STEPS", "HEART_RATE", "SLEEP"}}, time.Now())
	if err := f.consents.Create(context.Background(), grant); err != nil {
		t.Fatal(err)
	}
	return link
}

func TestRunSyncPassIsolatesFailures(t *testing.T) {
	repo := testutil.NewDeviceRepo()
	prov := &testutil.FakeDeviceProvider{}
	f := newScheduler(t, repo, prov)

	healthy1 := f.activeLink(t, "mock", time.Now().Add(2*time.Hour))
	broken := f.activeLink(t, "mock", time.Now().Add(2*time.Hour))
	healthy2 := f.activeLink(t, "mock", time.Now().Add(2*time.Hour))

	// the broken link's token is expired, so its sync fails the CanSync gate
	stored, _ := repo.GetByID(context.Background(), broken.ID)
	stored.TokenExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Update(context.Background(), stored); err != nil {
		t.Fatal(err)
	}

	succeeded, failed := f.s.RunSyncPass(context.Background())
	if succeeded != 2 || failed != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d/%d", succeeded, failed)
	}

	for _, id := range []uuid.UUID{healthy1.ID, healthy2.ID} {
		l, _ := repo.GetByID(context.Background(), id)
		if l.LastSyncAt == nil {
			t.Error("healthy link was not synced")
		}
	}
}

func TestRunSyncPassSkipsRecentlySynced(t *testing.T) {
	repo := testutil.NewDeviceRepo()
	prov := &testutil.FakeDeviceProvider{}
	f := newScheduler(t, repo, prov)

	link := f.activeLink(t, "mock", time.Now().Add(2*time.Hour))
	stored, _ := repo.GetByID(context.Background(), link.ID)
	stored.MarkSynced(time.Now())
	if err := repo.Update(context.Background(), stored); err != nil {
		t.Fatal(err)
	}

	succeeded, failed := f.s.RunSyncPass(context.Background())
	if succeeded != 0 || failed != 0 {
		t.Errorf("freshly synced link should be skipped, got %d/%d", succeeded, failed)
	}
	if prov.DataCalls != 0 {
		t.Errorf("no provider call expected, got %d", prov.DataCalls)
	}
}

func TestRunRefreshPass(t *testing.T) {
	repo := testutil.NewDeviceRepo()
	prov := &testutil.FakeDeviceProvider{}
	f := newScheduler(t, repo, prov)

	expiring := f.activeLink(t, "mock", time.Now().Add(30*time.Minute))
	fresh := f.activeLink(t, "mock", time.Now().Add(3*time.Hour))

	succeeded, failed := f.s.RunRefreshPass(context.Background())
	if succeeded != 1 || failed != 0 {
		t.Errorf("expected 1 refresh, got %d/%d", succeeded, failed)
	}
	if prov.RefreshCalls != 1 {
		t.Errorf("expected 1 provider refresh call, got %d", prov.RefreshCalls)
	}

	l, _ := repo.GetByID(context.Background(), expiring.ID)
	if !l.TokenExpiresAt.After(time.Now().Add(50 * time.Minute)) {
		t.Error("expiring link did not get a fresh token")
	}

	untouched, _ := repo.GetByID(context.Background(), fresh.ID)
	if untouched.Version != 1 {
		t.Error("fresh link must not be touched")
	}
}

func TestRunRefreshPassIsolatesFailures(t *testing.T) {
	repo := testutil.NewDeviceRepo()
	prov := &testutil.FakeDeviceProvider{RefreshErr: errors.New("invalid_grant")}
	f := newScheduler(t, repo, prov)

	f.activeLink(t, "mock", time.Now().Add(10*time.Minute))
	f.activeLink(t, "mock", time.Now().Add(10*time.Minute))

	succeeded, failed := f.s.RunRefreshPass(context.Background())
	if succeeded != 0 || failed != 2 {
		t.Errorf("expected 2 isolated failures, got %d/%d", succeeded, failed)
	}
}
