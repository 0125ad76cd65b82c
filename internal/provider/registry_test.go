package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/provider/mock"
)

func TestRegistryDeviceLookup(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterDevice(mock.NewDeviceProvider())

	p, err := r.Device("mock")
	if err != nil {
		t.Fatalf("Device(mock) returned error: %v", err)
	}
	if p.Vendor() != "mock" {
		t.Errorf("expected vendor mock, got %s", p.Vendor())
	}

	_, err = r.Device("fitbit")
	if err == nil {
		t.Fatal("expected error for unregistered vendor")
	}
	if !errors.HasCode(err, errors.ErrCodeNotSupported) {
		t.Errorf("expected NOT_SUPPORTED error, got %v", err)
	}
}

func TestRegistryPortalLookup(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterPortal(mock.NewPortalProvider())

	p, err := r.Portal("NHIS")
	if err != nil {
		t.Fatalf("Portal(NHIS) returned error: %v", err)
	}
	if p.PortalType() != "NHIS" {
		t.Errorf("expected portal type NHIS, got %s", p.PortalType())
	}

	_, err = r.Portal("UNKNOWN")
	if !errors.HasCode(err, errors.ErrCodeNotSupported) {
		t.Errorf("expected NOT_SUPPORTED error, got %v", err)
	}
}

func TestRegistrySupportedLists(t *testing.T) {
	r := provider.NewRegistry()
	r.RegisterDevice(mock.NewDeviceProvider())
	r.RegisterPortal(mock.NewPortalProvider())

	vendors := r.SupportedVendors()
	if len(vendors) != 1 || vendors[0] != "mock" {
		t.Errorf("unexpected vendors: %v", vendors)
	}

	portals := r.SupportedPortals()
	if len(portals) != 1 || portals[0] != "NHIS" {
		t.Errorf("unexpected portals: %v", portals)
	}
}

func TestMockDeviceProviderHealthData(t *testing.T) {
	p := mock.NewDeviceProvider()
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	data, err := p.GetHealthData(ctx, "token", start, end)
	if err != nil {
		t.Fatalf("GetHealthData returned error: %v", err)
	}

	// three metric types per day over three days
	if len(data) != 9 {
		t.Fatalf("expected 9 data points, got %d", len(data))
	}

	types := map[string]int{}
	for _, d := range data {
		types[d.MetricType]++
		if d.RecordDate.Before(start) || d.RecordDate.After(end) {
			t.Errorf("data point outside requested window: %v", d.RecordDate)
		}
	}
	for _, mt := range []string{"STEPS", "HEART_RATE", "SLEEP"} {
		if types[mt] != 3 {
			t.Errorf("expected 3 %s points, got %d", mt, types[mt])
		}
	}
}

func TestMockDeviceProviderTokens(t *testing.T) {
	p := mock.NewDeviceProvider()
	ctx := context.Background()

	tokens, err := p.Authorize(ctx, "code", "http://localhost/callback")
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if tokens.ExpiresIn != 3600 {
		t.Errorf("expected 3600s expiry, got %d", tokens.ExpiresIn)
	}

	refreshed, err := p.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken returned error: %v", err)
	}
	if refreshed.RefreshToken != tokens.RefreshToken {
		t.Error("refresh should preserve the refresh token")
	}
	if refreshed.AccessToken == tokens.AccessToken {
		t.Error("refresh should rotate the access token")
	}
}

func TestMockPortalProviderRecords(t *testing.T) {
	p := mock.NewPortalProvider()
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	checkups, err := p.GetCheckupRecords(ctx, "token", start, end)
	if err != nil {
		t.Fatalf("GetCheckupRecords returned error: %v", err)
	}
	if len(checkups) != 3 {
		t.Errorf("expected 3 checkup records, got %d", len(checkups))
	}
	for _, c := range checkups {
		if c.CheckupDate.Day() != 15 {
			t.Errorf("checkup on unexpected day: %v", c.CheckupDate)
		}
	}

	visits, err := p.GetMedicalRecords(ctx, "token", start, end)
	if err != nil {
		t.Fatalf("GetMedicalRecords returned error: %v", err)
	}
	if len(visits) != 5 {
		t.Errorf("expected 5 medical records, got %d", len(visits))
	}
	for _, v := range visits {
		if v.VisitDate.Day()%10 != 0 {
			t.Errorf("visit on unexpected day: %v", v.VisitDate)
		}
	}
}
