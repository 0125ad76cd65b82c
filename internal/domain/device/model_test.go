package device

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewLinkDefaults(t *testing.T) {
	userID := uuid.New()
	link := New(userID, "mock", "watch")

	if link.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", link.Status)
	}
	if link.SyncConfig.Frequency != "hourly" {
		t.Errorf("expected hourly sync, got %s", link.SyncConfig.Frequency)
	}
	if link.SyncConfig.BatchSize != 1000 {
		t.Errorf("expected batch size 1000, got %d", link.SyncConfig.BatchSize)
	}
	if len(link.SyncConfig.DataTypes) != 3 {
		t.Errorf("expected 3 default data types, got %v", link.SyncConfig.DataTypes)
	}
}

func TestSetTokensActivates(t *testing.T) {
	link := New(uuid.New(), "mock", "watch")
	link.ErrorMessage = "stale"

	expiresAt := time.Now().Add(time.Hour)
	link.SetTokens("access", "refresh", expiresAt)

	if link.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", link.Status)
	}
	if link.AccessToken == nil || *link.AccessToken != "access" {
		t.Error("access token not stored")
	}
	if link.ErrorMessage != "" {
		t.Error("error message should be cleared")
	}
}

func TestRefreshTokensKeepsRefreshWhenEmpty(t *testing.T) {
	link := New(uuid.New(), "mock", "watch")
	link.SetTokens("a1", "r1", time.Now().Add(time.Hour))

	link.RefreshTokens("a2", "", time.Now().Add(2*time.Hour))
	if *link.RefreshToken != "r1" {
		t.Errorf("empty refresh token should keep the old one, got %s", *link.RefreshToken)
	}

	link.RefreshTokens("a3", "r2", time.Now().Add(3*time.Hour))
	if *link.RefreshToken != "r2" {
		t.Errorf("new refresh token should replace the old one, got %s", *link.RefreshToken)
	}
}

func TestRevokeClearsTokens(t *testing.T) {
	link := New(uuid.New(), "mock", "watch")
	link.SetTokens("access", "refresh", time.Now().Add(time.Hour))

	link.Revoke()

	if link.Status != StatusRevoked {
		t.Errorf("expected REVOKED, got %s", link.Status)
	}
	if link.AccessToken != nil || link.RefreshToken != nil {
		t.Error("revoke must clear both tokens")
	}
}

func TestCanSync(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    Status
		expiresAt time.Time
		want      bool
	}{
		{"active with valid token", StatusActive, now.Add(time.Hour), true},
		{"active with expired token", StatusActive, now.Add(-time.Minute), false},
		{"pending", StatusPending, now.Add(time.Hour), false},
		{"revoked", StatusRevoked, now.Add(time.Hour), false},
		{"error", StatusError, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := New(uuid.New(), "mock", "watch")
			link.Status = tt.status
			link.TokenExpiresAt = tt.expiresAt
			if got := link.CanSync(now); got != tt.want {
				t.Errorf("CanSync() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsTokenRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	link := New(uuid.New(), "mock", "watch")

	link.TokenExpiresAt = now.Add(30 * time.Minute)
	if !link.NeedsTokenRefresh(now, time.Hour) {
		t.Error("token expiring in 30m should need refresh with 1h lookahead")
	}

	link.TokenExpiresAt = now.Add(2 * time.Hour)
	if link.NeedsTokenRefresh(now, time.Hour) {
		t.Error("token expiring in 2h should not need refresh with 1h lookahead")
	}
}

func TestMarkSyncedClearsError(t *testing.T) {
	link := New(uuid.New(), "mock", "watch")
	link.MarkError("vendor timeout")
	if link.Status != StatusError {
		t.Fatalf("expected ERROR, got %s", link.Status)
	}

	now := time.Now()
	link.MarkSynced(now)

	if link.Status != StatusActive {
		t.Errorf("expected ACTIVE after sync, got %s", link.Status)
	}
	if link.LastSyncAt == nil || !link.LastSyncAt.Equal(now) {
		t.Error("last sync time not recorded")
	}
	if link.ErrorMessage != "" {
		t.Error("error message should be cleared")
	}
}
