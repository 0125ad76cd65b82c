package portal

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewConnectionIsPending(t *testing.T) {
	conn := New(uuid.New(), "NHIS", "nhis-main")
	if conn.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", conn.Status)
	}
	if conn.CanSync() {
		t.Error("pending connection must not be syncable")
	}
}

func TestMarkActiveClearsError(t *testing.T) {
	conn := New(uuid.New(), "NHIS", "")
	conn.MarkFailed(ErrCodeAuthFailed, "portal rejected credentials")

	conn.MarkActive()

	if conn.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", conn.Status)
	}
	if conn.ErrorCode != "" || conn.ErrorMessage != "" {
		t.Error("activation should clear error fields")
	}
	if !conn.CanSync() {
		t.Error("active connection must be syncable")
	}
}

func TestMarkFailedRecordsCodeAndMessage(t *testing.T) {
	conn := New(uuid.New(), "NHIS", "")
	conn.MarkFailed(ErrCodeUnreachable, "connection refused")

	if conn.Status != StatusFailed {
		t.Errorf("expected FAILED, got %s", conn.Status)
	}
	if conn.ErrorCode != ErrCodeUnreachable {
		t.Errorf("expected %s, got %s", ErrCodeUnreachable, conn.ErrorCode)
	}
	if conn.CanSync() {
		t.Error("failed connection must not be syncable")
	}
}

func TestRevokeClearsCredentials(t *testing.T) {
	conn := New(uuid.New(), "NHIS", "")
	token := "portal-session-token"
	conn.Credentials = &token
	conn.MarkActive()

	conn.Revoke()

	if conn.Status != StatusRevoked {
		t.Errorf("expected REVOKED, got %s", conn.Status)
	}
	if conn.Credentials != nil {
		t.Error("revoke must clear credentials")
	}
}

func TestMarkSyncedSetsTimestamp(t *testing.T) {
	conn := New(uuid.New(), "NHIS", "")
	conn.MarkActive()

	now := time.Now()
	conn.MarkSynced(now)

	if conn.LastSyncAt == nil || !conn.LastSyncAt.Equal(now) {
		t.Error("last sync time not recorded")
	}
	if conn.Status != StatusActive {
		t.Errorf("expected ACTIVE after sync, got %s", conn.Status)
	}
}
