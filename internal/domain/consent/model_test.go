package consent

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/pkg/errors"
)

func TestGrantDeviceDefaults(t *testing.T) {
	now := time.Now()
	userID, deviceID := uuid.New(), uuid.New()

	c := GrantDevice(userID, deviceID, Scope{DataTypes: []string{"steps"}}, now)

	if c.Status != StatusActive {
		t.Errorf("expected ACTIVE, got %s", c.Status)
	}
	if c.ConsentType != TypeDataCollection {
		t.Errorf("device consent must be DATA_COLLECTION, got %s", c.ConsentType)
	}
	if c.SubjectType != SubjectDevice {
		t.Errorf("expected DEVICE subject, got %s", c.SubjectType)
	}
	if c.ConsentVersion != CurrentVersion {
		t.Errorf("expected version %s, got %s", CurrentVersion, c.ConsentVersion)
	}
	if c.Scope.Version != CurrentVersion {
		t.Errorf("scope version should default to %s, got %s", CurrentVersion, c.Scope.Version)
	}
	if !c.ConsentedAt.Equal(now) {
		t.Error("consentedAt not stamped")
	}
}

func TestGrantFamilyBoardIsSharing(t *testing.T) {
	c := GrantFamilyBoard(uuid.New(), uuid.New(), Scope{}, time.Now())
	if c.ConsentType != TypeDataSharing {
		t.Errorf("family board consent must be DATA_SHARING, got %s", c.ConsentType)
	}
}

func TestRevokeIsOneWay(t *testing.T) {
	now := time.Now()
	c := GrantDevice(uuid.New(), uuid.New(), Scope{}, now)

	if err := c.Revoke("user request", now); err != nil {
		t.Fatalf("revoke of active consent failed: %v", err)
	}
	if c.Status != StatusRevoked {
		t.Errorf("expected REVOKED, got %s", c.Status)
	}
	if c.RevokedAt == nil || c.RevokeReason != "user request" {
		t.Error("revocation metadata not recorded")
	}

	err := c.Revoke("again", now)
	if err == nil {
		t.Fatal("second revoke must fail")
	}
	if !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
}

func TestExpireOnlyAffectsActive(t *testing.T) {
	now := time.Now()
	c := GrantDevice(uuid.New(), uuid.New(), Scope{}, now)

	c.Expire()
	if c.Status != StatusExpired {
		t.Errorf("expected EXPIRED, got %s", c.Status)
	}

	if err := c.Revoke("late", now); err == nil {
		t.Error("expired consent must not be revocable")
	}

	r := GrantDevice(uuid.New(), uuid.New(), Scope{}, now)
	_ = r.Revoke("user request", now)
	r.Expire()
	if r.Status != StatusRevoked {
		t.Error("expire must not overwrite a revoked consent")
	}
}

func TestAllowsDataType(t *testing.T) {
	c := GrantDevice(uuid.New(), uuid.New(), Scope{DataTypes: []string{"steps", "sleep"}}, time.Now())

	if !c.AllowsDataType("steps") {
		t.Error("steps should be allowed")
	}
	if c.AllowsDataType("heartRate") {
		t.Error("heartRate should not be allowed")
	}

	empty := GrantDevice(uuid.New(), uuid.New(), Scope{}, time.Now())
	if empty.AllowsDataType("steps") {
		t.Error("empty scope allows nothing")
	}
}
