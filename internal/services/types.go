package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/provider"
)

// HealthDataSink receives the payloads pulled from vendors and portals.
// The time-series store lives in a separate system; this interface is the
// hand-off point.
type HealthDataSink interface {
	WriteHealthData(ctx context.Context, link *device.DeviceLink, points []provider.HealthDataPoint) error
	WriteCheckupRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.CheckupRecord) error
	WriteMedicalRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.MedicalRecord) error
}

// LoggingSink is the default sink: it logs what would have been stored.
type LoggingSink struct {
	logger *logger.Logger
}

// NewLoggingSink creates a sink that only logs payload counts.
func NewLoggingSink(log *logger.Logger) *LoggingSink {
	return &LoggingSink{logger: log}
}

func (s *LoggingSink) WriteHealthData(ctx context.Context, link *device.DeviceLink, points []provider.HealthDataPoint) error {
	s.logger.WithFields(map[string]interface{}{
		"link_id": link.ID.String(),
		"vendor":  link.Vendor,
		"points":  len(points),
	}).Debug("health data received")
	return nil
}

func (s *LoggingSink) WriteCheckupRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.CheckupRecord) error {
	s.logger.WithFields(map[string]interface{}{
		"connection_id": conn.ID.String(),
		"portal_type":   conn.PortalType,
		"records":       len(records),
	}).Debug("checkup records received")
	return nil
}

func (s *LoggingSink) WriteMedicalRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.MedicalRecord) error {
	s.logger.WithFields(map[string]interface{}{
		"connection_id": conn.ID.String(),
		"portal_type":   conn.PortalType,
		"records":       len(records),
	}).Debug("medical records received")
	return nil
}

var _ HealthDataSink = (*LoggingSink)(nil)

// linkLocks serializes per-link operations so a manual sync and a scheduled
// sync on the same link cannot interleave in-process. Cross-process races are
// caught by the repositories' version checks.
type linkLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLinkLocks() *linkLocks {
	return &linkLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *linkLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// nowFunc lets tests pin the clock
type nowFunc func() time.Time
