// Package testutil provides in-memory repositories, fake providers and a
// capturing sink for tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	apperrors "github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/provider"
)

// ---------------------------------------------------------------------------
// Device repository

// DeviceRepo is an in-memory device.Repository with optimistic versioning.
type DeviceRepo struct {
	mu    sync.Mutex
	links map[uuid.UUID]*device.DeviceLink
}

// NewDeviceRepo creates an empty in-memory device repository.
func NewDeviceRepo() *DeviceRepo {
	return &DeviceRepo{links: make(map[uuid.UUID]*device.DeviceLink)}
}

func (r *DeviceRepo) Create(ctx context.Context, link *device.DeviceLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.Version = 1
	cp := *link
	r.links[link.ID] = &cp
	return nil
}

func (r *DeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *DeviceRepo) GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok && l.UserID == userID {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *DeviceRepo) GetByUserAndVendor(ctx context.Context, userID uuid.UUID, vendor string) (*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.UserID == userID && l.Vendor == vendor && l.Status != device.StatusRevoked {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *DeviceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*device.DeviceLink
	for _, l := range r.links {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *DeviceRepo) Update(ctx context.Context, link *device.DeviceLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.links[link.ID]
	if !ok {
		return apperrors.NotFound("device link")
	}
	if stored.Version != link.Version {
		return apperrors.Conflict("device link was modified concurrently")
	}
	link.Version++
	link.UpdatedAt = time.Now()
	cp := *link
	r.links[link.ID] = &cp
	return nil
}

func (r *DeviceRepo) ListNeedingSync(ctx context.Context, since time.Time) ([]*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*device.DeviceLink
	for _, l := range r.links {
		if l.Status != device.StatusActive {
			continue
		}
		if l.LastSyncAt == nil || l.LastSyncAt.Before(since) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *DeviceRepo) ListNeedingTokenRefresh(ctx context.Context, threshold time.Time) ([]*device.DeviceLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*device.DeviceLink
	for _, l := range r.links {
		if l.Status == device.StatusActive && l.TokenExpiresAt.Before(threshold) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ device.Repository = (*DeviceRepo)(nil)

// ---------------------------------------------------------------------------
// Portal repository

// PortalRepo is an in-memory portal.Repository.
type PortalRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*portal.PortalConnection
}

// NewPortalRepo creates an empty in-memory portal repository.
func NewPortalRepo() *PortalRepo {
	return &PortalRepo{conns: make(map[uuid.UUID]*portal.PortalConnection)}
}

func (r *PortalRepo) Create(ctx context.Context, conn *portal.PortalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	conn.Version = 1
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *PortalRepo) GetByID(ctx context.Context, id uuid.UUID) (*portal.PortalConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *PortalRepo) GetByUserAndID(ctx context.Context, userID, id uuid.UUID) (*portal.PortalConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok && c.UserID == userID {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *PortalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*portal.PortalConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*portal.PortalConnection
	for _, c := range r.conns {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PortalRepo) ListByUserAndType(ctx context.Context, userID uuid.UUID, portalType string) ([]*portal.PortalConnection, error) {
	all, _ := r.ListByUser(ctx, userID)
	var out []*portal.PortalConnection
	for _, c := range all {
		if c.PortalType == portalType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *PortalRepo) Update(ctx context.Context, conn *portal.PortalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.conns[conn.ID]
	if !ok {
		return apperrors.NotFound("portal connection")
	}
	if stored.Version != conn.Version {
		return apperrors.Conflict("portal connection was modified concurrently")
	}
	conn.Version++
	conn.UpdatedAt = time.Now()
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

var _ portal.Repository = (*PortalRepo)(nil)

// ---------------------------------------------------------------------------
// Consent repository

// ConsentRepo is an in-memory consent.Repository.
type ConsentRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*consent.ConsentRecord
}

// NewConsentRepo creates an empty in-memory consent repository.
func NewConsentRepo() *ConsentRepo {
	return &ConsentRepo{records: make(map[uuid.UUID]*consent.ConsentRecord)}
}

func (r *ConsentRepo) Create(ctx context.Context, record *consent.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	cp := *record
	r.records[record.ID] = &cp
	return nil
}

func (r *ConsentRepo) GetByID(ctx context.Context, id uuid.UUID) (*consent.ConsentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (r *ConsentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*consent.ConsentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*consent.ConsentRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConsentedAt.After(out[j].ConsentedAt) })
	return out, nil
}

func (r *ConsentRepo) FindActive(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID) (*consent.ConsentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.UserID == userID && rec.SubjectType == subjectType && rec.SubjectID == subjectID && rec.Status == consent.StatusActive {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ConsentRepo) ExistsActive(ctx context.Context, userID uuid.UUID, subjectType consent.SubjectType, subjectID uuid.UUID) (bool, error) {
	rec, err := r.FindActive(ctx, userID, subjectType, subjectID)
	return rec != nil, err
}

func (r *ConsentRepo) Update(ctx context.Context, record *consent.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.ID]; !ok {
		return apperrors.NotFound("consent")
	}
	record.UpdatedAt = time.Now()
	cp := *record
	r.records[record.ID] = &cp
	return nil
}

var _ consent.Repository = (*ConsentRepo)(nil)

// ---------------------------------------------------------------------------
// Fake providers

// FakeDeviceProvider is a programmable device provider. Zero value behaves
// like a healthy vendor returning PointCount data points per call.
type FakeDeviceProvider struct {
	mu           sync.Mutex
	VendorName   string
	AuthorizeErr error
	RefreshErr   error
	DataErr      error
	RevokeErr    error
	ExpiresIn    int64
	PointCount   int

	AuthorizeCalls int
	RefreshCalls   int
	DataCalls      int
	RevokeCalls    int
}

func (f *FakeDeviceProvider) vendor() string {
	if f.VendorName == "" {
		return "mock"
	}
	return f.VendorName
}

func (f *FakeDeviceProvider) expiresIn() int64 {
	if f.ExpiresIn == 0 {
		return 3600
	}
	return f.ExpiresIn
}

func (f *FakeDeviceProvider) Authorize(ctx context.Context, authCode, redirectURI string) (*provider.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthorizeCalls++
	if f.AuthorizeErr != nil {
		return nil, f.AuthorizeErr
	}
	return &provider.TokenSet{
		AccessToken:  "access-" + uuid.New().String(),
		RefreshToken: "refresh-" + uuid.New().String(),
		ExpiresIn:    f.expiresIn(),
		TokenType:    "Bearer",
	}, nil
}

func (f *FakeDeviceProvider) RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	return &provider.TokenSet{
		AccessToken:  "access-" + uuid.New().String(),
		RefreshToken: refreshToken,
		ExpiresIn:    f.expiresIn(),
		TokenType:    "Bearer",
	}, nil
}

func (f *FakeDeviceProvider) GetHealthData(ctx context.Context, accessToken string, start, end time.Time) ([]provider.HealthDataPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DataCalls++
	if f.DataErr != nil {
		return nil, f.DataErr
	}
	n := f.PointCount
	if n == 0 {
		n = 3
	}
	points := make([]provider.HealthDataPoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, provider.HealthDataPoint{
			RecordDate: start,
			MetricType: "STEPS",
			Values:     map[string]interface{}{"steps": 5000 + i},
			MeasuredAt: start,
		})
	}
	return points, nil
}

func (f *FakeDeviceProvider) RevokeAccess(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RevokeCalls++
	return f.RevokeErr
}

func (f *FakeDeviceProvider) Vendor() string { return f.vendor() }

func (f *FakeDeviceProvider) SupportedDataTypes() []string {
	return []string{"STEPS", "HEART_RATE", "SLEEP"}
}

var _ provider.DeviceDataProvider = (*FakeDeviceProvider)(nil)

// FakePortalProvider is a programmable portal provider. Zero value behaves
// like a healthy portal accepting every credential.
type FakePortalProvider struct {
	mu           sync.Mutex
	TypeName     string
	AuthErr      error
	RejectAuth   bool
	RecordsErr   error
	CheckupCount int
	MedicalCount int

	AuthCalls    int
	RecordsCalls int
}

func (f *FakePortalProvider) portalType() string {
	if f.TypeName == "" {
		return "NHIS"
	}
	return f.TypeName
}

func (f *FakePortalProvider) Authenticate(ctx context.Context, credentials map[string]string) (*provider.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	if f.AuthErr != nil {
		return nil, f.AuthErr
	}
	if f.RejectAuth {
		return &provider.AuthResult{Success: false}, nil
	}
	return &provider.AuthResult{
		Token:        "portal-token-" + uuid.New().String(),
		PortalUserID: "portal-user",
		PortalName:   "Test Portal",
		Success:      true,
	}, nil
}

func (f *FakePortalProvider) GetCheckupRecords(ctx context.Context, token string, start, end time.Time) ([]provider.CheckupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RecordsCalls++
	if f.RecordsErr != nil {
		return nil, f.RecordsErr
	}
	records := make([]provider.CheckupRecord, 0, f.CheckupCount)
	for i := 0; i < f.CheckupCount; i++ {
		records = append(records, provider.CheckupRecord{
			CheckupDate:     start,
			InstitutionName: "Test Portal",
			CheckupType:     "general",
		})
	}
	return records, nil
}

func (f *FakePortalProvider) GetMedicalRecords(ctx context.Context, token string, start, end time.Time) ([]provider.MedicalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RecordsErr != nil {
		return nil, f.RecordsErr
	}
	records := make([]provider.MedicalRecord, 0, f.MedicalCount)
	for i := 0; i < f.MedicalCount; i++ {
		records = append(records, provider.MedicalRecord{
			VisitDate:       start,
			InstitutionName: "Test Hospital",
			Department:      "internal medicine",
		})
	}
	return records, nil
}

func (f *FakePortalProvider) PortalType() string { return f.portalType() }

var _ provider.PortalDataProvider = (*FakePortalProvider)(nil)

// ---------------------------------------------------------------------------
// Capture sink

// CaptureSink records everything written to it.
type CaptureSink struct {
	mu             sync.Mutex
	HealthData     []provider.HealthDataPoint
	CheckupRecords []provider.CheckupRecord
	MedicalRecords []provider.MedicalRecord
	WriteErr       error
}

func (s *CaptureSink) WriteHealthData(ctx context.Context, link *device.DeviceLink, points []provider.HealthDataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.HealthData = append(s.HealthData, points...)
	return nil
}

func (s *CaptureSink) WriteCheckupRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.CheckupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.CheckupRecords = append(s.CheckupRecords, records...)
	return nil
}

func (s *CaptureSink) WriteMedicalRecords(ctx context.Context, conn *portal.PortalConnection, records []provider.MedicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.MedicalRecords = append(s.MedicalRecords, records...)
	return nil
}
