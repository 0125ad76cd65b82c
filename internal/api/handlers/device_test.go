package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/api/middleware"
	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/validator"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/services"
	"github.com/vibehealth/healthsync/internal/testutil"
)

func newDeviceHandler(t *testing.T) (*DeviceHandler, device.Service) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	deviceRepo := testutil.NewDeviceRepo()
	consentRepo := testutil.NewConsentRepo()
	portalRepo := testutil.NewPortalRepo()
	prov := &testutil.FakeDeviceProvider{}
	sink := &testutil.CaptureSink{}

	registry := provider.NewRegistry()
	registry.RegisterDevice(prov)

	consentSvc := services.NewConsentService(consentRepo, deviceRepo, portalRepo, log)
	svc := services.NewDeviceService(deviceRepo, consentSvc, consentRepo, registry, sink, log,
		"http://localhost:8080/callback", 7*24*time.Hour)

	return NewDeviceHandler(svc, log, validator.New()), svc
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestDeviceHandler_Connect(t *testing.T) {
	handler, _ := newDeviceHandler(t)
	userID := uuid.New()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "connect succeeds",
			body:           `{"vendor":"mock","deviceType":"watch","authCode":"code"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "duplicate vendor conflicts",
			body:           `{"vendor":"mock","deviceType":"watch","authCode":"code"}`,
			expectedStatus: http.StatusConflict,
			expectedCode:   "CONFLICT",
		},
		{
			name:           "unknown vendor is unprocessable",
			body:           `{"vendor":"nosuch","deviceType":"watch","authCode":"code"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "NOT_SUPPORTED",
		},
		{
			name:           "missing auth code fails validation",
			body:           `{"vendor":"mock","deviceType":"watch"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "malformed body is rejected",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/v1/integration/devices", []byte(tt.body), userID)
			rr := httptest.NewRecorder()

			handler.Connect(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v (body %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}

			if tt.expectedCode != "" {
				var response struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if response.Error.Code != tt.expectedCode {
					t.Errorf("expected error code %s, got %s", tt.expectedCode, response.Error.Code)
				}
			}
		})
	}
}

func TestDeviceHandler_List(t *testing.T) {
	handler, svc := newDeviceHandler(t)
	userID := uuid.New()

	if _, err := svc.Connect(context.Background(), userID, device.ConnectParams{
		Vendor: "mock", DeviceType: "watch", AuthCode: "code",
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	req := authedRequest(http.MethodGet, "/api/v1/integration/devices", nil, userID)
	rr := httptest.NewRecorder()

	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var response struct {
		Success bool `json:"success"`
		Data    []struct {
			Vendor string `json:"vendor"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Error("expected success envelope")
	}
	if len(response.Data) != 1 {
		t.Fatalf("expected 1 link, got %d", len(response.Data))
	}
	if response.Data[0].Vendor != "mock" || response.Data[0].Status != "ACTIVE" {
		t.Errorf("unexpected link payload: %+v", response.Data[0])
	}
}

func TestDeviceHandler_Sync_NotFound(t *testing.T) {
	handler, _ := newDeviceHandler(t)
	userID := uuid.New()
	linkID := uuid.New()

	req := authedRequest(http.MethodPost, "/api/v1/integration/devices/"+linkID.String()+"/sync", nil, userID)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", linkID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	handler.Sync(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
}
