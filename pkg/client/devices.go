package client

import (
	"context"
	"fmt"
)

// DeviceService handles device link API calls
type DeviceService struct {
	client *Client
}

// ConnectDeviceRequest represents a device connection request
type ConnectDeviceRequest struct {
	Vendor           string   `json:"vendor"`
	DeviceType       string   `json:"deviceType"`
	AuthCode         string   `json:"authCode"`
	ConsentDataTypes []string `json:"consentDataTypes,omitempty"`
	ConsentFrequency string   `json:"consentFrequency,omitempty"`
	RetentionPeriod  string   `json:"retentionPeriod,omitempty"`
}

// List retrieves all device links of the current user
func (s *DeviceService) List(ctx context.Context) ([]DeviceLink, error) {
	var links []DeviceLink
	if err := s.client.doRequest(ctx, "GET", "/api/v1/integration/devices", nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// Connect links a new device
func (s *DeviceService) Connect(ctx context.Context, req ConnectDeviceRequest) (*DeviceLink, error) {
	var link DeviceLink
	if err := s.client.doRequest(ctx, "POST", "/api/v1/integration/devices", req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// Sync triggers an on-demand sync for one device link
func (s *DeviceService) Sync(ctx context.Context, linkID string) (*DeviceSyncResult, error) {
	var result DeviceSyncResult
	path := fmt.Sprintf("/api/v1/integration/devices/%s/sync", linkID)
	if err := s.client.doRequest(ctx, "POST", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Disconnect revokes a device link
func (s *DeviceService) Disconnect(ctx context.Context, linkID string) error {
	path := fmt.Sprintf("/api/v1/integration/devices/%s", linkID)
	return s.client.doRequest(ctx, "DELETE", path, nil, nil)
}
