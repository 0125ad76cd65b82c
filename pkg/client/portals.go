package client

import (
	"context"
	"fmt"
)

// PortalService handles portal connection API calls
type PortalService struct {
	client *Client
}

// ConnectPortalRequest represents a portal connection request
type ConnectPortalRequest struct {
	PortalType  string            `json:"portalType"`
	PortalID    string            `json:"portalId,omitempty"`
	Credentials map[string]string `json:"credentials"`
}

// List retrieves all portal connection attempts of the current user
func (s *PortalService) List(ctx context.Context) ([]PortalConnection, error) {
	var conns []PortalConnection
	if err := s.client.doRequest(ctx, "GET", "/api/v1/integration/portals", nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// Connect attempts a portal connection. Failed and unsupported attempts come
// back as a connection with a non-active status, not as an error.
func (s *PortalService) Connect(ctx context.Context, req ConnectPortalRequest) (*PortalConnection, error) {
	var conn PortalConnection
	if err := s.client.doRequest(ctx, "POST", "/api/v1/integration/portals", req, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// Sync triggers an on-demand sync for one portal connection
func (s *PortalService) Sync(ctx context.Context, connID string) (*PortalSyncResult, error) {
	var result PortalSyncResult
	path := fmt.Sprintf("/api/v1/integration/portals/%s/sync", connID)
	if err := s.client.doRequest(ctx, "POST", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Disconnect revokes a portal connection
func (s *PortalService) Disconnect(ctx context.Context, connID string) error {
	path := fmt.Sprintf("/api/v1/integration/portals/%s", connID)
	return s.client.doRequest(ctx, "DELETE", path, nil, nil)
}
