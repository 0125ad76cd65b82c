package client

import (
	"context"
	"fmt"
)

// ConsentService handles consent ledger API calls
type ConsentService struct {
	client *Client
}

// RevokeConsentRequest represents a consent revocation request
type RevokeConsentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// List retrieves the consent ledger of the current user
func (s *ConsentService) List(ctx context.Context) ([]Consent, error) {
	var consents []Consent
	if err := s.client.doRequest(ctx, "GET", "/api/v1/integration/consents", nil, &consents); err != nil {
		return nil, err
	}
	return consents, nil
}

// Revoke withdraws a consent
func (s *ConsentService) Revoke(ctx context.Context, consentID, reason string) error {
	path := fmt.Sprintf("/api/v1/integration/consents/%s/revoke", consentID)
	return s.client.doRequest(ctx, "POST", path, RevokeConsentRequest{Reason: reason}, nil)
}
