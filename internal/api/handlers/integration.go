package handlers

import (
	"net/http"

	"github.com/vibehealth/healthsync/internal/api/dto"
	"github.com/vibehealth/healthsync/internal/pkg/utils"
	"github.com/vibehealth/healthsync/internal/provider"
)

// IntegrationHandler exposes the provider catalog
type IntegrationHandler struct {
	registry *provider.Registry
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(registry *provider.Registry) *IntegrationHandler {
	return &IntegrationHandler{registry: registry}
}

// Supported returns the vendors and portals the service can talk to
// @Summary List supported integrations
// @Description Get the device vendors and health portals available for connection
// @Tags Integration
// @Produce json
// @Success 200 {object} dto.SupportedIntegrationsResponse "Supported integrations"
// @Security BearerAuth
// @Router /integration/supported [get]
func (h *IntegrationHandler) Supported(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, dto.SupportedIntegrationsResponse{
		Vendors: h.registry.SupportedVendors(),
		Portals: h.registry.SupportedPortals(),
	})
}
