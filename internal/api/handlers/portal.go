package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/api/dto"
	"github.com/vibehealth/healthsync/internal/api/middleware"
	"github.com/vibehealth/healthsync/internal/domain/portal"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/utils"
	"github.com/vibehealth/healthsync/internal/pkg/validator"
)

// PortalHandler handles health portal endpoints
type PortalHandler struct {
	service   portal.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewPortalHandler creates a new portal handler
func NewPortalHandler(service portal.Service, log *logger.Logger, val *validator.Validator) *PortalHandler {
	return &PortalHandler{
		service:   service,
		logger:    log,
		validator: val,
	}
}

// List returns all portal connection attempts of the authenticated user
// @Summary List portal connections
// @Description Get all health portal connection attempts of the current user
// @Tags Portals
// @Produce json
// @Success 200 {array} dto.PortalConnectionDTO "List of portal connections"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /integration/portals [get]
func (h *PortalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	conns, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list portal connections")
		utils.HandleServiceError(w, err)
		return
	}

	dtos := make([]dto.PortalConnectionDTO, len(conns))
	for i, c := range conns {
		dtos[i] = toPortalDTO(c)
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Connect attempts a portal connection. The outcome is always recorded:
// unsupported portals and rejected credentials come back as 200 with a
// non-active status rather than an error.
// @Summary Connect a health portal
// @Description Authenticate against a health portal and record the outcome
// @Tags Portals
// @Accept json
// @Produce json
// @Param request body dto.ConnectPortalRequest true "Portal connection request"
// @Success 201 {object} dto.PortalConnectionDTO "Connection attempt recorded"
// @Failure 400 {object} utils.ErrorResponse "Invalid request or validation error"
// @Security BearerAuth
// @Router /integration/portals [post]
func (h *PortalHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req dto.ConnectPortalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	conn, err := h.service.Connect(r.Context(), userID, portal.ConnectParams{
		PortalType:  req.PortalType,
		PortalID:    req.PortalID,
		Credentials: req.Credentials,
	})
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to connect portal")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, toPortalDTO(conn))
}

// Sync triggers an on-demand sync for one portal connection
// @Summary Sync a portal
// @Description Pull checkup and medical records for one portal connection
// @Tags Portals
// @Produce json
// @Param id path string true "Portal connection ID"
// @Success 200 {object} dto.PortalSyncResponse "Sync outcome"
// @Failure 404 {object} utils.ErrorResponse "Portal connection not found"
// @Failure 409 {object} utils.ErrorResponse "Connection not eligible for sync"
// @Security BearerAuth
// @Router /integration/portals/{id}/sync [post]
func (h *PortalHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	connID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid portal connection ID"))
		return
	}

	result, err := h.service.Sync(r.Context(), userID, connID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to sync portal")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.PortalSyncResponse{
		ConnectionID: result.ConnectionID.String(),
		PortalType:   result.PortalType,
		Status:       result.Status,
		CheckupCount: result.CheckupCount,
		MedicalCount: result.MedicalCount,
		Errors:       result.Errors,
		SyncedAt:     result.SyncedAt,
	})
}

// Disconnect revokes a portal connection
// @Summary Disconnect a portal
// @Description Revoke a portal connection and its consent
// @Tags Portals
// @Produce json
// @Param id path string true "Portal connection ID"
// @Success 200 {object} utils.SuccessResponse "Portal disconnected"
// @Failure 404 {object} utils.ErrorResponse "Portal connection not found"
// @Security BearerAuth
// @Router /integration/portals/{id} [delete]
func (h *PortalHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	connID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid portal connection ID"))
		return
	}

	if err := h.service.Disconnect(r.Context(), userID, connID); err != nil {
		h.logger.ErrorWithErr(err, "Failed to disconnect portal")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Portal disconnected successfully", nil)
}

func toPortalDTO(c *portal.PortalConnection) dto.PortalConnectionDTO {
	return dto.PortalConnectionDTO{
		ID:           c.ID.String(),
		PortalType:   c.PortalType,
		PortalID:     c.PortalID,
		PortalName:   c.PortalName,
		Status:       string(c.Status),
		ErrorCode:    c.ErrorCode,
		ErrorMessage: c.ErrorMessage,
		LastSyncAt:   c.LastSyncAt,
		CreatedAt:    c.CreatedAt,
	}
}
