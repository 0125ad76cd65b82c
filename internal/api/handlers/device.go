package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/api/dto"
	"github.com/vibehealth/healthsync/internal/api/middleware"
	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/utils"
	"github.com/vibehealth/healthsync/internal/pkg/validator"
)

// DeviceHandler handles device link endpoints
type DeviceHandler struct {
	service   device.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(service device.Service, log *logger.Logger, val *validator.Validator) *DeviceHandler {
	return &DeviceHandler{
		service:   service,
		logger:    log,
		validator: val,
	}
}

// List returns all device links of the authenticated user
// @Summary List device links
// @Description Get all wearable device links of the current user
// @Tags Devices
// @Produce json
// @Success 200 {array} dto.DeviceLinkDTO "List of device links"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /integration/devices [get]
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	links, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list device links")
		utils.HandleServiceError(w, err)
		return
	}

	dtos := make([]dto.DeviceLinkDTO, len(links))
	for i, l := range links {
		dtos[i] = toDeviceDTO(l)
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Connect links a new device
// @Summary Connect a device
// @Description Exchange an OAuth authorization code for a device link
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body dto.ConnectDeviceRequest true "Device connection request"
// @Success 201 {object} dto.DeviceLinkDTO "Device linked"
// @Failure 400 {object} utils.ErrorResponse "Invalid request or validation error"
// @Failure 409 {object} utils.ErrorResponse "Vendor already linked"
// @Failure 422 {object} utils.ErrorResponse "Unsupported vendor"
// @Security BearerAuth
// @Router /integration/devices [post]
func (h *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req dto.ConnectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	link, err := h.service.Connect(r.Context(), userID, device.ConnectParams{
		Vendor:           req.Vendor,
		DeviceType:       req.DeviceType,
		AuthCode:         req.AuthCode,
		ConsentDataTypes: req.ConsentDataTypes,
		ConsentFrequency: req.ConsentFrequency,
		RetentionPeriod:  req.RetentionPeriod,
	})
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to connect device")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, toDeviceDTO(link))
}

// Sync triggers an on-demand sync for one device link
// @Summary Sync a device
// @Description Pull health data from the vendor for one device link
// @Tags Devices
// @Produce json
// @Param id path string true "Device link ID"
// @Success 200 {object} dto.DeviceSyncResponse "Sync outcome"
// @Failure 404 {object} utils.ErrorResponse "Device link not found"
// @Failure 409 {object} utils.ErrorResponse "Link not eligible for sync"
// @Security BearerAuth
// @Router /integration/devices/{id}/sync [post]
func (h *DeviceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	linkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid device link ID"))
		return
	}

	result, err := h.service.Sync(r.Context(), userID, linkID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to sync device")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.DeviceSyncResponse{
		LinkID:    result.LinkID.String(),
		Vendor:    result.Vendor,
		Status:    result.Status,
		ItemCount: result.ItemCount,
		Errors:    result.Errors,
		SyncedAt:  result.SyncedAt,
	})
}

// Disconnect revokes a device link
// @Summary Disconnect a device
// @Description Revoke a device link, its consent and the vendor-side access
// @Tags Devices
// @Produce json
// @Param id path string true "Device link ID"
// @Success 200 {object} utils.SuccessResponse "Device disconnected"
// @Failure 404 {object} utils.ErrorResponse "Device link not found"
// @Security BearerAuth
// @Router /integration/devices/{id} [delete]
func (h *DeviceHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	linkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid device link ID"))
		return
	}

	if err := h.service.Disconnect(r.Context(), userID, linkID); err != nil {
		h.logger.ErrorWithErr(err, "Failed to disconnect device")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Device disconnected successfully", nil)
}

func toDeviceDTO(l *device.DeviceLink) dto.DeviceLinkDTO {
	return dto.DeviceLinkDTO{
		ID:             l.ID.String(),
		Vendor:         l.Vendor,
		DeviceType:     l.DeviceType,
		Status:         string(l.Status),
		ErrorMessage:   l.ErrorMessage,
		LastSyncAt:     l.LastSyncAt,
		TokenExpiresAt: l.TokenExpiresAt,
		CreatedAt:      l.CreatedAt,
	}
}
