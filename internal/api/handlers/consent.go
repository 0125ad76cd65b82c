package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/api/dto"
	"github.com/vibehealth/healthsync/internal/api/middleware"
	"github.com/vibehealth/healthsync/internal/domain/consent"
	"github.com/vibehealth/healthsync/internal/pkg/errors"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/utils"
)

// ConsentHandler handles consent ledger endpoints
type ConsentHandler struct {
	service consent.Service
	logger  *logger.Logger
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(service consent.Service, log *logger.Logger) *ConsentHandler {
	return &ConsentHandler{
		service: service,
		logger:  log,
	}
}

// List returns the consent ledger of the authenticated user
// @Summary List consents
// @Description Get all consent records of the current user with subject names resolved
// @Tags Consents
// @Produce json
// @Success 200 {array} dto.ConsentDTO "List of consents"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /integration/consents [get]
func (h *ConsentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	details, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list consents")
		utils.HandleServiceError(w, err)
		return
	}

	dtos := make([]dto.ConsentDTO, len(details))
	for i, d := range details {
		dtos[i] = dto.ConsentDTO{
			ID:             d.ID.String(),
			SubjectType:    string(d.SubjectType),
			SubjectID:      d.SubjectID.String(),
			SubjectName:    d.SubjectName,
			ConsentType:    string(d.ConsentType),
			Status:         string(d.Status),
			ConsentVersion: d.ConsentVersion,
			ConsentedAt:    d.ConsentedAt,
			RevokedAt:      d.RevokedAt,
			RevokeReason:   d.RevokeReason,
		}
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Revoke withdraws a consent and revokes the linked device or portal
// @Summary Revoke a consent
// @Description Withdraw a consent; the linked device or portal is revoked with it
// @Tags Consents
// @Accept json
// @Produce json
// @Param id path string true "Consent ID"
// @Param request body dto.RevokeConsentRequest false "Revocation reason"
// @Success 200 {object} utils.SuccessResponse "Consent revoked"
// @Failure 404 {object} utils.ErrorResponse "Consent not found"
// @Failure 409 {object} utils.ErrorResponse "Consent not active"
// @Security BearerAuth
// @Router /integration/consents/{id}/revoke [post]
func (h *ConsentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid consent ID"))
		return
	}

	var req dto.RevokeConsentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteError(w, errors.BadRequest("Invalid request body"))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "user request"
	}

	if err := h.service.Revoke(r.Context(), userID, consentID, req.Reason); err != nil {
		h.logger.ErrorWithErr(err, "Failed to revoke consent")
		utils.HandleServiceError(w, err)
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Consent revoked successfully", nil)
}
