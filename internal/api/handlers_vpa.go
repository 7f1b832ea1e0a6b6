/**
 * @description
 * This file contains the HTTP handlers for virtual payment address
 * endpoints, including the public address validation lookup used before
 * initiating a transfer.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upistack/upi-service/internal/app"
	"github.com/upistack/upi-service/internal/domain"
)

// VPAHandlers holds the VPA service that handlers will use.
type VPAHandlers struct {
	service *app.VPAService
}

// NewVPAHandlers creates VPA handlers backed by the given service.
func NewVPAHandlers(service *app.VPAService) *VPAHandlers {
	return &VPAHandlers{service: service}
}

func (h *VPAHandlers) CreateVPAHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req domain.CreateVPARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vpa, err := h.service.CreateVPA(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vpa)
}

func (h *VPAHandlers) ListVPAsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	vpas, err := h.service.ListVPAs(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpas)
}

func (h *VPAHandlers) GetVPAHandler(w http.ResponseWriter, r *http.Request) {
	userID, vpaID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	vpa, err := h.service.GetVPA(r.Context(), userID, vpaID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpa)
}

func (h *VPAHandlers) UpdateVPAHandler(w http.ResponseWriter, r *http.Request) {
	userID, vpaID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req domain.UpdateVPARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vpa, err := h.service.UpdateVPA(r.Context(), userID, vpaID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpa)
}

func (h *VPAHandlers) DeleteVPAHandler(w http.ResponseWriter, r *http.Request) {
	userID, vpaID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteVPA(r.Context(), userID, vpaID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *VPAHandlers) SetPrimaryVPAHandler(w http.ResponseWriter, r *http.Request) {
	userID, vpaID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.service.SetPrimaryVPA(r.Context(), userID, vpaID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "primary vpa updated"})
}

func (h *VPAHandlers) ListVPAsByAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account id must be a UUID")
		return
	}

	vpas, err := h.service.ListVPAsByAccount(r.Context(), userID, accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpas)
}

// GetVPAByAddressHandler resolves a full address to its VPA record.
func (h *VPAHandlers) GetVPAByAddressHandler(w http.ResponseWriter, r *http.Request) {
	vpa, err := h.service.GetVPAByAddress(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vpa)
}

// ValidateAddressHandler reports whether an address is well formed and
// registered. Used by clients before initiating a transfer.
func (h *VPAHandlers) ValidateAddressHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter required")
		return
	}

	valid, registered, err := h.service.ValidateAddress(r.Context(), address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid, "registered": registered})
}

func (h *VPAHandlers) pathIDs(w http.ResponseWriter, r *http.Request) (userID, vpaID uuid.UUID, ok bool) {
	userID, authed := UserIDFromContext(r.Context())
	if !authed {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return uuid.Nil, uuid.Nil, false
	}
	vpaID, err := uuid.Parse(chi.URLParam(r, "vpaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "vpa id must be a UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, vpaID, true
}
