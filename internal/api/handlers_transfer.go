/**
 * @description
 * This file contains the HTTP handlers for transfer endpoints: the
 * initiation endpoint, the history query surface, and the internal
 * reversal and reconciliation routes.
 *
 * @dependencies
 * - encoding/json, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upistack/upi-service/internal/app"
	"github.com/upistack/upi-service/internal/domain"
)

// TransferHandlers holds the transfer service that handlers will use.
type TransferHandlers struct {
	service *app.TransferService
}

// NewTransferHandlers creates transfer handlers backed by the given service.
func NewTransferHandlers(service *app.TransferService) *TransferHandlers {
	return &TransferHandlers{service: service}
}

func (h *TransferHandlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req domain.InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	transfer, err := h.service.InitiateTransfer(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

func (h *TransferHandlers) GetByReferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	transfer, err := h.service.GetByReference(r.Context(), userID, chi.URLParam(r, "reference"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (h *TransferHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	q := r.URL.Query()
	direction := app.DirectionAll
	switch q.Get("direction") {
	case "sent":
		direction = app.DirectionSent
	case "received":
		direction = app.DirectionReceived
	}

	sortBy := domain.TransferSortCreatedAt
	if q.Get("sort") == string(domain.TransferSortAmount) {
		sortBy = domain.TransferSortAmount
	}
	ascending := q.Get("order") == "asc"
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	transfers, err := h.service.ListTransfers(r.Context(), userID, direction, sortBy, ascending, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (h *TransferHandlers) ListRecentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transfers, err := h.service.ListRecent(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

func (h *TransferHandlers) ListForAddressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	transfers, err := h.service.ListForAddress(r.Context(), userID, chi.URLParam(r, "address"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

// ReverseTransferHandler flips a completed transfer to REVERSED and
// returns the funds. Internal route, guarded by the service API key.
func (h *TransferHandlers) ReverseTransferHandler(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.service.MarkReversed(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

// ListStuckTransfersHandler surfaces transfers stuck in INITIATED for
// operational reconciliation. Internal route.
func (h *TransferHandlers) ListStuckTransfersHandler(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.service.ListStuck(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}
