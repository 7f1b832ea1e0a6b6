/**
 * @description
 * This file contains the HTTP handlers for bank account endpoints.
 * Handlers parse requests, call the account service, and write JSON
 * responses with the account number masked.
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

// AccountHandlers holds the account service that handlers will use.
type AccountHandlers struct {
	service *app.AccountService
}

// NewAccountHandlers creates account handlers backed by the given service.
func NewAccountHandlers(service *app.AccountService) *AccountHandlers {
	return &AccountHandlers{service: service}
}

func (h *AccountHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account.Response())
}

func (h *AccountHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	responses := make([]domain.AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, accounts[i].Response())
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *AccountHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Response())
}

func (h *AccountHandlers) UpdateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req domain.UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), userID, accountID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Response())
}

func (h *AccountHandlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID, accountID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *AccountHandlers) SetPrimaryAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.service.SetPrimaryAccount(r.Context(), userID, accountID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "primary account updated"})
}

func (h *AccountHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req struct {
		UPIPIN string `json:"upi_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID, accountID, req.UPIPIN)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

func (h *AccountHandlers) ValidatePINHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req struct {
		UPIPIN string `json:"upi_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid, err := h.service.ValidatePIN(r.Context(), userID, accountID, req.UPIPIN)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *AccountHandlers) VerifyAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	if err := h.service.VerifyAccount(r.Context(), userID, accountID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "account verified"})
}

func (h *AccountHandlers) pathIDs(w http.ResponseWriter, r *http.Request) (userID, accountID uuid.UUID, ok bool) {
	userID, authed := UserIDFromContext(r.Context())
	if !authed {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return uuid.Nil, uuid.Nil, false
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account id must be a UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, accountID, true
}
