/**
 * @description
 * This file holds the shared response helpers for the HTTP handlers:
 * JSON encoding and the mapping from service error kinds to HTTP status
 * codes.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app: Error kind classification.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/upistack/upi-service/internal/app"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error to its HTTP status and writes
// the response. Internal errors are logged and masked.
func writeServiceError(w http.ResponseWriter, err error) {
	switch app.KindOf(err) {
	case app.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case app.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, err.Error())
	case app.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	case app.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case app.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case app.KindFailedPrecondition:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case app.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api msg=\"internal error\" err=%q", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
