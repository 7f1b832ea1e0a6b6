/**
 * @description
 * This file sets up the HTTP router for the service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the service.
func Routes(accounts *AccountHandlers, vpas *VPAHandlers, transfers *TransferHandlers, jwtSecret, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accounts.CreateAccountHandler)
			r.Get("/", accounts.ListAccountsHandler)
			r.Get("/{accountID}", accounts.GetAccountHandler)
			r.Put("/{accountID}", accounts.UpdateAccountHandler)
			r.Delete("/{accountID}", accounts.DeleteAccountHandler)
			r.Put("/{accountID}/primary", accounts.SetPrimaryAccountHandler)
			r.Post("/{accountID}/balance", accounts.GetBalanceHandler)
			r.Post("/{accountID}/validate-pin", accounts.ValidatePINHandler)
			r.Post("/{accountID}/verify", accounts.VerifyAccountHandler)
		})

		r.Route("/vpas", func(r chi.Router) {
			r.Post("/", vpas.CreateVPAHandler)
			r.Get("/", vpas.ListVPAsHandler)
			r.Get("/validate", vpas.ValidateAddressHandler)
			r.Get("/address/{address}", vpas.GetVPAByAddressHandler)
			r.Get("/by-account/{accountID}", vpas.ListVPAsByAccountHandler)
			r.Get("/{vpaID}", vpas.GetVPAHandler)
			r.Put("/{vpaID}", vpas.UpdateVPAHandler)
			r.Delete("/{vpaID}", vpas.DeleteVPAHandler)
			r.Put("/{vpaID}/primary", vpas.SetPrimaryVPAHandler)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transfers.InitiateTransferHandler)
			r.Get("/", transfers.ListTransfersHandler)
			r.Get("/recent", transfers.ListRecentHandler)
			r.Get("/ref/{reference}", transfers.GetByReferenceHandler)
			r.Get("/vpa/{address}", transfers.ListForAddressHandler)
		})
	})

	// Internal service-to-service routes.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/transfers/{reference}/reverse", transfers.ReverseTransferHandler)
		r.Get("/internal/transfers/stuck", transfers.ListStuckTransfersHandler)
	})

	return r
}
