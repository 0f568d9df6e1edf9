package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("POST /orchestrate/{username}", chain(http.HandlerFunc(h.Orchestrate)))
	mux.Handle("GET /status/{username}/{job_id}", chain(http.HandlerFunc(h.Status)))
	mux.Handle("GET /jobs/{username}", chain(http.HandlerFunc(h.ListJobs)))
}
