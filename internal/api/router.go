// Package api exposes the verification engine over HTTP: the verify
// endpoints, the read-only rule and category catalogue, and project
// administration.
package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aare-health/safeharbor/internal/labels"
	"github.com/aare-health/safeharbor/internal/storage"
	"github.com/aare-health/safeharbor/internal/store"
	"github.com/aare-health/safeharbor/internal/verify"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store     *store.Store
	Verifier  *verify.Verifier
	Mapper    *labels.Mapper
	Extractor verify.Extractor // used by /v1/verify/text; may be nil
	Writer    storage.EventWriter
	Logger    *zap.Logger
	CacheTTL  time.Duration
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Verification endpoints (auth required via Bearer shk_ token)
	mux.HandleFunc("POST /v1/verify", deps.authMiddleware(deps.handleVerify))
	mux.HandleFunc("POST /v1/verify/batch", deps.authMiddleware(deps.handleVerifyBatch))
	mux.HandleFunc("POST /v1/verify/text", deps.authMiddleware(deps.handleVerifyText))

	// Rule/category catalogue (read-only, no auth)
	mux.HandleFunc("GET /api/safeharbor/rules", deps.handleListRules)
	mux.HandleFunc("GET /api/safeharbor/rules/{rule_id}", deps.handleGetRule)
	mux.HandleFunc("GET /api/safeharbor/categories", deps.handleListCategories)
	mux.HandleFunc("GET /api/safeharbor/labels", deps.handleListLabels)

	// Project CRUD (no auth; dashboard auth added later)
	mux.HandleFunc("POST /api/safeharbor/projects", deps.handleCreateProject)
	mux.HandleFunc("GET /api/safeharbor/projects", deps.handleListProjects)
	mux.HandleFunc("GET /api/safeharbor/projects/{project_id}", deps.handleGetProject)
	mux.HandleFunc("DELETE /api/safeharbor/projects/{project_id}", deps.handleDeleteProject)
	mux.HandleFunc("POST /api/safeharbor/projects/{project_id}/rotate-key", deps.handleRotateKey)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
