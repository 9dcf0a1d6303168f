// Package api is the thin HTTP placement of the capability core. The core
// itself stays a library; this router is the reference transport the
// surrounding application mounts it behind.
package api

import (
	"net/http"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/service"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Invoker *service.Invoker
	Logger  *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/invoke", deps.handleInvoke)
	mux.HandleFunc("GET /v1/capabilities", deps.handleListCapabilities)

	// Administrative path — never reachable through an agent invocation.
	mux.HandleFunc("POST /admin/catalog/reload", deps.handleReloadCatalog)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return requestLogging(mux, deps.Logger)
}
