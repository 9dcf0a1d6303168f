package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/service"
	"go.uber.org/zap"
)

// ErrorResp is the JSON body of transport-level failures. Capability-level
// failures ride inside the invocation result instead.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// handleInvoke implements POST /v1/invoke.
func (d *Dependencies) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.CapabilityName == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "capabilityName is required"})
		return
	}
	if req.CallerRole == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "callerRole is required"})
		return
	}

	result := d.Invoker.Invoke(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// handleListCapabilities implements GET /v1/capabilities?role=<role>.
func (d *Dependencies) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "role query parameter is required"})
		return
	}
	writeJSON(w, http.StatusOK, d.Invoker.ListCapabilities(role))
}

// handleReloadCatalog implements POST /admin/catalog/reload.
func (d *Dependencies) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := d.Invoker.RefreshCatalog(r.Context()); err != nil {
		d.Logger.Warn("catalog reload failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
