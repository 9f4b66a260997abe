package api

import (
	"encoding/json"
	"net/http"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// --- POST /check request/response ---

// CheckRequest is the JSON body for POST /check.
type CheckRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

// CheckResponse wraps the verdict with a per-call correlation token.
type CheckResponse struct {
	Result    *engine.Verdict `json:"result"`
	RequestID string          `json:"request_id"`
}

// ServiceInfo is the GET / payload: identity, endpoint index, and the
// pipeline's operational counters.
type ServiceInfo struct {
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Provider  string                 `json:"provider"`
	Endpoints map[string]string      `json:"endpoints"`
	Metrics   engine.MetricsSnapshot `json:"metrics"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
