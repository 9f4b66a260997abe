package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
	"github.com/promptshield-ai/promptshield/internal/store"
)

// Version reported by the health and root endpoints.
const Version = "0.1.0"

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Engine     *engine.ShieldEngine
	Attacks    store.AttackStore
	Logger     *zap.Logger
	APIKey     string // plaintext shared secret; empty disables auth
	APIKeyHash string // bcrypt hash alternative; takes precedence over APIKey
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Classification endpoint
	mux.HandleFunc("POST /check", deps.apiKeyAuth(deps.handleCheck))

	// Admin reads over the attack store
	mux.HandleFunc("GET /stats", deps.apiKeyAuth(deps.handleStats))
	mux.HandleFunc("GET /attacks", deps.apiKeyAuth(deps.handleRecentAttacks))
	mux.HandleFunc("GET /repeat-offenders", deps.apiKeyAuth(deps.handleRepeatOffenders))

	// Always open
	mux.HandleFunc("GET /health", deps.handleHealth)
	mux.HandleFunc("GET /{$}", deps.handleRoot)

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

func (d *Dependencies) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Name:     "PromptShield API",
		Version:  Version,
		Provider: d.Engine.OracleName(),
		Endpoints: map[string]string{
			"check":            "POST /check - Analyze a prompt for attacks",
			"stats":            "GET /stats - Attack statistics",
			"attacks":          "GET /attacks - Recent attack logs",
			"repeat_offenders": "GET /repeat-offenders - Repeated attack patterns",
			"health":           "GET /health - Health check",
		},
		Metrics: d.Engine.MetricsSnapshot(),
	})
}
