package server

import (
	"context"
	"net/http"
	"os"
	"time"
)

// HealthResponse is the JSON body of the /health endpoint. It reports index
// connectivity and whether the model collaborator is configured.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by the search index.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates the /health endpoint. It checks index
// connectivity with a short timeout and reports collaborator configuration.
func NewHealthHandler(index HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Model:     "not configured",
		}
		if os.Getenv("OPENAI_API_KEY") != "" {
			response.Model = "configured"
		}

		if index == nil {
			response.Status = "degraded"
			response.Index = "not configured"
			writeJSON(w, http.StatusOK, response)
			return
		}

		if err := index.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "healthy"
		response.Index = "connected"
		writeJSON(w, http.StatusOK, response)
	}
}
