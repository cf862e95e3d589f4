// ABOUTME: Read-only JSON API over the stored workflow definitions
// ABOUTME: Lets tooling list definitions and fetch one without the web UI

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/coven-wizard/internal/store"
)

// workflowSummary is the JSON shape of a stored definition summary.
type workflowSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StepCount   int       `json:"step_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// handleListWorkflows returns every stored definition summary.
func (g *Gateway) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	summaries, err := g.store.ListDefinitions(r.Context())
	if err != nil {
		g.logger.Error("failed to list workflows", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]workflowSummary, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, workflowSummary{
			ID:          sum.ID,
			Title:       sum.Title,
			Description: sum.Description,
			StepCount:   sum.StepCount,
			UpdatedAt:   sum.UpdatedAt,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

// handleGetWorkflow returns one full definition.
func (g *Gateway) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := g.store.GetDefinition(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "workflow not found")
			return
		}
		g.logger.Error("failed to get workflow", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, def)
}

// sendJSON writes a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
