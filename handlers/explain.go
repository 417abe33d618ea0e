package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/game"
	"github.com/charles-mendoza/agile-poker/genai"
	"github.com/charles-mendoza/agile-poker/models"
)

// DiscrepancyExplainer generates a one-paragraph explanation for a wide
// vote spread.
type DiscrepancyExplainer interface {
	Explain(ctx context.Context, req genai.ExplainRequest) (genai.ExplainResponse, error)
}

// ExplainHandler proxies discrepancy-explanation requests to the external
// text-generation service.
type ExplainHandler struct {
	store     db.RoomStore
	explainer DiscrepancyExplainer
}

// NewExplainHandler creates a new ExplainHandler. explainer may be nil
// when no service is configured.
func NewExplainHandler(store db.RoomStore, explainer DiscrepancyExplainer) *ExplainHandler {
	return &ExplainHandler{store: store, explainer: explainer}
}

// Explain derives the numeric votes of the current round and asks the
// service for an explanation of the spread.
func (h *ExplainHandler) Explain(c *gin.Context) {
	if h.explainer == nil {
		standardResponse(c, http.StatusServiceUnavailable, "error", nil, "explanation service is not configured")
		return
	}

	var req struct {
		Context string `json:"context"`
	}
	_ = c.ShouldBindJSON(&req)

	room, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	current := room.CurrentStory()
	if current == nil {
		errorResponse(c, models.ErrNoActiveStory)
		return
	}

	tally := game.DeriveTally(room)
	description := current.Description
	if description == "" {
		description = current.Title
	}

	resp, err := h.explainer.Explain(c.Request.Context(), genai.ExplainRequest{
		Estimates:        tally.NumericVotes,
		StoryDescription: description,
		Context:          req.Context,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "ok", gin.H{"explanation": resp.Explanation}, "")
}
