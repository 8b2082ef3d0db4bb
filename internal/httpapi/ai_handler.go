package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/suggest"
)

// handleGenerateMessage processes POST /api/v1/ai/generate-message.
func (a *API) handleGenerateMessage(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if !decode(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	msg, err := a.suggest.Message(r.Context(), req.Rules)
	switch {
	case errors.Is(err, suggest.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "Message generation budget exhausted, retry later")
		return
	case err != nil:
		logger.FromContext(r.Context()).Error("message generation failed", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeGenerationFailed, "AI message generation failed")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: msg})
}

// handleSuggestions processes POST /api/v1/ai/get-suggestions. It always
// answers with three suggestions.
func (a *API) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if !decode(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuggestionsResponse{Suggestions: a.suggest.Suggestions(r.Context(), req.Rules)})
}
