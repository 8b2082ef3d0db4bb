package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
)

// handleCreateCampaign processes POST /api/v1/campaigns: store the campaign
// for the calling operator, segment, and dispatch.
func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	op, _ := auth.FromContext(r.Context())

	var req CreateCampaignRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	res, err := a.campaigns.Create(r.Context(), campaign.CreateInput{
		OwnerID: op.ID,
		Rules:   req.Rules,
		Message: req.Message,
	})
	if err != nil {
		var dErr *delivery.DispatchError
		if errors.As(err, &dErr) {
			log.Error("campaign dispatch failed",
				slog.String("campaign_id", dErr.CampaignID.String()),
				slog.Int("recipients", dErr.Recipients),
				slog.String("error", dErr.Err.Error()),
			)
			writeError(w, r, http.StatusInternalServerError, codeInternal, "Campaign created but delivery could not be recorded")
			return
		}
		log.Error("failed to create campaign", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to create campaign")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreateCampaignResponse{
		Message:           "Campaign created and messages sent",
		CampaignID:        res.Campaign.ID,
		TargetedCustomers: nonNil(res.Logs),
	})
}

// handleListCampaigns processes GET /api/v1/campaigns for the calling operator.
func (a *API) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	op, _ := auth.FromContext(r.Context())

	summaries, err := a.campaigns.List(r.Context(), op.ID)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list campaigns", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to list campaigns")
		return
	}

	out := make([]CampaignSummary, len(summaries))
	for i, s := range summaries {
		out[i] = mapSummary(s)
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

// handlePreview processes POST /api/v1/campaigns/preview. Nothing is stored.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req RulesRequest
	if !decode(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	p, err := a.campaigns.Preview(r.Context(), req.Rules)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to preview segment", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to preview segment")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PreviewResponse{
		TotalCustomers:   p.TotalCount,
		MatchedCustomers: nonNil(p.Sample),
		MatchedCount:     p.MatchedCount,
	})
}

// handleCampaignLogs processes GET /api/v1/logs/{campaignID}.
func (a *API) handleCampaignLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "campaignID must be a valid UUID")
		return
	}

	logs, err := a.campaigns.Logs(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, codeNotFound, "Campaign not found")
			return
		}
		logger.FromContext(r.Context()).Error("failed to load campaign logs", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to load logs")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, nonNil(logs))
}
