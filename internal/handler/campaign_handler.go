package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"mailburst/internal/models"
	"mailburst/internal/service"
)

// CampaignHandler handles HTTP requests for campaign operations
type CampaignHandler struct {
	campaignService *service.CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// Create handles POST /campaigns - schedules a new campaign
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	result, err := h.campaignService.CreateCampaign(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, result)
}

// GetByID handles GET /campaigns/{id} - returns a campaign with item counts
func (h *CampaignHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		WriteValidationError(w, "campaign ID is required")
		return
	}

	campaign, err := h.campaignService.GetCampaign(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, campaign)
}

// ListScheduled handles GET /scheduled - lists all still-scheduled items
func (h *CampaignHandler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	items, err := h.campaignService.ListScheduled(r.Context())
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, ListScheduledResponse{Items: items, Count: len(items)})
}

// ListScheduledResponse represents the scheduled items listing
type ListScheduledResponse struct {
	Items []*models.ScheduledItem `json:"items"`
	Count int                     `json:"count"`
}
