package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mailburst/internal/metrics"
	"mailburst/internal/models"
	"mailburst/internal/repository"
	"mailburst/internal/schedule"
)

// CampaignService handles campaign creation and scheduling
type CampaignService struct {
	db      *sql.DB
	planner *schedule.Planner
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCampaignService creates a new campaign service. metrics may be nil.
func NewCampaignService(db *sql.DB, planner *schedule.Planner, m *metrics.Metrics) *CampaignService {
	return &CampaignService{
		db:      db,
		planner: planner,
		metrics: m,
		now:     time.Now,
	}
}

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	RecipientEmail  string              `json:"recipientEmail"`
	Message         string              `json:"message"`
	Count           int                 `json:"count"`
	FromDisplayName *string             `json:"fromDisplayName,omitempty"`
	Subject         *string             `json:"subject,omitempty"`
	ScheduleMode    models.ScheduleMode `json:"scheduleMode"`
	WindowDate      string              `json:"windowDate,omitempty"`
	WindowStart     string              `json:"windowStart,omitempty"`
	WindowEnd       string              `json:"windowEnd,omitempty"`
}

// CreateCampaignResult represents the outcome of campaign creation
type CreateCampaignResult struct {
	CampaignID          string   `json:"campaignId"`
	ScheduledTimestamps []string `json:"scheduledTimestamps"`
}

// CreateCampaign validates the request, draws the delivery schedule, and
// persists the campaign together with its queue items in one transaction.
// On any failure neither a campaign nor a partial batch remains.
func (s *CampaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*CreateCampaignResult, error) {
	campaign := &models.Campaign{
		RecipientEmail: req.RecipientEmail,
		MessageBody:    req.Message,
		EmailCount:     req.Count,
		Subject:        req.Subject,
		FromName:       req.FromDisplayName,
	}
	if err := campaign.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	timestamps, err := s.planSchedule(req)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Message: fmt.Sprintf("failed to start transaction: %v", err)}
	}
	defer tx.Rollback()

	campaignRepo := repository.NewCampaignRepository(tx)
	itemRepo := repository.NewItemRepository(tx)

	if err := campaignRepo.Create(ctx, campaign); err != nil {
		return nil, &PersistenceError{Message: err.Error()}
	}

	if _, err := itemRepo.CreateBatch(ctx, campaign.ID, timestamps); err != nil {
		return nil, &PersistenceError{Message: err.Error()}
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Message: fmt.Sprintf("failed to commit transaction: %v", err)}
	}

	if s.metrics != nil {
		s.metrics.CampaignsCreated.Inc()
	}

	logrus.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"recipient":   campaign.RecipientEmail,
		"count":       campaign.EmailCount,
		"mode":        req.ScheduleMode,
	}).Info("Campaign scheduled")

	formatted := make([]string, len(timestamps))
	for i, ts := range timestamps {
		formatted[i] = ts.UTC().Format(time.RFC3339Nano)
	}

	return &CreateCampaignResult{
		CampaignID:          campaign.ID,
		ScheduledTimestamps: formatted,
	}, nil
}

// planSchedule maps the request onto the planner, translating its sentinel
// errors into caller-facing validation errors
func (s *CampaignService) planSchedule(req *CreateCampaignRequest) ([]time.Time, error) {
	var window *schedule.Window

	if req.ScheduleMode == models.ModeWindowed {
		w, err := schedule.ParseWindow(req.WindowDate, req.WindowStart, req.WindowEnd)
		if err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		window = &w
	}

	// Everything the planner can reject is a caller mistake
	timestamps, err := s.planner.Plan(req.Count, req.ScheduleMode, s.now(), window)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	return timestamps, nil
}

// GetCampaign retrieves a campaign with its per-status item counts
func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*models.CampaignWithStats, error) {
	campaignRepo := repository.NewCampaignRepository(s.db)
	itemRepo := repository.NewItemRepository(s.db)

	campaign, err := campaignRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "campaign", ID: id}
	}
	if err != nil {
		return nil, &PersistenceError{Message: err.Error()}
	}

	stats, err := itemRepo.CountByStatus(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Message: err.Error()}
	}

	return &models.CampaignWithStats{Campaign: *campaign, Stats: *stats}, nil
}

// ListScheduled returns all still-scheduled items with their recipients
func (s *CampaignService) ListScheduled(ctx context.Context) ([]*models.ScheduledItem, error) {
	items, err := repository.NewItemRepository(s.db).ListScheduled(ctx)
	if err != nil {
		return nil, &PersistenceError{Message: err.Error()}
	}
	return items, nil
}
