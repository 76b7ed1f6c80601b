package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mailburst/internal/models"
)

type campaignRepository struct {
	db DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create persists a new campaign. The id is assigned here; all fields are
// stored verbatim beyond whitespace trimming.
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	campaign.RecipientEmail = strings.TrimSpace(campaign.RecipientEmail)
	campaign.MessageBody = strings.TrimSpace(campaign.MessageBody)

	query := `
		INSERT INTO campaigns (id, recipient_email, message_body, email_count, subject, from_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		campaign.ID,
		campaign.RecipientEmail,
		campaign.MessageBody,
		campaign.EmailCount,
		campaign.Subject,
		campaign.FromName,
	).Scan(&campaign.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `
		SELECT id, recipient_email, message_body, email_count, subject, from_name, created_at
		FROM campaigns
		WHERE id = $1
	`

	campaign := &models.Campaign{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&campaign.ID,
		&campaign.RecipientEmail,
		&campaign.MessageBody,
		&campaign.EmailCount,
		&campaign.Subject,
		&campaign.FromName,
		&campaign.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}
