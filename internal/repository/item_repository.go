package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailburst/internal/models"
)

type itemRepository struct {
	db DB
}

// NewItemRepository creates a new queue item repository
func NewItemRepository(db DB) ItemRepository {
	return &itemRepository{db: db}
}

// CreateBatch inserts one scheduled item per timestamp. Callers that need
// the batch to be atomic with the campaign insert bind the repository to a
// transaction; partial batches are never visible to FindDue that way.
func (r *itemRepository) CreateBatch(ctx context.Context, campaignID string, timestamps []time.Time) ([]*models.QueueItem, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}

	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO scheduled_items (id, campaign_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	items := make([]*models.QueueItem, 0, len(timestamps))
	for _, ts := range timestamps {
		item := &models.QueueItem{
			ID:          uuid.NewString(),
			CampaignID:  campaignID,
			ScheduledAt: ts,
			Status:      models.ItemStatusScheduled,
		}

		err := stmt.QueryRowContext(
			ctx,
			item.ID,
			item.CampaignID,
			item.ScheduledAt,
			item.Status,
		).Scan(&item.CreatedAt, &item.UpdatedAt)

		if err != nil {
			return nil, fmt.Errorf("failed to create scheduled item: %w", err)
		}

		items = append(items, item)
	}

	return items, nil
}

// GetByID retrieves a queue item by ID
func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `
		SELECT id, campaign_id, scheduled_at, status, sent_at, error_message, created_at, updated_at
		FROM scheduled_items
		WHERE id = $1
	`

	item := &models.QueueItem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.CampaignID,
		&item.ScheduledAt,
		&item.Status,
		&item.SentAt,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scheduled item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled item: %w", err)
	}

	return item, nil
}

// FindDue retrieves items whose delivery time has passed and that no sweep
// has resolved yet, oldest first
func (r *itemRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*models.QueueItem, error) {
	query := `
		SELECT id, campaign_id, scheduled_at, status, sent_at, error_message, created_at, updated_at
		FROM scheduled_items
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due items: %w", err)
	}
	defer rows.Close()

	items := []*models.QueueItem{}
	for rows.Next() {
		item := &models.QueueItem{}
		err := rows.Scan(
			&item.ID,
			&item.CampaignID,
			&item.ScheduledAt,
			&item.Status,
			&item.SentAt,
			&item.ErrorMessage,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due items: %w", err)
	}

	return items, nil
}

// MarkSent transitions scheduled -> sent. The update is conditional on the
// current status so that of any number of concurrent callers exactly one
// wins; the others get false and must not treat the item as theirs.
func (r *itemRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	query := `
		UPDATE scheduled_items
		SET status = 'sent', sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`

	result, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark item sent: %w", err)
	}

	return r.claimed(ctx, id, result)
}

// MarkFailed transitions scheduled -> failed, recording a bounded reason
func (r *itemRepository) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	query := `
		UPDATE scheduled_items
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`

	result, err := r.db.ExecContext(ctx, query, id, models.TruncateError(errorMessage))
	if err != nil {
		return false, fmt.Errorf("failed to mark item failed: %w", err)
	}

	return r.claimed(ctx, id, result)
}

// claimed interprets the conditional update result: one row means this
// caller won the transition, zero rows means the item is already terminal
// (not an error) or does not exist at all (an error).
func (r *itemRepository) claimed(ctx context.Context, id string, result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	var status models.ItemStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM scheduled_items WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("scheduled item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item status: %w", err)
	}

	return false, nil
}

// ListScheduled returns all unsent items with their campaign's recipient,
// soonest first
func (r *itemRepository) ListScheduled(ctx context.Context) ([]*models.ScheduledItem, error) {
	query := `
		SELECT i.id, i.campaign_id, c.recipient_email, i.scheduled_at
		FROM scheduled_items i
		JOIN campaigns c ON i.campaign_id = c.id
		WHERE i.status = 'scheduled'
		ORDER BY i.scheduled_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled items: %w", err)
	}
	defer rows.Close()

	items := []*models.ScheduledItem{}
	for rows.Next() {
		item := &models.ScheduledItem{}
		if err := rows.Scan(&item.ID, &item.CampaignID, &item.RecipientEmail, &item.ScheduledAt); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scheduled items: %w", err)
	}

	return items, nil
}

// CountByStatus returns per-status item counts for one campaign
func (r *itemRepository) CountByStatus(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM scheduled_items
		WHERE campaign_id = $1
	`

	stats := &models.CampaignStats{}
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(
		&stats.Total,
		&stats.Scheduled,
		&stats.Sent,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count items by status: %w", err)
	}

	return stats, nil
}
