package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mailburst/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// CampaignRepository defines campaign data access operations
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
}

// ItemRepository defines queue item data access operations.
//
// MarkSent and MarkFailed are conditional transitions guarded on the item
// still being in the scheduled state: they report whether this caller won
// the transition. A losing call is not an error; an attempt to move an
// already-terminal item anywhere is ignored.
type ItemRepository interface {
	CreateBatch(ctx context.Context, campaignID string, timestamps []time.Time) ([]*models.QueueItem, error)
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
	FindDue(ctx context.Context, asOf time.Time, limit int) ([]*models.QueueItem, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error)
	ListScheduled(ctx context.Context) ([]*models.ScheduledItem, error)
	CountByStatus(ctx context.Context, campaignID string) (*models.CampaignStats, error)
}

// DB is the subset of *sql.DB and *sql.Tx the repositories need, so a
// service can bind them to a transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}
