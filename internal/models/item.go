package models

import (
	"time"
	"unicode/utf8"
)

// ItemStatus represents valid queue item statuses
type ItemStatus string

const (
	ItemStatusScheduled ItemStatus = "scheduled"
	ItemStatusSent      ItemStatus = "sent"
	ItemStatusFailed    ItemStatus = "failed"
)

// MaxErrorLength bounds the stored failure reason
const MaxErrorLength = 500

// QueueItem represents one scheduled email belonging to a campaign.
// Status moves from scheduled to exactly one terminal state and never
// changes again; scheduled_at is fixed at enqueue time.
type QueueItem struct {
	ID           string     `json:"id" db:"id"`
	CampaignID   string     `json:"campaign_id" db:"campaign_id"`
	ScheduledAt  time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status       ItemStatus `json:"status" db:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the item has reached a final state
func (i *QueueItem) IsTerminal() bool {
	return i.Status == ItemStatusSent || i.Status == ItemStatusFailed
}

// ScheduledItem is a queue item joined with its campaign's recipient,
// returned by the scheduled listing for display purposes
type ScheduledItem struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	RecipientEmail string    `json:"recipient_email"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

// TruncateError bounds a failure reason to MaxErrorLength bytes. The cut
// never splits a rune; Postgres rejects invalid UTF-8.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	cut := MaxErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
