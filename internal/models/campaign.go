package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Campaign count limits enforced before any scheduling happens
const (
	MinEmailCount = 1
	MaxEmailCount = 50
)

// ScheduleMode represents valid scheduling modes
type ScheduleMode string

const (
	ModeImmediate ScheduleMode = "immediate"
	ModeWindowed  ScheduleMode = "windowed"
)

// Campaign represents one request to send a batch of emails to a recipient.
// Records are immutable after creation; queue items reference them by id.
type Campaign struct {
	ID             string    `json:"id" db:"id"`
	RecipientEmail string    `json:"recipient_email" db:"recipient_email"`
	MessageBody    string    `json:"message_body" db:"message_body"`
	EmailCount     int       `json:"email_count" db:"email_count"`
	Subject        *string   `json:"subject,omitempty" db:"subject"`
	FromName       *string   `json:"from_name,omitempty" db:"from_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CampaignStats represents per-status item counts for a campaign
type CampaignStats struct {
	Total     int `json:"total"`
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// CampaignWithStats represents a campaign with its item statistics
type CampaignWithStats struct {
	Campaign
	Stats CampaignStats `json:"stats"`
}

// Validate checks if the campaign fields are valid
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.RecipientEmail) == "" {
		return fmt.Errorf("recipient email is required")
	}
	if _, err := mail.ParseAddress(c.RecipientEmail); err != nil {
		return fmt.Errorf("invalid recipient email: %q", c.RecipientEmail)
	}
	if strings.TrimSpace(c.MessageBody) == "" {
		return fmt.Errorf("message body is required")
	}
	if c.EmailCount < MinEmailCount || c.EmailCount > MaxEmailCount {
		return fmt.Errorf("email count must be between %d and %d", MinEmailCount, MaxEmailCount)
	}
	return nil
}

// SubjectOrDefault returns the campaign subject, or the given fallback
func (c *Campaign) SubjectOrDefault(fallback string) string {
	if c.Subject != nil && *c.Subject != "" {
		return *c.Subject
	}
	return fallback
}

// FromNameOrDefault returns the sender display name, or the given fallback
func (c *Campaign) FromNameOrDefault(fallback string) string {
	if c.FromName != nil && *c.FromName != "" {
		return *c.FromName
	}
	return fallback
}
