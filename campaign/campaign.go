// Package campaign holds the Campaign entity: a bulk-send configuration
// of one subject/body aimed at many recipients.
package campaign

import (
	"time"

	"github.com/garv190/outbox-email-project/id"
)

// Status is the campaign lifecycle state.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusPaused     Status = "PAUSED"
	StatusCancelled  Status = "CANCELLED"
)

// Campaign is one subject/body aimed at N recipients with a start time
// and per-email spacing.
type Campaign struct {
	ID      id.CampaignID `json:"id"`
	UserID  id.UserID     `json:"userId"`
	Subject string        `json:"subject"`
	Body    string        `json:"body"`

	// StartTime is the absolute instant the first dispatch is scheduled
	// for; later recipients are offset by DelayBetweenMs.
	StartTime time.Time `json:"startTime"`

	// DelayBetweenMs is the inter-email spacing applied between
	// successive recipients' scheduled instants.
	DelayBetweenMs int `json:"delayBetweenMs"`

	// HourlyLimit is the per-sender hourly ceiling recorded for this
	// campaign (the configured default when the request gave none). It
	// is stored only: the rate limiter does not read it and applies its
	// own configured per-sender ceiling to every dispatch.
	HourlyLimit int `json:"hourlyLimit"`

	Status Status `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CanTransitionTo reports whether moving from c.Status to next is a
// legal campaign-level transition.
func (c *Campaign) CanTransitionTo(next Status) bool {
	switch c.Status {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusPaused || next == StatusCancelled
	case StatusPaused:
		return next == StatusInProgress || next == StatusCancelled
	default:
		return false
	}
}

// New constructs a Campaign in the SCHEDULED state with fresh identity
// and timestamps.
func New(userID id.UserID, subject, body string, startTime time.Time, delayBetweenMs, hourlyLimit int) *Campaign {
	now := time.Now().UTC()
	return &Campaign{
		ID:             id.NewCampaignID(),
		UserID:         userID,
		Subject:        subject,
		Body:           body,
		StartTime:      startTime,
		DelayBetweenMs: delayBetweenMs,
		HourlyLimit:    hourlyLimit,
		Status:         StatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
