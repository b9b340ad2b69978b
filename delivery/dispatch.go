// Package delivery holds the Dispatch entity: the record of one email
// to one recipient within one campaign, and the unit of worker state.
package delivery

import (
	"time"

	"github.com/garv190/outbox-email-project/id"
)

// Status is the dispatch lifecycle state. Modeled as a tagged variant
// rather than a free-form string so illegal transitions are
// unrepresentable in the worker.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusScheduled   Status = "SCHEDULED"
	StatusSending     Status = "SENDING"
	StatusSent        Status = "SENT"
	StatusFailed      Status = "FAILED"
	StatusRateLimited Status = "RATE_LIMITED"
)

// Dispatch is the record of one email to one recipient within one
// campaign. (campaign_id, recipient_email) is unique.
type Dispatch struct {
	ID         id.DispatchID `json:"id"`
	CampaignID id.CampaignID `json:"campaignId"`

	RecipientEmail string `json:"recipientEmail"`

	// Subject and Body are denormalized snapshots taken at enqueue
	// time, so an in-flight task is immune to later campaign edits.
	Subject string `json:"subject"`
	Body    string `json:"body"`

	ScheduledTime time.Time  `json:"scheduledTime"`
	SentTime      *time.Time `json:"sentTime,omitempty"`

	Status Status `json:"status"`

	ErrorMessage *string      `json:"errorMessage,omitempty"`
	SenderID     *id.SenderID `json:"senderId,omitempty"`
	SenderEmail  *string      `json:"senderEmail,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New constructs a Dispatch in the SCHEDULED state.
func New(campaignID id.CampaignID, recipient, subject, body string, scheduledTime time.Time) *Dispatch {
	now := time.Now().UTC()
	return &Dispatch{
		ID:             id.NewDispatchID(),
		CampaignID:     campaignID,
		RecipientEmail: recipient,
		Subject:        subject,
		Body:           body,
		ScheduledTime:  scheduledTime,
		Status:         StatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// transitions enumerates the legal next-states for every status, per
// the {PENDING → SCHEDULED → SENDING → (SENT | FAILED | RATE_LIMITED)}
// state machine, with RATE_LIMITED looping back to SCHEDULED.
var transitions = map[Status]map[Status]bool{
	StatusPending:     {StatusScheduled: true},
	StatusScheduled:   {StatusSending: true},
	StatusSending:     {StatusSent: true, StatusFailed: true, StatusRateLimited: true},
	StatusRateLimited: {StatusScheduled: true},
	StatusSent:        {},
	StatusFailed:      {},
}

// CanTransitionTo reports whether moving from d.Status to next is a
// legal dispatch-level transition.
func (d *Dispatch) CanTransitionTo(next Status) bool {
	return transitions[d.Status][next]
}

// IsTerminal reports whether the dispatch is in a state that will
// never be mutated again by the worker (SENT or FAILED).
func (d *Dispatch) IsTerminal() bool {
	return d.Status == StatusSent || d.Status == StatusFailed
}
