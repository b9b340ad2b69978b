package delivery

import (
	"context"

	"github.com/garv190/outbox-email-project/id"
)

// ErrDuplicate is returned by CreateDispatch when the
// (campaign_id, recipient_email) uniqueness invariant is violated.
// The scheduler treats this as a tolerated skip, not a batch failure.
var ErrDuplicate = dupError{}

type dupError struct{}

func (dupError) Error() string { return "delivery: duplicate (campaign_id, recipient_email)" }

// Store is the persistence contract for dispatches.
type Store interface {
	// CreateDispatch inserts a new dispatch row. Returns ErrDuplicate
	// if the (campaign, recipient) pair already exists; callers must
	// treat that as a skipped recipient, never abort the batch.
	CreateDispatch(ctx context.Context, d *Dispatch) error

	GetDispatch(ctx context.Context, id id.DispatchID) (*Dispatch, error)

	// UpdateDispatch persists the full row. Callers are expected to
	// have already validated the transition via CanTransitionTo.
	UpdateDispatch(ctx context.Context, d *Dispatch) error

	ListByCampaign(ctx context.Context, campaignID id.CampaignID) ([]*Dispatch, error)

	// ListScheduledByUser returns dispatches in {PENDING, SCHEDULED,
	// RATE_LIMITED} across every campaign owned by userID.
	ListScheduledByUser(ctx context.Context, userID id.UserID) ([]*Dispatch, error)

	// ListSentByUser returns dispatches in {SENT, FAILED} across every
	// campaign owned by userID.
	ListSentByUser(ctx context.Context, userID id.UserID) ([]*Dispatch, error)
}
