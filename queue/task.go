// Package queue implements the delayed task queue the scheduler uses to
// hand per-recipient delivery work to the worker pool. It is backed by
// Redis under a fixed namespace and task-id scheme that downstream
// tooling depends on; both are compatibility-critical and must not
// change shape.
package queue

import (
	"time"

	"github.com/garv190/outbox-email-project/id"
)

// Namespace is the Redis key namespace for every queue key.
const Namespace = "reachinboxScheduler"

// TaskName is the name of the one task type the queue carries: an email
// delivery.
const TaskName = "deliverEmailTask"

// TaskID computes the deterministic, idempotent task identifier for a
// dispatch. Enqueueing under this key twice is a no-op (I4).
func TaskID(dispatchID id.DispatchID) string {
	return "emailTask-" + dispatchID.String()
}

// Task is the queue-side representation of a pending dispatch: the
// payload plus the bookkeeping fields the queue controls.
type Task struct {
	ID         string
	DispatchID id.DispatchID
	CampaignID id.CampaignID
	Recipient  string
	Subject    string
	Body       string

	// ScheduledAt is the originally-scheduled instant computed by the
	// scheduler at ingress; it never changes across reschedules.
	ScheduledAt time.Time

	// SenderID is optional; the ingress does not currently attach one
	// (see the scheduler's Open Question on sender identity).
	SenderID id.SenderID

	// ReadyAt, Attempt are controlled by the queue.
	ReadyAt time.Time
	Attempt int

	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
