package queue

import (
	"context"
	"time"
)

// Metrics summarizes queue depth by state.
type Metrics struct {
	Waiting   int64 // ready-at has passed, not yet reserved
	Active    int64 // reserved, in flight with a worker
	Completed int64 // acked, within the retention window
	Failed    int64 // retry budget exhausted, within the retention window
	Delayed   int64 // ready-at is still in the future
}

// TaskQueue is the delayed-task contract shared by the scheduler
// (producer) and the delivery worker pool (consumer).
type TaskQueue interface {
	// Enqueue appends task with the given delay under its deterministic
	// key. A second enqueue of the same task ID is a no-op (I4); it
	// MUST NOT create a duplicate task or reset an in-flight one.
	Enqueue(ctx context.Context, task *Task, delay time.Duration) error

	// Reserve yields one task whose ready-at has passed, hiding it from
	// other consumers until Ack, Reschedule, or Fail is called. Returns
	// (nil, nil) when no task is currently ready.
	Reserve(ctx context.Context) (*Task, error)

	// Ack removes the task from durable storage after a terminal
	// success and records it in the completed retention set.
	Ack(ctx context.Context, task *Task) error

	// Reschedule returns a task to the delayed state with a new
	// ready-at. It preserves the task's identity and attempt count —
	// callers MUST use this (not Fail) for rate-limit rejections, which
	// are a control-flow outcome, not a retryable failure.
	Reschedule(ctx context.Context, task *Task, delay time.Duration) error

	// Fail applies the retry policy: up to MaxAttempts total attempts
	// with exponential backoff, then moves the task to the retained
	// failed set. It increments the attempt counter.
	Fail(ctx context.Context, task *Task, cause error) error

	// Heartbeat extends a reserved task's in-flight lease so the reaper
	// does not reclaim it mid-execution.
	Heartbeat(ctx context.Context, task *Task) error

	// ReapStale returns in-flight tasks whose lease has expired (worker
	// crash) to the ready set, and reports how many were reclaimed.
	ReapStale(ctx context.Context, threshold time.Duration) (int, error)

	// Metrics reports current queue depth by state.
	Metrics(ctx context.Context) (Metrics, error)
}
