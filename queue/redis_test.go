package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/garv190/outbox-email-project/backoff"
	"github.com/garv190/outbox-email-project/id"
)

func setupTestQueue(t *testing.T, opts ...Option) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client, opts...), mr
}

func newTestTask(recipient string) *Task {
	dispatchID := id.NewDispatchID()
	return &Task{
		ID:          TaskID(dispatchID),
		DispatchID:  dispatchID,
		CampaignID:  id.NewCampaignID(),
		Recipient:   recipient,
		Subject:     "subject",
		Body:        "body",
		ScheduledAt: time.Now().UTC(),
	}
}

func TestEnqueueReserve_RoundTrips(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := newTestTask("a@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got == nil {
		t.Fatal("expected a reserved task, got nil")
	}
	if got.ID != task.ID || got.Recipient != task.Recipient {
		t.Errorf("reserved task = %+v, want id=%s recipient=%s", got, task.ID, task.Recipient)
	}
}

func TestEnqueue_IsIdempotentOnDuplicateID(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := newTestTask("dup@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	second := newTestTask("dup@example.com")
	second.ID = task.ID
	if err := q.Enqueue(ctx, second, time.Hour); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	metrics, err := q.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Waiting+metrics.Delayed != 1 {
		t.Errorf("ready set size = %d, want 1 (no duplicate)", metrics.Waiting+metrics.Delayed)
	}
}

func TestReserve_HidesDelayedTask(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := newTestTask("later@example.com")
	if err := q.Enqueue(ctx, task, time.Hour); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got != nil {
		t.Errorf("expected no ready task, got %+v", got)
	}
}

func TestAck_RemovesTaskFromInflightAndRecordsCompleted(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := newTestTask("ack@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	reserved, err := q.Reserve(ctx)
	if err != nil || reserved == nil {
		t.Fatalf("reserve: %v %+v", err, reserved)
	}

	if err := q.Ack(ctx, reserved); err != nil {
		t.Fatalf("ack: %v", err)
	}

	metrics, err := q.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Active != 0 {
		t.Errorf("active = %d, want 0", metrics.Active)
	}
	if metrics.Completed != 1 {
		t.Errorf("completed = %d, want 1", metrics.Completed)
	}
}

func TestReschedule_PreservesAttemptCount(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := newTestTask("rl@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	reserved, err := q.Reserve(ctx)
	if err != nil || reserved == nil {
		t.Fatalf("reserve: %v %+v", err, reserved)
	}

	if err := q.Reschedule(ctx, reserved, time.Hour); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if reserved.Attempt != 0 {
		t.Errorf("attempt = %d, want 0 (reschedule must not consume a retry)", reserved.Attempt)
	}

	again, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve after reschedule: %v", err)
	}
	if again != nil {
		t.Error("rescheduled task should not be immediately ready")
	}
}

func TestFail_RetriesUntilMaxAttemptsThenMovesToFailedSet(t *testing.T) {
	// Zero backoff so each retry is immediately reservable again.
	q, _ := setupTestQueue(t, WithBackoffStrategy(backoff.NewExponential(0, 1, 0)))
	ctx := context.Background()

	task := newTestTask("flaky@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		reserved, err := q.Reserve(ctx)
		if err != nil || reserved == nil {
			t.Fatalf("reserve attempt %d: %v %+v", i, err, reserved)
		}
		if err := q.Fail(ctx, reserved, errors.New("boom")); err != nil {
			t.Fatalf("fail attempt %d: %v", i, err)
		}
	}

	metrics, err := q.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Failed != 0 {
		t.Errorf("failed = %d, want 0 (budget not exhausted yet)", metrics.Failed)
	}

	last, err := q.Reserve(ctx)
	if err != nil || last == nil {
		t.Fatalf("reserve final attempt: %v %+v", err, last)
	}
	if err := q.Fail(ctx, last, errors.New("boom")); err != nil {
		t.Fatalf("fail final attempt: %v", err)
	}
	metrics, err = q.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Failed != 1 {
		t.Errorf("failed = %d, want 1 (budget exhausted)", metrics.Failed)
	}
}

func TestHeartbeat_ExtendsInflightLease(t *testing.T) {
	q, _ := setupTestQueue(t, WithLeaseDuration(10*time.Second))
	ctx := context.Background()

	task := newTestTask("lease@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	reserved, err := q.Reserve(ctx)
	if err != nil || reserved == nil {
		t.Fatalf("reserve: %v %+v", err, reserved)
	}

	if err := q.Heartbeat(ctx, reserved); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	n, err := q.ReapStale(ctx, time.Second)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 0 {
		t.Errorf("reaped = %d, want 0 (heartbeat should keep lease alive)", n)
	}
}

func TestReapStale_ReturnsExpiredLeaseToReadySet(t *testing.T) {
	q, _ := setupTestQueue(t, WithLeaseDuration(-time.Second))
	ctx := context.Background()

	task := newTestTask("stale@example.com")
	if err := q.Enqueue(ctx, task, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Reserve(ctx); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	n, err := q.ReapStale(ctx, time.Second)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped = %d, want 1", n)
	}

	got, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve after reap: %v", err)
	}
	if got == nil {
		t.Error("expected reaped task to be reservable again")
	}
}
