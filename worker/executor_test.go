package worker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/mail/mailtest"
	"github.com/garv190/outbox-email-project/queue"
	"github.com/garv190/outbox-email-project/ratelimit"
	"github.com/garv190/outbox-email-project/store/memory"
	"github.com/garv190/outbox-email-project/worker"
)

// denyOnceLimiter admits every call except the first, which it denies
// with a fixed reset instant in the near future.
type denyOnceLimiter struct {
	calls int
	reset time.Time
}

func (l *denyOnceLimiter) TryAdmit(_ context.Context, _ string) (ratelimit.Decision, error) {
	l.calls++
	if l.calls == 1 {
		return ratelimit.Decision{Allowed: false, ResetInstant: l.reset}, nil
	}
	return ratelimit.Decision{Allowed: true}, nil
}

func (l *denyOnceLimiter) Inspect(_ context.Context, _ string) (ratelimit.Snapshot, error) {
	return ratelimit.Snapshot{}, nil
}

func newTask(d *delivery.Dispatch) *queue.Task {
	return &queue.Task{
		ID:          queue.TaskID(d.ID),
		DispatchID:  d.ID,
		CampaignID:  d.CampaignID,
		Recipient:   d.RecipientEmail,
		Subject:     d.Subject,
		Body:        d.Body,
		ScheduledAt: d.ScheduledTime,
	}
}

func TestExecutor_SendsAndAcksOnSuccess(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "ok@example.com")
	q := &queueStub{}
	sender := mailtest.NewMockSender()

	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())
	if err := exec.Execute(context.Background(), newTask(d)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := st.GetDispatch(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get dispatch: %v", err)
	}
	if got.Status != delivery.StatusSent {
		t.Errorf("status = %v, want SENT", got.Status)
	}
	if got.SentTime == nil {
		t.Error("sentTime not set")
	}
	if len(q.acked) != 1 {
		t.Errorf("acked = %d, want 1", len(q.acked))
	}
}

func TestExecutor_AlreadySentIsIdempotentAck(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "dup@example.com")
	d.Status = delivery.StatusSending
	if err := st.UpdateDispatch(context.Background(), d); err != nil {
		t.Fatalf("update: %v", err)
	}
	d.Status = delivery.StatusSent
	now := time.Now().UTC()
	d.SentTime = &now
	if err := st.UpdateDispatch(context.Background(), d); err != nil {
		t.Fatalf("update: %v", err)
	}

	q := &queueStub{}
	sender := mailtest.NewMockSender()
	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())

	if err := exec.Execute(context.Background(), newTask(d)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sender.Calls() != 0 {
		t.Errorf("send was called %d times, want 0 (idempotency guard)", sender.Calls())
	}
	if len(q.acked) != 1 {
		t.Errorf("acked = %d, want 1", len(q.acked))
	}
}

func TestExecutor_RateLimitedReschedulesWithoutSending(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "limited@example.com")
	q := &queueStub{}
	sender := mailtest.NewMockSender()
	limiter := &denyOnceLimiter{reset: time.Now().Add(time.Hour)}

	exec := worker.NewExecutor(st, q, limiter, sender, 0, slog.Default())
	if err := exec.Execute(context.Background(), newTask(d)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if sender.Calls() != 0 {
		t.Errorf("send was called, want 0 on rate-limit reject")
	}
	if len(q.pending) != 1 {
		t.Fatalf("pending = %d, want 1 (rescheduled)", len(q.pending))
	}
	if len(q.acked) != 0 || len(q.failed) != 0 {
		t.Errorf("acked=%d failed=%d, want both 0", len(q.acked), len(q.failed))
	}

	got, err := st.GetDispatch(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get dispatch: %v", err)
	}
	if got.Status != delivery.StatusRateLimited {
		t.Errorf("status = %v, want RATE_LIMITED", got.Status)
	}
}

func TestExecutor_TransportFailureMarksFailedAndFailsTask(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "broken@example.com")
	q := &queueStub{}
	sender := mailtest.NewMockSender(1)

	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())
	if err := exec.Execute(context.Background(), newTask(d)); err == nil {
		t.Fatal("expected transport error to propagate")
	}

	got, err := st.GetDispatch(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get dispatch: %v", err)
	}
	if got.Status != delivery.StatusFailed {
		t.Errorf("status = %v, want FAILED", got.Status)
	}
	if got.ErrorMessage == nil {
		t.Error("errorMessage not set")
	}
	if len(q.failed) != 1 {
		t.Errorf("failed = %d, want 1", len(q.failed))
	}
}

func TestExecutor_MinDelaySpacesSendOut(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "spaced@example.com")
	q := &queueStub{}
	sender := mailtest.NewMockSender()

	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 40*time.Millisecond, slog.Default())

	start := time.Now()
	if err := exec.Execute(context.Background(), newTask(d)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 40ms", elapsed)
	}
}

func TestExecutor_ResumesRateLimitedDispatchThroughScheduled(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "resumed@example.com")
	d.Status = delivery.StatusRateLimited
	if err := st.UpdateDispatch(context.Background(), d); err != nil {
		t.Fatalf("update: %v", err)
	}

	q := &queueStub{}
	sender := mailtest.NewMockSender()
	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())

	if err := exec.Execute(context.Background(), newTask(d)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := st.GetDispatch(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get dispatch: %v", err)
	}
	if got.Status != delivery.StatusSent {
		t.Errorf("status = %v, want SENT (RATE_LIMITED must resume through SCHEDULED)", got.Status)
	}
	if len(q.acked) != 1 {
		t.Errorf("acked = %d, want 1", len(q.acked))
	}
}

func TestExecutor_RejectsIllegalTransitionWithoutMutatingOrAcking(t *testing.T) {
	st := memory.New()
	d := newTestDispatch(st, "illegal@example.com")
	d.Status = delivery.StatusSent
	if err := st.UpdateDispatch(context.Background(), d); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Force the in-memory copy back to a state CanTransitionTo forbids
	// moving to SENDING from, bypassing the idempotency guard that
	// would otherwise short-circuit on StatusSent.
	d.Status = delivery.StatusFailed
	if err := st.UpdateDispatch(context.Background(), d); err != nil {
		t.Fatalf("update: %v", err)
	}

	q := &queueStub{}
	sender := mailtest.NewMockSender()
	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())

	if err := exec.Execute(context.Background(), newTask(d)); err == nil {
		t.Fatal("expected an illegal-transition error, got nil")
	}
	if sender.Calls() != 0 {
		t.Errorf("send was called %d times, want 0", sender.Calls())
	}
	if len(q.acked) != 0 || len(q.failed) != 0 || len(q.pending) != 0 {
		t.Errorf("queue was touched: acked=%d failed=%d pending=%d, want all 0", len(q.acked), len(q.failed), len(q.pending))
	}
}

func TestExecutor_MissingDispatchIsAckedNotRetried(t *testing.T) {
	st := memory.New()
	q := &queueStub{}
	sender := mailtest.NewMockSender()
	exec := worker.NewExecutor(st, q, alwaysAdmitLimiter{}, sender, 0, slog.Default())

	ghostDispatchID := id.NewDispatchID()
	ghost := &queue.Task{
		ID:         queue.TaskID(ghostDispatchID),
		DispatchID: ghostDispatchID,
		Recipient:  "ghost@example.com",
	}

	if err := exec.Execute(context.Background(), ghost); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(q.acked) != 1 {
		t.Errorf("acked = %d, want 1", len(q.acked))
	}
	if sender.Calls() != 0 {
		t.Errorf("send was called, want 0 for a missing dispatch")
	}
}
