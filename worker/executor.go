// Package worker provides the delivery execution engine — an Executor
// that runs the dispatch state machine for a single reserved task, and
// a Pool that manages concurrent worker goroutines polling the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/mail"
	"github.com/garv190/outbox-email-project/queue"
	"github.com/garv190/outbox-email-project/ratelimit"
)

// errIllegalTransition is wrapped by advance when the dispatch state
// machine forbids the requested move.
var errIllegalTransition = errors.New("worker: illegal dispatch transition")

// tracerName is the instrumentation scope name for per-task execution
// tracing.
const tracerName = "github.com/garv190/outbox-email-project/worker"

// Executor runs a single reserved task through the delivery state
// machine: load dispatch, check idempotency, admit through the rate
// limiter, sleep for inter-send spacing, call the mail sender, then
// ack/reschedule/fail the task accordingly.
type Executor struct {
	store    delivery.Store
	queue    queue.TaskQueue
	limiter  ratelimit.Limiter
	sender   mail.Sender
	minDelay time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTracer overrides the OpenTelemetry tracer used to span each task
// execution. Defaults to otel.Tracer(tracerName), which resolves to a
// noop tracer when no TracerProvider has been configured globally.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	store delivery.Store,
	tq queue.TaskQueue,
	limiter ratelimit.Limiter,
	sender mail.Sender,
	minDelay time.Duration,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		store:    store,
		queue:    tq,
		limiter:  limiter,
		sender:   sender,
		minDelay: minDelay,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// advance moves d.Status to next, refusing the mutation if
// d.CanTransitionTo reports the move as illegal. It does not persist —
// callers call store.UpdateDispatch once the full row is ready to write.
func (e *Executor) advance(d *delivery.Dispatch, next delivery.Status) error {
	if !d.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, d.Status, next)
	}
	d.Status = next
	return nil
}

// Execute runs t through the dispatch state machine inside an
// OpenTelemetry span. The returned error is for observability/logging.
// After a send, and on the not-found and already-sent paths, the task has
// been acked, rescheduled or failed against the queue. An error from
// loading the dispatch, an illegal transition, a store write before the
// send, or the rate limiter returns without touching the queue; the task
// stays reserved.
func (e *Executor) Execute(ctx context.Context, t *queue.Task) error {
	ctx, span := e.tracer.Start(ctx, "worker.execute_dispatch",
		trace.WithAttributes(
			attribute.String("dispatch.id", t.DispatchID.String()),
			attribute.String("dispatch.campaign_id", t.CampaignID.String()),
			attribute.Int("dispatch.attempt", t.Attempt),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	err := e.execute(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// execute holds the actual dispatch state machine, separated from
// Execute so the span wrapper above stays a thin, uniform layer.
func (e *Executor) execute(ctx context.Context, t *queue.Task) error {
	d, err := e.store.GetDispatch(ctx, t.DispatchID)
	if err != nil {
		if errors.Is(err, outbox.ErrDispatchNotFound) {
			// Race with campaign deletion: ack and log, do not retry.
			e.logger.Warn("dispatch not found, acking task",
				slog.String("dispatch_id", t.DispatchID.String()))
			return e.queue.Ack(ctx, t)
		}
		return fmt.Errorf("worker: load dispatch: %w", err)
	}

	if d.Status == delivery.StatusSent {
		// Idempotent replay guard: already sent, silent success.
		return e.queue.Ack(ctx, t)
	}

	// A rate-limited dispatch loops back through SCHEDULED before it is
	// eligible for SENDING again; CanTransitionTo forbids RATE_LIMITED ->
	// SENDING directly.
	if d.Status == delivery.StatusRateLimited {
		if err := e.advance(d, delivery.StatusScheduled); err != nil {
			return err
		}
	}

	if err := e.advance(d, delivery.StatusSending); err != nil {
		return err
	}
	if err := e.store.UpdateDispatch(ctx, d); err != nil {
		return fmt.Errorf("worker: mark sending: %w", err)
	}

	senderScope := ""
	if d.SenderID != nil {
		senderScope = d.SenderID.String()
	}

	decision, err := e.limiter.TryAdmit(ctx, senderScope)
	if err != nil {
		return fmt.Errorf("worker: rate limiter: %w", err)
	}

	if !decision.Allowed {
		return e.rescheduleRateLimited(ctx, d, t, decision)
	}

	select {
	case <-time.After(e.minDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	result, sendErr := e.sender.Send(ctx, t.Recipient, t.Subject, t.Body)
	if sendErr != nil {
		return e.failTransport(ctx, d, t, sendErr)
	}

	return e.markSent(ctx, d, t, result)
}

// rescheduleRateLimited moves the dispatch back to RATE_LIMITED and
// reschedules the task to the next admission window, without
// consuming a retry attempt.
func (e *Executor) rescheduleRateLimited(ctx context.Context, d *delivery.Dispatch, t *queue.Task, decision ratelimit.Decision) error {
	if err := e.advance(d, delivery.StatusRateLimited); err != nil {
		return err
	}
	d.ScheduledTime = decision.ResetInstant
	if err := e.store.UpdateDispatch(ctx, d); err != nil {
		return fmt.Errorf("worker: mark rate limited: %w", err)
	}

	delay := time.Until(decision.ResetInstant)
	if delay < 0 {
		delay = 0
	}

	if err := e.queue.Reschedule(ctx, t, delay); err != nil {
		return fmt.Errorf("worker: reschedule rate-limited task: %w", err)
	}

	e.logger.Info("dispatch rate limited, rescheduled",
		slog.String("dispatch_id", d.ID.String()),
		slog.Time("reset_instant", decision.ResetInstant),
	)
	return nil
}

// failTransport records the transport failure on the dispatch row and
// hands the task to the queue's retry policy. The admit counter is NOT
// rolled back — a failed send still consumed its slot.
func (e *Executor) failTransport(ctx context.Context, d *delivery.Dispatch, t *queue.Task, sendErr error) error {
	if err := e.advance(d, delivery.StatusFailed); err != nil {
		return err
	}
	msg := sendErr.Error()
	d.ErrorMessage = &msg
	if err := e.store.UpdateDispatch(ctx, d); err != nil {
		e.logger.Error("worker: mark failed after transport error",
			slog.String("dispatch_id", d.ID.String()),
			slog.String("error", err.Error()))
	}

	if err := e.queue.Fail(ctx, t, sendErr); err != nil {
		return fmt.Errorf("worker: fail task: %w", err)
	}

	e.logger.Warn("transport failure",
		slog.String("dispatch_id", d.ID.String()),
		slog.Int("attempt", t.Attempt+1),
		slog.String("error", sendErr.Error()))

	return sendErr
}

// markSent records the successful send and acks the task.
func (e *Executor) markSent(ctx context.Context, d *delivery.Dispatch, t *queue.Task, result mail.Result) error {
	if err := e.advance(d, delivery.StatusSent); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.SentTime = &now
	messageID := result.MessageID
	d.SenderEmail = &messageID

	if err := e.store.UpdateDispatch(ctx, d); err != nil {
		return fmt.Errorf("worker: mark sent: %w", err)
	}

	return e.queue.Ack(ctx, t)
}
