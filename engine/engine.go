package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/campaign"
	"github.com/garv190/outbox-email-project/delivery"
	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/mail"
	"github.com/garv190/outbox-email-project/queue"
	"github.com/garv190/outbox-email-project/ratelimit"
	"github.com/garv190/outbox-email-project/store"
	"github.com/garv190/outbox-email-project/worker"
)

// recipientPattern is the exact validation regex the ingress algorithm
// runs over every recipient after deduplication.
var recipientPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// startTimeSkew is the clock-skew tolerance applied to StartTime.
const startTimeSkew = 60 * time.Second

// tracerName is the instrumentation scope name for the per-task tracer
// the engine hands to its Executor.
const tracerName = "github.com/garv190/outbox-email-project/worker"

// Engine wires the store, task queue, rate limiter, mail sender, and
// worker pool into a running scheduler, and implements campaign
// ingress.
type Engine struct {
	store     store.Store
	queue     queue.TaskQueue
	limiter   ratelimit.Limiter
	sender    mail.Sender
	pool      *worker.Pool
	executor  *worker.Executor
	validator *validator.Validate
	config    outbox.Config
	logger    *slog.Logger

	// tracerProvider backs the tracer handed to worker.Executor. When
	// unset, Build falls back to otel.GetTracerProvider() (the global
	// provider), which defaults to a noop implementation.
	tracerProvider trace.TracerProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithSender overrides the mail transport. If not set, Build selects
// SESSender or SMTPSender from config.MailTransport.
func WithSender(s mail.Sender) Option {
	return func(e *Engine) { e.sender = s }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithQueue overrides the task queue implementation. Mainly useful in
// tests with a fake queue.TaskQueue.
func WithQueue(q queue.TaskQueue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithLimiter overrides the rate limiter implementation.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithTracerProvider sets the OpenTelemetry TracerProvider used to
// instrument per-task delivery spans. If not set, Build uses the global
// otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// Build wires a store and Redis client into a running Engine. redisClient
// backs both the task queue and the rate limiter, per the compatibility-
// critical key layout (§6).
func Build(ctx context.Context, st store.Store, redisClient goredis.Cmdable, cfg outbox.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:     st,
		queue:     queue.NewRedisQueue(redisClient),
		limiter:   ratelimit.NewRedisLimiter(redisClient, cfg.MaxEmailsPerHour, cfg.MaxEmailsPerHourPerSender),
		validator: validator.New(),
		config:    cfg,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sender == nil {
		sender, err := defaultSender(ctx, cfg, st)
		if err != nil {
			return nil, fmt.Errorf("engine: build default mail sender: %w", err)
		}
		e.sender = sender
	}

	tp := e.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	minDelay := time.Duration(cfg.MinDelayBetweenEmailsMs) * time.Millisecond
	e.executor = worker.NewExecutor(st, e.queue, e.limiter, e.sender, minDelay, e.logger,
		worker.WithTracer(tp.Tracer(tracerName)))
	e.pool = worker.NewPool(e.queue, e.executor, e.logger,
		worker.WithPoolConcurrency(cfg.WorkerConcurrency),
		worker.WithPollInterval(cfg.PollInterval),
		worker.WithHeartbeatInterval(cfg.HeartbeatInterval),
		worker.WithStaleTaskThreshold(cfg.StaleTaskThreshold),
	)

	return e, nil
}

func defaultSender(ctx context.Context, cfg outbox.Config, accounts mail.AccountStore) (mail.Sender, error) {
	switch cfg.MailTransport {
	case "ses":
		return mail.NewSESSender(ctx, cfg.AWSRegion, "", "", cfg.SESFromAddress)
	default:
		return mail.NewSMTPSender(accounts), nil
	}
}

// Start begins delivery processing.
func (e *Engine) Start(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// Stop gracefully drains in-flight deliveries.
func (e *Engine) Stop(ctx context.Context) error {
	return e.pool.Stop(ctx)
}

// Store returns the engine's underlying store, for the status/reporting
// surface (§4.5) built on top of it.
func (e *Engine) Store() store.Store { return e.store }

// Limiter returns the engine's rate limiter (the one the worker's
// executor admits sends through).
func (e *Engine) Limiter() ratelimit.Limiter { return e.limiter }

// Queue returns the engine's task queue, for the status endpoint's
// depth-by-state snapshot.
func (e *Engine) Queue() queue.TaskQueue { return e.queue }

// CreateCampaignRequest is the ingress payload for CreateCampaign.
type CreateCampaignRequest struct {
	UserID         string   `validate:"required,uuid4"`
	Subject        string   `validate:"required"`
	Body           string   `validate:"required"`
	Recipients     []string `validate:"required,min=1"`
	StartTime      time.Time
	DelayBetweenMs *int
	HourlyLimit    *int
}

// CreateCampaignResult is what CreateCampaign returns on success.
type CreateCampaignResult struct {
	Campaign *campaign.Campaign
	Created  int
	Failed   int
}

// CreateCampaign runs the full ingress algorithm (§4.3): validate,
// deduplicate recipients, apply defaults, insert the campaign, then
// per-recipient insert a dispatch and enqueue its task — tolerating
// duplicate-insert skips without aborting the batch — before
// transitioning the campaign to IN_PROGRESS.
func (e *Engine) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*CreateCampaignResult, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", outbox.ErrValidation, err)
	}

	if req.StartTime.Before(time.Now().Add(-startTimeSkew)) {
		return nil, fmt.Errorf("%w: startTime is too far in the past", outbox.ErrValidation)
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: userId: %v", outbox.ErrValidation, err)
	}

	recipients, err := dedupeAndValidateRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}

	delayBetweenMs := e.config.MinDelayBetweenEmailsMs
	if req.DelayBetweenMs != nil {
		delayBetweenMs = *req.DelayBetweenMs
	}
	hourlyLimit := e.config.MaxEmailsPerHourPerSender
	if req.HourlyLimit != nil {
		hourlyLimit = *req.HourlyLimit
	}

	c := campaign.New(userID, req.Subject, req.Body, req.StartTime, delayBetweenMs, hourlyLimit)
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("engine: create campaign: %w", err)
	}

	now := time.Now().UTC()
	baseDelay := c.StartTime.Sub(now)
	if baseDelay < 0 {
		baseDelay = 0
	}

	created, failed := 0, 0
	for i, recipient := range recipients {
		delay := baseDelay + time.Duration(i*delayBetweenMs)*time.Millisecond
		scheduledAt := now.Add(delay)

		d := delivery.New(c.ID, recipient, c.Subject, c.Body, scheduledAt)
		if err := e.store.CreateDispatch(ctx, d); err != nil {
			if isDuplicateDispatch(err) {
				failed++
				continue
			}
			return nil, fmt.Errorf("engine: create dispatch for %q: %w", recipient, err)
		}

		task := &queue.Task{
			ID:          queue.TaskID(d.ID),
			DispatchID:  d.ID,
			CampaignID:  c.ID,
			Recipient:   recipient,
			Subject:     c.Subject,
			Body:        c.Body,
			ScheduledAt: scheduledAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.queue.Enqueue(ctx, task, delay); err != nil {
			return nil, fmt.Errorf("engine: enqueue task for %q: %w", recipient, err)
		}

		created++
	}

	if created == 0 {
		return nil, outbox.ErrNoNewDispatches
	}

	if err := e.store.UpdateStatus(ctx, c.ID, campaign.StatusInProgress); err != nil {
		return nil, fmt.Errorf("engine: transition campaign to in-progress: %w", err)
	}
	c.Status = campaign.StatusInProgress

	return &CreateCampaignResult{Campaign: c, Created: created, Failed: failed}, nil
}

func dedupeAndValidateRecipients(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, r := range raw {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}

		if !recipientPattern.MatchString(r) {
			return nil, fmt.Errorf("%w: invalid recipient %q", outbox.ErrValidation, r)
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, outbox.ErrNoNewDispatches
	}

	return out, nil
}

func isDuplicateDispatch(err error) bool {
	return errors.Is(err, delivery.ErrDuplicate)
}
