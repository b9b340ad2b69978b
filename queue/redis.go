package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/garv190/outbox-email-project/backoff"
	"github.com/garv190/outbox-email-project/id"
)

const maxCompletedRetained = 1000

const completedRetention = 24 * time.Hour
const failedRetention = 7 * 24 * time.Hour

// RedisQueue implements TaskQueue on top of Redis: a Hash per task plus
// one Sorted Set per state, following the same Hash-per-entity,
// Sorted-Set-per-queue shape used elsewhere in this codebase's store
// layer, adapted to the fixed reachinboxScheduler key namespace.
type RedisQueue struct {
	client        goredis.Cmdable
	backoff       backoff.Strategy
	leaseDuration time.Duration
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithBackoffStrategy overrides the retry backoff strategy. Defaults to
// backoff.DefaultStrategy (5s, 25s, 125s).
func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(q *RedisQueue) { q.backoff = s }
}

// WithLeaseDuration sets how long a reservation is held before the
// reaper considers it abandoned. Defaults to 60s.
func WithLeaseDuration(d time.Duration) Option {
	return func(q *RedisQueue) { q.leaseDuration = d }
}

// NewRedisQueue creates a Redis-backed TaskQueue.
func NewRedisQueue(client goredis.Cmdable, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		client:        client,
		backoff:       backoff.DefaultStrategy(),
		leaseDuration: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue implements TaskQueue.
func (q *RedisQueue) Enqueue(ctx context.Context, task *Task, delay time.Duration) error {
	key := taskKey(task.ID)

	// HSetNX atomically claims the hash on a sentinel field; a second
	// enqueue under the same ID observes created=false and is a no-op,
	// preserving the idempotency invariant even under concurrent callers.
	created, err := q.client.HSetNX(ctx, key, "id", task.ID).Result()
	if err != nil {
		return fmt.Errorf("queue: enqueue claim: %w", err)
	}
	if !created {
		return nil
	}

	now := time.Now().UTC()
	readyAt := now.Add(delay)
	task.ReadyAt = readyAt
	task.CreatedAt = now
	task.UpdatedAt = now

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, taskToMap(task))
	pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(readyAt.Unix()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Reserve implements TaskQueue.
func (q *RedisQueue) Reserve(ctx context.Context) (*Task, error) {
	now := time.Now().UTC()

	ids, err := q.client.ZRangeByScore(ctx, readyKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: reserve scan: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	taskID := ids[0]

	// ZRem's return value is the atomicity boundary: if two workers race
	// on the same member, only one observes removed==1.
	removed, err := q.client.ZRem(ctx, readyKey, taskID).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: reserve claim: %w", err)
	}
	if removed == 0 {
		return nil, nil
	}

	task, err := q.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	lease := now.Add(q.leaseDuration)
	if err := q.client.ZAdd(ctx, inflightKey, goredis.Z{Score: float64(lease.Unix()), Member: taskID}).Err(); err != nil {
		return nil, fmt.Errorf("queue: reserve lease: %w", err)
	}
	return task, nil
}

// Ack implements TaskQueue.
func (q *RedisQueue) Ack(ctx context.Context, task *Task) error {
	now := time.Now().UTC()

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, task.ID)
	pipe.ZRem(ctx, readyKey, task.ID)
	pipe.HSet(ctx, taskKey(task.ID), "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, completedKey, goredis.Z{Score: float64(now.Unix()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}

	return q.trimRetained(ctx, completedKey, completedRetention, maxCompletedRetained)
}

// Reschedule implements TaskQueue. It MUST NOT touch the attempt
// counter: rate-limit rejection is a control-flow outcome, not a
// retryable failure (spec §9's resolved Open Question).
func (q *RedisQueue) Reschedule(ctx context.Context, task *Task, delay time.Duration) error {
	now := time.Now().UTC()
	readyAt := now.Add(delay)
	task.ReadyAt = readyAt
	task.UpdatedAt = now

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, task.ID)
	pipe.HSet(ctx, taskKey(task.ID), map[string]any{
		"ready_at":   readyAt.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(readyAt.Unix()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: reschedule: %w", err)
	}
	return nil
}

// Fail implements TaskQueue's retry policy. With backoff.DefaultStrategy
// and backoff.MaxAttempts = 3 total attempts, a failed task is retried
// after 5s and then 25s; its third failure moves it to the failed set.
func (q *RedisQueue) Fail(ctx context.Context, task *Task, cause error) error {
	task.Attempt++
	now := time.Now().UTC()
	task.UpdatedAt = now
	task.LastError = cause.Error()

	if task.Attempt < backoff.MaxAttempts {
		delay := q.backoff.Delay(task.Attempt)
		readyAt := now.Add(delay)
		task.ReadyAt = readyAt

		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, inflightKey, task.ID)
		pipe.HSet(ctx, taskKey(task.ID), map[string]any{
			"attempt":    strconv.Itoa(task.Attempt),
			"ready_at":   readyAt.Format(time.RFC3339Nano),
			"updated_at": now.Format(time.RFC3339Nano),
			"last_error": task.LastError,
		})
		pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(readyAt.Unix()), Member: task.ID})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("queue: fail retry: %w", err)
		}
		return nil
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, task.ID)
	pipe.ZRem(ctx, readyKey, task.ID)
	pipe.HSet(ctx, taskKey(task.ID), map[string]any{
		"attempt":    strconv.Itoa(task.Attempt),
		"updated_at": now.Format(time.RFC3339Nano),
		"last_error": task.LastError,
	})
	pipe.ZAdd(ctx, failedKey, goredis.Z{Score: float64(now.Unix()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: fail exhausted: %w", err)
	}

	return q.trimRetained(ctx, failedKey, failedRetention, 0)
}

// Heartbeat implements TaskQueue.
func (q *RedisQueue) Heartbeat(ctx context.Context, task *Task) error {
	lease := time.Now().UTC().Add(q.leaseDuration)
	if err := q.client.ZAdd(ctx, inflightKey, goredis.Z{Score: float64(lease.Unix()), Member: task.ID}).Err(); err != nil {
		return fmt.Errorf("queue: heartbeat: %w", err)
	}
	return nil
}

// ReapStale implements TaskQueue. threshold is accepted for interface
// symmetry with the worker's configured stale-task window, but the
// authoritative expiry is the per-reservation lease set at Reserve time.
func (q *RedisQueue) ReapStale(ctx context.Context, _ time.Duration) (int, error) {
	now := time.Now().UTC()

	expired, err := q.client.ZRangeByScore(ctx, inflightKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: reap scan: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, taskID := range expired {
		pipe.ZRem(ctx, inflightKey, taskID)
		pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(now.Unix()), Member: taskID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue: reap: %w", err)
	}
	return len(expired), nil
}

// Metrics implements TaskQueue.
func (q *RedisQueue) Metrics(ctx context.Context) (Metrics, error) {
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	waiting, err := q.client.ZCount(ctx, readyKey, "-inf", now).Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("queue: metrics waiting: %w", err)
	}
	delayed, err := q.client.ZCount(ctx, readyKey, "("+now, "+inf").Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("queue: metrics delayed: %w", err)
	}
	active, err := q.client.ZCard(ctx, inflightKey).Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("queue: metrics active: %w", err)
	}
	completed, err := q.client.ZCard(ctx, completedKey).Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("queue: metrics completed: %w", err)
	}
	failed, err := q.client.ZCard(ctx, failedKey).Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("queue: metrics failed: %w", err)
	}

	return Metrics{
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
		Delayed:   delayed,
	}, nil
}

// trimRetained enforces a retention window (and, if maxItems > 0, a
// count cap) over a retention Sorted Set, deleting the backing task
// Hash for every evicted member.
func (q *RedisQueue) trimRetained(ctx context.Context, setKey string, window time.Duration, maxItems int64) error {
	cutoff := time.Now().UTC().Add(-window)

	expired, err := q.client.ZRangeByScore(ctx, setKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: trim %s scan age: %w", setKey, err)
	}
	if len(expired) > 0 {
		if err := q.evict(ctx, setKey, expired); err != nil {
			return err
		}
	}

	if maxItems <= 0 {
		return nil
	}

	card, err := q.client.ZCard(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("queue: trim %s card: %w", setKey, err)
	}
	if card <= maxItems {
		return nil
	}

	overflow, err := q.client.ZRange(ctx, setKey, 0, card-maxItems-1).Result()
	if err != nil {
		return fmt.Errorf("queue: trim %s overflow: %w", setKey, err)
	}
	return q.evict(ctx, setKey, overflow)
}

func (q *RedisQueue) evict(ctx context.Context, setKey string, taskIDs []string) error {
	pipe := q.client.TxPipeline()
	members := make([]any, len(taskIDs))
	for i, taskID := range taskIDs {
		members[i] = taskID
		pipe.Del(ctx, taskKey(taskID))
	}
	pipe.ZRem(ctx, setKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: evict from %s: %w", setKey, err)
	}
	return nil
}

func (q *RedisQueue) getTask(ctx context.Context, taskID string) (*Task, error) {
	vals, err := q.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: get task: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrTaskNotFound
	}
	return mapToTask(vals)
}

func taskToMap(t *Task) map[string]any {
	m := map[string]any{
		"id":           t.ID,
		"dispatch_id":  t.DispatchID.String(),
		"campaign_id":  t.CampaignID.String(),
		"recipient":    t.Recipient,
		"subject":      t.Subject,
		"body":         t.Body,
		"scheduled_at": t.ScheduledAt.Format(time.RFC3339Nano),
		"ready_at":     t.ReadyAt.Format(time.RFC3339Nano),
		"attempt":      strconv.Itoa(t.Attempt),
		"last_error":   t.LastError,
		"created_at":   t.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   t.UpdatedAt.Format(time.RFC3339Nano),
	}
	if !t.SenderID.IsNil() {
		m["sender_id"] = t.SenderID.String()
	}
	return m
}

func mapToTask(m map[string]string) (*Task, error) {
	dispatchID, err := id.ParseDispatchID(m["dispatch_id"])
	if err != nil {
		return nil, fmt.Errorf("queue: parse dispatch id: %w", err)
	}
	campaignID, err := id.ParseCampaignID(m["campaign_id"])
	if err != nil {
		return nil, fmt.Errorf("queue: parse campaign id: %w", err)
	}

	attempt, _ := strconv.Atoi(m["attempt"]) //nolint:errcheck // best-effort parse from trusted Redis data

	scheduledAt, _ := time.Parse(time.RFC3339Nano, m["scheduled_at"]) //nolint:errcheck
	readyAt, _ := time.Parse(time.RFC3339Nano, m["ready_at"])        //nolint:errcheck
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])    //nolint:errcheck
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])    //nolint:errcheck

	task := &Task{
		ID:          m["id"],
		DispatchID:  dispatchID,
		CampaignID:  campaignID,
		Recipient:   m["recipient"],
		Subject:     m["subject"],
		Body:        m["body"],
		ScheduledAt: scheduledAt,
		ReadyAt:     readyAt,
		Attempt:     attempt,
		LastError:   m["last_error"],
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}

	if sid := m["sender_id"]; sid != "" {
		task.SenderID, _ = id.ParseSenderID(sid) //nolint:errcheck
	}

	return task, nil
}
