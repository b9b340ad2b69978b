package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/garv190/outbox-email-project/id"
	"github.com/garv190/outbox-email-project/queue"
)

// Pool manages a set of concurrent worker goroutines that reserve tasks
// from the queue and run them through the Executor.
type Pool struct {
	queue        queue.TaskQueue
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	pollLimiter  *rate.Limiter
	workerID     id.WorkerID
	logger       *slog.Logger

	// Heartbeat / reaper configuration.
	heartbeatInterval time.Duration
	staleTaskThreshold time.Duration

	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	activeTasks map[string]context.CancelFunc
	activeMu    sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how often workers poll for a ready task when
// the queue has nothing to reserve.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often the pool extends the lease on
// active tasks. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleTaskThreshold sets how often the reaper calls
// TaskQueue.ReapStale, and the threshold it passes to it. A zero value
// disables reaping.
func WithStaleTaskThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleTaskThreshold = d }
}

// NewPool creates a worker pool.
func NewPool(tq queue.TaskQueue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        tq,
		executor:     executor,
		concurrency:  10,
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		activeTasks:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	// pollLimiter staggers idle-worker wakeups across the pool so a
	// burst of empty Reserve calls doesn't hammer the queue in lockstep;
	// it is purely local pacing, not an admission decision.
	p.pollLimiter = rate.NewLimiter(rate.Every(p.pollInterval/time.Duration(max(p.concurrency, 1))), 1)
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.reserveLoop()
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	if p.staleTaskThreshold > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish. If the
// context is cancelled before that happens, active tasks are force
// cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active tasks")
		p.cancelActiveTasks()
		p.wg.Wait()
	}

	return nil
}

// reserveLoop is run by each worker goroutine.
func (p *Pool) reserveLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		t, err := p.queue.Reserve(context.Background())
		if err != nil {
			p.logger.Error("reserve error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}

		if t == nil {
			p.sleep()
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.trackTask(t.ID, cancel)

		execErr := p.executor.Execute(ctx, t)
		if execErr != nil {
			p.logger.Debug("task execution failed",
				slog.String("task_id", t.ID),
				slog.String("dispatch_id", t.DispatchID.String()),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackTask(t.ID)
		cancel()
	}
}

// heartbeatLoop periodically extends the lease on all active tasks.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats()
		}
	}
}

func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	active := make([]string, 0, len(p.activeTasks))
	for taskID := range p.activeTasks {
		active = append(active, taskID)
	}
	p.activeMu.Unlock()

	for _, taskID := range active {
		t := &queue.Task{ID: taskID}
		if err := p.queue.Heartbeat(context.Background(), t); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reaperLoop periodically reclaims tasks whose lease has expired.
func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleTaskThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapStale()
		}
	}
}

func (p *Pool) reapStale() {
	n, err := p.queue.ReapStale(context.Background(), p.staleTaskThreshold)
	if err != nil {
		p.logger.Error("reap stale tasks error", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		p.logger.Info("reaped stale tasks", slog.Int("count", n))
	}
}

func (p *Pool) sleep() {
	delay := p.pollLimiter.Reserve().Delay()
	select {
	case <-time.After(delay):
	case <-p.stopCh:
	}
}

func (p *Pool) trackTask(taskID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeTasks[taskID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackTask(taskID string) {
	p.activeMu.Lock()
	delete(p.activeTasks, taskID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveTasks() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for taskID, cancel := range p.activeTasks {
		p.logger.Warn("cancelling active task", slog.String("task_id", taskID))
		cancel()
	}
}
