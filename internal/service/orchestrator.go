package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	cfotel "github.com/Strob0t/Exec/internal/adapter/otel"
	"github.com/Strob0t/Exec/internal/config"
	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/task"
	"github.com/Strob0t/Exec/internal/logger"
	"github.com/Strob0t/Exec/internal/port/broadcast"
	"github.com/Strob0t/Exec/internal/port/notification"
)

// Runner runs one decision cycle for an actor on a task.
type Runner interface {
	Run(ctx context.Context, taskID, actorID string) (*Cycle, error)
}

// TaskWatcher is what the orchestrator needs from TaskService.
type TaskWatcher interface {
	Get(ctx context.Context, id string) (*task.Task, error)
	AppendDiagnostic(ctx context.Context, taskID, authorID, body string) (*task.Message, error)
}

// Stats counts wake-ups since the orchestrator was created.
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Skipped   int64 `json:"skipped"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type wakeup struct {
	taskID    string
	actorID   string
	chain     Chain
	requestID string
}

// Orchestrator turns bus events into persona wake-ups. Events are handled
// without blocking the publisher: each autonomous recipient becomes a job in
// a bounded queue, and a full queue drops the job. Jobs run concurrently up
// to MaxConcurrent.
type Orchestrator struct {
	cfg     config.Orchestrator
	tasks   TaskWatcher
	actors  ActorReader
	runner  Runner
	metrics *cfotel.Metrics
	events  broadcast.Broadcaster

	jobs chan wakeup
	sem  *semaphore.Weighted

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	stopped bool

	cancel   context.CancelFunc
	loopDone chan struct{}
	workers  sync.WaitGroup

	enqueued, dropped, skipped, completed, failed atomic.Int64
}

// NewOrchestrator creates an Orchestrator. Call Start to begin running jobs.
func NewOrchestrator(cfg config.Orchestrator, tasks TaskWatcher, actors ActorReader, runner Runner, metrics *cfotel.Metrics) *Orchestrator {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 32
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 256
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	o := &Orchestrator{
		cfg:     cfg,
		tasks:   tasks,
		actors:  actors,
		runner:  runner,
		metrics: metrics,
		jobs:    make(chan wakeup, cfg.QueueDepth),
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
	}
	o.idle = sync.NewCond(&o.mu)
	return o
}

// SetBroadcaster streams wake-up outcomes to b. Call before Start.
func (o *Orchestrator) SetBroadcaster(b broadcast.Broadcaster) {
	o.events = b
}

// Handle is the bus handler. Only message and assignment events wake
// personas, and only while the chain is within the depth budget.
func (o *Orchestrator) Handle(ctx context.Context, ev notification.Event) error {
	if !ev.Wakes() {
		return nil
	}
	if ev.Depth >= o.cfg.MaxDepth {
		o.skipped.Add(1)
		o.count(ctx, o.metricSkipped(), "depth")
		slog.InfoContext(ctx, "wake-up depth budget exhausted",
			"task_id", ev.TaskID, "chain_id", ev.ChainID, "depth", ev.Depth)
		return nil
	}

	for _, id := range ev.Recipients {
		a, err := o.actors.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "unknown event recipient", "task_id", ev.TaskID, "actor_id", id, "error", err)
			continue
		}
		if !a.Autonomous() {
			continue
		}
		o.enqueue(ctx, wakeup{
			taskID:    ev.TaskID,
			actorID:   a.ID,
			chain:     Chain{ID: ev.ChainID, Depth: ev.Depth},
			requestID: logger.RequestID(ctx),
		})
	}
	return nil
}

// enqueue sends under o.mu so Stop, which flips stopped under the same lock,
// sees every accepted job when it drains the queue.
func (o *Orchestrator) enqueue(ctx context.Context, w wakeup) {
	o.mu.Lock()
	stopped, accepted := o.stopped, false
	if !stopped {
		select {
		case o.jobs <- w:
			o.pending++
			accepted = true
		default:
		}
	}
	o.mu.Unlock()

	if accepted {
		o.enqueued.Add(1)
		return
	}
	reason := "queue_full"
	if stopped {
		reason = "stopped"
	}
	o.dropped.Add(1)
	o.count(ctx, o.metricDropped(), reason)
	slog.WarnContext(ctx, "dropping wake-up", "reason", reason, "task_id", w.taskID, "actor_id", w.actorID)
	o.announce(ctx, broadcast.WakeupEvent{TaskID: w.taskID, ActorID: w.actorID, Status: broadcast.StatusDropped})
}

// Start launches the dispatch loop. Jobs run on contexts derived from ctx,
// not from the publisher's.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.loopDone = make(chan struct{})
	go o.loop(ctx)
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-o.jobs:
			if err := o.sem.Acquire(ctx, 1); err != nil {
				o.finish()
				return
			}
			o.workers.Add(1)
			go func() {
				defer o.workers.Done()
				defer o.sem.Release(1)
				defer o.finish()
				o.wake(ctx, w)
			}()
		}
	}
}

// Stop cancels running wake-ups, waits for them to return and drops what is
// still queued. Events handled after Stop are dropped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	if o.cancel == nil {
		return
	}
	o.cancel()
	<-o.loopDone
	o.workers.Wait()
	for {
		select {
		case <-o.jobs:
			o.dropped.Add(1)
			o.finish()
		default:
			return
		}
	}
}

// Wait blocks until no wake-up is queued or running.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	for o.pending > 0 {
		o.idle.Wait()
	}
	o.mu.Unlock()
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.pending--
	if o.pending == 0 {
		o.idle.Broadcast()
	}
	o.mu.Unlock()
}

// Stats returns a snapshot of the wake-up counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Enqueued:  o.enqueued.Load(),
		Dropped:   o.dropped.Load(),
		Skipped:   o.skipped.Load(),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
	}
}

func (o *Orchestrator) wake(ctx context.Context, w wakeup) {
	if w.requestID != "" {
		ctx = logger.WithRequestID(ctx, w.requestID)
	}
	ctx = WithChain(ctx, w.chain)
	ctx = logger.WithAttrs(ctx, slog.String("task_id", w.taskID), slog.String("actor_id", w.actorID))

	ctx, span := cfotel.StartWakeupSpan(ctx, w.taskID, w.actorID, w.chain.Depth)
	defer span.End()

	t, err := o.tasks.Get(ctx, w.taskID)
	if err != nil {
		o.failed.Add(1)
		slog.WarnContext(ctx, "wake-up task lookup failed", "error", err)
		return
	}
	if !t.Active() {
		o.skipped.Add(1)
		o.count(ctx, o.metricSkipped(), "inactive")
		slog.DebugContext(ctx, "task inactive, skipping wake-up")
		return
	}

	o.count(ctx, o.metricStarted(), "")
	cycle, err := o.runner.Run(ctx, w.taskID, w.actorID)
	if cycle == nil {
		cycle = &Cycle{TaskID: w.taskID, ActorID: w.actorID}
	}
	outcome := broadcast.WakeupEvent{
		TaskID:  w.taskID,
		ActorID: w.actorID,
		Persona: string(cycle.Persona),
		Action:  cycle.actionName(),
		Status:  broadcast.StatusCompleted,
	}
	if err == nil {
		o.completed.Add(1)
		slog.InfoContext(ctx, "persona acted", "persona", string(cycle.Persona), "action", cycle.actionName())
		o.announce(ctx, outcome)
		return
	}
	outcome.Status, outcome.Error = broadcast.StatusFailed, err.Error()
	o.announce(ctx, outcome)

	o.failed.Add(1)
	o.count(ctx, o.metricFailed(), string(cycle.Persona))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	slog.WarnContext(ctx, "wake-up failed", "persona", string(cycle.Persona), "error", err)

	if ctx.Err() != nil {
		return
	}
	if _, derr := o.tasks.AppendDiagnostic(ctx, w.taskID, w.actorID, diagnostic(cycle, err)); derr != nil {
		if errors.Is(derr, domain.ErrNotFound) {
			slog.WarnContext(ctx, "task gone, wake-up failure not recorded", "error", derr)
			return
		}
		slog.ErrorContext(ctx, "failed to record wake-up failure", "error", derr)
	}
}

func (o *Orchestrator) announce(ctx context.Context, ev broadcast.WakeupEvent) {
	if o.events != nil {
		o.events.BroadcastEvent(ctx, broadcast.EventWakeup, ev)
	}
}

// diagnostic renders a failed cycle for the task discussion.
func diagnostic(c *Cycle, err error) string {
	who := "persona"
	if c.Persona != "" {
		who = string(c.Persona) + " persona"
	}
	msg := fmt.Sprintf("The %s could not act: %v", who, err)
	if c.Raw != "" {
		msg += fmt.Sprintf("\nAction output: %q", c.Raw)
	}
	return msg
}

func (o *Orchestrator) count(ctx context.Context, c metric.Int64Counter, reason string) {
	if c == nil {
		return
	}
	if reason == "" {
		c.Add(ctx, 1)
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (o *Orchestrator) metricStarted() metric.Int64Counter {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.WakeupsStarted
}

func (o *Orchestrator) metricFailed() metric.Int64Counter {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.WakeupsFailed
}

func (o *Orchestrator) metricDropped() metric.Int64Counter {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.WakeupsDropped
}

func (o *Orchestrator) metricSkipped() metric.Int64Counter {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.WakeupsSkipped
}
