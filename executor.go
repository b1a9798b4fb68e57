package taskexec

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/linkflow-ai/taskexec/internal/namedmutex"
)

// ShutdownToken is an opaque capability required to shut down an Executor
// constructed with WithUndestroyable. Holding the token returned at
// construction is the only way to authorize that shutdown.
type ShutdownToken struct {
	ex *Executor
}

// Executor runs a single FIFO-within-priority queue of tasks on one
// worker goroutine, dispatching ASYNC tasks to their own goroutine at
// drain time. Construct one with NewExecutor, or let a Group construct
// its three band executors.
type Executor struct {
	name string

	mu   sync.Mutex
	cond *sync.Cond // guards every field below; signaled on enqueue, resume, shutdown, and task completion

	tasks     *list.List // *Task nodes, ordered by descending priority then FIFO
	suspended bool
	shutdown  bool

	defaultPriority int

	asyncInFlight int64

	syncCompleted  uint64
	asyncCompleted uint64

	logThreshold int
	logger       Logger
	metrics      Metrics

	undestroyable bool
	token         *ShutdownToken
	daemon        bool

	mutexes *namedmutex.Registry

	currentTask       *Task
	workerGoroutineID atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	group *Group
	band  Band
}

// NewExecutor constructs a standalone Executor and starts its worker
// goroutine.
func NewExecutor(name string, opts ...Option) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	ex := &Executor{
		name:            name,
		tasks:           list.New(),
		defaultPriority: PriorityNormal,
		logThreshold:    100,
		logger:          nopLogger{},
		metrics:         nopMetrics{},
		mutexes:         namedmutex.New(),
		ctx:             ctx,
		cancel:          cancel,
	}
	ex.cond = sync.NewCond(&ex.mu)
	for _, o := range opts {
		o(ex)
	}
	if ex.undestroyable {
		ex.token = &ShutdownToken{ex: ex}
	}
	go ex.workerLoop()
	return ex
}

// Token returns the capability token required to shut this executor down,
// if it was constructed with WithUndestroyable. Returns nil otherwise.
func (ex *Executor) Token() *ShutdownToken { return ex.token }

// Name reports the executor's label, as given at construction or chosen
// by the Group that owns it.
func (ex *Executor) Name() string { return ex.name }

// IsShutDown reports whether ShutDown has been called on this executor.
func (ex *Executor) IsShutDown() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.shutdown
}

// NewAction builds (but does not submit) an action task on ex: fn runs for
// effect, its only observable outcome is success or the error it returns.
// Callers that need RunOnlyOnce must set it between NewAction and Submit —
// RunOnlyOnce only takes effect while the task is still unsubmitted.
// Priority, Sync and Async also take effect while the task is queued.
func (ex *Executor) NewAction(fn func(ctx context.Context) error, priority int) *Task {
	return newTask(ex, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}, priority)
}

// CreateAction builds and immediately submits an action task. Equivalent to
// NewAction(fn, priority).Submit(); use NewAction directly when the task
// needs RunOnlyOnce or another pre-submission mutator applied first.
func (ex *Executor) CreateAction(fn func(ctx context.Context) error, priority int) *Task {
	return ex.NewAction(fn, priority).Submit()
}

// NewProducer builds (but does not submit) a producer task on ex. Package
// level because Go methods cannot carry extra type parameters beyond
// their receiver's.
func NewProducer[T any](ex *Executor, fn func(ctx context.Context) (T, error), priority int) *ProducerTask[T] {
	t := newTask(ex, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, priority)
	return &ProducerTask[T]{Task: t}
}

// CreateProducer submits a producer task on ex and returns it.
func CreateProducer[T any](ex *Executor, fn func(ctx context.Context) (T, error), priority int) *ProducerTask[T] {
	return NewProducer(ex, fn, priority).Submit()
}

// enqueueTask admits t into the queue in priority order (descending
// priority, FIFO among equals). Returns false if the executor has shut
// down.
func (ex *Executor) enqueueTask(t *Task) bool {
	ex.mu.Lock()
	if ex.shutdown {
		ex.mu.Unlock()
		return false
	}
	ex.insertLocked(t)
	depth := ex.tasks.Len()
	ex.mu.Unlock()
	ex.cond.Broadcast()
	ex.metrics.SetQueueDepth(ex.name, depth)
	return true
}

func (ex *Executor) insertLocked(t *Task) {
	for e := ex.tasks.Front(); e != nil; e = e.Next() {
		if e.Value.(*Task).priority < t.priority {
			t.elem = ex.tasks.InsertBefore(t, e)
			return
		}
	}
	t.elem = ex.tasks.PushBack(t)
}

// reroute repositions t in the queue after its priority changed, or, when
// ex belongs to a Group and the new priority crosses into a different
// band, hands t off to that band's executor.
func (ex *Executor) reroute(t *Task, newPriority int) {
	if ex.group != nil {
		if newBand := bandFor(newPriority); newBand != ex.band {
			ex.group.moveBand(t, ex, newBand)
			return
		}
	}
	ex.mu.Lock()
	if t.elem == nil {
		ex.mu.Unlock()
		return
	}
	ex.tasks.Remove(t.elem)
	ex.insertLocked(t)
	ex.mu.Unlock()
	ex.cond.Broadcast()
}

// removeQueued pulls t out of the queue without executing it, used when a
// Group moves a task across bands. Returns false if t was no longer
// queued (already dequeued by the worker).
func (ex *Executor) removeQueued(t *Task) bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if t.elem == nil {
		return false
	}
	ex.tasks.Remove(t.elem)
	t.elem = nil
	return true
}

// isRunningOnWorker reports whether t is currently executing, synchronously,
// on this executor's worker goroutine, and the calling goroutine is that
// same goroutine. This is the self-join guard: a worker that calls Join on
// the task it is in the middle of running would otherwise deadlock itself.
func (ex *Executor) isRunningOnWorker(t *Task) bool {
	ex.mu.Lock()
	cur := ex.currentTask
	gid := ex.workerGoroutineID.Load()
	ex.mu.Unlock()
	return cur == t && gid != 0 && gid == getGoroutineID()
}

// workerLoop is the single goroutine that drains this executor's queue.
// It parks (via cond.Wait) whenever the queue is empty or the executor is
// suspended, and exits once shut down with an empty queue.
func (ex *Executor) workerLoop() {
	ex.workerGoroutineID.Store(getGoroutineID())
	for {
		ex.mu.Lock()
		for !ex.shutdown && (ex.suspended || ex.tasks.Len() == 0) {
			ex.cond.Wait()
		}
		if ex.shutdown && ex.tasks.Len() == 0 {
			ex.mu.Unlock()
			return
		}
		front := ex.tasks.Front()
		t := front.Value.(*Task)
		ex.tasks.Remove(front)
		t.elem = nil
		depth := ex.tasks.Len()

		t.mu.Lock()
		if t.st != stateQueued {
			t.mu.Unlock()
			ex.mu.Unlock()
			continue
		}
		t.st = stateRunning
		mode := t.mode
		t.mu.Unlock()

		if mode == Async {
			ex.asyncInFlight++
			ex.mu.Unlock()
			ex.metrics.SetQueueDepth(ex.name, depth)
			go ex.runAsync(t)
			continue
		}

		ex.currentTask = t
		ex.mu.Unlock()
		ex.metrics.SetQueueDepth(ex.name, depth)

		t.run(ex.ctx)

		ex.mu.Lock()
		ex.currentTask = nil
		ex.syncCompleted++
		n := ex.syncCompleted
		ex.mu.Unlock()
		ex.metrics.IncCompleted(ex.name, "sync")
		ex.cond.Broadcast()

		if ex.logThreshold > 0 && n%uint64(ex.logThreshold) == 0 {
			ex.logger.Info("executed sync tasks", "executor", ex.name, "count", n)
		}
	}
}

func (ex *Executor) runAsync(t *Task) {
	t.run(ex.ctx)

	ex.mu.Lock()
	ex.asyncInFlight--
	ex.asyncCompleted++
	n := ex.asyncCompleted
	ex.mu.Unlock()
	ex.metrics.IncCompleted(ex.name, "async")
	ex.cond.Broadcast()

	if ex.logThreshold > 0 && n%uint64(ex.logThreshold) == 0 {
		ex.logger.Info("executed async tasks", "executor", ex.name, "count", n)
	}
}

// Suspend stops the worker from draining further tasks. With immediate,
// the worker is marked suspended right away and Suspend blocks until the
// task currently running (if any) and every in-flight async task finish.
// Without immediate, a sentinel action is queued at priority (or the
// executor's default): every task already queued ahead of it is promoted
// to that same priority so the queue drains cleanly up to the point where
// the sentinel lands and flips the suspended flag.
func (ex *Executor) Suspend(immediate bool, priority ...int) {
	if immediate {
		ex.mu.Lock()
		ex.suspended = true
		ex.mu.Unlock()
		ex.cond.Broadcast()
		ex.waitCurrentDrained()
		return
	}

	p := ex.defaultPriority
	if len(priority) > 0 {
		p = priority[0]
	}

	ex.mu.Lock()
	for e := ex.tasks.Front(); e != nil; e = e.Next() {
		qt := e.Value.(*Task)
		if qt.priority < p {
			qt.priority = p
		}
	}
	sentinel := newSentinel(ex, p)
	ex.insertLocked(sentinel)
	ex.mu.Unlock()
	ex.cond.Broadcast()
}

// waitCurrentDrained blocks until no sync task is currently running on
// the worker and no async task is in flight.
func (ex *Executor) waitCurrentDrained() {
	ex.mu.Lock()
	for ex.currentTask != nil || ex.asyncInFlight > 0 {
		ex.cond.Wait()
	}
	ex.mu.Unlock()
}

// newSentinel builds a task whose only effect is flipping ex.suspended.
func newSentinel(ex *Executor, priority int) *Task {
	t := newTask(ex, func(ctx context.Context) (any, error) {
		ex.mu.Lock()
		ex.suspended = true
		ex.mu.Unlock()
		return nil, nil
	}, priority)
	t.st = stateQueued
	return t
}

// Resume clears the suspended flag and wakes the worker.
func (ex *Executor) Resume() {
	ex.mu.Lock()
	ex.suspended = false
	ex.mu.Unlock()
	ex.cond.Broadcast()
}

// SetDefaultPriority changes the priority Suspend uses when called without
// one, and raises every currently queued task to at least p. Task
// constructors take an explicit priority and do not read this default.
func (ex *Executor) SetDefaultPriority(p int) {
	ex.mu.Lock()
	ex.defaultPriority = p
	for e := ex.tasks.Front(); e != nil; e = e.Next() {
		qt := e.Value.(*Task)
		if qt.priority < p {
			qt.priority = p
		}
	}
	ex.mu.Unlock()
}

// WaitFor blocks until t finishes. If priority is given, every task
// currently ordered strictly before t in the queue has its priority
// raised to at least that value — priority inheritance for the waiter, so
// contenders ahead of t stop holding up the worker at t's expense.
func (ex *Executor) WaitFor(t *Task, priority ...int) error {
	if len(priority) > 0 {
		p := priority[0]
		ex.mu.Lock()
		for e := ex.tasks.Front(); e != nil; e = e.Next() {
			qt := e.Value.(*Task)
			if qt == t {
				break
			}
			if qt.priority < p {
				qt.priority = p
			}
		}
		ex.mu.Unlock()
	}
	return t.Join()
}

// WaitForAll blocks until the queue is empty and no task (sync or async)
// is in flight. If priority is given, every currently queued task is
// promoted to it first, so WaitForAll also serves as a "flush at this
// priority" operation.
func (ex *Executor) WaitForAll(priority ...int) {
	if len(priority) > 0 {
		p := priority[0]
		ex.mu.Lock()
		for e := ex.tasks.Front(); e != nil; e = e.Next() {
			qt := e.Value.(*Task)
			if qt.priority < p {
				qt.priority = p
			}
		}
		ex.mu.Unlock()
		ex.cond.Broadcast()
	}
	ex.mu.Lock()
	for ex.tasks.Len() > 0 || ex.currentTask != nil || ex.asyncInFlight > 0 {
		ex.cond.Wait()
	}
	ex.mu.Unlock()
}

// ShutDown stops the worker permanently. If the executor was built with
// WithUndestroyable, token must be the one returned by Token, or
// ErrUnauthorizedShutdown is returned and nothing changes.
//
// With wait=true, every task already queued or running finishes before
// ShutDown returns. With wait=false, ShutDown is the cancellation
// primitive for queued-but-not-yet-running work: the pending queue is
// cleared immediately and those tasks never run; whatever the worker is
// already in the middle of keeps running to completion in the
// background. Either way, no further submission is admitted once
// ShutDown has been called.
func (ex *Executor) ShutDown(token *ShutdownToken, wait bool) error {
	if ex.undestroyable && token != ex.token {
		return ErrUnauthorizedShutdown
	}

	var unexecuted uint64

	ex.mu.Lock()
	ex.shutdown = true
	var dropped []*Task
	if !wait {
		unexecuted = uint64(ex.tasks.Len())
		for e := ex.tasks.Front(); e != nil; {
			next := e.Next()
			qt := e.Value.(*Task)
			qt.elem = nil
			ex.tasks.Remove(e)
			dropped = append(dropped, qt)
			e = next
		}
	}
	ex.mu.Unlock()
	ex.cond.Broadcast()

	for _, qt := range dropped {
		qt.mu.Lock()
		qt.finishLocked(nil, ErrShutdown)
		qt.mu.Unlock()
	}

	if wait {
		ex.WaitForAll()
	}

	ex.mu.Lock()
	executed := ex.syncCompleted + ex.asyncCompleted
	ex.mu.Unlock()

	ex.logger.Info("executor shut down", "executor", ex.name, "executed", executed, "unexecuted", unexecuted)
	ex.metrics.IncShutdown(ex.name)
	if wait {
		ex.cancel()
	} else {
		// The task the worker is running and any async task in flight keep
		// an uncancelled context until they finish.
		go func() {
			ex.waitCurrentDrained()
			ex.cancel()
		}()
	}
	return nil
}
