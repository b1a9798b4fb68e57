package taskexec

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/linkflow-ai/taskexec/internal/runonce"
)

// Mode is a task's execution mode: SYNC runs on its queue's worker, ASYNC
// is dispatched onto its own short-lived goroutine at drain time.
type Mode int

const (
	Sync Mode = iota
	Async
)

func (m Mode) String() string {
	if m == Async {
		return "async"
	}
	return "sync"
}

type state int32

const (
	stateCreated state = iota
	stateQueued
	stateRunning
	stateFinished
)

// Task is the central entity of the executor: a queued unit of work with a
// mutable priority, an execution mode, an optional run-once identity, and
// a completion state observable by any waiter.
type Task struct {
	id string

	// mu is this task's own monitor, interned from the owning executor's
	// named-mutex registry by task ID. It guards the task's state, mode,
	// result, error and executor reference; the worker takes it at dequeue
	// to move the task from QUEUED to RUNNING. Queue membership (elem) is
	// not guarded by mu: inserts and removals run under the owning
	// executor's mu, and a reroute that finds elem nil (already dequeued
	// by the worker) leaves the task alone.
	mu *sync.Mutex

	fn       func(ctx context.Context) (any, error)
	mode     Mode
	priority int
	st       state

	result any
	err    error

	runOnceID string
	hasRun    func() bool
	canonical *Task // set when this submission collapsed into another

	ex   *Executor     // the executor reference; rebound when a priority change moves the task to another band while QUEUED
	elem *list.Element  // this task's node in its current queue, nil if not queued
	done chan struct{}  // closed once the task finishes; broadcasts to every waiter
}

func newTask(ex *Executor, fn func(context.Context) (any, error), priority int) *Task {
	id := uuid.New().String()
	t := &Task{
		id:       id,
		fn:       fn,
		mode:     Sync,
		priority: priority,
		st:       stateCreated,
		ex:       ex,
		done:     make(chan struct{}),
	}
	t.mu = ex.mutexes.Get(id)
	return t
}

// ID returns the task's opaque identity, useful for logging/tracing.
func (t *Task) ID() string { return t.id }

// Mode returns the task's current dispatch mode.
func (t *Task) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Priority sets the task's priority. A no-op once the task is running or
// finished — priority is mutable only while the task is still queued.
func (t *Task) Priority(p int) *Task {
	t.mu.Lock()
	if t.st == stateFinished || t.st == stateRunning {
		t.mu.Unlock()
		return t
	}
	old := t.priority
	t.priority = p
	queued := t.st == stateQueued
	ex := t.ex
	t.mu.Unlock()

	if queued && old != p {
		ex.reroute(t, p)
	}
	return t
}

// Sync switches the task to synchronous execution (runs on the queue's
// worker). No-op once RUNNING or FINISHED.
func (t *Task) Sync() *Task { return t.setMode(Sync) }

// Async switches the task to asynchronous execution (dispatched to its
// own executor context at drain time). No-op once RUNNING or FINISHED.
func (t *Task) Async() *Task { return t.setMode(Async) }

func (t *Task) setMode(m Mode) *Task {
	t.mu.Lock()
	if t.st == stateRunning || t.st == stateFinished {
		t.mu.Unlock()
		return t
	}
	t.mode = m
	t.mu.Unlock()
	return t
}

// RunOnlyOnce marks the task with a logical identity: concurrent
// submissions of the same id collapse into a single execution. hasRun, if
// non-nil, is consulted at admission time — if it reports true the task is
// treated as already finished and is not enqueued.
func (t *Task) RunOnlyOnce(id string, hasRun func() bool) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.st != stateCreated {
		return t
	}
	t.runOnceID = id
	t.hasRun = hasRun
	return t
}

// Finished reports whether the task has reached its terminal state.
func (t *Task) Finished() bool {
	select {
	case <-t.canonicalTask().done:
		return true
	default:
		return false
	}
}

// Error returns the task's captured execution error, if any. Safe to call
// at any point; before the task finishes it is always nil.
func (t *Task) Error() error {
	c := t.canonicalTask()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Submit enqueues the task if admissible: the task must not already be
// finished, and if it carries a run-once identity, the has-been-executed
// predicate must report false and the process-wide run-once registry's
// check-and-set must succeed. A non-admissible submission is silently
// ignored and Submit returns the canonical task a caller should join on
// instead.
func (t *Task) Submit() *Task {
	t.mu.Lock()
	if t.st != stateCreated {
		t.mu.Unlock()
		return t
	}

	if t.runOnceID != "" {
		if t.hasRun != nil && t.hasRun() {
			t.finishLocked(t.result, nil)
			t.mu.Unlock()
			return t
		}
		canonical, inserted := runonce.Register(t.runOnceID, t)
		if !inserted {
			c := canonical.(*Task)
			t.canonical = c
			t.mu.Unlock()
			return c
		}
	}
	t.st = stateQueued
	ex := t.ex
	t.mu.Unlock()

	if !ex.enqueueTask(t) {
		t.mu.Lock()
		t.finishLocked(nil, ErrShutdown)
		t.mu.Unlock()
	}
	return t
}

// finishLocked transitions the task to FINISHED. Caller must hold t.mu.
func (t *Task) finishLocked(result any, err error) {
	if t.st == stateFinished {
		return
	}
	t.result = result
	t.err = err
	t.st = stateFinished
	t.fn = nil
	t.elem = nil
	if t.runOnceID != "" {
		runonce.Remove(t.runOnceID, t)
	}
	if t.ex != nil {
		t.ex.mutexes.Release(t.id)
	}
	close(t.done)
}

// run executes the task body. Called by the worker (sync) or a dedicated
// goroutine (async). Never called with t.mu held.
func (t *Task) run(ctx context.Context) {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()

	var result any
	var err error
	if fn != nil {
		result, err = fn(ctx)
	}

	t.mu.Lock()
	t.finishLocked(result, err)
	t.mu.Unlock()
}

// canonicalTask follows run-once collapse chains to the task a waiter
// should actually observe. A caller holding a reference to a task that
// collapsed away (instead of using Submit's return value) still reaches
// the right task through this indirection.
func (t *Task) canonicalTask() *Task {
	t.mu.Lock()
	c := t.canonical
	t.mu.Unlock()
	if c == nil {
		return t
	}
	return c.canonicalTask()
}

// join blocks until the task finishes. ignoreSelf relaxes the guard that
// forbids a worker goroutine from joining on the task it is itself
// currently executing — without it, a task whose body joins on itself
// would deadlock its own worker.
func (t *Task) join(ignoreSelf bool) error {
	c := t.canonicalTask()
	if !ignoreSelf && c.ex != nil && c.ex.isRunningOnWorker(c) {
		return ErrSelfJoin
	}
	<-c.done
	return c.err
}

// joinContext blocks until the task finishes or ctx is cancelled,
// whichever comes first. A park interrupted by context cancellation is a
// runtime failure for a caller-driven join, not a normal completion — it
// is logged at warn and reported as ErrInterrupted.
func (t *Task) joinContext(ctx context.Context, ignoreSelf bool) error {
	c := t.canonicalTask()
	if !ignoreSelf && c.ex != nil && c.ex.isRunningOnWorker(c) {
		return ErrSelfJoin
	}
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		if c.ex != nil {
			c.ex.logger.Warn("join interrupted", "executor", c.ex.name, "task", c.id)
		}
		return ErrInterrupted
	}
}

// Join blocks until the action task finishes. The captured execution
// error, if any, is returned directly — an action's Join does not wrap it
// as a hard failure; callers that care about distinguishing "finished
// cleanly" from "finished with an error" call Error() too.
func (t *Task) Join(ignoreSelf ...bool) error {
	self := len(ignoreSelf) > 0 && ignoreSelf[0]
	return t.join(self)
}

// JoinContext is Join with a caller-supplied deadline: if ctx is cancelled
// before the task finishes, JoinContext returns ErrInterrupted instead of
// blocking past the caller's own timeout.
func (t *Task) JoinContext(ctx context.Context, ignoreSelf ...bool) error {
	self := len(ignoreSelf) > 0 && ignoreSelf[0]
	return t.joinContext(ctx, self)
}

// Result reports that a plain action task carries no result slot — callers
// get ErrNoResult and should consult Error() instead. ProducerTask
// overrides this with its typed accessor.
func (t *Task) Result() (any, error) {
	return nil, ErrNoResult
}

// ProducerTask is a Task whose executable returns a typed value, readable
// through Result/Join once finished.
type ProducerTask[T any] struct {
	*Task
}

// Join blocks until the producer finishes and returns its result. If the
// task ended with an error, Join surfaces it wrapped in *ExecutionError so
// callers can unwrap to the original cause.
func (p *ProducerTask[T]) Join(ignoreSelf ...bool) (T, error) {
	self := len(ignoreSelf) > 0 && ignoreSelf[0]
	canonical := p.canonicalTask()
	if err := canonical.join(self); err != nil {
		var zero T
		if err == ErrSelfJoin {
			return zero, err
		}
		return zero, &ExecutionError{TaskID: canonical.id, Cause: err}
	}
	canonical.mu.Lock()
	defer canonical.mu.Unlock()
	v, _ := canonical.result.(T)
	return v, nil
}

// JoinContext is Join with a caller-supplied deadline: if ctx is cancelled
// before the producer finishes, JoinContext returns ErrInterrupted instead
// of blocking past the caller's own timeout.
func (p *ProducerTask[T]) JoinContext(ctx context.Context, ignoreSelf ...bool) (T, error) {
	self := len(ignoreSelf) > 0 && ignoreSelf[0]
	canonical := p.canonicalTask()
	if err := canonical.joinContext(ctx, self); err != nil {
		var zero T
		if err == ErrSelfJoin || err == ErrInterrupted {
			return zero, err
		}
		return zero, &ExecutionError{TaskID: canonical.id, Cause: err}
	}
	canonical.mu.Lock()
	defer canonical.mu.Unlock()
	v, _ := canonical.result.(T)
	return v, nil
}

// Result returns the stored result and whether the task finished without
// error. It never blocks.
func (p *ProducerTask[T]) Result() (T, bool) {
	canonical := p.canonicalTask()
	if !canonical.Finished() {
		var zero T
		return zero, false
	}
	canonical.mu.Lock()
	defer canonical.mu.Unlock()
	if canonical.err != nil {
		var zero T
		return zero, false
	}
	v, ok := canonical.result.(T)
	return v, ok
}

// Priority/Sync/Async/RunOnlyOnce/Submit narrow *Task's fluent return type
// back to *ProducerTask so call chains stay typed.
func (p *ProducerTask[T]) Priority(pr int) *ProducerTask[T] {
	p.Task.Priority(pr)
	return p
}

func (p *ProducerTask[T]) Sync() *ProducerTask[T] {
	p.Task.Sync()
	return p
}

func (p *ProducerTask[T]) Async() *ProducerTask[T] {
	p.Task.Async()
	return p
}

func (p *ProducerTask[T]) RunOnlyOnce(id string, hasRun func() bool) *ProducerTask[T] {
	p.Task.RunOnlyOnce(id, hasRun)
	return p
}

func (p *ProducerTask[T]) Submit() *ProducerTask[T] {
	submitted := p.Task.Submit()
	if submitted != p.Task {
		return &ProducerTask[T]{Task: submitted}
	}
	return p
}
