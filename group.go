package taskexec

import (
	"context"

	"github.com/linkflow-ai/taskexec/internal/namedmutex"
)

// Group routes submissions across three independent executors, one per
// Band, clamping arbitrary priorities to a band via bandFor. Bands never
// share a worker and never steal work from each other; a HIGH-band
// backlog does not starve LOW or vice versa, they simply run
// concurrently on their own goroutines.
type Group struct {
	name string

	low    *Executor
	normal *Executor
	high   *Executor

	token *ShutdownToken
}

// NewGroup constructs the three band executors and starts their worker
// goroutines. Options apply identically to all three bands; the bands
// also share one named-mutex registry so a task's monitor survives being
// moved from one band to another as its priority changes.
func NewGroup(name string, opts ...Option) *Group {
	shared := namedmutex.New()
	withShared := func(ex *Executor) { ex.mutexes = shared }

	g := &Group{name: name}
	g.low = NewExecutor(name+"-low", append(append([]Option{}, opts...), withShared, withBand(BandLow, g))...)
	g.normal = NewExecutor(name+"-normal", append(append([]Option{}, opts...), withShared, withBand(BandNormal, g))...)
	g.high = NewExecutor(name+"-high", append(append([]Option{}, opts...), withShared, withBand(BandHigh, g))...)

	g.token = g.low.token
	return g
}

func withBand(b Band, g *Group) Option {
	return func(ex *Executor) {
		ex.band = b
		ex.group = g
	}
}

// Token returns the capability token required to shut this group down, if
// it was constructed with WithUndestroyable. Returns nil otherwise.
func (g *Group) Token() *ShutdownToken { return g.token }

// executorFor returns the band executor for priority p.
func (g *Group) executorFor(p int) *Executor {
	switch bandFor(p) {
	case BandHigh:
		return g.high
	case BandNormal:
		return g.normal
	default:
		return g.low
	}
}

func (g *Group) executorForBand(b Band) *Executor {
	switch b {
	case BandHigh:
		return g.high
	case BandNormal:
		return g.normal
	default:
		return g.low
	}
}

// NewAction builds (but does not submit) an action task into the band
// priority selects. See Executor.NewAction.
func (g *Group) NewAction(fn func(ctx context.Context) error, priority int) *Task {
	return g.executorFor(priority).NewAction(fn, priority)
}

// CreateAction builds and immediately submits an action task into the band
// priority selects.
func (g *Group) CreateAction(fn func(ctx context.Context) error, priority int) *Task {
	return g.executorFor(priority).CreateAction(fn, priority)
}

// CreateGroupProducer submits a producer task into the band priority
// selects.
func CreateGroupProducer[T any](g *Group, fn func(ctx context.Context) (T, error), priority int) *ProducerTask[T] {
	return CreateProducer(g.executorFor(priority), fn, priority)
}

// moveBand removes t from from's queue and re-admits it into to's queue,
// preserving its already-updated priority. Called by Executor.reroute
// when a priority change crosses a band boundary. If t was no longer
// queued on from (the worker already picked it up), the move is skipped —
// the task is already past the point where its band matters.
func (g *Group) moveBand(t *Task, from *Executor, to Band) {
	if !from.removeQueued(t) {
		return
	}
	dest := g.executorForBand(to)
	t.mu.Lock()
	t.ex = dest
	t.mu.Unlock()
	dest.enqueueTask(t)
}

// Band returns the band executor by name, for callers (like the HTTP
// demo service) that address a specific band directly rather than
// routing by priority.
func (g *Group) Band(b Band) *Executor { return g.executorForBand(b) }

// WaitForAll blocks until every band is drained. HIGH and NORMAL are
// waited on first, LOW last, so later-arriving tasks in the lowest-priority
// band do not starve the waiter.
func (g *Group) WaitForAll(priority ...int) {
	g.high.WaitForAll(priority...)
	g.normal.WaitForAll(priority...)
	g.low.WaitForAll(priority...)
}

// ShutDown stops all three band executors. If the group was constructed
// with WithUndestroyable, token must be the one returned by Token.
func (g *Group) ShutDown(token *ShutdownToken, wait bool) error {
	if g.low.undestroyable && token != g.token {
		return ErrUnauthorizedShutdown
	}
	if err := g.low.ShutDown(g.low.token, wait); err != nil {
		return err
	}
	if err := g.normal.ShutDown(g.normal.token, wait); err != nil {
		return err
	}
	return g.high.ShutDown(g.high.token, wait)
}
