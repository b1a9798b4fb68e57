package taskexec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOWithinBand(t *testing.T) {
	ex := NewExecutor("fifo")
	defer ex.ShutDown(ex.Token(), true)

	var mu sync.Mutex
	var order []string
	append1 := func(s string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
			return nil
		}
	}

	ex.CreateAction(append1("A"), PriorityNormal)
	ex.CreateAction(append1("B"), PriorityNormal)
	ex.CreateAction(append1("C"), PriorityNormal)
	ex.WaitForAll()

	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestRunOnceCollapse(t *testing.T) {
	ex := NewExecutor("runonce")
	defer ex.ShutDown(ex.Token(), true)

	var counter int64
	var hasRun atomic.Bool

	for i := 0; i < 1000; i++ {
		ex.NewAction(func(context.Context) error {
			atomic.AddInt64(&counter, 1)
			hasRun.Store(true)
			return nil
		}, PriorityNormal).RunOnlyOnce("id#1", hasRun.Load).Submit()
	}
	ex.WaitForAll()

	assert.Equal(t, int64(1), atomic.LoadInt64(&counter))
}

func TestProducerResult(t *testing.T) {
	ex := NewExecutor("producer")
	defer ex.ShutDown(ex.Token(), true)

	p := CreateProducer(ex, func(context.Context) (int, error) {
		return 42, nil
	}, PriorityHigh)

	v, err := p.Join()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, p.Finished())
	assert.NoError(t, p.Error())
}

func TestSuspendResume(t *testing.T) {
	ex := NewExecutor("suspend")
	defer ex.ShutDown(ex.Token(), true)

	var mu sync.Mutex
	var seq []string

	t1 := ex.CreateAction(func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		mu.Lock()
		seq = append(seq, "1")
		mu.Unlock()
		return nil
	}, PriorityNormal)

	// Give the worker a moment to pick up t1 before we submit t2 and suspend.
	time.Sleep(20 * time.Millisecond)

	ex.CreateAction(func(context.Context) error {
		mu.Lock()
		seq = append(seq, "2")
		mu.Unlock()
		return nil
	}, PriorityNormal)

	ex.Suspend(true)

	mu.Lock()
	started := len(seq)
	mu.Unlock()
	assert.Equal(t, 1, started, "only t1 may have run; t2 must not have started while suspended")
	assert.True(t, t1.Finished())

	ex.Resume()
	ex.WaitForAll()

	assert.Equal(t, []string{"1", "2"}, seq)
}

func TestBandRouting(t *testing.T) {
	g := NewGroup("bands")
	defer g.ShutDown(g.Token(), true)

	var aCompletedAt, bRecordedAt time.Time
	var mu sync.Mutex

	g.CreateAction(func(context.Context) error {
		time.Sleep(500 * time.Millisecond)
		mu.Lock()
		aCompletedAt = time.Now()
		mu.Unlock()
		return nil
	}, PriorityLow)

	g.CreateAction(func(context.Context) error {
		mu.Lock()
		bRecordedAt = time.Now()
		mu.Unlock()
		return nil
	}, PriorityHigh)

	g.WaitForAll()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, bRecordedAt.Before(aCompletedAt), "HIGH band task must not be blocked behind LOW band work")
}

func TestShutdownWithoutWait(t *testing.T) {
	ex := NewExecutor("shutdown")

	var ran int64
	for i := 0; i < 10; i++ {
		ex.CreateAction(func(context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		}, PriorityNormal)
	}
	err := ex.ShutDown(ex.Token(), false)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt64(&ran), int64(1))

	rejected := ex.CreateAction(func(context.Context) error { return nil }, PriorityNormal)
	assert.ErrorIs(t, rejected.Error(), ErrShutdown)
}

func TestPriorityMutationWhileQueued(t *testing.T) {
	ex := NewExecutor("priority-mutation")
	defer ex.ShutDown(ex.Token(), true)

	ex.Suspend(true)

	task := ex.CreateAction(func(context.Context) error { return nil }, PriorityLow)
	task.Priority(PriorityHigh)

	ex.mu.Lock()
	front := ex.tasks.Front()
	ex.mu.Unlock()
	require.NotNil(t, front)
	assert.Equal(t, PriorityHigh, front.Value.(*Task).priority)

	ex.Resume()
}

func TestUndestroyableRequiresToken(t *testing.T) {
	ex := NewExecutor("guarded", WithUndestroyable())
	err := ex.ShutDown(nil, false)
	assert.ErrorIs(t, err, ErrUnauthorizedShutdown)

	err = ex.ShutDown(ex.Token(), true)
	assert.NoError(t, err)
}

func TestSelfJoinIsRejected(t *testing.T) {
	ex := NewExecutor("self-join")
	defer ex.ShutDown(ex.Token(), true)

	var joinErr error
	var wg sync.WaitGroup
	wg.Add(1)

	// Suspend first so the task cannot start before self is assigned below.
	ex.Suspend(true)
	var self *Task
	self = ex.CreateAction(func(context.Context) error {
		joinErr = self.Join()
		wg.Done()
		return nil
	}, PriorityNormal)
	ex.Resume()

	wg.Wait()
	assert.ErrorIs(t, joinErr, ErrSelfJoin)
}
