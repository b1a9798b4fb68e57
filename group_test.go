package taskexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupClampsPriorityToBand(t *testing.T) {
	g := NewGroup("clamp")
	defer g.ShutDown(g.Token(), true)

	assert.Equal(t, BandLow, bandFor(PriorityNormal-1))
	assert.Equal(t, BandNormal, bandFor(PriorityNormal))
	assert.Equal(t, BandHigh, bandFor(PriorityHigh))
}

func TestGroupCrossBandReroute(t *testing.T) {
	g := NewGroup("reroute")
	defer g.ShutDown(g.Token(), true)

	g.low.Suspend(true)
	g.high.Suspend(true)

	task := g.CreateAction(func(context.Context) error { return nil }, PriorityLow)

	g.low.mu.Lock()
	_, onLow := findElem(g.low, task)
	g.low.mu.Unlock()
	require.True(t, onLow)

	task.Priority(PriorityHigh)

	g.low.mu.Lock()
	_, stillOnLow := findElem(g.low, task)
	g.low.mu.Unlock()
	assert.False(t, stillOnLow)

	g.high.mu.Lock()
	_, onHigh := findElem(g.high, task)
	g.high.mu.Unlock()
	assert.True(t, onHigh)

	g.low.Resume()
	g.high.Resume()
	g.WaitForAll()
}

func findElem(ex *Executor, t *Task) (int, bool) {
	i := 0
	for e := ex.tasks.Front(); e != nil; e = e.Next() {
		if e.Value.(*Task) == t {
			return i, true
		}
		i++
	}
	return -1, false
}

func TestGroupShutDownPropagatesToAllBands(t *testing.T) {
	g := NewGroup("shutdown-all", WithUndestroyable())

	err := g.ShutDown(nil, false)
	assert.ErrorIs(t, err, ErrUnauthorizedShutdown)

	err = g.ShutDown(g.Token(), true)
	require.NoError(t, err)

	rejected := g.CreateAction(func(context.Context) error { return nil }, PriorityNormal)
	assert.ErrorIs(t, rejected.Error(), ErrShutdown)
}
