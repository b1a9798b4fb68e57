package taskexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityMutationIgnoredOnceFinished(t *testing.T) {
	ex := NewExecutor("finished-mutation")
	defer ex.ShutDown(ex.Token(), true)

	task := ex.CreateAction(func(context.Context) error { return nil }, PriorityLow)
	require.NoError(t, task.Join())

	task.Priority(PriorityHigh)
	assert.Equal(t, PriorityLow, task.priority)
}

func TestModeChangeIgnoredOnceFinished(t *testing.T) {
	ex := NewExecutor("mode-change")
	defer ex.ShutDown(ex.Token(), true)

	task := ex.CreateAction(func(context.Context) error { return nil }, PriorityNormal)
	require.NoError(t, task.Join())

	task.Async()
	assert.Equal(t, Sync, task.mode)
}

func TestProducerJoinWrapsExecutionError(t *testing.T) {
	ex := NewExecutor("producer-error")
	defer ex.ShutDown(ex.Token(), true)

	boom := errors.New("boom")
	p := CreateProducer(ex, func(context.Context) (int, error) {
		return 0, boom
	}, PriorityNormal)

	_, err := p.Join()
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, execErr, boom)
	assert.True(t, errors.Is(err, boom))
}

func TestRunOnceHasRunPredicateSkipsExecution(t *testing.T) {
	ex := NewExecutor("has-run")
	defer ex.ShutDown(ex.Token(), true)

	called := false
	p := NewProducer(ex, func(context.Context) (int, error) {
		called = true
		return 1, nil
	}, PriorityNormal).RunOnlyOnce("already-done", func() bool { return true }).Submit()

	_, err := p.Join()
	require.NoError(t, err)
	assert.True(t, p.Finished())
	assert.False(t, called)
}
