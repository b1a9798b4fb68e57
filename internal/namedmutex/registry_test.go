package namedmutex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsSameLockForEqualKeys(t *testing.T) {
	r := New()
	a := r.Get("task-1")
	b := r.Get("task-1")
	assert.Same(t, a, b)
}

func TestGetReturnsDistinctLocksForDifferentKeys(t *testing.T) {
	r := New()
	a := r.Get("task-1")
	b := r.Get("task-2")
	assert.NotSame(t, a, b)
}

func TestReleaseDropsKey(t *testing.T) {
	r := New()
	r.Get("task-1")
	require.Equal(t, 1, r.Len())
	r.Release("task-1")
	assert.Equal(t, 0, r.Len())

	fresh := r.Get("task-1")
	assert.NotNil(t, fresh)
}
