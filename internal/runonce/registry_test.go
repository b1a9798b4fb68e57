package runonce

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterFirstWins(t *testing.T) {
	canonical, inserted := Register("job-a", "first")
	assert.True(t, inserted)
	assert.Equal(t, "first", canonical)

	second, insertedAgain := Register("job-a", "second")
	assert.False(t, insertedAgain)
	assert.Equal(t, "first", second)

	Remove("job-a", "first")
	_, ok := Lookup("job-a")
	assert.False(t, ok)
}

func TestRemoveOnlyClearsExpectedEntry(t *testing.T) {
	Register("job-b", "owner")
	Remove("job-b", "someone-else")
	v, ok := Lookup("job-b")
	assert.True(t, ok)
	assert.Equal(t, "owner", v)

	Remove("job-b", "owner")
	_, ok = Lookup("job-b")
	assert.False(t, ok)
}

func TestRegisterConcurrentCollapsesToOneWinner(t *testing.T) {
	const n = 100
	var wg sync.WaitGroup
	winners := make([]bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, inserted := Register("job-c", i)
			winners[i] = inserted
		}(i)
	}
	wg.Wait()

	count := 0
	for _, w := range winners {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)

	canonical, _ := Lookup("job-c")
	Remove("job-c", canonical)
}
