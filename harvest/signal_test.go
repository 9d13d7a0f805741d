package harvest_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/fwojciec/modharvest/harvest"
	"github.com/stretchr/testify/assert"
)

type countingCloser struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingCloser) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSignal(t *testing.T) {
	t.Parallel()

	t.Run("starts unraised", func(t *testing.T) {
		t.Parallel()

		s := harvest.NewSignal()

		assert.False(t, s.Raised())
		assert.Empty(t, s.Reason())
		select {
		case <-s.Done():
			t.Fatal("done channel closed before raise")
		default:
		}
	})

	t.Run("first raise wins", func(t *testing.T) {
		t.Parallel()

		s := harvest.NewSignal()
		s.Raise("migration")
		s.Raise("second")

		assert.True(t, s.Raised())
		assert.Equal(t, "migration", s.Reason())
		<-s.Done()
	})

	t.Run("concurrent raises are safe", func(t *testing.T) {
		t.Parallel()

		s := harvest.NewSignal()
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Raise("stop")
			}()
		}
		wg.Wait()

		assert.True(t, s.Raised())
		assert.Equal(t, "stop", s.Reason())
	})

	t.Run("release closes bound resource once", func(t *testing.T) {
		t.Parallel()

		s := harvest.NewSignal()
		c := &countingCloser{}
		s.Bind(c)

		assert.NoError(t, s.Release())
		assert.NoError(t, s.Release())
		assert.Equal(t, 1, c.Calls())
	})

	t.Run("release without resource is a no-op", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, harvest.NewSignal().Release())
	})

	t.Run("release returns close error", func(t *testing.T) {
		t.Parallel()

		s := harvest.NewSignal()
		s.Bind(&countingCloser{err: errors.New("already gone")})

		assert.EqualError(t, s.Release(), "already gone")
	})
}
