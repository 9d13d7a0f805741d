package harvest

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/modharvest"
)

// Signal is the advisory "stop now" condition of a run. It is raised at most
// once by an external event source (an OS signal, a host migration notice)
// and polled by the Coordinator before each node and each network-bound
// step. Signal also owns the release of the resource bound to it, so that a
// supervising process can tear down the run as soon as Release returns.
//
// Signal is safe for concurrent use.
type Signal struct {
	raised atomic.Bool
	once   sync.Once
	done   chan struct{}

	mu       sync.Mutex
	reason   string
	resource io.Closer
	released bool
}

// NewSignal returns an unraised Signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Raise sets the condition. Only the first call has any effect.
func (s *Signal) Raise(reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		s.raised.Store(true)
		close(s.done)
	})
}

// Raised reports whether the condition is set.
func (s *Signal) Raised() bool {
	return s.raised.Load()
}

// Reason returns the reason given to Raise.
func (s *Signal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done returns a channel closed when the condition is raised.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Bind registers the resource released by Release. Binding replaces any
// previously bound resource that has not been released.
func (s *Signal) Bind(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resource = c
	s.released = false
}

// Release closes the bound resource once. Subsequent calls return nil.
func (s *Signal) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.resource == nil {
		return nil
	}
	s.released = true
	return s.resource.Close()
}

// onceCloser makes Close idempotent for resources released from more than
// one exit path.
type onceCloser struct {
	once sync.Once
	c    io.Closer
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() {
		o.err = o.c.Close()
	})
	return o.err
}

// errInterrupted marks an attempt abandoned because the run is pausing.
var errInterrupted = modharvest.Errorf(modharvest.EINTERRUPTED, "harvest interrupted")
