package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/haukened/rr-certoverride/internal/certs/common/log"
)

var (
	// ErrClosed is returned by Call once the dispatcher has been closed.
	ErrClosed = errors.New("dispatch: dispatcher closed")

	// ErrPanic is returned by Call when fn panicked. The dispatcher keeps
	// running.
	ErrPanic = errors.New("dispatch: call panicked")
)

// Dispatcher is a designated execution context: every function handed to
// Call runs on the same goroutine, one at a time, in submission order.
type Dispatcher struct {
	jobs   chan *job
	logger log.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type job struct {
	fn        func()
	done      chan struct{}
	recovered any
}

// New starts a dispatcher goroutine. A nil logger falls back to the global one.
func New(logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.GetLogger()
	}
	d := &Dispatcher{
		jobs:   make(chan *job),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.loop()
	logger.Debug(nil, "dispatcher started")
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.recovered = r
			d.logger.Error(map[string]any{"panic": fmt.Sprint(r)}, "Dispatched call panicked")
		}
	}()
	j.fn()
}

// Call runs fn on the dispatcher goroutine and blocks until it returns.
// There is no cancellation or timeout. Calling Call from inside fn deadlocks.
// A panic in fn is recovered and reported as ErrPanic.
func (d *Dispatcher) Call(fn func()) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	j := &job{fn: fn, done: make(chan struct{})}
	d.jobs <- j
	d.mu.RUnlock()

	<-j.done
	if j.recovered != nil {
		return fmt.Errorf("%w: %v", ErrPanic, j.recovered)
	}
	return nil
}

// Close stops accepting work and waits for the goroutine to drain.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	<-d.done
	d.logger.Debug(nil, "dispatcher stopped")
	return nil
}
