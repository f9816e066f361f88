// Package pipeline schedules the capture -> encode -> packetize -> send
// worker stages, one goroutine per stage connected by bounded queues,
// following the same context.CancelFunc + sync.WaitGroup lifecycle the
// rest of this codebase uses for long-running goroutines.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Executable is one pipeline stage. Run blocks until ctx is cancelled or
// the stage decides it is done; a non-nil error is reported to the
// owning Pipeline's error channel.
type Executable interface {
	Name() string
	Run(ctx context.Context) error
}

// Worker wraps an Executable with its own goroutine and cancellation.
type Worker struct {
	exec Executable
}

// NewWorker wraps exec for scheduling by a Pipeline.
func NewWorker(exec Executable) *Worker {
	return &Worker{exec: exec}
}

// State is the pipeline's run state, mirrored onto the session state
// machine's Playing/Paused/Stopped distinction.
type State uint8

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// Pipeline runs a fixed set of Workers concurrently and reports the
// first error any of them returns.
type Pipeline struct {
	workers []*Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errCh   chan error

	mu    sync.Mutex
	state State
}

// New builds a Pipeline from the given workers, run in the order given
// (order has no scheduling effect — all workers start concurrently —
// but is kept stable for log readability).
func New(workers ...*Worker) *Pipeline {
	return &Pipeline{workers: workers, errCh: make(chan error, len(workers))}
}

// Start launches every worker's goroutine. Calling Start twice without
// an intervening Stop is a programming error and panics.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		panic("pipeline: Start called while already playing")
	}
	p.state = StatePlaying
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			if err := w.exec.Run(runCtx); err != nil && runCtx.Err() == nil {
				select {
				case p.errCh <- fmt.Errorf("pipeline: worker %s: %w", w.exec.Name(), err):
				default:
				}
			}
		}(w)
	}
}

// Pause stops all workers without releasing pipeline-external resources
// (the session layer decides what, if anything, to tear down on pause).
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.state = StatePaused
}

// Stop cancels every worker and waits for them to exit.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateStopped {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.state = StateStopped
}

// Errors returns the channel on which the first worker failure (if any)
// is reported.
func (p *Pipeline) Errors() <-chan error {
	return p.errCh
}

// State returns the pipeline's current run state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PaceInterval computes the sleep duration between iterations of a
// fixed-rate worker (e.g. the renderer), given a target frame rate.
func PaceInterval(frameRate int) time.Duration {
	if frameRate <= 0 {
		frameRate = 30
	}
	return time.Second / time.Duration(frameRate)
}
