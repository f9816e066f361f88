package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	name    string
	started int32
	err     error
	block   chan struct{}
}

func newFakeExec(name string) *fakeExec {
	return &fakeExec{name: name, block: make(chan struct{})}
}

func (f *fakeExec) Name() string { return f.name }

func (f *fakeExec) Run(ctx context.Context) error {
	atomic.StoreInt32(&f.started, 1)
	select {
	case <-ctx.Done():
		return nil
	case <-f.block:
		return f.err
	}
}

func TestStartRunsAllWorkers(t *testing.T) {
	a, b := newFakeExec("a"), newFakeExec("b")
	p := New(NewWorker(a), NewWorker(b))

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&a.started) == 1 && atomic.LoadInt32(&b.started) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, StatePlaying, p.State())
}

func TestStopWaitsForAllWorkers(t *testing.T) {
	a, b := newFakeExec("a"), newFakeExec("b")
	p := New(NewWorker(a), NewWorker(b))

	p.Start(context.Background())
	p.Stop()

	assert.Equal(t, StateStopped, p.State())
}

func TestDoubleStartPanics(t *testing.T) {
	p := New(NewWorker(newFakeExec("a")))
	p.Start(context.Background())
	defer p.Stop()

	assert.Panics(t, func() { p.Start(context.Background()) })
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(NewWorker(newFakeExec("a")))
	p.Start(context.Background())
	p.Stop()
	assert.NotPanics(t, func() { p.Stop() })
	assert.Equal(t, StateStopped, p.State())
}

func TestPauseThenStart(t *testing.T) {
	a := newFakeExec("a")
	p := New(NewWorker(a))

	p.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&a.started) == 1 }, time.Second, time.Millisecond)

	p.Pause()
	assert.Equal(t, StatePaused, p.State())

	p.Start(context.Background())
	defer p.Stop()
	assert.Equal(t, StatePlaying, p.State())
}

func TestWorkerErrorSurfacesOnErrors(t *testing.T) {
	failing := newFakeExec("send")
	failing.err = errors.New("udp write failed")
	p := New(NewWorker(failing))

	p.Start(context.Background())
	close(failing.block)

	select {
	case err := <-p.Errors():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "send")
		assert.Contains(t, err.Error(), "udp write failed")
	case <-time.After(time.Second):
		t.Fatal("expected worker error on Errors() channel")
	}
	p.Stop()
}

func TestContextCancelDoesNotReportError(t *testing.T) {
	failing := newFakeExec("send")
	failing.err = errors.New("should not surface")
	p := New(NewWorker(failing))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&failing.started) == 1 }, time.Second, time.Millisecond)
	cancel()
	p.Stop()

	select {
	case err := <-p.Errors():
		t.Fatalf("unexpected error after context cancellation: %v", err)
	default:
	}
}

func TestPaceInterval(t *testing.T) {
	assert.Equal(t, time.Second/30, PaceInterval(30))
	assert.Equal(t, time.Second/60, PaceInterval(60))
	assert.Equal(t, time.Second/30, PaceInterval(0))
	assert.Equal(t, time.Second/30, PaceInterval(-5))
}
