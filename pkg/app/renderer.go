package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aethercast/source/pkg/encoder"
	"github.com/aethercast/source/pkg/frame"
	"github.com/aethercast/source/pkg/logger"
	"github.com/aethercast/source/pkg/mpegts"
	"github.com/aethercast/source/pkg/queue"
	"github.com/aethercast/source/pkg/report"
	"github.com/aethercast/source/pkg/rtp"
	"github.com/aethercast/source/pkg/wfderr"
)

// frameQueueCapacity is the capture -> encode handoff depth spec.md
// §4.5 fixes at 2 slots for the capture path: the renderer's capture
// callback blocks here once 2 frames are already waiting on the
// encoder, which is the backpressure Testable Scenario S2 exercises.
const frameQueueCapacity = 2

// unitQueueCapacity bounds how many encoded units may be in flight
// between the encoder callback and the packetize/send stage before
// Push blocks, propagating backpressure up into frame capture.
const unitQueueCapacity = 8

// psiInterval is how often fresh PAT+PMT+PCR is forced ahead of the
// next video payload, independent of IDR/codec-config placement, per
// spec.md invariant 3 and Testable Property #6 (95-105ms cadence).
const psiInterval = 100 * time.Millisecond

// rendererExec is the pipeline.Executable driving one session's capture
// -> encode -> packetize -> send chain. The encoder is built inside Run
// (it needs the run context for its encoder callback), so ForceIDR
// reads it under a mutex rather than assuming it exists at
// construction. Frames cross from the capture callback into the encode
// goroutine through a capacity-2 queue.BufferQueue of ref-counted
// frames; encoded units cross from there into a dedicated sender
// goroutine through a second, deeper queue.BufferQueue. Both boundaries
// use the same leaky-bucket contract.
type rendererExec struct {
	primary  frame.Capturer
	fallback frame.Capturer

	driver      encoder.Driver
	cfg         encoder.Configuration
	idrInterval int

	packetizer *mpegts.Packetizer
	sender     *rtp.Sender
	reporter   report.Reporter
	log        *logger.Logger

	mu    sync.Mutex
	enc   *encoder.Encoder
	units *queue.BufferQueue[*encoder.EncodedUnit]

	psiDue atomic.Bool // set by a 100ms ticker, cleared by the next packetized unit
}

func newRenderer(cfg encoder.Configuration, packetizer *mpegts.Packetizer, sender *rtp.Sender, reporter report.Reporter, log *logger.Logger) *rendererExec {
	return &rendererExec{
		primary:     &frame.NativeHandleCapturer{},
		fallback:    &frame.ReadbackCapturer{FrameRate: cfg.FrameRate},
		driver:      encoder.NewSoftwareDriver(),
		cfg:         cfg,
		idrInterval: cfg.FrameRate * 2,
		packetizer:  packetizer,
		sender:      sender,
		reporter:    reporter,
		log:         log,
	}
}

func (r *rendererExec) Name() string { return "renderer" }

func (r *rendererExec) Run(ctx context.Context) (runErr error) {
	// runCtx is cancelled internally (without cancelling the caller's
	// ctx) the moment the send stage hits an unrecoverable error, so
	// capture/encode unwind promptly instead of stalling on a queue
	// no one will ever drain again.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var sendErrOnce sync.Once
	var sendErr error
	failSend := func(err error) {
		sendErrOnce.Do(func() {
			sendErr = err
			cancelRun()
		})
	}

	units := queue.New[*encoder.EncodedUnit](unitQueueCapacity)
	frames := queue.New[*queue.RefCounted[*frame.Frame]](frameQueueCapacity)

	var senderWg, encodeWg sync.WaitGroup

	senderWg.Add(1)
	go func() {
		defer senderWg.Done()
		r.drainUnits(runCtx, units, failSend)
	}()
	// units.Close() must run before senderWg.Wait(), since drainUnits
	// only returns once the queue is both closed and drained (or ctx is
	// done); deferred calls run LIFO, so Close is deferred second.
	defer senderWg.Wait()
	defer units.Close()

	enc, err := encoder.New(r.driver, r.cfg, r.idrInterval, func(unit *encoder.EncodedUnit) {
		r.reporter.RecordRTPBufferQueued(units.Len())
		units.Push(runCtx, unit)
	})
	if err != nil {
		return fmt.Errorf("renderer: build encoder: %w", err)
	}
	defer enc.Close()

	r.mu.Lock()
	r.enc = enc
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.enc = nil
		r.mu.Unlock()
	}()

	encodeWg.Add(1)
	go func() {
		defer encodeWg.Done()
		r.drainFrames(runCtx, frames, enc)
	}()
	// Same ordering rationale as the units queue above: close before
	// waiting, and this pair must unwind before the units queue's pair
	// (declared first, so its defers run last) so an in-flight frame
	// can still push its encoded unit before the sender stops draining.
	defer encodeWg.Wait()
	defer frames.Close()

	psiTicker := time.NewTicker(psiInterval)
	defer psiTicker.Stop()
	go func() {
		for {
			select {
			case <-psiTicker.C:
				r.psiDue.Store(true)
			case <-runCtx.Done():
				return
			}
		}
	}()

	var frameCount int
	windowStart := time.Now()
	var lastFrameAt time.Time

	onFrame := func(f *frame.Frame, release func()) {
		now := time.Now()
		if !lastFrameAt.IsZero() {
			r.reporter.RecordRendererWait(now.Sub(lastFrameAt))
		}
		lastFrameAt = now

		rc := queue.NewRefCounted(f, func(*frame.Frame) { release() })
		if !frames.Push(runCtx, rc) {
			rc.Release()
			return
		}
		r.reporter.RecordRendererSwapped()
		r.reporter.RecordRendererIteration(time.Since(now))

		frameCount++
		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			r.reporter.RecordFramesPerSecond(float64(frameCount) / elapsed.Seconds())
			frameCount = 0
			windowStart = time.Now()
		}
	}

	src := frame.NewSource(r.primary, r.fallback, onFrame)
	if err := src.Setup(runCtx, r.cfg.Width, r.cfg.Height, frame.OutputModeDedicated); err != nil {
		return fmt.Errorf("renderer: setup capture: %w", err)
	}
	defer src.Teardown()

	if err := src.Run(runCtx); err != nil {
		return err
	}

	// Run returning nil from src.Run(ctx) can still mean "the send
	// stage killed runCtx"; surface that as the pipeline's error so
	// pipeline.Errors() fires and the session tears down (spec.md §7's
	// OnTransportNetworkError propagation).
	if sendErr != nil {
		return sendErr
	}
	return ctx.Err()
}

// drainFrames pops ref-counted frames off frames until the queue
// closes or ctx is done, encoding each one and releasing its reference
// once the encoder is done reading it. Running this as its own
// goroutine, rather than inline in the capture callback, is what lets
// frames queue up to frameQueueCapacity instead of serializing capture
// behind encode.
func (r *rendererExec) drainFrames(ctx context.Context, frames *queue.BufferQueue[*queue.RefCounted[*frame.Frame]], enc *encoder.Encoder) {
	for {
		rc, ok := frames.Pop(ctx)
		if !ok {
			return
		}
		if err := enc.EncodeFrame(ctx, rc.Value()); err != nil {
			r.log.Error("encode frame", "error", err)
		}
		rc.Release()
	}
}

// drainUnits pops encoded units off units until the queue closes or ctx
// is done, packetizing and sending each one in turn. Running this as
// its own goroutine, rather than inline in the encoder callback, keeps
// a slow or blocked sender from stalling frame capture past the
// queue's capacity. A send failure that sendUnit considers fatal is
// reported to failSend and ends the drain loop, since the socket is
// presumed broken for the rest of the session.
func (r *rendererExec) drainUnits(ctx context.Context, units *queue.BufferQueue[*encoder.EncodedUnit], failSend func(error)) {
	for {
		unit, ok := units.Pop(ctx)
		if !ok {
			return
		}
		if err := r.sendUnit(ctx, unit); err != nil {
			failSend(fmt.Errorf("renderer: send: %w", err))
			return
		}
	}
}

func (r *rendererExec) sendUnit(ctx context.Context, unit *encoder.EncodedUnit) error {
	ptsUs := uint64(unit.PTS.UnixMicro())
	includePSI := r.psiDue.CompareAndSwap(true, false) || unit.IsCodecConfig
	pkts := r.packetizer.PacketizeUnit(unit.Data, ptsUs, includePSI)
	r.reporter.RecordEncoderBufferOut(len(pkts))

	if err := r.sender.WriteTSPackets(ctx, pkts, unit.PTS); err != nil {
		return err
	}
	r.reporter.RecordRTPBufferSent()
	return nil
}

// ForceIDR requests an immediate keyframe on the next encoded frame. It
// fails with CodeNotReady if the renderer hasn't started encoding yet.
func (r *rendererExec) ForceIDR() error {
	r.mu.Lock()
	enc := r.enc
	r.mu.Unlock()
	if enc == nil {
		return wfderr.New(wfderr.CodeNotReady, "renderer.ForceIDR", nil)
	}
	enc.RequestIDR()
	return nil
}
