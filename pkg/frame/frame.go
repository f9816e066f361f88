// Package frame defines the captured-display data model and the driver
// seam that plugs in a real platform capturer. The component itself
// (Source) only sequences capture calls onto a bounded queue; how a
// frame is actually produced is external per the overall scope.
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// PixelFormat enumerates the buffer layouts a Capturer may hand back.
type PixelFormat uint8

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatBGRA8888
	PixelFormatRGBA8888
	PixelFormatRGB888
	PixelFormatNV12
	PixelFormatNV21
	PixelFormatYUV420P
	PixelFormatYUYV
	PixelFormatNativeHandle
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA8888:
		return "BGRA8888"
	case PixelFormatRGBA8888:
		return "RGBA8888"
	case PixelFormatRGB888:
		return "RGB888"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatNV21:
		return "NV21"
	case PixelFormatYUV420P:
		return "YUV420P"
	case PixelFormatYUYV:
		return "YUYV"
	case PixelFormatNativeHandle:
		return "NativeHandle"
	default:
		return "Unknown"
	}
}

// OutputMode distinguishes a display mirrored from the framebuffer from
// one rendered specifically for this source at a target size — the two
// the negotiation's scaling step cares about.
type OutputMode uint8

const (
	OutputModeMirror OutputMode = iota
	OutputModeDedicated
)

// Frame is one captured picture, timestamped at the moment capture
// completed. Data is only valid while the holder's reference (see
// pkg/queue.RefCounted) is live; Release must be called exactly once
// per Frame obtained from a Capturer.
type Frame struct {
	Format    PixelFormat
	Width     int
	Height    int
	Stride    int
	CapturedAt time.Time
	Data      []byte
	Handle    uintptr // valid only when Format == PixelFormatNativeHandle
}

// ErrUnsupportedCapture is returned by a Capturer.Setup implementation
// that cannot service a zero-copy request on the current platform; a
// Source catches this during Setup to fall back to a ReadbackCapturer.
var ErrUnsupportedCapture = errors.New("frame: capture strategy not supported on this platform")

// Capturer is the narrow interface a platform capture backend
// implements. Capture blocks until the next frame is ready or ctx is
// done.
type Capturer interface {
	// Setup prepares the capturer for the given output size and mode.
	Setup(ctx context.Context, width, height int, mode OutputMode) error
	// Capture produces the next frame.
	Capture(ctx context.Context) (*Frame, error)
	// Release returns frame's buffer to the capturer, if applicable.
	Release(f *Frame)
	// Teardown releases any resources Setup acquired.
	Teardown() error
}

// Source drives a Capturer at a target frame rate, handing completed
// frames to onFrame along with a release func the receiver must call
// exactly once (directly, or via a pkg/queue.RefCounted wrapper if the
// frame is handed off across a goroutine boundary) once it is done
// reading the frame's buffer. Source itself no longer releases the
// frame automatically: ownership transfers to onFrame's caller, which
// is how a bounded queue between capture and encode can hold a frame
// past the point Run would otherwise have recycled its buffer.
// Source resolves the native-handle-vs-readback open question by
// attempting the zero-copy capturer first and falling back to
// read-back on ErrUnsupportedCapture.
type Source struct {
	primary  Capturer
	fallback Capturer
	active   Capturer
	onFrame  func(f *Frame, release func())
}

// NewSource builds a Source that prefers primary and falls back to
// fallback. fallback may be nil, in which case a Setup failure on
// primary is returned to the caller unchanged.
func NewSource(primary, fallback Capturer, onFrame func(f *Frame, release func())) *Source {
	return &Source{primary: primary, fallback: fallback, onFrame: onFrame}
}

// Setup resolves which Capturer will be used and prepares it.
func (s *Source) Setup(ctx context.Context, width, height int, mode OutputMode) error {
	if err := s.primary.Setup(ctx, width, height, mode); err != nil {
		if s.fallback == nil || !errors.Is(err, ErrUnsupportedCapture) {
			return fmt.Errorf("frame: primary capturer setup: %w", err)
		}
		if ferr := s.fallback.Setup(ctx, width, height, mode); ferr != nil {
			return fmt.Errorf("frame: fallback capturer setup: %w", ferr)
		}
		s.active = s.fallback
		return nil
	}
	s.active = s.primary
	return nil
}

// Run captures frames until ctx is cancelled, invoking onFrame for each
// one with a release func. onFrame (or whatever it hands the frame off
// to) owns the frame's buffer until release is called exactly once;
// Run itself never releases a frame it has handed to onFrame.
func (s *Source) Run(ctx context.Context) error {
	if s.active == nil {
		return errors.New("frame: Source.Run called before a successful Setup")
	}
	for {
		f, err := s.active.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("frame: capture: %w", err)
		}
		if s.onFrame == nil {
			s.active.Release(f)
			continue
		}
		var released atomic.Bool
		active := s.active
		s.onFrame(f, func() {
			if released.CompareAndSwap(false, true) {
				active.Release(f)
			}
		})
	}
}

// Teardown releases the active capturer's resources.
func (s *Source) Teardown() error {
	if s.active == nil {
		return nil
	}
	return s.active.Teardown()
}
