package frame

import (
	"context"
	"time"
)

// NativeHandleCapturer is the zero-copy capture strategy: it hands back
// a native buffer handle (e.g. a DMA-BUF fd or an EGLImage name) rather
// than a copied byte slice. Acquire is the platform-specific hook; the
// reference implementation here has no real platform binding and always
// reports ErrUnsupportedCapture from Setup, so a Source configured with
// it falls straight through to a ReadbackCapturer — exactly the
// fallback path the component is specified to take on platforms without
// zero-copy capture.
type NativeHandleCapturer struct {
	Acquire func(ctx context.Context) (handle uintptr, width, height, stride int, err error)
}

func (c *NativeHandleCapturer) Setup(ctx context.Context, width, height int, mode OutputMode) error {
	if c.Acquire == nil {
		return ErrUnsupportedCapture
	}
	return nil
}

func (c *NativeHandleCapturer) Capture(ctx context.Context) (*Frame, error) {
	handle, w, h, stride, err := c.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Format:     PixelFormatNativeHandle,
		Width:      w,
		Height:     h,
		Stride:     stride,
		CapturedAt: time.Now(),
		Handle:     handle,
	}, nil
}

func (c *NativeHandleCapturer) Release(f *Frame) {}

func (c *NativeHandleCapturer) Teardown() error { return nil }

// ReadbackCapturer is the software fallback: it produces deterministic
// synthetic BGRA frames at a fixed rate, sufficient to drive and test
// the full pipeline without a real display. Frame content is a moving
// horizontal gradient keyed off the frame index, so consumers (and
// tests) can detect dropped or duplicated frames by inspecting pixel
// values.
type ReadbackCapturer struct {
	FrameRate int // frames per second; defaults to 30 if zero

	width, height int
	frameInterval time.Duration
	frameIndex    uint64
	lastEmit      time.Time
}

func (c *ReadbackCapturer) Setup(ctx context.Context, width, height int, mode OutputMode) error {
	rate := c.FrameRate
	if rate <= 0 {
		rate = 30
	}
	c.width = width
	c.height = height
	c.frameInterval = time.Second / time.Duration(rate)
	c.frameIndex = 0
	c.lastEmit = time.Time{}
	return nil
}

func (c *ReadbackCapturer) Capture(ctx context.Context) (*Frame, error) {
	if !c.lastEmit.IsZero() {
		wait := c.frameInterval - time.Since(c.lastEmit)
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	stride := c.width * 4
	data := make([]byte, stride*c.height)
	shade := byte(c.frameIndex % 256)
	for row := 0; row < c.height; row++ {
		off := row * stride
		for col := 0; col < c.width; col++ {
			p := off + col*4
			data[p+0] = shade             // B
			data[p+1] = byte(col % 256)   // G
			data[p+2] = byte(row % 256)   // R
			data[p+3] = 0xFF              // A
		}
	}

	f := &Frame{
		Format:     PixelFormatBGRA8888,
		Width:      c.width,
		Height:     c.height,
		Stride:     stride,
		CapturedAt: time.Now(),
		Data:       data,
	}
	c.frameIndex++
	c.lastEmit = time.Now()
	return f, nil
}

func (c *ReadbackCapturer) Release(f *Frame) {}

func (c *ReadbackCapturer) Teardown() error { return nil }
