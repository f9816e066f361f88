package frame

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFallsBackToReadback(t *testing.T) {
	native := &NativeHandleCapturer{} // Acquire is nil -> always unsupported
	readback := &ReadbackCapturer{FrameRate: 200}

	var got *Frame
	var releaseCalls int
	src := NewSource(native, readback, func(f *Frame, release func()) {
		got = f
		release()
		releaseCalls++
	})

	ctx := context.Background()
	require.NoError(t, src.Setup(ctx, 16, 16, OutputModeDedicated))

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_ = src.Run(runCtx)

	require.NotNil(t, got)
	assert.Equal(t, PixelFormatBGRA8888, got.Format)
	assert.Equal(t, 16, got.Width)
	assert.Greater(t, releaseCalls, 0)
}

func TestSourcePropagatesNonFallbackError(t *testing.T) {
	native := &NativeHandleCapturer{
		Acquire: func(ctx context.Context) (uintptr, int, int, int, error) {
			return 0, 0, 0, 0, assertErr
		},
	}
	src := NewSource(native, nil, nil)
	err := src.Setup(context.Background(), 16, 16, OutputModeMirror)
	assert.NoError(t, err) // Setup succeeds; Acquire only fails on Capture

	err = src.Run(context.Background())
	assert.ErrorIs(t, err, assertErr) // the Capture failure is returned, not swallowed
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestReadbackFramesAreDeterministic(t *testing.T) {
	c := &ReadbackCapturer{FrameRate: 1000}
	require.NoError(t, c.Setup(context.Background(), 4, 2, OutputModeDedicated))

	f1, err := c.Capture(context.Background())
	require.NoError(t, err)
	f2, err := c.Capture(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, f1.Data[0], f2.Data[0], "successive frames should carry a different shade byte")
}
