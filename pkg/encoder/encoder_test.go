package encoder

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethercast/source/pkg/frame"
)

func TestFirstFrameEmitsCodecConfig(t *testing.T) {
	var units []*EncodedUnit
	enc, err := New(NewSoftwareDriver(), Configuration{
		Width: 1280, Height: 720, FrameRate: 30, BitrateKbps: 8000,
		ProfileIDC: 0x42, LevelIDC: 0x20,
	}, 30, func(u *EncodedUnit) { units = append(units, u) })
	require.NoError(t, err)

	f := &frame.Frame{Width: 1280, Height: 720, CapturedAt: time.Now(), Data: []byte{0xAB}}
	require.NoError(t, enc.EncodeFrame(context.Background(), f))

	require.Len(t, units, 1)
	assert.True(t, units[0].IsIDR)
	assert.True(t, units[0].IsCodecConfig)
	assert.True(t, bytes.Contains(units[0].Data, []byte{0x67, 0x42}))
}

func TestSubsequentFramesAreNotIDRUntilInterval(t *testing.T) {
	var units []*EncodedUnit
	enc, err := New(NewSoftwareDriver(), Configuration{Width: 640, Height: 480}, 2,
		func(u *EncodedUnit) { units = append(units, u) })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f := &frame.Frame{Width: 640, Height: 480, CapturedAt: time.Now()}
		require.NoError(t, enc.EncodeFrame(context.Background(), f))
	}

	require.Len(t, units, 3)
	assert.True(t, units[0].IsIDR)
	assert.False(t, units[1].IsIDR)
	assert.True(t, units[2].IsIDR)
}

func TestRequestIDRForcesKeyframeOnNextEncode(t *testing.T) {
	var units []*EncodedUnit
	enc, err := New(NewSoftwareDriver(), Configuration{Width: 640, Height: 480}, 0,
		func(u *EncodedUnit) { units = append(units, u) })
	require.NoError(t, err)

	f := &frame.Frame{Width: 640, Height: 480, CapturedAt: time.Now()}
	require.NoError(t, enc.EncodeFrame(context.Background(), f))
	require.NoError(t, enc.EncodeFrame(context.Background(), f))
	require.False(t, units[1].IsIDR)

	enc.RequestIDR()
	require.NoError(t, enc.EncodeFrame(context.Background(), f))
	assert.True(t, units[2].IsIDR)
}
