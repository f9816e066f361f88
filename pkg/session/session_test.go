package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethercast/source/pkg/wfderr"
)

func TestHappyPathLifecycle(t *testing.T) {
	var transitions [][2]State
	s := New("1", func(from, to State) { transitions = append(transitions, [2]State{from, to}) })

	require.NoError(t, s.BeginCapabilityNegotiation())
	_, err := s.NegotiateVideoFormat(ReferenceVideoFormats())
	require.NoError(t, err)
	require.NoError(t, s.CompleteSetup())
	require.NoError(t, s.Play())
	require.NoError(t, s.Pause())
	require.NoError(t, s.Play())
	require.NoError(t, s.Teardown())

	assert.Equal(t, StateTornDown, s.State())
	assert.NotEmpty(t, transitions)
}

func TestPlayFromIdleIsInvalidState(t *testing.T) {
	s := New("1", nil)
	err := s.Play()
	require.Error(t, err)
	assert.True(t, wfderr.Is(err, wfderr.CodeInvalidState))
}

func TestTeardownIsIdempotentSecondCallReportsAlready(t *testing.T) {
	s := New("1", nil)
	require.NoError(t, s.Teardown())
	err := s.Teardown()
	require.Error(t, err)
	assert.True(t, wfderr.Is(err, wfderr.CodeAlready))
}

func TestNegotiateVideoFormatFailsOnDisjointSets(t *testing.T) {
	s := New("1", nil)
	_, err := s.NegotiateVideoFormat([]VideoFormat{{Width: 640, Height: 480, FrameRate: 30}})
	require.Error(t, err)
	assert.True(t, wfderr.Is(err, wfderr.CodeParamInvalid))
}

func TestNegotiateVideoFormatPicksHighestFrameRate(t *testing.T) {
	best, ok := NegotiateVideoFormat(ReferenceVideoFormats())
	require.True(t, ok)
	assert.Equal(t, 30, best.FrameRate)
}

func TestCSeqDoublesOnCollision(t *testing.T) {
	c := NewCSeqCounter()
	first := c.Next() // 1, next becomes 2
	assert.Equal(t, 1, first)

	c.ObservePeerCSeq(1) // the peer reuses this side's initial CSeq
	second := c.Next()
	assert.Equal(t, 4, second) // doubled from 2 to 4 before being handed out
}

func TestParseClientRTPPorts(t *testing.T) {
	ports, err := ParseClientRTPPorts("RTP/AVP/UDP;unicast 19000 0 mode=play")
	require.NoError(t, err)
	assert.Equal(t, 19000, ports.RTPPort1)
	assert.Equal(t, 0, ports.RTPPort2)
}
