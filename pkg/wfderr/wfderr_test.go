package wfderr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(CodeNotConnected, "rtp.Sender.Open", cause)

	assert.True(t, Is(err, CodeNotConnected))
	assert.False(t, Is(err, CodeTimeout))
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfDefaultsFailedForForeignErrors(t *testing.T) {
	assert.Equal(t, CodeFailed, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeNone, CodeOf(nil))
}

func TestRTSPStatusDefaults(t *testing.T) {
	cases := map[Code]int{
		CodeParamInvalid:          400,
		CodeInvalidState:          455,
		CodeNotConnected:          454,
		CodeTimeout:               504,
		CodeRemoteClosedConnection: 454,
	}
	for code, want := range cases {
		err := New(code, "op", nil)
		assert.Equal(t, want, err.RTSPStatus, code.String())
	}
}

func TestWithStatusOverrides(t *testing.T) {
	err := New(CodeInvalidState, "session.Play", nil).WithStatus(405)
	assert.Equal(t, 405, err.RTSPStatus)
}
