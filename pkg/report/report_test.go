package report

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	typ, ok := ParseType("")
	require.True(t, ok)
	assert.Equal(t, TypeNull, typ)

	typ, ok = ParseType("prometheus")
	require.True(t, ok)
	assert.Equal(t, TypePrometheus, typ)

	_, ok = ParseType("graphite")
	assert.False(t, ok)
}

func TestPrometheusRecordsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.RecordFramesPerSecond(29.97)
	p.RecordRTPBandwidth(12.5)
	p.RecordRTPBufferSent()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
