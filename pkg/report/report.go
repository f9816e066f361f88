// Package report defines the telemetry sink every pipeline stage writes
// its timing and throughput measurements to. The measurement set (render
// wait/swap/iteration timings, frames per second, encoder buffer
// occupancy, sender buffer rate, RTP buffer depth, RTP bandwidth) is
// carried over unchanged from the statistics the reference
// implementation records in mcs::video::Statistics; only the backend is
// new.
package report

import "time"

// Reporter receives measurements from pipeline stages. Implementations
// must be safe for concurrent use — every pipeline worker goroutine
// calls into the same Reporter instance.
type Reporter interface {
	// RecordRendererWait records how long the renderer blocked waiting
	// for the next frame.
	RecordRendererWait(d time.Duration)
	// RecordRendererSwapped records a completed frame swap.
	RecordRendererSwapped()
	// RecordRendererIteration records one full renderer loop iteration.
	RecordRendererIteration(d time.Duration)
	// RecordFramesPerSecond records the renderer's current measured
	// frame rate.
	RecordFramesPerSecond(fps float64)
	// RecordEncoderBufferOut records the encoder's output queue depth.
	RecordEncoderBufferOut(depth int)
	// RecordSenderBufferPerSecond records how many buffers/sec the
	// sender stage is draining.
	RecordSenderBufferPerSecond(n float64)
	// RecordRTPBufferQueued records the RTP sender queue's depth.
	RecordRTPBufferQueued(depth int)
	// RecordRTPBufferSent records one RTP datagram having been sent.
	RecordRTPBufferSent()
	// RecordRTPBandwidth records the measured outgoing bitrate.
	RecordRTPBandwidth(mbps float64)
}

// Type selects a Reporter backend, read from AETHERCAST_REPORT_TYPE.
type Type string

const (
	TypeNull       Type = "null"
	TypeLog        Type = "log"
	TypeLTTNG      Type = "lttng"
	TypePrometheus Type = "prometheus"
)

// ParseType validates s against the known backend names, defaulting to
// TypeNull for an empty string.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case "":
		return TypeNull, true
	case TypeNull, TypeLog, TypeLTTNG, TypePrometheus:
		return Type(s), true
	default:
		return "", false
	}
}
