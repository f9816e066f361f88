package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes every measurement as a registered collector, for
// operators running this as a long-lived daemon. Not part of the
// protocol surface — an ambient observability addition (see
// SPEC_FULL.md §10) grounded on snapetech-plexTuner's use of
// prometheus/client_golang.
type Prometheus struct {
	rendererWait      prometheus.Histogram
	rendererSwapped   prometheus.Counter
	rendererIteration prometheus.Histogram
	framesPerSecond   prometheus.Gauge
	encoderBufferOut  prometheus.Gauge
	senderBufferRate  prometheus.Gauge
	rtpBufferQueued   prometheus.Gauge
	rtpBufferSent     prometheus.Counter
	rtpBandwidthMbps  prometheus.Gauge
}

// NewPrometheus builds and registers the collectors against reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		rendererWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aethercast", Subsystem: "renderer", Name: "wait_seconds",
			Help: "Time spent waiting for the next captured frame.",
		}),
		rendererSwapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aethercast", Subsystem: "renderer", Name: "swapped_total",
			Help: "Frames successfully swapped in.",
		}),
		rendererIteration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aethercast", Subsystem: "renderer", Name: "iteration_seconds",
			Help: "Total duration of one renderer loop iteration.",
		}),
		framesPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aethercast", Subsystem: "renderer", Name: "fps",
			Help: "Measured renderer frame rate.",
		}),
		encoderBufferOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aethercast", Subsystem: "encoder", Name: "buffer_out_depth",
			Help: "Encoder output queue depth.",
		}),
		senderBufferRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aethercast", Subsystem: "sender", Name: "buffers_per_second",
			Help: "Buffers drained by the sender stage per second.",
		}),
		rtpBufferQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aethercast", Subsystem: "rtp", Name: "buffer_queued_depth",
			Help: "RTP sender queue depth.",
		}),
		rtpBufferSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aethercast", Subsystem: "rtp", Name: "buffer_sent_total",
			Help: "RTP datagrams sent.",
		}),
		rtpBandwidthMbps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aethercast", Subsystem: "rtp", Name: "bandwidth_mbps",
			Help: "Measured outgoing RTP bandwidth in Mbit/s.",
		}),
	}

	reg.MustRegister(
		p.rendererWait, p.rendererSwapped, p.rendererIteration, p.framesPerSecond,
		p.encoderBufferOut, p.senderBufferRate, p.rtpBufferQueued, p.rtpBufferSent,
		p.rtpBandwidthMbps,
	)
	return p
}

func (p *Prometheus) RecordRendererWait(d time.Duration)      { p.rendererWait.Observe(d.Seconds()) }
func (p *Prometheus) RecordRendererSwapped()                  { p.rendererSwapped.Inc() }
func (p *Prometheus) RecordRendererIteration(d time.Duration) { p.rendererIteration.Observe(d.Seconds()) }
func (p *Prometheus) RecordFramesPerSecond(fps float64)       { p.framesPerSecond.Set(fps) }
func (p *Prometheus) RecordEncoderBufferOut(depth int)        { p.encoderBufferOut.Set(float64(depth)) }
func (p *Prometheus) RecordSenderBufferPerSecond(n float64)   { p.senderBufferRate.Set(n) }
func (p *Prometheus) RecordRTPBufferQueued(depth int)         { p.rtpBufferQueued.Set(float64(depth)) }
func (p *Prometheus) RecordRTPBufferSent()                    { p.rtpBufferSent.Inc() }
func (p *Prometheus) RecordRTPBandwidth(mbps float64)         { p.rtpBandwidthMbps.Set(mbps) }
