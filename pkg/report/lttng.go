package report

import (
	"log/slog"
	"sync"
	"time"
)

// LTTNG is a named, selectable backend for AETHERCAST_REPORT_TYPE=lttng,
// matching the original's lttng report factory entry. No Go LTTng UST
// binding exists in this module's dependency pack or a vetted ecosystem
// package, so this backend logs one warning on first use and then
// behaves as Null — it exists so selecting "lttng" fails loud once
// instead of silently aliasing to another backend or being rejected as
// an unknown type.
type LTTNG struct {
	logger *slog.Logger
	once   sync.Once
	Null
}

func NewLTTNG(logger *slog.Logger) *LTTNG {
	return &LTTNG{logger: logger}
}

func (l *LTTNG) warnOnce() {
	l.once.Do(func() {
		l.logger.Warn("report: lttng backend selected but no LTTng UST binding is available; measurements are discarded")
	})
}

func (l *LTTNG) RecordRendererWait(d time.Duration) { l.warnOnce() }
func (l *LTTNG) RecordRendererSwapped()             { l.warnOnce() }
func (l *LTTNG) RecordRendererIteration(d time.Duration) { l.warnOnce() }
func (l *LTTNG) RecordFramesPerSecond(fps float64)  { l.warnOnce() }
func (l *LTTNG) RecordEncoderBufferOut(depth int)   { l.warnOnce() }
func (l *LTTNG) RecordSenderBufferPerSecond(n float64) { l.warnOnce() }
func (l *LTTNG) RecordRTPBufferQueued(depth int)    { l.warnOnce() }
func (l *LTTNG) RecordRTPBufferSent()               { l.warnOnce() }
func (l *LTTNG) RecordRTPBandwidth(mbps float64)    { l.warnOnce() }
