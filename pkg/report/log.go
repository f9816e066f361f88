package report

import (
	"log/slog"
	"time"
)

// Log writes every measurement as a structured log line, mirroring the
// original's LoggingReportFactory/MCS_DEBUG dump but through slog
// instead of a macro.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "report")}
}

func (l *Log) RecordRendererWait(d time.Duration) {
	l.logger.Debug("renderer wait", "duration", d)
}

func (l *Log) RecordRendererSwapped() {
	l.logger.Debug("renderer swapped")
}

func (l *Log) RecordRendererIteration(d time.Duration) {
	l.logger.Debug("renderer iteration", "duration", d)
}

func (l *Log) RecordFramesPerSecond(fps float64) {
	l.logger.Info("frame rate", "fps", fps)
}

func (l *Log) RecordEncoderBufferOut(depth int) {
	l.logger.Debug("encoder buffer out", "depth", depth)
}

func (l *Log) RecordSenderBufferPerSecond(n float64) {
	l.logger.Debug("sender buffers per second", "rate", n)
}

func (l *Log) RecordRTPBufferQueued(depth int) {
	l.logger.Debug("rtp buffer queued", "depth", depth)
}

func (l *Log) RecordRTPBufferSent() {
	l.logger.Debug("rtp buffer sent")
}

func (l *Log) RecordRTPBandwidth(mbps float64) {
	l.logger.Info("rtp bandwidth", "mbps", mbps)
}
