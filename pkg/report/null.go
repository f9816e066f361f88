package report

import "time"

// Null discards every measurement. Used when AETHERCAST_REPORT_TYPE is
// unset or "null" — the default, matching the original's
// NullReportFactory.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (Null) RecordRendererWait(time.Duration)       {}
func (Null) RecordRendererSwapped()                 {}
func (Null) RecordRendererIteration(time.Duration)  {}
func (Null) RecordFramesPerSecond(float64)          {}
func (Null) RecordEncoderBufferOut(int)             {}
func (Null) RecordSenderBufferPerSecond(float64)    {}
func (Null) RecordRTPBufferQueued(int)              {}
func (Null) RecordRTPBufferSent()                   {}
func (Null) RecordRTPBandwidth(float64)             {}
