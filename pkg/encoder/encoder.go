// Package encoder turns captured frames into an H.264 Annex-B elementary
// stream. The bitstream coder itself is external (a hardware block or a
// vendor software codec); Encoder owns codec-config bookkeeping, IDR
// scheduling, and the backpressure contract between the frame source and
// the packetizer.
package encoder

import (
	"context"
	"fmt"
	"time"

	"github.com/aethercast/source/pkg/frame"
)

// EncodedUnit is one encoded access unit ready for packetization.
type EncodedUnit struct {
	Data         []byte // Annex-B NAL stream (start-code prefixed)
	PTS          time.Time
	IsIDR        bool
	IsCodecConfig bool // true for a unit that carries SPS/PPS (SoftwareDriver: every IDR unit)
	Profile      uint8 // H.264 profile_idc, valid on codec-config units
	Level        uint8 // H.264 level_idc, valid on codec-config units
}

// Configuration is the negotiated target the encoder must hit, derived
// from the session's format negotiation.
type Configuration struct {
	Width       int
	Height      int
	FrameRate   int
	BitrateKbps int
	ProfileIDC  uint8
	LevelIDC    uint8
}

// Driver is the narrow interface to the actual bitstream coder. A real
// implementation wraps a hardware MFT/OMX/V4L2 M2M codec or a vendor
// software encoder; EncodeFrame blocks until the unit is ready or ctx is
// done.
type Driver interface {
	Configure(cfg Configuration) error
	EncodeFrame(ctx context.Context, f *frame.Frame, forceIDR bool) (*EncodedUnit, error)
	Close() error
}

// Encoder drives a Driver, inserting codec-config units on start and on
// every IDR, and preserving each frame's capture timestamp as the
// encoded unit's PTS.
type Encoder struct {
	driver       Driver
	cfg          Configuration
	idrInterval  int
	frameCounter int
	forceNextIDR bool
	onUnit       func(*EncodedUnit)
}

// New builds an Encoder around driver. idrInterval is the number of
// frames between forced IDRs (0 disables periodic forcing — the driver
// then decides IDR placement on its own).
func New(driver Driver, cfg Configuration, idrInterval int, onUnit func(*EncodedUnit)) (*Encoder, error) {
	if err := driver.Configure(cfg); err != nil {
		return nil, fmt.Errorf("encoder: configure: %w", err)
	}
	return &Encoder{driver: driver, cfg: cfg, idrInterval: idrInterval, onUnit: onUnit}, nil
}

// EncodeFrame encodes one frame and hands the driver's single resulting
// unit to onUnit. The frame is forced to an IDR after RequestIDR, or,
// when idrInterval is positive, on every idrInterval-th frame starting
// with the first; no separate codec-config unit is emitted, so SPS/PPS
// travel inside that IDR unit (as SoftwareDriver produces it).
func (e *Encoder) EncodeFrame(ctx context.Context, f *frame.Frame) error {
	forceIDR := e.forceNextIDR || (e.idrInterval > 0 && e.frameCounter%e.idrInterval == 0)
	e.forceNextIDR = false
	unit, err := e.driver.EncodeFrame(ctx, f, forceIDR)
	if err != nil {
		return fmt.Errorf("encoder: encode frame %d: %w", e.frameCounter, err)
	}
	e.frameCounter++
	if e.onUnit != nil {
		e.onUnit(unit)
	}
	return nil
}

// RequestIDR forces the very next EncodeFrame call to produce an IDR,
// regardless of idrInterval — used when a newly connected sink needs an
// immediate keyframe (spec'd IDR-on-demand).
func (e *Encoder) RequestIDR() {
	e.forceNextIDR = true
}

// Close releases the underlying driver.
func (e *Encoder) Close() error {
	return e.driver.Close()
}
