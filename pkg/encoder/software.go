package encoder

import (
	"context"
	"encoding/binary"

	"github.com/aethercast/source/pkg/frame"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

const (
	nalTypeSPS = 7
	nalTypeIDR = 5
	nalTypeNonIDR = 1
)

// SoftwareDriver is a deterministic reference Driver: it does not
// perform real H.264 bitstream coding. Instead it emits syntactically
// well-formed NAL units (start code, NAL header, a payload derived from
// the frame content) so the rest of the pipeline — packetization, RTP
// framing, statistics — can be built, run, and tested end to end
// without a real encoder attached. A vendor or hardware Driver
// implementing the same interface is a drop-in replacement.
type SoftwareDriver struct {
	cfg Configuration
}

func NewSoftwareDriver() *SoftwareDriver {
	return &SoftwareDriver{}
}

func (d *SoftwareDriver) Configure(cfg Configuration) error {
	d.cfg = cfg
	return nil
}

func (d *SoftwareDriver) EncodeFrame(ctx context.Context, f *frame.Frame, forceIDR bool) (*EncodedUnit, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []byte
	if forceIDR {
		out = append(out, d.codecConfigNALUs()...)
		out = append(out, d.naluFor(nalTypeIDR, f)...)
	} else {
		out = append(out, d.naluFor(nalTypeNonIDR, f)...)
	}

	return &EncodedUnit{
		Data:          out,
		PTS:           f.CapturedAt,
		IsIDR:         forceIDR,
		IsCodecConfig: forceIDR,
		Profile:       d.cfg.ProfileIDC,
		Level:         d.cfg.LevelIDC,
	}, nil
}

func (d *SoftwareDriver) Close() error { return nil }

// codecConfigNALUs builds a minimal but well-formed SPS/PPS pair
// encoding the configured profile/level and dimensions, so a real
// demuxer downstream (or a test) can parse something structurally
// correct, without claiming to be a spec-compliant H.264 bitstream.
func (d *SoftwareDriver) codecConfigNALUs() []byte {
	sps := make([]byte, 0, 16)
	sps = append(sps, 0x67) // forbidden_zero_bit=0, nal_ref_idc=3, nal_unit_type=7 (SPS)
	sps = append(sps, d.cfg.ProfileIDC)
	sps = append(sps, 0x00) // constraint flags
	sps = append(sps, d.cfg.LevelIDC)
	dims := make([]byte, 8)
	binary.BigEndian.PutUint32(dims[0:4], uint32(d.cfg.Width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(d.cfg.Height))
	sps = append(sps, dims...)

	pps := []byte{0x68, 0xCE, 0x3C, 0x80} // nal_unit_type=8 (PPS), fixed body

	out := make([]byte, 0, len(sps)+len(pps)+2*len(startCode))
	out = append(out, startCode...)
	out = append(out, sps...)
	out = append(out, startCode...)
	out = append(out, pps...)
	return out
}

func (d *SoftwareDriver) naluFor(nalType byte, f *frame.Frame) []byte {
	header := (nalType << 0) | 0x60 // nal_ref_idc=3
	payload := make([]byte, 0, 16)
	payload = append(payload, header)
	// A tiny content-derived payload so distinct frames produce
	// distinct bytes, useful for detecting dropped/duplicated units in
	// tests.
	if len(f.Data) > 0 {
		payload = append(payload, f.Data[0])
	} else {
		payload = append(payload, byte(f.Width%256))
	}

	out := make([]byte, 0, len(startCode)+len(payload))
	out = append(out, startCode...)
	out = append(out, payload...)
	return out
}
