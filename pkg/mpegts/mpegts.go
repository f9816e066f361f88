// Package mpegts packetizes an H.264 access-unit stream into MPEG-2
// Transport Stream packets carrying a single video PES, plus the
// PAT/PMT program tables a WFD sink needs to tune in, structured after
// the PAT/PMT/PCR/PES layout of a conventional Go TS encoder
// (precomputed PSI bytes, continuity counters per PID, PCR written on
// the payload-unit-start packet of each access unit) but built directly
// against this domain's fixed single-video-program layout.
package mpegts

import (
	"encoding/binary"
)

const (
	PacketSize = 188
	syncByte   = 0x47

	PIDPAT   = 0x0000
	PIDPMT   = 0x0100
	PIDVideo = 0x1011

	streamIDVideo = 0xE0 // PES stream_id for the first video stream

	streamTypeH264 = 0x1B // ISO/IEC 14496-10 (H.264)
)

// TSPacket is one 188-byte transport stream packet.
type TSPacket [PacketSize]byte

// Packetizer turns encoded access units into a sequence of TSPacket
// values carrying PAT, PMT, and video PES data. One Packetizer instance
// serves one program; AddTrack exists for structural symmetry with a
// possible future audio track (Non-goal: no audio driver ships here).
type Packetizer struct {
	pat []byte
	pmt []byte

	ccByPID     map[uint16]byte
	pcrBase     uint64 // 90kHz units of the stream's start-of-session reference
	havePCRBase bool

	pesContinuation bool
}

// NewPacketizer builds a Packetizer for a single H.264 video elementary
// stream on PIDVideo, described by a PMT naming exactly that stream.
func NewPacketizer() *Packetizer {
	p := &Packetizer{ccByPID: map[uint16]byte{}}
	p.pat = buildPAT()
	p.pmt = buildPMT()
	return p
}

// AddTrack is reserved for a second elementary stream (e.g. AAC audio);
// no audio encoder driver is implemented, so this is unused in practice
// but kept so the PMT layout is not hardcoded to "video only" at the
// type level.
func (p *Packetizer) AddTrack(pid uint16, streamType byte) {
	p.pmt = buildPMTWithTracks([]pmtTrack{{pid: PIDVideo, streamType: streamTypeH264}, {pid: pid, streamType: streamType}})
}

// PacketizeUnit converts one encoded access unit (Annex-B NAL stream)
// into the TS packets that carry it, prefixed with PAT/PMT when
// includePSI is set; the caller decides when PSI is due (the renderer
// sets it for codec-config units and on its PSI cadence).
func (p *Packetizer) PacketizeUnit(data []byte, ptsUs uint64, includePSI bool) []TSPacket {
	var out []TSPacket

	if includePSI {
		out = append(out, p.packetizeSection(PIDPAT, p.pat)...)
		out = append(out, p.packetizeSection(PIDPMT, p.pmt)...)
	}

	pes := buildPES(streamIDVideo, data, ptsUs)
	out = append(out, p.packetizePES(pes, ptsUs)...)
	return out
}

func (p *Packetizer) nextCC(pid uint16) byte {
	cc := p.ccByPID[pid]
	p.ccByPID[pid] = (cc + 1) & 0x0F
	return cc
}

func (p *Packetizer) packetizeSection(pid uint16, section []byte) []TSPacket {
	var out []TSPacket
	payload := append([]byte{0x00}, section...) // pointer_field = 0
	first := true
	for len(payload) > 0 {
		var pkt TSPacket
		pkt[0] = syncByte
		pusi := byte(0)
		if first {
			pusi = 0x40
		}
		binary.BigEndian.PutUint16(pkt[1:3], (pid&0x1FFF)|uint16(pusi)<<8)
		pkt[3] = 0x10 | p.nextCC(pid) // payload only, no adaptation field

		n := copy(pkt[4:], payload)
		for i := 4 + n; i < PacketSize; i++ {
			pkt[i] = 0xFF
		}
		payload = payload[n:]
		out = append(out, pkt)
		first = false
	}
	return out
}

func (p *Packetizer) packetizePES(pes []byte, ptsUs uint64) []TSPacket {
	var out []TSPacket
	first := true
	for len(pes) > 0 {
		var pkt TSPacket
		pkt[0] = syncByte
		pusi := byte(0)
		if first {
			pusi = 0x40
		}
		binary.BigEndian.PutUint16(pkt[1:3], (PIDVideo&0x1FFF)|uint16(pusi)<<8)

		headerLen := 4
		afFlags := byte(0x10) // payload present
		if first {
			afFlags |= 0x20 // adaptation field present, to carry PCR
		}
		pkt[3] = afFlags | p.nextCC(PIDVideo)

		if first {
			pcr := p.pcrFor(ptsUs)
			afLen := byte(7) // 1 (flags) + 6 (PCR)
			pkt[4] = afLen
			pkt[5] = 0x10 // PCR_flag
			writePCR(pkt[6:12], pcr)
			headerLen = 4 + 1 + int(afLen)
		}

		n := copy(pkt[headerLen:], pes)
		for i := headerLen + n; i < PacketSize; i++ {
			pkt[i] = 0xFF
		}
		pes = pes[n:]
		out = append(out, pkt)
		first = false
	}
	return out
}

// pcrFor derives the 27MHz-scale PCR from a 90kHz PTS, anchoring the
// first call as the session's time-zero.
func (p *Packetizer) pcrFor(ptsUs uint64) uint64 {
	ts90k := (ptsUs * 9) / 100
	if !p.havePCRBase {
		p.pcrBase = ts90k
		p.havePCRBase = true
	}
	return (ts90k - p.pcrBase) * 300 // 90kHz -> 27MHz base, extension stays 0
}

func writePCR(dst []byte, pcr27MHz uint64) {
	base := pcr27MHz / 300
	ext := pcr27MHz % 300
	var buf [6]byte
	buf[0] = byte(base >> 25)
	buf[1] = byte(base >> 17)
	buf[2] = byte(base >> 9)
	buf[3] = byte(base >> 1)
	buf[4] = byte(base<<7) | 0x7E | byte(ext>>8)
	buf[5] = byte(ext)
	copy(dst, buf[:])
}

type pmtTrack struct {
	pid        uint16
	streamType byte
}

func buildPAT() []byte {
	// table_id(1) section_syntax+len(2) tsid(2) version/cni(1) sec#(1) lastsec#(1)
	// program_number(2) pid(2) crc(4)
	body := []byte{
		0x00,       // program_number high (we use program 1)
		0x01,       // program_number low
		0xE0 | byte(PIDPMT>>8),
		byte(PIDPMT & 0xFF),
	}
	return buildPSISection(0x00, 0x0001, body)
}

func buildPMT() []byte {
	return buildPMTWithTracks([]pmtTrack{{pid: PIDVideo, streamType: streamTypeH264}})
}

func buildPMTWithTracks(tracks []pmtTrack) []byte {
	body := []byte{
		0xE0 | byte(PIDVideo>>8), byte(PIDVideo & 0xFF), // PCR_PID = video PID
		0xF0, 0x00, // program_info_length = 0
	}
	for _, tr := range tracks {
		body = append(body, tr.streamType,
			0xE0|byte(tr.pid>>8), byte(tr.pid),
			0xF0, 0x00)
	}
	return buildPSISection(0x02, 0x0001, body)
}

// buildPSISection wraps body in the common PSI section header (table_id,
// section_length, table_id_extension, version/current, section numbers)
// and appends the MPEG-2 Annex A CRC32 over everything from table_id
// through the byte before the CRC field.
func buildPSISection(tableID byte, tableIDExt uint16, body []byte) []byte {
	// section after length field: table_id_ext(2) + reserved/version/current(1)
	// + section_number(1) + last_section_number(1) + body + crc placeholder handled by caller
	afterLen := 2 + 1 + 1 + 1 + len(body)
	sectionLength := afterLen + 4 // + CRC32

	section := make([]byte, 0, 3+afterLen+4)
	section = append(section, tableID)
	section = append(section, 0x80|0x30|byte(sectionLength>>8&0x0F), byte(sectionLength))
	section = append(section, byte(tableIDExt>>8), byte(tableIDExt))
	section = append(section, 0xC1) // reserved(2)=11 version(5)=0 current_next=1
	section = append(section, 0x00) // section_number
	section = append(section, 0x00) // last_section_number
	section = append(section, body...)

	crc := crc32MPEG2(section)
	var crcBytes [4]byte
	binary.BigEndian.PutUint32(crcBytes[:], crc)
	section = append(section, crcBytes[:]...)
	return section
}

// buildPES wraps an Annex-B NAL access unit in a PES header carrying the
// given PTS (microseconds, converted to the 90kHz PES clock).
func buildPES(streamID byte, payload []byte, ptsUs uint64) []byte {
	pts90k := (ptsUs * 9) / 100

	header := []byte{0x00, 0x00, 0x01, streamID}
	flags := []byte{0x80, 0x80, 0x05} // marker bits, PTS_DTS_flags=10, PES_header_data_length=5
	ptsField := encodePTS(0x2, pts90k)

	pesPayloadLen := len(flags) + len(ptsField) + len(payload)
	// PES_packet_length is 0 for video to signal "unbounded" per the
	// usual broadcast convention, which also sidesteps the 16-bit
	// length field's ~64KB ceiling for large access units.
	lenField := []byte{0x00, 0x00}
	if pesPayloadLen <= 0xFFFF && streamID != streamIDVideo {
		binary.BigEndian.PutUint16(lenField, uint16(pesPayloadLen))
	}

	out := make([]byte, 0, len(header)+2+len(flags)+len(ptsField)+len(payload))
	out = append(out, header...)
	out = append(out, lenField...)
	out = append(out, flags...)
	out = append(out, ptsField...)
	out = append(out, payload...)
	return out
}

func encodePTS(prefix byte, pts uint64) []byte {
	b := make([]byte, 5)
	b[0] = (prefix << 4) | byte((pts>>29)&0x0E) | 0x01
	b[1] = byte(pts >> 22)
	b[2] = byte((pts>>14)&0xFE) | 0x01
	b[3] = byte(pts >> 7)
	b[4] = byte((pts<<1)&0xFE) | 0x01
	return b
}
