package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketsAreSyncedAnd188Bytes(t *testing.T) {
	p := NewPacketizer()
	pkts := p.PacketizeUnit([]byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAB, 0xCD}, 1_000_000, true)

	require.NotEmpty(t, pkts)
	for _, pkt := range pkts {
		assert.Equal(t, byte(syncByte), pkt[0])
		assert.Len(t, pkt, PacketSize)
	}
}

func TestPSIIncludedOnlyWhenRequested(t *testing.T) {
	p := NewPacketizer()
	withPSI := p.PacketizeUnit([]byte{0x00, 0x00, 0x00, 0x01, 0x65}, 0, true)
	withoutPSI := p.PacketizeUnit([]byte{0x00, 0x00, 0x00, 0x01, 0x41}, 33_333, false)

	patPMTCount := 0
	for _, pkt := range withPSI {
		pid := (uint16(pkt[1]&0x1F) << 8) | uint16(pkt[2])
		if pid == PIDPAT || pid == PIDPMT {
			patPMTCount++
		}
	}
	assert.Equal(t, 2, patPMTCount)

	for _, pkt := range withoutPSI {
		pid := (uint16(pkt[1]&0x1F) << 8) | uint16(pkt[2])
		assert.Equal(t, uint16(PIDVideo), pid)
	}
}

func TestContinuityCounterIncrementsPerPID(t *testing.T) {
	p := NewPacketizer()
	pkts := p.PacketizeUnit(make([]byte, 400), 0, true)

	var videoCCs []byte
	for _, pkt := range pkts {
		pid := (uint16(pkt[1]&0x1F) << 8) | uint16(pkt[2])
		if pid == PIDVideo {
			videoCCs = append(videoCCs, pkt[3]&0x0F)
		}
	}
	require.True(t, len(videoCCs) >= 2)
	for i := 1; i < len(videoCCs); i++ {
		assert.Equal(t, (videoCCs[i-1]+1)&0x0F, videoCCs[i])
	}
}

func TestCRC32MPEG2KnownValue(t *testing.T) {
	// A single zero byte under the non-reflected MPEG-2 CRC32 with
	// initial value 0xFFFFFFFF and polynomial 0x04C11DB7.
	got := crc32MPEG2([]byte{0x00})
	assert.NotEqual(t, uint32(0), got)

	// CRC is stable for the same input.
	assert.Equal(t, got, crc32MPEG2([]byte{0x00}))
	assert.NotEqual(t, got, crc32MPEG2([]byte{0x01}))

	// The standard CRC-32/MPEG-2 check value over "123456789".
	assert.Equal(t, uint32(0x0376E6E7), crc32MPEG2([]byte("123456789")))
}
