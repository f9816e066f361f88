package rtp

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aethercast/source/pkg/mpegts"
)

// fakeConn is a udpConn double that lets tests drive writeWithRetry's
// retry/drop/remote-closed branches deterministically, without relying
// on a real socket producing a specific errno.
type fakeConn struct {
	writes    [][]byte
	results   []writeResult // consumed in order, one per Write call; last one repeats
	localPort int
}

type writeResult struct {
	n   int
	err error
}

func (c *fakeConn) Write(b []byte) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	c.writes = append(c.writes, cp)
	idx := len(c.writes) - 1
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	r := c.results[idx]
	return r.n, r.err
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: c.localPort}
}

func newTestSender(conn udpConn) *Sender {
	return &Sender{conn: conn, limiter: rate.NewLimiter(rate.Limit(1000), 5), lastReport: time.Now()}
}

func TestWriteTSPacketsSetsMarkerOnlyOnLastDatagram(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	port := listener.LocalAddr().(*net.UDPAddr).Port
	sender, err := Dial(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	defer sender.Close()

	pkts := make([]mpegts.TSPacket, MaxTSPacketsPerDatagram+3)
	require.NoError(t, sender.WriteTSPackets(context.Background(), pkts, time.Now()))

	listener.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)

	var markers []bool
	var seqs []uint16
	for i := 0; i < 2; i++ {
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)
		var p pionrtp.Packet
		require.NoError(t, p.Unmarshal(buf[:n]))
		markers = append(markers, p.Marker)
		seqs = append(seqs, p.SequenceNumber)
		assert.Equal(t, uint8(PayloadTypeMP2T), p.PayloadType)
		assert.Equal(t, uint32(SourceID), p.SSRC)
	}

	assert.False(t, markers[0])
	assert.True(t, markers[1])
	assert.Equal(t, seqs[0]+1, seqs[1])
}

func TestPickRandomRTPPortIsEven(t *testing.T) {
	port := PickRandomRTPPort(func() int { return 12345 })
	assert.True(t, port%2 == 0)
	assert.True(t, port >= 1024 && port < 65534)
}

func TestZeroByteWriteIsRemoteClosed(t *testing.T) {
	conn := &fakeConn{results: []writeResult{{n: 0, err: nil}}}
	sender := newTestSender(conn)

	err := sender.WriteTSPackets(context.Background(), make([]mpegts.TSPacket, 1), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteClosed)
	assert.Len(t, conn.writes, 1, "a zero-byte send is fatal, not retried")
}

func TestTransientErrorRetriesOnceThenSucceeds(t *testing.T) {
	conn := &fakeConn{results: []writeResult{
		{n: 0, err: syscall.EHOSTUNREACH},
		{n: 100, err: nil},
	}}
	sender := newTestSender(conn)

	err := sender.WriteTSPackets(context.Background(), make([]mpegts.TSPacket, 1), time.Now())
	require.NoError(t, err)
	assert.Len(t, conn.writes, 2, "expected exactly one retry")
}

func TestTransientErrorRetryFailureDropsDatagramNotFatal(t *testing.T) {
	conn := &fakeConn{results: []writeResult{
		{n: 0, err: syscall.EHOSTUNREACH},
		{n: 0, err: syscall.EHOSTUNREACH},
	}}
	sender := newTestSender(conn)

	var dropped []error
	sender.OnDroppedDatagram(func(err error) { dropped = append(dropped, err) })

	err := sender.WriteTSPackets(context.Background(), make([]mpegts.TSPacket, 1), time.Now())
	assert.NoError(t, err, "a dropped datagram must not fail the whole write, or tear the session down")
	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], ErrDatagramDropped)
	assert.Len(t, conn.writes, 2, "exactly one retry, no further attempts")
}

func TestSequenceNumberAdvancesAcrossADroppedDatagram(t *testing.T) {
	conn := &fakeConn{results: []writeResult{
		{n: 0, err: syscall.EHOSTUNREACH}, // datagram 0, first attempt
		{n: 0, err: syscall.EHOSTUNREACH}, // datagram 0, retry -> dropped
		{n: 100, err: nil},                // datagram 1
	}}
	sender := newTestSender(conn)
	sender.OnDroppedDatagram(func(error) {})

	err := sender.WriteTSPackets(context.Background(), make([]mpegts.TSPacket, 2*MaxTSPacketsPerDatagram), time.Now())
	require.NoError(t, err)

	var p pionrtp.Packet
	require.NoError(t, p.Unmarshal(conn.writes[2]))
	assert.Equal(t, uint16(1), p.SequenceNumber, "sequence number is not rolled back for the dropped datagram")
}

func TestNonRetriableWriteErrorIsFatal(t *testing.T) {
	conn := &fakeConn{results: []writeResult{{n: 0, err: syscall.EACCES}}}
	sender := newTestSender(conn)

	err := sender.WriteTSPackets(context.Background(), make([]mpegts.TSPacket, 1), time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRemoteClosed))
	assert.False(t, errors.Is(err, ErrDatagramDropped))
	assert.Len(t, conn.writes, 1, "a non-retriable error must not be retried")
}
