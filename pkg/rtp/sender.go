// Package rtp packages MPEG-TS packets into RTP datagrams and sends them
// over UDP to a sink's negotiated port. The wire constants (payload
// type, SSRC, max TS packets per datagram) and the transient-error
// retry set are taken directly from the reference implementation this
// was distilled from; the marshalling itself goes through
// github.com/pion/rtp, the same library the teacher repo uses for its
// RTP read path.
package rtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	pionrtp "github.com/pion/rtp"
	"golang.org/x/time/rate"

	"github.com/aethercast/source/pkg/mpegts"
)

const (
	// PayloadTypeMP2T is the RTP payload type for MPEG-2 Transport
	// Stream, per RFC 2250.
	PayloadTypeMP2T = 33

	// SourceID is the fixed SSRC used on every datagram. The original
	// implementation hardcodes a single constant SSRC rather than
	// randomizing it per session, and this follows suit for wire
	// compatibility with real sinks that key reassembly state off it.
	SourceID = 0xDEADBEEF

	// MaxUDPPacketSize is the largest datagram this sender will write,
	// chosen to stay under the common path MTU without fragmentation.
	MaxUDPPacketSize = 1472

	rtpHeaderSize = 12

	// MaxTSPacketsPerDatagram is how many 188-byte TS packets fit in one
	// RTP datagram under MaxUDPPacketSize.
	MaxTSPacketsPerDatagram = (MaxUDPPacketSize - rtpHeaderSize) / mpegts.PacketSize

	clockRateHz = 90000
)

// Datagram is one outgoing RTP packet, carrying up to
// MaxTSPacketsPerDatagram transport-stream packets as its payload.
type Datagram struct {
	SequenceNumber uint16
	Timestamp      uint32
	Marker         bool
	Payload        []byte
	CapturedAt     time.Time // for observability only, never placed on the wire
}

// BandwidthSample is reported once per second while the sender is
// active.
type BandwidthSample struct {
	Mbps float64
}

// udpConn is the subset of *net.UDPConn this package depends on,
// narrowed so tests can exercise writeWithRetry's retry/drop/remote-
// closed branches against a fake without opening real sockets.
type udpConn interface {
	Write(b []byte) (int, error)
	Close() error
	LocalAddr() net.Addr
}

// Sender owns one UDP socket to a sink and the RTP sequencing state for
// it.
type Sender struct {
	conn    udpConn
	seq     uint16
	mu      sync.Mutex
	limiter *rate.Limiter

	bytesSinceReport int64
	lastReport       time.Time
	onBandwidth      func(BandwidthSample)
	onDrop           func(error)
}

// ErrRemoteClosed signals a zero-byte UDP send: the sink end has gone
// away. Per spec.md §4.4 this is raised to the connection manager,
// which tears the session down, rather than retried or dropped.
var ErrRemoteClosed = errors.New("rtp: remote closed connection (zero-byte send)")

// ErrDatagramDropped wraps a write failure that survived one retry.
// Per spec.md §4.4 this datagram is logged and dropped, not treated as
// fatal: the RTP sequence number already advanced and is not rolled
// back, and the session continues unaffected.
var ErrDatagramDropped = errors.New("rtp: datagram dropped after retry")

// retriableErrnos mirrors the original sender's transient-failure set:
// these are worth exactly one resend attempt before the datagram is
// dropped, because they reflect a momentarily unreachable peer rather
// than a permanently broken socket.
var retriableErrnos = map[syscall.Errno]bool{
	syscall.ECONNREFUSED: true,
	syscall.ENOPROTOOPT:  true,
	syscall.EPROTO:       true,
	syscall.EHOSTUNREACH: true,
	syscall.ENETUNREACH:  true,
	syscall.ENETDOWN:     true,
}

// PickRandomRTPPort returns a random even port in [1024, 65534), the
// same scheme the original uses so the following odd port is free for
// an (unused here) companion RTCP socket.
func PickRandomRTPPort(source func() int) int {
	n := source()
	port := 1024 + (n % (65534 - 1024))
	if port%2 != 0 {
		port--
	}
	return port
}

// Dial opens the UDP socket to host:port and prepares the sender. It
// does not send anything until the first WriteTSPackets call.
func Dial(ctx context.Context, host string, port int) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("rtp: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("rtp: dial %s:%d: %w", host, port, err)
	}
	return &Sender{conn: conn, limiter: rate.NewLimiter(rate.Limit(50), 5), lastReport: time.Now()}, nil
}

// OnBandwidth registers a callback invoked roughly once per second with
// the measured outgoing bandwidth.
func (s *Sender) OnBandwidth(fn func(BandwidthSample)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBandwidth = fn
}

// OnDroppedDatagram registers a callback invoked whenever a datagram is
// dropped after its one retry (ErrDatagramDropped), so the caller can
// log it per spec.md §4.4 ("a second failure is logged").
func (s *Sender) OnDroppedDatagram(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

// WriteTSPackets packetizes up to MaxTSPacketsPerDatagram transport
// stream packets per RTP datagram and writes them to the socket,
// retrying exactly once on a transient network error.
func (s *Sender) WriteTSPackets(ctx context.Context, pkts []mpegts.TSPacket, captureTime time.Time) error {
	for i := 0; i < len(pkts); i += MaxTSPacketsPerDatagram {
		end := i + MaxTSPacketsPerDatagram
		if end > len(pkts) {
			end = len(pkts)
		}
		chunk := pkts[i:end]
		marker := end == len(pkts)
		if err := s.writeChunk(ctx, chunk, marker, captureTime); err != nil {
			if errors.Is(err, ErrDatagramDropped) {
				// Sequence number already advanced in writeChunk; the
				// dropped datagram is not retried a second time or
				// resequenced, per spec.md §4.4/S6.
				s.mu.Lock()
				onDrop := s.onDrop
				s.mu.Unlock()
				if onDrop != nil {
					onDrop(err)
				}
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Sender) writeChunk(ctx context.Context, chunk []mpegts.TSPacket, marker bool, captureTime time.Time) error {
	payload := make([]byte, 0, len(chunk)*mpegts.PacketSize)
	for _, pkt := range chunk {
		payload = append(payload, pkt[:]...)
	}

	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	pkt := &pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    PayloadTypeMP2T,
			SequenceNumber: seq,
			Timestamp:      rtpTimestampNow(),
			SSRC:           SourceID,
		},
		Payload: payload,
	}

	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("rtp: marshal datagram: %w", err)
	}

	if err := s.writeWithRetry(ctx, raw); err != nil {
		return err
	}

	s.recordBandwidth(len(raw))
	return nil
}

// writeWithRetry writes raw once, retries exactly once on a transient
// network error, and distinguishes the two failure outcomes spec.md
// §4.4 requires: a zero-byte send (remote closed, fatal) versus a
// second write failure (dropped, not fatal). The retry itself is
// throttled by s.limiter so a persistently unreachable sink cannot
// spin this goroutine issuing back-to-back retries.
func (s *Sender) writeWithRetry(ctx context.Context, raw []byte) error {
	n, err := s.conn.Write(raw)
	if err == nil {
		if n == 0 {
			return ErrRemoteClosed
		}
		return nil
	}
	if !isRetriable(err) {
		return fmt.Errorf("rtp: write datagram: %w", err)
	}

	if werr := s.limiter.Wait(ctx); werr != nil {
		return fmt.Errorf("rtp: retry limiter: %w", werr)
	}

	n, err = s.conn.Write(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatagramDropped, err)
	}
	if n == 0 {
		return ErrRemoteClosed
	}
	return nil
}

func isRetriable(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return retriableErrnos[errno]
	}
	return false
}

// rtpTimestampNow computes the 90kHz RTP timestamp from the wall clock
// at send time, per the design note that this sender intentionally uses
// send time rather than capture time for the wire timestamp.
func rtpTimestampNow() uint32 {
	nowUs := time.Now().UnixMicro()
	return uint32((nowUs * 9) / 100)
}

func (s *Sender) recordBandwidth(n int) {
	s.mu.Lock()
	s.bytesSinceReport += int64(n)
	elapsed := time.Since(s.lastReport)
	var sample BandwidthSample
	report := false
	if elapsed >= time.Second {
		sample = BandwidthSample{Mbps: float64(s.bytesSinceReport*8) / elapsed.Seconds() / 1e6}
		s.bytesSinceReport = 0
		s.lastReport = time.Now()
		report = true
	}
	cb := s.onBandwidth
	s.mu.Unlock()

	if report && cb != nil {
		cb(sample)
	}
}

// LocalPort returns the UDP port this sender's socket is bound to, for
// advertising in the RTSP SETUP response's Transport server_port field.
func (s *Sender) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Close closes the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
