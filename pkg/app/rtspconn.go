package app

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aethercast/source/pkg/rtsp"
	"github.com/aethercast/source/pkg/session"
	"github.com/aethercast/source/pkg/wfderr"
)

// requestTimeout bounds how long this source waits for a response to a
// request it issued (M1, M3, M4, M5, keepalive GET_PARAMETER) before
// raising kTimeout, per spec.md §5 ("every pending async operation ...
// is associated with a timer") and Testable Scenario S5.
const requestTimeout = 5 * time.Second

// rtspConn runs a single background reader over conn and routes every
// parsed message either to the pending outbound request it answers (by
// CSeq) or onto incoming for the session handshake/serve loop to
// consume. A WFD source is simultaneously an RTSP client (M1, M3, M4,
// M5, keepalive GET_PARAMETER) and server (M2, M6, M7, PAUSE, TEARDOWN)
// on the same connection, so without this dispatcher two goroutines
// would race reading the same socket. Every outbound request and every
// wait for a peer-triggered message is bounded by timers from a shared
// rtsp.TimerFacility, all canceled together when the connection closes.
type rtspConn struct {
	writer *rtsp.Writer
	timers *rtsp.TimerFacility

	mu      sync.Mutex
	pending map[int]chan *rtsp.Message

	incoming chan *rtsp.Message
	done     chan struct{}
	err      error
}

func newRTSPConn(conn net.Conn) *rtspConn {
	rc := &rtspConn{
		writer:   rtsp.NewWriter(conn),
		timers:   rtsp.NewTimerFacility(),
		pending:  make(map[int]chan *rtsp.Message),
		incoming: make(chan *rtsp.Message, 8),
		done:     make(chan struct{}),
	}
	go rc.readLoop(bufio.NewReader(conn))
	return rc
}

// Close cancels every outstanding timer. It does not close the
// underlying net.Conn, which the caller owns.
func (rc *rtspConn) Close() {
	rc.timers.CloseAll()
}

func (rc *rtspConn) readLoop(br *bufio.Reader) {
	reader := rtsp.NewReader(br)
	for {
		m, err := reader.Read()
		if err != nil {
			rc.mu.Lock()
			rc.err = err
			rc.mu.Unlock()
			close(rc.done)
			return
		}
		if m.IsRequest() {
			rc.incoming <- m
			continue
		}
		rc.mu.Lock()
		ch, ok := rc.pending[m.CSeq]
		if ok {
			delete(rc.pending, m.CSeq)
		}
		rc.mu.Unlock()
		if ok {
			ch <- m
		}
	}
}

// request issues a source-initiated request and waits for its matching
// response, the peer's connection closing, ctx cancellation, or
// requestTimeout elapsing (which raises wfderr.CodeTimeout, C7's
// kTimeout, per Testable Scenario S5).
func (rc *rtspConn) request(ctx context.Context, sess *session.Session, method, url string, body []byte) (*rtsp.Message, error) {
	cseq := sess.NextCSeq()
	req := rtsp.NewRequest(method, url, cseq)
	req.Body = body

	ch := make(chan *rtsp.Message, 1)
	rc.mu.Lock()
	rc.pending[cseq] = ch
	rc.mu.Unlock()

	if err := rc.writer.Write(req); err != nil {
		rc.mu.Lock()
		delete(rc.pending, cseq)
		rc.mu.Unlock()
		return nil, fmt.Errorf("rtsp: write %s: %w", method, err)
	}

	timedOut := make(chan struct{})
	timerID := rc.timers.CreateTimer(requestTimeout, func() { close(timedOut) })
	defer rc.timers.ReleaseTimer(timerID)

	select {
	case resp := <-ch:
		return resp, nil
	case <-timedOut:
		rc.mu.Lock()
		delete(rc.pending, cseq)
		rc.mu.Unlock()
		return nil, wfderr.New(wfderr.CodeTimeout, "rtsp.request",
			fmt.Errorf("no response to %s within %s", method, requestTimeout))
	case <-rc.done:
		rc.mu.Lock()
		err := rc.err
		rc.mu.Unlock()
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// nextIncoming blocks for the next peer-initiated request, with no
// deadline of its own: a sink that never speaks first (before any
// trigger) is not, by itself, a timeout condition.
func (rc *rtspConn) nextIncoming(ctx context.Context) (*rtsp.Message, error) {
	select {
	case m := <-rc.incoming:
		return m, nil
	case <-rc.done:
		rc.mu.Lock()
		err := rc.err
		rc.mu.Unlock()
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// nextIncomingTimeout is nextIncoming bounded by requestTimeout, for the
// handshake steps where this source has just triggered the peer into
// replying (M2 after M1, M6 after M5) and a missing reply is exactly
// the kTimeout condition Testable Scenario S5 describes.
func (rc *rtspConn) nextIncomingTimeout(ctx context.Context) (*rtsp.Message, error) {
	timedOut := make(chan struct{})
	timerID := rc.timers.CreateTimer(requestTimeout, func() { close(timedOut) })
	defer rc.timers.ReleaseTimer(timerID)

	select {
	case m := <-rc.incoming:
		return m, nil
	case <-timedOut:
		return nil, wfderr.New(wfderr.CodeTimeout, "rtsp.nextIncoming",
			fmt.Errorf("no request from peer within %s", requestTimeout))
	case <-rc.done:
		rc.mu.Lock()
		err := rc.err
		rc.mu.Unlock()
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (rc *rtspConn) respond(m *rtsp.Message, sessionHeader string, headers map[string]string, body []byte) error {
	resp := rtsp.NewResponse(200, m.CSeq)
	if sessionHeader != "" {
		resp.Session = sessionHeader
	}
	for k, v := range headers {
		resp.Header[k] = v
	}
	resp.Body = body
	return rc.writer.Write(resp)
}

func (rc *rtspConn) respondStatus(m *rtsp.Message, status int) error {
	return rc.writer.Write(rtsp.NewResponse(status, m.CSeq))
}
