package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aethercast/source/pkg/encoder"
	"github.com/aethercast/source/pkg/mpegts"
	"github.com/aethercast/source/pkg/operator"
	"github.com/aethercast/source/pkg/pipeline"
	"github.com/aethercast/source/pkg/rtp"
	"github.com/aethercast/source/pkg/rtsp"
	"github.com/aethercast/source/pkg/session"
	"github.com/aethercast/source/pkg/wfderr"
)

// handleSession drives one sink connection through the M1-M7 capability
// exchange and the subsequent PLAY/PAUSE/TEARDOWN lifecycle. It is the
// connmgr.SessionHandler the connection manager invokes per accepted
// connection.
func (a *App) handleSession(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	a.setState(operator.ConnectionStateNegotiating, peer)
	defer a.setState(operator.ConnectionStateIdle, "")

	rc := newRTSPConn(conn)
	defer rc.Close()
	sess := session.New(uuid.New().String(), a.reflectSessionStateChange)
	a.setActiveSession(sess)
	defer a.setActiveSession(nil)

	if err := sess.BeginCapabilityNegotiation(); err != nil {
		return err
	}

	url := fmt.Sprintf("rtsp://%s/wfd1.0", peer)

	// M1: this source queries the sink's supported methods.
	if _, err := rc.request(ctx, sess, "OPTIONS", "*", nil); err != nil {
		return wrapHandshakeErr("session.M1", err)
	}

	// M2: the sink queries this source's supported methods.
	m2, err := rc.nextIncomingTimeout(ctx)
	if err != nil {
		return wrapHandshakeErr("session.M2", err)
	}
	sess.ObservePeerCSeq(m2.CSeq)
	if m2.Method != "OPTIONS" {
		rc.respondStatus(m2, 455)
		return wfderr.New(wfderr.CodeInvalidState, "session.M2", nil)
	}
	if err := rc.respond(m2, "", map[string]string{
		"Public": "org.wfa.wfd1.0, GET_PARAMETER, SET_PARAMETER, SETUP, PLAY, PAUSE, TEARDOWN",
	}, nil); err != nil {
		return err
	}

	// M3: this source queries the sink's wfd parameters.
	m3resp, err := rc.request(ctx, sess, "GET_PARAMETER", url,
		[]byte("wfd_video_formats\r\nwfd_audio_codecs\r\nwfd_client_rtp_ports\r\nwfd_content_protection\r\n"))
	if err != nil {
		return wrapHandshakeErr("session.M3", err)
	}
	a.log.DebugRTSPMessage("in", m3resp.Body)

	sinkFormats, err := session.ParseWFDVideoFormats(string(m3resp.Body))
	if err != nil {
		return wfderr.New(wfderr.CodeParamInvalid, "session.M3", err)
	}
	format, err := sess.NegotiateVideoFormat(sinkFormats)
	if err != nil {
		return err
	}

	// M4: this source sets the negotiated parameters.
	m4Body := fmt.Sprintf("wfd_video_formats: %02x %02x %dx%d@%dfps\r\nwfd_content_protection: none\r\n",
		format.ProfileIDC, format.LevelIDC, format.Width, format.Height, format.FrameRate)
	if _, err := rc.request(ctx, sess, "SET_PARAMETER", url, []byte(m4Body)); err != nil {
		return wrapHandshakeErr("session.M4", err)
	}

	// M5: this source triggers the sink into issuing SETUP.
	if _, err := rc.request(ctx, sess, "SET_PARAMETER", url, []byte(session.TriggerMethodSetup)); err != nil {
		return wrapHandshakeErr("session.M5", err)
	}

	// M6: the sink issues SETUP.
	m6, err := rc.nextIncomingTimeout(ctx)
	if err != nil {
		return wrapHandshakeErr("session.M6", err)
	}
	sess.ObservePeerCSeq(m6.CSeq)
	if m6.Method != "SETUP" {
		rc.respondStatus(m6, 455)
		return wfderr.New(wfderr.CodeInvalidState, "session.M6", nil)
	}

	ports, err := parseTransportClientPorts(m6.Header["Transport"])
	if err != nil {
		rc.respondStatus(m6, 400)
		return wfderr.New(wfderr.CodeParamInvalid, "session.M6", err)
	}
	sess.RecordClientRTPPorts(ports)
	if err := sess.CompleteSetup(); err != nil {
		rc.respondStatus(m6, rtspStatus(err))
		return err
	}

	sinkHost, _, err := net.SplitHostPort(peer)
	if err != nil {
		return wfderr.New(wfderr.CodeFailed, "session.M6", err)
	}
	sender, err := rtp.Dial(ctx, sinkHost, ports.RTPPort1)
	if err != nil {
		rc.respondStatus(m6, 500)
		return wfderr.New(wfderr.CodeNotConnected, "session.M6", err)
	}
	defer sender.Close()
	sender.OnBandwidth(func(s rtp.BandwidthSample) { a.reporter.RecordRTPBandwidth(s.Mbps) })
	sender.OnDroppedDatagram(func(err error) { a.log.Warn("dropped RTP datagram after retry", "error", err) })

	sessionHeader := fmt.Sprintf("%s;timeout=%d", sess.ID(), int(sess.Timeout().Seconds()))
	transport := m6.Header["Transport"] + fmt.Sprintf(";server_port=%d-0", sender.LocalPort())
	if err := rc.respond(m6, sessionHeader, map[string]string{"Transport": transport}, nil); err != nil {
		return err
	}

	renderer := newRenderer(encoder.Configuration{
		Width: format.Width, Height: format.Height, FrameRate: format.FrameRate,
		BitrateKbps: 8000, ProfileIDC: format.ProfileIDC, LevelIDC: format.LevelIDC,
	}, mpegts.NewPacketizer(), sender, a.reporter, a.log)
	a.setActiveRenderer(renderer)
	defer a.setActiveRenderer(nil)

	pipe := pipeline.New(pipeline.NewWorker(renderer))
	a.setActivePipeline(pipe)
	defer a.setActivePipeline(nil)

	// M7: the sink issues PLAY.
	m7, err := rc.nextIncomingTimeout(ctx)
	if err != nil {
		return wrapHandshakeErr("session.M7", err)
	}
	sess.ObservePeerCSeq(m7.CSeq)
	if m7.Method != "PLAY" {
		rc.respondStatus(m7, 455)
		return wfderr.New(wfderr.CodeInvalidState, "session.M7", nil)
	}
	if err := sess.Play(); err != nil {
		rc.respondStatus(m7, rtspStatus(err))
		return err
	}
	if err := rc.respond(m7, sessionHeader, nil, nil); err != nil {
		return err
	}
	pipe.Start(ctx)
	defer pipe.Stop()

	keepalive := rtsp.StartKeepalive(ctx, sess.Timeout()/2, func() {
		rc.request(ctx, sess, "GET_PARAMETER", url, nil)
	})
	defer keepalive.Stop()

	return a.serve(ctx, rc, sess, pipe, sessionHeader)
}

// serve handles PAUSE/PLAY/TEARDOWN/GET_PARAMETER requests from the
// sink after PLAY, until TEARDOWN, the connection closing, or ctx
// cancellation.
func (a *App) serve(ctx context.Context, rc *rtspConn, sess *session.Session, pipe *pipeline.Pipeline, sessionHeader string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case perr := <-pipe.Errors():
			return perr
		case req := <-rc.incoming:
			sess.ObservePeerCSeq(req.CSeq)
			switch req.Method {
			case "PAUSE":
				if err := sess.Pause(); err != nil {
					rc.respondStatus(req, rtspStatus(err))
					continue
				}
				pipe.Pause()
				rc.respond(req, sessionHeader, nil, nil)
			case "PLAY":
				if err := sess.Play(); err != nil {
					rc.respondStatus(req, rtspStatus(err))
					continue
				}
				pipe.Start(ctx)
				rc.respond(req, sessionHeader, nil, nil)
			case "TEARDOWN":
				rc.respond(req, sessionHeader, nil, nil)
				sess.Teardown()
				return nil
			case "GET_PARAMETER":
				rc.respond(req, sessionHeader, nil, nil)
			default:
				rc.respondStatus(req, 501)
			}
		case <-rc.done:
			rc.mu.Lock()
			err := rc.err
			rc.mu.Unlock()
			sess.Teardown()
			if err == io.EOF {
				return nil
			}
			return wfderr.New(wfderr.CodeRemoteClosedConnection, "session.serve", err)
		}
	}
}

func (a *App) reflectSessionStateChange(from, to session.State) {
	a.log.DebugPipeline("session state transition", "from", from, "to", to)
	a.reflectSessionState(to)
}

// wrapHandshakeErr passes a *wfderr.Error through unchanged (notably
// CodeTimeout from rtspConn's timers, and CodeInvalidState/
// CodeParamInvalid raised inline) and wraps anything else - a raw I/O
// or context error - as CodeNotConnected, matching the taxonomy this
// handshake used before the timers existed.
func wrapHandshakeErr(op string, err error) error {
	if werr, ok := err.(*wfderr.Error); ok {
		return werr
	}
	return wfderr.New(wfderr.CodeNotConnected, op, err)
}

// rtspStatus extracts the RTSP status code a *wfderr.Error carries,
// defaulting to 500 for any other error shape.
func rtspStatus(err error) int {
	if werr, ok := err.(*wfderr.Error); ok {
		return werr.RTSPStatus
	}
	return 500
}

// parseTransportClientPorts extracts the sink's receiving RTP/RTCP ports
// from a SETUP request's Transport header, e.g.
// "RTP/AVP/UDP;unicast;client_port=19000-19001".
func parseTransportClientPorts(transport string) (session.ClientRTPPorts, error) {
	for _, part := range strings.Split(transport, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "client_port=") {
			continue
		}
		rng := strings.TrimPrefix(part, "client_port=")
		fields := strings.SplitN(rng, "-", 2)
		p1, err := strconv.Atoi(fields[0])
		if err != nil {
			return session.ClientRTPPorts{}, fmt.Errorf("app: invalid client_port %q: %w", rng, err)
		}
		ports := session.ClientRTPPorts{RTPPort1: p1}
		if len(fields) == 2 {
			if p2, err := strconv.Atoi(fields[1]); err == nil {
				ports.RTPPort2 = p2
			}
		}
		return ports, nil
	}
	return session.ClientRTPPorts{}, fmt.Errorf("app: no client_port in Transport header %q", transport)
}
