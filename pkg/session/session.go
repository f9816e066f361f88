// Package session implements the RTSP/WFD control-plane state machine:
// the M1-M7 capability exchange, SETUP/PLAY/PAUSE/TEARDOWN handling, and
// the session timeout the RTSP Session header advertises.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/aethercast/source/pkg/wfderr"
)

// State is one node of the session's state diagram.
type State uint8

const (
	StateIdle State = iota
	StateCapabilityNegotiation
	StateEstablished // SETUP complete, not yet playing
	StatePlaying
	StatePaused
	StateTearingDown
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapabilityNegotiation:
		return "capability_negotiation"
	case StateEstablished:
		return "established"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTearingDown:
		return "tearing_down"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// defaultSessionTimeout is the timeout a new Session advertises in its
// SETUP response's Session header until SetTimeout overrides it.
const defaultSessionTimeout = 60 * time.Second

// Session tracks one sink's control-plane state across the M1-M7
// exchange and the subsequent PLAY/PAUSE/TEARDOWN lifecycle.
type Session struct {
	mu sync.Mutex

	id      string
	state   State
	cseq    *CSeqCounter
	timeout time.Duration

	negotiatedFormat VideoFormat
	clientPorts      ClientRTPPorts

	onStateChange func(from, to State)
}

// New creates a Session in StateIdle with a fresh CSeq counter.
func New(id string, onStateChange func(from, to State)) *Session {
	return &Session{
		id:            id,
		state:         StateIdle,
		cseq:          NewCSeqCounter(),
		timeout:       defaultSessionTimeout,
		onStateChange: onStateChange,
	}
}

// ID returns the RTSP Session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Timeout returns the session timeout advertised on the Session header.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// SetTimeout overrides the session timeout, e.g. from a SETUP response's
// "Session: ...;timeout=N" parameter.
func (s *Session) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// NextCSeq returns the next CSeq to use on an outgoing request issued by
// this side (M1, M3, M4, M5, keepalive GET_PARAMETER).
func (s *Session) NextCSeq() int { return s.cseq.Next() }

// ObservePeerCSeq feeds a CSeq seen on an incoming peer request into the
// collision-doubling discipline.
func (s *Session) ObservePeerCSeq(peerCSeq int) { s.cseq.ObservePeerCSeq(peerCSeq) }

// transition validates and applies a state change, invoking
// onStateChange on success.
func (s *Session) transition(to State, allowedFrom ...State) error {
	s.mu.Lock()
	from := s.state
	ok := false
	for _, a := range allowedFrom {
		if a == from {
			ok = true
			break
		}
	}
	if !ok {
		s.mu.Unlock()
		return wfderr.New(wfderr.CodeInvalidState,
			fmt.Sprintf("session.transition(%s->%s)", from, to), nil)
	}
	s.state = to
	s.mu.Unlock()

	if s.onStateChange != nil {
		s.onStateChange(from, to)
	}
	return nil
}

// BeginCapabilityNegotiation moves from Idle into the M1-M7 exchange.
func (s *Session) BeginCapabilityNegotiation() error {
	return s.transition(StateCapabilityNegotiation, StateIdle)
}

// NegotiateVideoFormat records the result of intersecting this source's
// and the sink's wfd_video_formats, failing with CodeParamInvalid if no
// common format exists.
func (s *Session) NegotiateVideoFormat(sinkSupported []VideoFormat) (VideoFormat, error) {
	best, ok := NegotiateVideoFormat(sinkSupported)
	if !ok {
		return VideoFormat{}, wfderr.New(wfderr.CodeParamInvalid, "session.NegotiateVideoFormat", nil)
	}
	s.mu.Lock()
	s.negotiatedFormat = best
	s.mu.Unlock()
	return best, nil
}

// NegotiatedVideoFormat returns the format chosen during M3/M4.
func (s *Session) NegotiatedVideoFormat() VideoFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiatedFormat
}

// RecordClientRTPPorts stores the sink's RTP ports, parsed from its
// SETUP request's Transport header.
func (s *Session) RecordClientRTPPorts(ports ClientRTPPorts) {
	s.mu.Lock()
	s.clientPorts = ports
	s.mu.Unlock()
}

// ClientRTPPorts returns the sink's negotiated RTP ports.
func (s *Session) ClientRTPPorts() ClientRTPPorts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientPorts
}

// CompleteSetup transitions from capability negotiation to Established
// once SETUP has been processed.
func (s *Session) CompleteSetup() error {
	return s.transition(StateEstablished, StateCapabilityNegotiation)
}

// Play transitions to Playing from Established or Paused.
func (s *Session) Play() error {
	return s.transition(StatePlaying, StateEstablished, StatePaused)
}

// Pause transitions to Paused from Playing.
func (s *Session) Pause() error {
	return s.transition(StatePaused, StatePlaying)
}

// Teardown transitions to TearingDown from any state other than
// TornDown, and then to TornDown. Idempotent: tearing down an already
// torn-down session reports CodeAlready rather than CodeInvalidState.
func (s *Session) Teardown() error {
	s.mu.Lock()
	if s.state == StateTornDown {
		s.mu.Unlock()
		return wfderr.New(wfderr.CodeAlready, "session.Teardown", nil)
	}
	s.mu.Unlock()

	if err := s.transition(StateTearingDown,
		StateIdle, StateCapabilityNegotiation, StateEstablished, StatePlaying, StatePaused); err != nil {
		return err
	}
	return s.transition(StateTornDown, StateTearingDown)
}
