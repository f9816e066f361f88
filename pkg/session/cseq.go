package session

import "sync"

// CSeqCounter tracks the local CSeq sequence for requests this side
// issues, implementing the doubling-on-collision quirk a real WFD sink
// can trigger: if the peer's own request arrives carrying the initial
// CSeq value this side started from, this side doubles its counter
// before issuing its next request, so the two request streams can never
// alias the same CSeq going forward.
type CSeqCounter struct {
	mu      sync.Mutex
	initial int
	next    int
}

// NewCSeqCounter starts a counter at 1, the conventional first CSeq.
func NewCSeqCounter() *CSeqCounter {
	return &CSeqCounter{initial: 1, next: 1}
}

// Next returns the CSeq to use for the next outgoing request and
// advances the counter.
func (c *CSeqCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next++
	return v
}

// ObservePeerCSeq inspects a CSeq value seen on an incoming request from
// the peer and doubles the local counter if it collides with the
// initial CSeq this side started from.
func (c *CSeqCounter) ObservePeerCSeq(peerCSeq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peerCSeq == c.initial {
		c.next *= 2
	}
}
