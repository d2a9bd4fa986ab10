package wire

import (
	"time"

	"github.com/observerw/rrdt/rangeset"
)

// AckSpans is the receiver-side range-set of packet numbers received so
// far, the source for outbound AckFrames (spec §4.1, §4.6, glossary).
type AckSpans struct {
	set *rangeset.Set
}

// NewAckSpans returns an empty AckSpans.
func NewAckSpans() *AckSpans {
	return &AckSpans{set: rangeset.New()}
}

// Insert records packet number pn as received.
func (a *AckSpans) Insert(pn uint64) {
	a.set.InsertOne(pn)
}

// Contains reports whether pn has been recorded.
func (a *AckSpans) Contains(pn uint64) bool {
	return a.set.Contains(pn)
}

// Largest returns the highest recorded packet number.
func (a *AckSpans) Largest() (uint64, bool) {
	rs := a.set.Ranges()
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1].End - 1, true
}

// Set exposes the underlying range-set, for callers that need to test
// packet numbers for membership.
func (a *AckSpans) Set() *rangeset.Set {
	return a.set
}

// ToFrame converts the spans into an AckFrame, encoding ranges backwards
// from the largest acknowledged packet number (QUIC style), bounding the
// number of additional ranges at limit (oldest — i.e. lowest packet
// numbers — dropped first, per spec §4.1).
func (a *AckSpans) ToFrame(delay time.Duration, limit int) (AckFrame, bool) {
	rs := a.set.Ranges()
	if len(rs) == 0 {
		return AckFrame{}, false
	}
	// descending by Start
	desc := make([]rangeset.Range, len(rs))
	for i, r := range rs {
		desc[len(rs)-1-i] = r
	}
	if extra := len(desc) - 1 - limit; extra > 0 {
		// Drop the oldest (lowest-start, i.e. tail of desc) ranges.
		desc = desc[:limit+1]
	}
	top := desc[0]
	frame := AckFrame{
		LargestAck:    top.End - 1,
		DelayMs:       uint64(delay / time.Millisecond),
		FirstAckRange: uint16(top.Len() - 1),
	}
	prevLow := top.Start
	for _, r := range desc[1:] {
		gap := prevLow - r.End - 1
		length := r.Len() - 1
		frame.Ranges = append(frame.Ranges, AckRange{Gap: uint16(gap), Length: uint16(length)})
		prevLow = r.Start
	}
	return frame, true
}

// FrameToSpans reconstructs an AckSpans-equivalent rangeset.Set purely from
// the wire encoding, used by Inflight to test which inflight packet numbers
// a received AckFrame newly acknowledges.
func FrameToSpans(f AckFrame) *rangeset.Set {
	set := rangeset.New()
	high := f.LargestAck + 1
	low := high - uint64(f.FirstAckRange) - 1
	set.Insert(rangeset.Range{Start: low, End: high})
	prevLow := low
	for _, r := range f.Ranges {
		nextHigh := prevLow - uint64(r.Gap) - 1
		nextLow := nextHigh - uint64(r.Length) - 1
		set.Insert(rangeset.Range{Start: nextLow, End: nextHigh})
		prevLow = nextLow
	}
	return set
}
