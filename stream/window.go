// Package stream implements per-stream flow-control windows, the
// mutex-guarded SendStream/RecvStream objects, and the StreamMux scheduler (spec §4.10,
// §4.11), grounded on
// original_source/rrdt-lib/src/connection/stream/{window,mod,
// recv_stream,send_stream}.rs and .../streams.rs.
package stream

import "github.com/observerw/rrdt/rangeset"

// Chunk is a contiguous run of bytes at an absolute stream offset.
type Chunk struct {
	Data   []byte
	Offset uint64
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// SendWindow buffers unacknowledged bytes for one outbound stream (spec
// §4.10). Its buffer's left edge always equals ackedOffset: bytes below
// that are dropped once acknowledged.
type SendWindow struct {
	buf         []byte
	ackedOffset uint64
	sentOffset  uint64
	wroteOffset uint64
	maxData     uint64
	acks        *rangeset.Set
	retransmits *rangeset.Set
	wrote       bool
}

// NewSendWindow returns an empty SendWindow with the given initial
// flow-control credit.
func NewSendWindow(initialMaxData uint64) *SendWindow {
	return &SendWindow{
		maxData:     initialMaxData,
		acks:        rangeset.New(),
		retransmits: rangeset.New(),
	}
}

// Write appends data to the window, returning the number of bytes written
// (0 once Wrote() has been set — spec §4.10 SendWindow.write).
func (w *SendWindow) Write(data []byte) int {
	if w.wrote {
		return 0
	}
	w.buf = append(w.buf, data...)
	w.wroteOffset += uint64(len(data))
	return len(data)
}

// MarkWrote records that no more application bytes will arrive; the next
// full read will carry FIN.
func (w *SendWindow) MarkWrote() {
	w.wrote = true
}

func (w *SendWindow) slice(start, end uint64) []byte {
	return w.buf[start-w.ackedOffset : end-w.ackedOffset]
}

// Read serves up to length bytes, first draining any pending retransmit
// range, then fresh bytes bounded by flow-control credit and write
// progress. ok is false when there is nothing to send right now.
func (w *SendWindow) Read(length int) (chunk Chunk, fin bool, ok bool) {
	if length <= 0 {
		return Chunk{}, false, false
	}
	if r, has := w.retransmits.PopSmallest(); has {
		n := min64(uint64(length), r.Len())
		data := w.slice(r.Start, r.Start+n)
		if n < r.Len() {
			w.retransmits.Insert(rangeset.Range{Start: r.Start + n, End: r.End})
		}
		fin := w.wrote && r.Start+n == w.wroteOffset
		return Chunk{Data: data, Offset: r.Start}, fin, true
	}

	cap := min64(w.maxData, w.wroteOffset)
	if cap <= w.sentOffset {
		return Chunk{}, false, false
	}
	available := cap - w.sentOffset
	n := min64(uint64(length), available)
	if n == 0 {
		return Chunk{}, false, false
	}
	offset := w.sentOffset
	data := w.slice(offset, offset+n)
	w.sentOffset += n
	fin = w.wrote && offset+n == w.wroteOffset
	return Chunk{Data: data, Offset: offset}, fin, true
}

// Ack records bytes in range r as acknowledged, advancing the buffer's
// left edge when the smallest acked range reaches it.
func (w *SendWindow) Ack(r rangeset.Range) {
	if r.Empty() {
		return
	}
	if w.acks.ContainsRange(r) {
		return
	}
	if w.retransmits.ContainsRange(r) {
		// Already treated as lost; a resend is already scheduled.
		return
	}
	w.acks.Insert(r)
	for {
		sm, has := w.acks.Smallest()
		if !has || sm.Start != w.ackedOffset {
			break
		}
		w.acks.PopSmallest()
		w.buf = w.buf[sm.Len():]
		w.ackedOffset = sm.End
	}
}

// Retransmit marks range r for resending.
func (w *SendWindow) Retransmit(r rangeset.Range) {
	w.retransmits.Insert(r)
}

// SetMaxData raises the flow-control credit; it is monotonically
// non-decreasing.
func (w *SendWindow) SetMaxData(v uint64) {
	if v > w.maxData {
		w.maxData = v
	}
}

// Done reports whether every written byte has been acknowledged.
func (w *SendWindow) Done() bool {
	return w.ackedOffset == w.wroteOffset
}

// WroteOffset exposes the current write cursor.
func (w *SendWindow) WroteOffset() uint64 { return w.wroteOffset }

// RecvWindow is a fixed-size receive buffer for one inbound stream (spec
// §4.10).
type RecvWindow struct {
	buf       []byte
	start     uint64
	consumed  uint64
	received  *rangeset.Set
	finOffset *uint64
	maxWindow uint64
}

// NewRecvWindow returns an empty RecvWindow of size maxWindow.
func NewRecvWindow(maxWindow uint64) *RecvWindow {
	return &RecvWindow{
		buf:       make([]byte, maxWindow),
		received:  rangeset.New(),
		maxWindow: maxWindow,
	}
}

// Write copies chunk into the window at its absolute offset, recording the
// byte range as received; fin marks the final byte of the stream.
func (w *RecvWindow) Write(chunk Chunk, fin bool) {
	offset, data := chunk.Offset, chunk.Data
	if fin {
		f := offset + uint64(len(data))
		w.finOffset = &f
	}
	if len(data) == 0 {
		return
	}
	if offset+uint64(len(data)) <= w.consumed {
		return
	}
	// Clip against consumed, not just start: a duplicate or overlapping
	// write whose offset lies below consumed must not resurrect a
	// received range starting below the read cursor, or SmallestStartingAt
	// would never match it again (spec §3 RecvWindow invariant).
	effOffset, effData := offset, data
	if effOffset < w.consumed {
		skip := w.consumed - effOffset
		if skip >= uint64(len(effData)) {
			return
		}
		effData = effData[skip:]
		effOffset = w.consumed
	}
	if effOffset-w.start >= uint64(len(w.buf)) {
		return
	}
	n := copy(w.buf[effOffset-w.start:], effData)
	_ = n
	w.received.Insert(rangeset.Range{Start: effOffset, End: effOffset + uint64(len(effData))})
}

// Read serves up to length bytes starting exactly at the consumed cursor;
// ok is false when the next expected byte has not yet arrived (a hole).
func (w *RecvWindow) Read(length int) (chunk Chunk, ok bool) {
	r, has := w.received.SmallestStartingAt(w.consumed)
	if !has {
		return Chunk{}, false
	}
	w.received.PopSmallest()
	n := min64(uint64(length), r.Len())
	data := make([]byte, n)
	copy(data, w.buf[r.Start-w.start:r.Start-w.start+n])
	if n < r.Len() {
		w.received.Insert(rangeset.Range{Start: r.Start + n, End: r.End})
	}
	w.consumed += n
	return Chunk{Data: data, Offset: r.Start}, true
}

// ShouldUpdate reports whether the consumed cursor has crossed the
// halfway point of the window, the heuristic for granting more credit.
func (w *RecvWindow) ShouldUpdate() bool {
	return w.consumed > w.start+w.maxWindow/2
}

// Update slides the window forward to the consumed cursor and returns the
// new absolute offset up to which the peer may now send
// (consumed + MAX_WINDOW), for a MAX_STREAM_DATA frame.
func (w *RecvWindow) Update() uint64 {
	newBuf := make([]byte, w.maxWindow)
	copy(newBuf, w.buf[w.consumed-w.start:])
	w.start = w.consumed
	w.buf = newBuf
	return w.start + w.maxWindow
}

// Recvd reports whether the stream's FIN has arrived and every byte up to
// it has been received (no holes remain).
func (w *RecvWindow) Recvd() bool {
	if w.finOffset == nil {
		return false
	}
	rs := w.received.Ranges()
	return len(rs) == 1 && rs[0].Start == w.consumed && rs[0].End == *w.finOffset
}

// Done reports whether every received byte, through FIN, has been read by
// the application.
func (w *RecvWindow) Done() bool {
	return w.finOffset != nil && *w.finOffset == w.consumed
}

// Consumed exposes the read cursor.
func (w *RecvWindow) Consumed() uint64 { return w.consumed }
