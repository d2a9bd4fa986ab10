package stream

import (
	"context"
	"sync"

	"github.com/observerw/rrdt/internal/notify"
	"github.com/observerw/rrdt/wire"
)

// recvState is the RecvStream state machine: Recv -> SizeKnown ->
// DataRecvd -> DataRead (spec §4.10).
type recvState int

const (
	recvRecv recvState = iota
	recvSizeKnown
	recvDataRecvd
	recvDataRead
)

// MaxDataSink receives newly-updated flow-control grants to emit as
// MAX_STREAM_DATA frames (spec §4.10 RecvWindow.update).
type MaxDataSink interface {
	SendMaxStreamData(streamID uint16, maxData uint64)
}

// RecvStream is the local, application-facing half of an inbound stream.
// Same mutex-guarded-object rationale as SendStream.
type RecvStream struct {
	id     uint16
	mu     sync.Mutex
	window *RecvWindow
	state  recvState
	readQ  *notify.Queue
	sink   MaxDataSink
}

// NewRecvStream returns a RecvStream with a fixed MAX_WINDOW-sized buffer.
func NewRecvStream(id uint16, sink MaxDataSink) *RecvStream {
	return &RecvStream{
		id:     id,
		window: NewRecvWindow(wire.MaxWindow),
		readQ:  notify.NewQueue(),
		sink:   sink,
	}
}

// ID returns the stream's identifier.
func (s *RecvStream) ID() uint16 { return s.id }

// write applies a received STREAM frame's payload (called from the
// StreamMux dispatch path, spec §4.11 Dispatch).
func (s *RecvStream) write(data []byte, offset uint64, fin bool) {
	s.mu.Lock()
	s.window.Write(Chunk{Data: data, Offset: offset}, fin)
	if fin && s.state == recvRecv {
		s.state = recvSizeKnown
	}
	if s.window.Recvd() {
		s.state = recvDataRecvd
	}
	s.mu.Unlock()
	s.readQ.Notify()
}

// Read blocks until at least one byte is available or the stream has
// reached EOF, matching the spec external API: RecvStream.recv — 0 means
// EOF.
func (s *RecvStream) Read(ctx context.Context, buf []byte) (int, error) {
	for {
		s.mu.Lock()
		if s.window.Done() {
			s.mu.Unlock()
			return 0, nil
		}
		chunk, ok := s.window.Read(len(buf))
		if ok {
			n := copy(buf, chunk.Data)
			if s.window.ShouldUpdate() {
				maxData := s.window.Update()
				if s.sink != nil {
					s.sink.SendMaxStreamData(s.id, maxData)
				}
			}
			closed := false
			if s.window.Done() {
				s.state = recvDataRead
				closed = true
			}
			s.mu.Unlock()
			if closed {
				// Wake any Close waiter: reaching recvDataRead can only
				// happen inside a Read call, so Close's own registration
				// (made after the last write already notified) would
				// otherwise never be woken (spec §4.10 RecvStream.close).
				s.readQ.Notify()
			}
			return n, nil
		}
		s.mu.Unlock()

		entry := s.readQ.Register()
		select {
		case <-entry.Wait():
			s.readQ.Unregister(entry)
		case <-ctx.Done():
			s.readQ.Unregister(entry)
			return 0, ctx.Err()
		}
	}
}

// currentGrant returns the absolute offset up to which the peer may
// currently send on this stream, used to re-emit a lost MAX_STREAM_DATA
// grant without waiting for another ShouldUpdate threshold crossing.
func (s *RecvStream) currentGrant() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.start + s.window.maxWindow
}

// Close blocks until every received byte has been read by the application.
func (s *RecvStream) Close(ctx context.Context) error {
	for {
		s.mu.Lock()
		done := s.state == recvDataRead
		s.mu.Unlock()
		if done {
			return nil
		}
		entry := s.readQ.Register()
		select {
		case <-entry.Wait():
			s.readQ.Unregister(entry)
		case <-ctx.Done():
			s.readQ.Unregister(entry)
			return ctx.Err()
		}
	}
}
