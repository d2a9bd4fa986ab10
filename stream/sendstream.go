package stream

import (
	"context"
	"sync"

	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/internal/notify"
	"github.com/observerw/rrdt/rangeset"
)

// sendState is the SendStream state machine: Ready -> Send -> DataSent ->
// DataRecvd (spec §4.10).
type sendState int

const (
	sendReady sendState = iota
	sendSend
	sendDataSent
	sendDataRecvd
)

// SendStream is the local, application-facing half of an outbound stream.
// A mutex guards its state against the application goroutine (Write/
// Wrote/Close), the StreamMux scheduler (Read), and the Inflight
// ACKED/LOST fan-out (Ack/Retransmit) — this realises the data model's
// "addressable mailbox" (spec §3) as a guarded object rather than a
// dedicated per-stream goroutine, since every access here is a handful of
// field updates rather than a blocking operation.
type SendStream struct {
	id     uint16
	mu     sync.Mutex
	window *SendWindow
	state  sendState
	closeQ *notify.Queue
}

// NewSendStream returns a SendStream with the given initial flow-control
// credit.
func NewSendStream(id uint16, initialMaxData uint64) *SendStream {
	return &SendStream{
		id:     id,
		window: NewSendWindow(initialMaxData),
		closeQ: notify.NewQueue(),
	}
}

// ID returns the stream's identifier.
func (s *SendStream) ID() uint16 { return s.id }

// Write appends data for transmission (spec external API: SendStream.send).
func (s *SendStream) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= sendSend && s.window.wrote {
		return 0, errs.ErrStreamReset
	}
	return s.window.Write(data), nil
}

// MarkWrote records that no more bytes will be written, triggering a FIN
// on the next read.
func (s *SendStream) MarkWrote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.MarkWrote()
}

// readForSend is called by the StreamMux scheduler tick to pull up to
// length bytes ready for transmission.
func (s *SendStream) readForSend(length int) (Chunk, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, fin, ok := s.window.Read(length)
	if !ok {
		return Chunk{}, false, false
	}
	if s.state == sendReady {
		s.state = sendSend
	}
	if fin {
		s.state = sendDataSent
	}
	return chunk, fin, true
}

// ack applies an acknowledged byte range, advancing to DataRecvd and
// waking any Close waiters once every byte has been acknowledged.
func (s *SendStream) ack(r rangeset.Range) {
	s.mu.Lock()
	s.window.Ack(r)
	done := s.window.Done() && s.state == sendDataSent
	if done {
		s.state = sendDataRecvd
	}
	s.mu.Unlock()
	if done {
		s.closeQ.Notify()
	}
}

// retransmit marks a lost byte range for resending.
func (s *SendStream) retransmit(r rangeset.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Retransmit(r)
}

// setMaxData raises flow-control credit from a MAX_STREAM_DATA frame.
func (s *SendStream) setMaxData(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.SetMaxData(v)
}

func (s *SendStream) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == sendDataRecvd
}

func (s *SendStream) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.window.retransmits.Empty() {
		return true
	}
	cap := min64(s.window.maxData, s.window.wroteOffset)
	return cap > s.window.sentOffset
}

// Close blocks until every written byte has been acknowledged (spec
// external API: SendStream.close).
func (s *SendStream) Close(ctx context.Context) error {
	for {
		if s.done() {
			return nil
		}
		entry := s.closeQ.Register()
		if s.done() {
			s.closeQ.Unregister(entry)
			return nil
		}
		select {
		case <-entry.Wait():
			s.closeQ.Unregister(entry)
		case <-ctx.Done():
			s.closeQ.Unregister(entry)
			return ctx.Err()
		}
	}
}
