// Package ack implements the AckSender state machine deciding when to
// emit an acknowledgement for received packets (spec §4.6), grounded on
// original_source/rrdt-lib/src/connection/ack_sender.rs.
package ack

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/wire"
)

// DefaultAckWaitCount bounds how many consecutive in-order ack-eliciting
// packets may be batched before a forced flush (spec §6 default).
const DefaultAckWaitCount = 2

// state is the AckSender's two-state machine (spec §4.6).
type state int

const (
	stateIdle state = iota
	stateWaiting
)

// Flusher receives completed AckFrames, built from the accumulated
// AckSpans; the Packetizer implements this and flushes the packet
// immediately after inserting the frame (spec §4.3, §4.6).
type Flusher interface {
	FlushAck(frame wire.AckFrame)
}

// Sender is a single-threaded actor (spec §5) driven entirely through its
// own goroutine's mailbox.
type Sender struct {
	log         *logrus.Entry
	flusher     Flusher
	maxAckDelay time.Duration

	mailbox chan func()
	stop    chan struct{}

	spans *wire.AckSpans
	// acked is the largest packet number already folded into a flushed
	// ACK. Seeded at 0 (not -1), matching the reference implementation:
	// packet number 0 is never treated as the start of an in-order batch
	// (0 != acked+1 == 1), so the very first ack-eliciting packet on a
	// connection always flushes immediately.
	acked int64
	st    state
	count int
	timer *time.Timer
}

// New starts an AckSender actor.
func New(log *logrus.Entry, flusher Flusher, maxAckDelay time.Duration) *Sender {
	s := &Sender{
		log:         log,
		flusher:     flusher,
		maxAckDelay: maxAckDelay,
		mailbox:     make(chan func(), 64),
		stop:        make(chan struct{}),
		spans:       wire.NewAckSpans(),
		acked:       0,
	}
	go s.run()
	return s
}

func (s *Sender) run() {
	for {
		select {
		case fn := <-s.mailbox:
			fn()
		case <-s.stop:
			return
		}
	}
}

// Close stops the actor.
func (s *Sender) Close() {
	close(s.stop)
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Recv notifies the AckSender of a decoded packet's arrival (spec §4.6,
// §4.7 — called after all of the packet's frames have been dispatched).
func (s *Sender) Recv(packetNum uint64, ackEliciting bool, instant time.Time) {
	s.mailbox <- func() { s.recv(packetNum, ackEliciting, instant) }
}

func (s *Sender) recv(pn uint64, ackEliciting bool, instant time.Time) {
	s.spans.Insert(pn)

	if !ackEliciting {
		if int64(pn) > s.acked {
			s.acked = int64(pn)
		}
		return
	}

	switch s.st {
	case stateIdle:
		if int64(pn) == s.acked+1 {
			s.armTimer()
			s.st = stateWaiting
			s.count = 1
			return
		}
		if int64(pn) > s.acked {
			s.acked = int64(pn)
		}
		s.flush(time.Since(instant))
	case stateWaiting:
		if int64(pn) == s.acked+int64(s.count)+1 && s.count+1 < DefaultAckWaitCount {
			s.count++
			return
		}
		s.cancelTimer()
		s.settleBaseline(pn)
		s.flush(time.Since(instant))
	}
}

func (s *Sender) settleBaseline(pn uint64) {
	candidate := s.acked + int64(s.count)
	if int64(pn) > candidate {
		candidate = int64(pn)
	}
	s.acked = candidate
	s.count = 0
	s.st = stateIdle
}

func (s *Sender) armTimer() {
	s.timer = time.AfterFunc(s.maxAckDelay, func() {
		s.mailbox <- s.onTimeout
	})
}

func (s *Sender) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sender) onTimeout() {
	if s.st != stateWaiting {
		return
	}
	s.acked = s.acked + int64(s.count)
	s.count = 0
	s.st = stateIdle
	s.flush(s.maxAckDelay)
}

func (s *Sender) flush(delay time.Duration) {
	frame, ok := s.spans.ToFrame(delay, wire.DefaultAckRangesLimit)
	if !ok {
		return
	}
	if s.log != nil {
		s.log.WithField("largest_ack", frame.LargestAck).Debug("rrdt: flushing ack")
	}
	s.flusher.FlushAck(frame)
}
