// Package inflight keeps per-packet metadata for ack-eliciting packets
// awaiting ACK or RTO, driving the RTT estimator and broadcasting
// ACKED/LOST events (spec §4.5, §9 "Broadcast registration").
package inflight

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/rtt"
	"github.com/observerw/rrdt/wire"
)

// FrameMeta describes one retransmit-eligible frame inside a sent packet,
// enough for the StreamMux to re-schedule a retransmit without needing the
// original bytes (spec §9 "per-packet frame metadata").
type FrameMeta struct {
	StreamID        uint16
	Offset          uint64
	Length          uint64
	IsMaxStreamData bool
}

// PacketMeta is the bookkeeping record for one sent packet (spec §3).
type PacketMeta struct {
	PacketNum    uint64
	Sent         time.Time
	Size         int
	AckEliciting bool
	Frames       []FrameMeta
}

// AckedListener receives newly-acknowledged packet metadata.
type AckedListener interface {
	HandleAcked(metas []PacketMeta)
}

// LostListener receives packet metadata declared lost by RTO.
type LostListener interface {
	HandleLost(meta PacketMeta)
}

type entry struct {
	meta  PacketMeta
	timer *time.Timer
}

// Inflight is a single-threaded actor (spec §5): all state is touched only
// from its own goroutine, driven by a private mailbox.
type Inflight struct {
	log *logrus.Entry
	rtt *rtt.Estimator

	mailbox chan func()
	stop    chan struct{}
	wg      sync.WaitGroup

	entries map[uint64]*entry

	ackedListeners []AckedListener
	lostListeners  []LostListener

	lostCounter prometheus.Counter
	sentCounter prometheus.Counter
}

// New starts an Inflight actor.
func New(log *logrus.Entry, estimator *rtt.Estimator, sentCounter, lostCounter prometheus.Counter) *Inflight {
	i := &Inflight{
		log:         log,
		rtt:         estimator,
		mailbox:     make(chan func(), 64),
		stop:        make(chan struct{}),
		entries:     make(map[uint64]*entry),
		lostCounter: lostCounter,
		sentCounter: sentCounter,
	}
	i.wg.Add(1)
	go i.run()
	return i
}

func (i *Inflight) run() {
	defer i.wg.Done()
	for {
		select {
		case fn := <-i.mailbox:
			fn()
		case <-i.stop:
			return
		}
	}
}

// Close stops the actor and cancels any outstanding timers.
func (i *Inflight) Close() {
	close(i.stop)
	i.wg.Wait()
	for _, e := range i.entries {
		e.timer.Stop()
	}
}

// ListenAcked registers a recipient for AckedBcast messages.
func (i *Inflight) ListenAcked(l AckedListener) {
	i.mailbox <- func() { i.ackedListeners = append(i.ackedListeners, l) }
}

// ListenLost registers a recipient for LostBcast messages.
func (i *Inflight) ListenLost(l LostListener) {
	i.mailbox <- func() { i.lostListeners = append(i.lostListeners, l) }
}

// Sent records a newly-transmitted ack-eliciting packet and arms its RTO
// timer (spec §4.5).
func (i *Inflight) Sent(meta PacketMeta) {
	if !meta.AckEliciting {
		return
	}
	i.mailbox <- func() {
		rto := i.rtt.RTO()
		e := &entry{meta: meta}
		e.timer = time.AfterFunc(rto, func() {
			i.mailbox <- func() { i.onTimeout(meta.PacketNum) }
		})
		i.entries[meta.PacketNum] = e
		if i.sentCounter != nil {
			i.sentCounter.Inc()
		}
	}
}

func (i *Inflight) onTimeout(pn uint64) {
	e, ok := i.entries[pn]
	if !ok {
		// Already ACKed (or already reported lost) before the timer fired.
		return
	}
	delete(i.entries, pn)
	if i.lostCounter != nil {
		i.lostCounter.Inc()
	}
	if i.log != nil {
		i.log.WithField("packet_num", pn).Debug("rrdt: packet declared lost by RTO")
	}
	for _, l := range i.lostListeners {
		l.HandleLost(e.meta)
	}
}

// Ack processes a received AckFrame (spec §4.5).
func (i *Inflight) Ack(frame *wire.AckFrame, recvInstant time.Time) {
	i.mailbox <- func() {
		spans := wire.FrameToSpans(*frame)

		var acked []PacketMeta
		if e, ok := i.entries[frame.LargestAck]; ok {
			sample := recvInstant.Sub(e.meta.Sent)
			i.rtt.Update(time.Duration(frame.DelayMs)*time.Millisecond, sample)
		}
		for pn, e := range i.entries {
			if spans.Contains(pn) {
				e.timer.Stop()
				acked = append(acked, e.meta)
				delete(i.entries, pn)
			}
		}
		if len(acked) == 0 {
			return
		}
		for _, l := range i.ackedListeners {
			l.HandleAcked(acked)
		}
	}
}
