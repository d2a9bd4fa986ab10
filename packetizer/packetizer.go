// Package packetizer batches outbound frames into packets, respecting the
// packet size bound and an upper bound on batching latency (spec §4.3),
// grounded on original_source/rrdt-lib/src/connection/packetizer.rs.
package packetizer

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/internal/trylock"
	"github.com/observerw/rrdt/wire"
)

// PacketSink receives flushed packets, ready for the Sender to serialise
// and transmit (spec §4.4).
type PacketSink interface {
	SendPacket(packetNum uint64, frames []wire.Frame)
}

// packetNumHeaderLen accounts for the short packet's leading packet number.
const packetNumHeaderLen = 8

// Packetizer is called concurrently by multiple producers (the StreamMux's
// scheduler tick, and the AckSender's flush), so its shared current-packet
// state is guarded by a CAS mutex rather than serialised through a single
// actor mailbox (spec §9, DESIGN.md).
type Packetizer struct {
	log     *logrus.Entry
	mu      trylock.Mutex
	sink    PacketSink
	maxSize int
	maxDelay time.Duration

	current    []wire.Frame
	currentLen int
	timer      *time.Timer
	nextPn     uint64
}

// New returns a Packetizer flushing to sink.
func New(log *logrus.Entry, sink PacketSink) *Packetizer {
	return &Packetizer{
		log:        log,
		sink:       sink,
		maxSize:    wire.MaxPacketSize,
		maxDelay:   wire.MaxPacketDelay,
		currentLen: packetNumHeaderLen,
	}
}

// Insert places frame into the current packet, splitting or flushing as
// necessary (spec §4.3).
func (p *Packetizer) Insert(frame wire.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertLocked(frame)
}

// FlushAck implements ack.Flusher: insert the frame, then flush
// immediately regardless of remaining space (latency-critical, spec §4.3
// and §4.6).
func (p *Packetizer) FlushAck(frame wire.AckFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertLocked(&frame)
	p.flushLocked()
}

func (p *Packetizer) insertLocked(frame wire.Frame) {
	for {
		if len(p.current) == 0 {
			p.armTimerLocked()
		}
		remaining := p.maxSize - p.currentLen

		sf, isStream := frame.(*wire.StreamFrame)
		if isStream && sf.WireLen() > remaining {
			splitLen := remaining - wire.StreamFrameHeaderLen
			if splitLen <= 0 || splitLen >= len(sf.Data) {
				p.flushLocked()
				continue
			}
			prefix := &wire.StreamFrame{
				StreamID: sf.StreamID,
				Offset:   sf.Offset,
				Data:     sf.Data[:splitLen],
				Fin:      false,
			}
			suffix := &wire.StreamFrame{
				StreamID: sf.StreamID,
				Offset:   sf.Offset + uint64(splitLen),
				Data:     sf.Data[splitLen:],
				Fin:      sf.Fin,
			}
			p.appendLocked(prefix)
			frame = suffix
			continue
		}

		if frame.WireLen() > remaining {
			p.flushLocked()
			continue
		}
		p.appendLocked(frame)
		break
	}

	if p.maxSize-p.currentLen < wire.MinPacketRemaining {
		p.flushLocked()
	}
}

func (p *Packetizer) appendLocked(frame wire.Frame) {
	p.current = append(p.current, frame)
	p.currentLen += frame.WireLen()
}

func (p *Packetizer) armTimerLocked() {
	p.timer = time.AfterFunc(p.maxDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.flushLocked()
	})
}

func (p *Packetizer) flushLocked() {
	if len(p.current) == 0 {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	pn := p.nextPn
	p.nextPn++
	frames := p.current
	p.current = nil
	p.currentLen = packetNumHeaderLen
	if p.log != nil {
		p.log.WithField("packet_num", pn).WithField("frames", len(frames)).Debug("rrdt: flushing packet")
	}
	p.sink.SendPacket(pn, frames)
}
