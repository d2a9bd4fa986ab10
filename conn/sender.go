package conn

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/congestion"
	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/inflight"
	"github.com/observerw/rrdt/wire"
)

// sender implements packetizer.PacketSink: it serialises flushed packets,
// transmits them, records their metadata in Inflight, and — subscribed to
// Inflight's broadcasts — feeds NewReno (spec §4.4).
type sender struct {
	log      *logrus.Entry
	socket   Socket
	inflight *inflight.Inflight
	cc       *congestion.NewReno
	onFatal  func(error)
}

func newSender(log *logrus.Entry, socket Socket, inf *inflight.Inflight, cc *congestion.NewReno, onFatal func(error)) *sender {
	return &sender{log: log, socket: socket, inflight: inf, cc: cc, onFatal: onFatal}
}

// SendPacket implements packetizer.PacketSink.
func (s *sender) SendPacket(packetNum uint64, frames []wire.Frame) {
	data := wire.EncodeShort(packetNum, frames)
	if _, err := s.socket.Write(data); err != nil {
		if s.log != nil {
			s.log.WithError(err).Error("rrdt: socket write failed")
		}
		if s.onFatal != nil {
			s.onFatal(errs.ErrSocket)
		}
		return
	}

	sentAt := time.Now()
	ackEliciting := false
	metas := make([]inflight.FrameMeta, 0, len(frames))
	for _, f := range frames {
		switch ff := f.(type) {
		case *wire.StreamFrame:
			ackEliciting = true
			metas = append(metas, inflight.FrameMeta{StreamID: ff.StreamID, Offset: ff.Offset, Length: uint64(len(ff.Data))})
		case *wire.MaxStreamDataFrame:
			ackEliciting = true
			metas = append(metas, inflight.FrameMeta{StreamID: ff.StreamID, IsMaxStreamData: true})
		case *wire.HandshakeFrame:
			ackEliciting = true
		}
	}
	s.inflight.Sent(inflight.PacketMeta{
		PacketNum:    packetNum,
		Sent:         sentAt,
		Size:         len(data),
		AckEliciting: ackEliciting,
		Frames:       metas,
	})
}

// HandleAcked implements inflight.AckedListener, feeding NewReno.on_ack.
func (s *sender) HandleAcked(metas []inflight.PacketMeta) {
	for _, m := range metas {
		s.cc.OnAck(m.Sent, m.Size)
	}
}

// HandleLost implements inflight.LostListener, feeding NewReno.on_loss.
func (s *sender) HandleLost(m inflight.PacketMeta) {
	s.cc.OnLoss(time.Now(), m.Sent)
}
