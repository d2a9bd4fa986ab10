package conn

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/ack"
	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/inflight"
	"github.com/observerw/rrdt/stream"
	"github.com/observerw/rrdt/wire"
)

// receiver owns the dedicated read loop on the connected socket (spec
// §4.7). Its frame dispatch order — Inflight, then StreamMux, then the
// AckSender — preserves the ordering guarantee that the ACK window never
// "announces" a packet whose side effects have not yet begun (spec §5).
type receiver struct {
	log      *logrus.Entry
	socket   Socket
	inflight *inflight.Inflight
	mux      *stream.Mux
	ackSend  *ack.Sender
	onFatal  func(error)

	stop chan struct{}
	done chan struct{}
}

func newReceiver(log *logrus.Entry, socket Socket, inf *inflight.Inflight, mux *stream.Mux, ackSend *ack.Sender, onFatal func(error)) *receiver {
	return &receiver{
		log:      log,
		socket:   socket,
		inflight: inf,
		mux:      mux,
		ackSend:  ackSend,
		onFatal:  onFatal,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *receiver) start() {
	go r.run()
}

func (r *receiver) close() {
	close(r.stop)
	<-r.done
}

func (r *receiver) run() {
	defer close(r.done)
	buf := make([]byte, wire.MaxPacketSize)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.socket.Read(buf)
		if err != nil {
			select {
			case <-r.stop:
				return
			default:
			}
			if r.log != nil {
				r.log.WithError(err).Error("rrdt: socket read failed")
			}
			if r.onFatal != nil {
				r.onFatal(errs.ErrSocket)
			}
			return
		}
		recvInstant := time.Now()

		pkt, err := wire.DecodeShort(buf[:n])
		if err != nil {
			if r.log != nil {
				r.log.WithError(err).Debug("rrdt: dropping malformed datagram")
			}
			continue
		}

		ackEliciting := false
		for _, f := range pkt.Frames {
			switch ff := f.(type) {
			case *wire.AckFrame:
				r.inflight.Ack(ff, recvInstant)
			case *wire.StreamFrame:
				ackEliciting = true
				r.mux.Dispatch(f)
			case *wire.MaxStreamDataFrame:
				ackEliciting = true
				r.mux.Dispatch(f)
			case *wire.HandshakeFrame:
				// Ignored in the data plane (spec §4.7).
			}
		}
		r.ackSend.Recv(pkt.PacketNum, ackEliciting, recvInstant)
	}
}
