package conn

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/ack"
	"github.com/observerw/rrdt/congestion"
	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/inflight"
	"github.com/observerw/rrdt/packetizer"
	"github.com/observerw/rrdt/rtt"
	"github.com/observerw/rrdt/stream"
)

// Connection is a single RRDT connection: a connected socket plus the
// three shared read-mostly objects (socket, RttEstimator, NewReno) and
// the per-component actors built on top of them (spec §3, §5).
type Connection struct {
	id     uint64
	log    *logrus.Entry
	socket Socket

	rtt *rtt.Estimator
	cc  *congestion.NewReno

	inflight   *inflight.Inflight
	packetizer *packetizer.Packetizer
	ackSender  *ack.Sender
	sender     *sender
	receiver   *receiver
	mux        *stream.Mux

	registry *prometheus.Registry

	closeOnce sync.Once
	closed    chan struct{}
}

// metrics groups the per-connection prometheus collectors (spec's
// "[SUPPLEMENT] Metrics surface").
type metrics struct {
	packetsSent prometheus.Counter
	packetsLost prometheus.Counter
	cwnd        prometheus.Gauge
	smoothedRTT prometheus.Gauge
	sendWindow  prometheus.Gauge
	recvWindow  prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{Name: "rrdt_packets_sent_total"}),
		packetsLost: prometheus.NewCounter(prometheus.CounterOpts{Name: "rrdt_packets_lost_total"}),
		cwnd:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "rrdt_cwnd_bytes"}),
		smoothedRTT: prometheus.NewGauge(prometheus.GaugeOpts{Name: "rrdt_smoothed_rtt_seconds"}),
		sendWindow:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "rrdt_stream_send_window_bytes"}),
		recvWindow:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "rrdt_stream_recv_window_bytes"}),
	}
	registry.MustRegister(m.packetsSent, m.packetsLost, m.cwnd, m.smoothedRTT, m.sendWindow, m.recvWindow)
	return m
}

// New wires every component into a running Connection, mirroring
// original_source/rrdt-lib/src/connection/mod.rs's registration order:
// Inflight first, then its listeners (Sender, StreamMux), then the
// Receiver that feeds them all (spec §9 "actor graph without reference
// cycles").
func New(log *logrus.Entry, id uint64, socket Socket, local, peer Params) *Connection {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("connection_id", id)

	registry := prometheus.NewRegistry()
	m := newMetrics(registry)

	rttEst := rtt.New(peer.MaxAckDelay)
	cc := congestion.New(m.cwnd)

	c := &Connection{
		id:       id,
		log:      log,
		socket:   socket,
		rtt:      rttEst,
		cc:       cc,
		registry: registry,
		closed:   make(chan struct{}),
	}

	c.inflight = inflight.New(log, rttEst, m.packetsSent, m.packetsLost)
	c.sender = newSender(log, socket, c.inflight, cc, c.fail)
	c.packetizer = packetizer.New(log, c.sender)

	c.ackSender = ack.New(log, c.packetizer, local.MaxAckDelay)

	c.mux = stream.New(log, int(peer.Streams), peer.InitialMaxStreamData, c.packetizer, cc, rttEst, m.sendWindow, m.recvWindow)

	c.inflight.ListenAcked(c.sender)
	c.inflight.ListenLost(c.sender)
	c.inflight.ListenAcked(c.mux)
	c.inflight.ListenLost(c.mux)

	c.receiver = newReceiver(log, socket, c.inflight, c.mux, c.ackSender, c.fail)
	c.receiver.start()

	go c.reportLoop(m)

	return c
}

func (c *Connection) reportLoop(m *metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.smoothedRTT.Set(c.rtt.Smoothed().Seconds())
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) fail(err error) {
	c.log.WithError(err).Error("rrdt: connection failed, tearing down")
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// ID returns the connection's identifier (spec external API).
func (c *Connection) ID() uint64 { return c.id }

// Open allocates a new locally-opened SendStream (spec external API).
func (c *Connection) Open() (*stream.SendStream, error) {
	select {
	case <-c.closed:
		return nil, errs.ErrConnectionClosed
	default:
	}
	return c.mux.Open(), nil
}

// Accept returns the next remote-opened RecvStream, or
// errs.ErrNoMoreStreams once the peer-promised count is exhausted (spec
// external API).
func (c *Connection) Accept(ctx context.Context) (*stream.RecvStream, error) {
	select {
	case <-c.closed:
		return nil, errs.ErrConnectionClosed
	default:
	}
	return c.mux.Accept(ctx)
}

// Registry exposes the connection's private prometheus registry.
func (c *Connection) Registry() *prometheus.Registry {
	return c.registry
}

// Close blocks until every stream has drained, then tears down every
// actor (spec §4.11 Close, §5 "tearing down the Connection stops every
// actor").
func (c *Connection) Close(ctx context.Context) error {
	err := c.mux.CloseAll(ctx)

	// The receiver's pending Read returns only once the socket is closed:
	// raise its stop signal first so that read error is taken as shutdown.
	close(c.receiver.stop)
	if cerr := c.socket.Close(); cerr != nil && err == nil {
		err = cerr
	}
	<-c.receiver.done
	c.mux.Close()
	c.ackSender.Close()
	c.inflight.Close()
	c.closeOnce.Do(func() { close(c.closed) })
	return err
}
