package stream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/inflight"
	"github.com/observerw/rrdt/rangeset"
	"github.com/observerw/rrdt/wire"
)

// MinScheduleBytes is the remaining-budget threshold below which the
// scheduler tick stops visiting streams (spec §4.11 "stop when bytes ≤
// STREAM_MIN_LEN").
const MinScheduleBytes = wire.StreamFrameHeaderLen + 1

// PacketInserter is implemented by the Packetizer (spec §4.3).
type PacketInserter interface {
	Insert(frame wire.Frame)
}

// CongestionSource exposes the shared NewReno window for the scheduler's
// byte-budget computation (spec §4.11).
type CongestionSource interface {
	Window() int
}

// RTTSource exposes the shared smoothed RTT for the scheduler's byte-budget
// computation.
type RTTSource interface {
	Smoothed() time.Duration
}

// Mux owns every stream on a connection: the maps of recv/send streams, the
// accept queue, and the 1ms scheduler tick (spec §4.11 StreamMux).
type Mux struct {
	log *logrus.Entry

	mu          sync.Mutex
	recvStreams map[uint16]*RecvStream
	sendStreams map[uint16]*SendStream
	nextLocal   uint16
	recvCount   int
	acceptLimit int
	acceptCh    chan *RecvStream
	acceptOnce  sync.Once

	localSendMaxData uint64

	packetizer PacketInserter
	cc         CongestionSource
	rtt        RTTSource

	stop chan struct{}
	rng  *rand.Rand

	sendWindowGauge prometheus.Gauge
	recvWindowGauge prometheus.Gauge
}

// New returns a Mux. acceptLimit is the peer-declared stream count (spec
// §4.11); localSendMaxData is the peer's declared initial_max_stream_data,
// the flow-control credit granted to streams we open.
func New(log *logrus.Entry, acceptLimit int, localSendMaxData uint64, packetizer PacketInserter, cc CongestionSource, rtt RTTSource, sendGauge, recvGauge prometheus.Gauge) *Mux {
	m := &Mux{
		log:              log,
		recvStreams:      make(map[uint16]*RecvStream),
		sendStreams:      make(map[uint16]*SendStream),
		acceptLimit:      acceptLimit,
		acceptCh:         make(chan *RecvStream, max(acceptLimit, 1)),
		localSendMaxData: localSendMaxData,
		packetizer:       packetizer,
		cc:               cc,
		rtt:              rtt,
		stop:             make(chan struct{}),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		sendWindowGauge:  sendGauge,
		recvWindowGauge:  recvGauge,
	}
	if acceptLimit <= 0 {
		// Open question — empty stream accept (spec §9): treat
		// streams=0 as an immediate clean close of the accept queue.
		close(m.acceptCh)
	}
	go m.runScheduler()
	return m
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Close stops the scheduler tick.
func (m *Mux) Close() {
	close(m.stop)
}

// Open allocates the next locally-opened stream id and returns its
// SendStream (spec external API: Connection.open).
func (m *Mux) Open() *SendStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextLocal
	m.nextLocal++
	s := NewSendStream(id, m.localSendMaxData)
	m.sendStreams[id] = s
	return s
}

// Accept returns the next remote-opened stream, or ErrNoMoreStreams once
// the peer-promised count is exhausted (spec external API: Connection.accept).
func (m *Mux) Accept(ctx context.Context) (*RecvStream, error) {
	select {
	case rs, ok := <-m.acceptCh:
		if !ok {
			return nil, errs.ErrNoMoreStreams
		}
		return rs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Mux) getOrCreateRecv(id uint16) *RecvStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs, ok := m.recvStreams[id]; ok {
		return rs
	}
	rs := NewRecvStream(id, m)
	m.recvStreams[id] = rs
	m.recvCount++
	if m.recvCount <= m.acceptLimit {
		m.acceptCh <- rs
		if m.recvCount == m.acceptLimit {
			close(m.acceptCh)
		}
	}
	return rs
}

func (m *Mux) getOrCreateSend(id uint16) *SendStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ss, ok := m.sendStreams[id]; ok {
		return ss
	}
	ss := NewSendStream(id, m.localSendMaxData)
	m.sendStreams[id] = ss
	return ss
}

// Dispatch routes a received STREAM or MAX_STREAM_DATA frame (spec §4.11).
func (m *Mux) Dispatch(frame wire.Frame) {
	switch f := frame.(type) {
	case *wire.StreamFrame:
		rs := m.getOrCreateRecv(f.StreamID)
		rs.write(f.Data, f.Offset, f.Fin)
	case *wire.MaxStreamDataFrame:
		ss := m.getOrCreateSend(f.StreamID)
		ss.setMaxData(f.MaxData)
	}
}

// SendMaxStreamData implements MaxDataSink, used by RecvWindow.Update to
// emit a flow-control grant.
func (m *Mux) SendMaxStreamData(streamID uint16, maxData uint64) {
	m.packetizer.Insert(&wire.MaxStreamDataFrame{StreamID: streamID, MaxData: maxData})
}

// HandleAcked implements inflight.AckedListener (spec §4.11 "ACKED
// broadcast").
func (m *Mux) HandleAcked(metas []inflight.PacketMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meta := range metas {
		for _, fm := range meta.Frames {
			if fm.IsMaxStreamData {
				continue
			}
			if ss, ok := m.sendStreams[fm.StreamID]; ok {
				ss.ack(rangeset.Range{Start: fm.Offset, End: fm.Offset + fm.Length})
			}
		}
	}
}

// HandleLost implements inflight.LostListener (spec §4.11 "LOST
// broadcast").
func (m *Mux) HandleLost(meta inflight.PacketMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fm := range meta.Frames {
		if fm.IsMaxStreamData {
			if rs, ok := m.recvStreams[fm.StreamID]; ok {
				m.packetizer.Insert(&wire.MaxStreamDataFrame{StreamID: fm.StreamID, MaxData: rs.currentGrant()})
			}
			continue
		}
		if ss, ok := m.sendStreams[fm.StreamID]; ok {
			ss.retransmit(rangeset.Range{Start: fm.Offset, End: fm.Offset + fm.Length})
		}
	}
}

// CloseAll blocks until every send stream's bytes are acknowledged and
// every recv stream's bytes are read (spec §4.11 Close).
func (m *Mux) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sends := make([]*SendStream, 0, len(m.sendStreams))
	for _, s := range m.sendStreams {
		sends = append(sends, s)
	}
	recvs := make([]*RecvStream, 0, len(m.recvStreams))
	for _, r := range m.recvStreams {
		recvs = append(recvs, r)
	}
	m.mu.Unlock()

	for _, s := range sends {
		if err := s.Close(ctx); err != nil {
			return err
		}
	}
	for _, r := range recvs {
		if err := r.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mux) runScheduler() {
	ticker := time.NewTicker(1 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stop:
			return
		}
	}
}

// tick implements the random-without-replacement per-1ms scheduling
// described in spec §4.11 and §9 "Random stream ordering per tick".
func (m *Mux) tick() {
	m.mu.Lock()
	ids := make([]uint16, 0, len(m.sendStreams))
	streams := make(map[uint16]*SendStream, len(m.sendStreams))
	for id, s := range m.sendStreams {
		streams[id] = s
		if s.hasPending() {
			ids = append(ids, id)
		}
	}
	m.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	m.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	rttMicros := m.rtt.Smoothed().Microseconds()
	if rttMicros <= 0 {
		rttMicros = 1
	}
	budget := int(float64(m.cc.Window()) * 1000.0 / float64(rttMicros) * 1.25)

	for _, id := range ids {
		if budget <= MinScheduleBytes {
			break
		}
		ss := streams[id]
		chunk, fin, ok := ss.readForSend(budget)
		if !ok {
			continue
		}
		frame := &wire.StreamFrame{StreamID: id, Offset: chunk.Offset, Data: chunk.Data, Fin: fin}
		m.packetizer.Insert(frame)
		budget -= frame.WireLen()
	}
}
