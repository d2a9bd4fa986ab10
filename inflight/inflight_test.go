package inflight

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/observerw/rrdt/rtt"
	"github.com/observerw/rrdt/wire"
)

type fakeAckedListener struct {
	mu    sync.Mutex
	calls [][]PacketMeta
}

func (f *fakeAckedListener) HandleAcked(metas []PacketMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, metas)
}

func (f *fakeAckedListener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAckedListener) last() []PacketMeta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeLostListener struct {
	mu    sync.Mutex
	metas []PacketMeta
}

func (f *fakeLostListener) HandleLost(meta PacketMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas = append(f.metas, meta)
}

func (f *fakeLostListener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.metas)
}

// shortRTOEstimator seeds an estimator whose RTO resolves to a few
// milliseconds, by folding in one tiny sample before any real use — the
// default InitialRTT-seeded RTO is hundreds of milliseconds, too slow for a
// loss test.
func shortRTOEstimator() *rtt.Estimator {
	e := rtt.New(0)
	e.Update(0, time.Millisecond)
	return e
}

func TestSentIgnoresNonAckEliciting(t *testing.T) {
	inf := New(nil, shortRTOEstimator(), nil, nil)
	defer inf.Close()

	acked := &fakeAckedListener{}
	inf.ListenAcked(acked)

	inf.Sent(PacketMeta{PacketNum: 1, AckEliciting: false})
	inf.Ack(&wire.AckFrame{LargestAck: 1, FirstAckRange: 0}, time.Now())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, acked.count(), "a packet never recorded as inflight can't be acked")
}

func TestAckDeliversAckedMetaAndSamplesRTT(t *testing.T) {
	estimator := shortRTOEstimator()
	before := estimator.Smoothed()

	inf := New(nil, estimator, nil, nil)
	defer inf.Close()

	acked := &fakeAckedListener{}
	inf.ListenAcked(acked)

	sentAt := time.Now()
	inf.Sent(PacketMeta{PacketNum: 1, AckEliciting: true, Sent: sentAt, Size: 100})

	recvAt := sentAt.Add(5 * time.Millisecond)
	inf.Ack(&wire.AckFrame{LargestAck: 1, FirstAckRange: 0}, recvAt)

	require.Eventually(t, func() bool { return acked.count() == 1 }, time.Second, time.Millisecond)
	metas := acked.last()
	require.Len(t, metas, 1)
	require.Equal(t, uint64(1), metas[0].PacketNum)
	require.Equal(t, 100, metas[0].Size)

	require.NotEqual(t, before, estimator.Smoothed(), "RTT sample for the largest newly-acked packet must update the estimator")
}

func TestAckCoveringRangeAcksAllContainedPackets(t *testing.T) {
	inf := New(nil, shortRTOEstimator(), nil, nil)
	defer inf.Close()

	acked := &fakeAckedListener{}
	inf.ListenAcked(acked)

	now := time.Now()
	inf.Sent(PacketMeta{PacketNum: 1, AckEliciting: true, Sent: now})
	inf.Sent(PacketMeta{PacketNum: 2, AckEliciting: true, Sent: now})
	inf.Sent(PacketMeta{PacketNum: 3, AckEliciting: false, Sent: now}) // never tracked

	// LargestAck=2, FirstAckRange=1 covers packet numbers {1,2}.
	inf.Ack(&wire.AckFrame{LargestAck: 2, FirstAckRange: 1}, now.Add(time.Millisecond))

	require.Eventually(t, func() bool { return acked.count() == 1 }, time.Second, time.Millisecond)
	metas := acked.last()
	seen := map[uint64]bool{}
	for _, m := range metas {
		seen[m.PacketNum] = true
	}
	require.Len(t, metas, 2)
	require.True(t, seen[1])
	require.True(t, seen[2])
}

func TestAckWithNoNewlyCoveredPacketsDoesNotNotify(t *testing.T) {
	inf := New(nil, shortRTOEstimator(), nil, nil)
	defer inf.Close()

	acked := &fakeAckedListener{}
	inf.ListenAcked(acked)

	// Nothing was ever Sent, so an ACK referencing packet 9 acknowledges
	// nothing tracked.
	inf.Ack(&wire.AckFrame{LargestAck: 9, FirstAckRange: 0}, time.Now())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, acked.count())
}

func TestOnTimeoutDeclaresLossAndRemovesEntry(t *testing.T) {
	inf := New(nil, shortRTOEstimator(), nil, nil)
	defer inf.Close()

	lost := &fakeLostListener{}
	inf.ListenLost(lost)

	inf.Sent(PacketMeta{PacketNum: 1, AckEliciting: true, Sent: time.Now(), Size: 42})

	require.Eventually(t, func() bool { return lost.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(1), lost.metas[0].PacketNum)
	require.Equal(t, 42, lost.metas[0].Size)

	// A late ACK after loss was already declared acknowledges nothing: the
	// entry was already deleted by onTimeout.
	acked := &fakeAckedListener{}
	inf.ListenAcked(acked)
	inf.Ack(&wire.AckFrame{LargestAck: 1, FirstAckRange: 0}, time.Now())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, acked.count())
}

func TestAckBeforeTimeoutCancelsTheLossTimer(t *testing.T) {
	inf := New(nil, shortRTOEstimator(), nil, nil)
	defer inf.Close()

	lost := &fakeLostListener{}
	inf.ListenLost(lost)

	now := time.Now()
	inf.Sent(PacketMeta{PacketNum: 1, AckEliciting: true, Sent: now})
	inf.Ack(&wire.AckFrame{LargestAck: 1, FirstAckRange: 0}, now.Add(time.Millisecond))

	// Give the (cancelled) RTO timer time to have fired if it wasn't
	// actually stopped.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, lost.count(), "acking a packet must cancel its RTO timer")
}
