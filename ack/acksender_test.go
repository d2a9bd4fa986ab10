package ack

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/observerw/rrdt/wire"
)

// fakeFlusher records every flushed AckFrame, safe for concurrent access
// since the timer goroutine and the test goroutine both call FlushAck.
type fakeFlusher struct {
	mu     sync.Mutex
	frames []wire.AckFrame
}

func (f *fakeFlusher) FlushAck(frame wire.AckFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *fakeFlusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeFlusher) last() wire.AckFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[len(f.frames)-1]
}

func TestAckSenderInOrderBatchesThenFlushes(t *testing.T) {
	// Scenario 3 (spec §8): packets 1,2,3,4,5 arrive in order, ack-eliciting.
	// Expect a flush after 1,2 (threshold reached by packet 2), another
	// after 3,4, and a residual flush for 5 via the max_ack_delay timer.
	f := &fakeFlusher{}
	s := New(nil, f, 20*time.Millisecond)
	defer s.Close()

	now := time.Now()
	s.Recv(1, true, now)
	s.Recv(2, true, now)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, 1, f.count(), "packets 1,2 should have triggered one flush")
	require.Equal(t, uint64(2), f.last().LargestAck)

	s.Recv(3, true, now)
	s.Recv(4, true, now)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, 2, f.count())
	require.Equal(t, uint64(4), f.last().LargestAck)

	s.Recv(5, true, now)
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, 3, f.count(), "packet 5 alone should flush via max_ack_delay timer")
	require.Equal(t, uint64(5), f.last().LargestAck)
}

func TestAckSenderOutOfOrderForcesImmediateAck(t *testing.T) {
	// Scenario 4 (spec §8): 1, 2 arrive and batch, then 4 arrives with 3
	// still missing; the gap forces an immediate ACK covering {1,2,4}.
	f := &fakeFlusher{}
	s := New(nil, f, 50*time.Millisecond)
	defer s.Close()

	now := time.Now()
	s.Recv(1, true, now)
	s.Recv(2, true, now)
	s.Recv(4, true, now)

	require.Eventually(t, func() bool { return f.count() >= 2 }, time.Second, time.Millisecond)
	frame := f.last()
	require.Equal(t, uint64(4), frame.LargestAck)

	decoded := wire.FrameToSpans(frame)
	require.True(t, decoded.Contains(1))
	require.True(t, decoded.Contains(2))
	require.True(t, decoded.Contains(4))
	require.False(t, decoded.Contains(3))
}

func TestAckSenderNonAckElicitingDoesNotFlush(t *testing.T) {
	f := &fakeFlusher{}
	s := New(nil, f, 10*time.Millisecond)
	defer s.Close()

	s.Recv(1, false, time.Now())
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, f.count())
}

func TestAckSenderOutOfOrderFromIdleFlushesImmediately(t *testing.T) {
	f := &fakeFlusher{}
	s := New(nil, f, 50*time.Millisecond)
	defer s.Close()

	// acked starts at 0, so the first in-order packet would be 1; packet 5
	// arriving first is unambiguously a gap and must flush immediately.
	s.Recv(5, true, time.Now())

	require.Eventually(t, func() bool { return f.count() >= 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(5), f.last().LargestAck)
}
