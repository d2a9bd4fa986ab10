package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/observerw/rrdt/rangeset"
)

func TestSendStreamWriteThenReadForSend(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	chunk, fin, ok := s.readForSend(10)
	require.True(t, ok)
	require.False(t, fin)
	require.Equal(t, []byte("hello"), chunk.Data)
	require.Equal(t, uint64(0), chunk.Offset)
}

func TestSendStreamMarkWroteSignalsFinOnLastRead(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	s.Write([]byte("hi"))
	s.MarkWrote()

	chunk, fin, ok := s.readForSend(10)
	require.True(t, ok)
	require.True(t, fin)
	require.Equal(t, []byte("hi"), chunk.Data)
}

func TestSendStreamCloseUnblocksOnceFullyAcked(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	s.Write([]byte("data"))
	s.MarkWrote()
	_, _, ok := s.readForSend(10)
	require.True(t, ok)

	done := make(chan error, 1)
	go func() { done <- s.Close(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Close must not return before the data is acked")
	case <-time.After(20 * time.Millisecond):
	}

	s.ack(rangeset.Range{Start: 0, End: 4})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close should have unblocked after the ack")
	}
	require.True(t, s.done())
}

func TestSendStreamCloseRespectsContextCancellation(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	s.Write([]byte("data"))
	s.MarkWrote()
	s.readForSend(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendStreamRetransmitMarksRangeForResend(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	s.Write([]byte("abcdef"))
	s.readForSend(10) // sends all 6 bytes, sentOffset=6

	require.False(t, s.hasPending(), "everything written has already been sent and nothing is lost yet")

	s.retransmit(rangeset.Range{Start: 2, End: 4})
	require.True(t, s.hasPending())

	chunk, fin, ok := s.readForSend(10)
	require.True(t, ok)
	require.False(t, fin)
	require.Equal(t, uint64(2), chunk.Offset)
	require.Equal(t, []byte("cd"), chunk.Data)
}

func TestSendStreamSetMaxDataRaisesCreditForMoreReads(t *testing.T) {
	s := NewSendStream(1, 2)
	s.Write([]byte("abcdef"))

	chunk, _, ok := s.readForSend(10)
	require.True(t, ok)
	require.Equal(t, []byte("ab"), chunk.Data)

	_, _, ok = s.readForSend(10)
	require.False(t, ok, "flow control should block further reads at the credit limit")

	s.setMaxData(6)
	chunk, _, ok = s.readForSend(10)
	require.True(t, ok)
	require.Equal(t, []byte("cdef"), chunk.Data)
}

func TestSendStreamWriteAfterWroteReturnsError(t *testing.T) {
	s := NewSendStream(1, 1<<20)
	s.Write([]byte("x"))
	s.MarkWrote()
	s.readForSend(10) // drives state to sendDataSent

	_, err := s.Write([]byte("y"))
	require.Error(t, err)
}
