package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, f Frame) []byte {
	t.Helper()
	w := NewWriter(f.WireLen())
	f.Encode(w)
	require.Equal(t, f.WireLen(), w.Len())
	return w.Buf()
}

func TestStreamFrameRoundTrip(t *testing.T) {
	for _, fin := range []bool{false, true} {
		f := &StreamFrame{StreamID: 7, Offset: 1000, Data: []byte("payload"), Fin: fin}
		buf := encodeFrame(t, f)

		decoded, err := DecodeFrame(NewReader(buf))
		require.NoError(t, err)
		got, ok := decoded.(*StreamFrame)
		require.True(t, ok)
		require.Equal(t, f, got)
	}
}

func TestMaxStreamDataFrameRoundTrip(t *testing.T) {
	f := &MaxStreamDataFrame{StreamID: 3, MaxData: 1 << 20}
	buf := encodeFrame(t, f)

	decoded, err := DecodeFrame(NewReader(buf))
	require.NoError(t, err)
	got, ok := decoded.(*MaxStreamDataFrame)
	require.True(t, ok)
	require.Equal(t, f, got)
}

func TestHandshakeFrameRoundTrip(t *testing.T) {
	f := &HandshakeFrame{Params: TransportParams{MaxAckDelayMs: 100, InitialMaxStreamData: 1 << 20, Streams: 10}}
	buf := encodeFrame(t, f)

	decoded, err := DecodeFrame(NewReader(buf))
	require.NoError(t, err)
	got, ok := decoded.(*HandshakeFrame)
	require.True(t, ok)
	require.Equal(t, f.Params, got.Params)
}

func TestAckFrameRoundTrip(t *testing.T) {
	f := &AckFrame{
		LargestAck:    42,
		DelayMs:       15,
		FirstAckRange: 3,
		Ranges:        []AckRange{{Gap: 1, Length: 2}, {Gap: 0, Length: 0}},
	}
	buf := encodeFrame(t, f)

	decoded, err := DecodeFrame(NewReader(buf))
	require.NoError(t, err)
	got, ok := decoded.(*AckFrame)
	require.True(t, ok)
	require.Equal(t, f, got)
}

func TestDecodeFrameUnknownType(t *testing.T) {
	_, err := DecodeFrame(NewReader([]byte{0xff}))
	require.Error(t, err)
}

func TestDecodeFrameTruncated(t *testing.T) {
	f := &StreamFrame{StreamID: 1, Offset: 0, Data: []byte("x")}
	buf := encodeFrame(t, f)
	_, err := DecodeFrame(NewReader(buf[:len(buf)-1]))
	require.Error(t, err)
}
