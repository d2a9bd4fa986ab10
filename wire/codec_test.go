package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/observerw/rrdt/errs"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.Byte(0x7f)
	w.Uint16(1234)
	w.Uint64(9876543210)
	w.Bytes([]byte("hello"))

	r := NewReader(w.Buf())
	b, err := r.Byte()
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), b)

	u16, err := r.Uint16()
	require.NoError(t, err)
	require.Equal(t, uint16(1234), u16)

	u64, err := r.Uint64()
	require.NoError(t, err)
	require.Equal(t, uint64(9876543210), u64)

	data, err := r.Bytes(5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
	require.True(t, r.Empty())
}

func TestReaderUnderflow(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.Uint16()
	require.ErrorIs(t, err, errs.ErrWireDecode)

	r2 := NewReader(nil)
	_, err = r2.Byte()
	require.ErrorIs(t, err, errs.ErrWireDecode)

	r3 := NewReader([]byte{0, 0, 0})
	_, err = r3.Uint64()
	require.ErrorIs(t, err, errs.ErrWireDecode)

	r4 := NewReader([]byte{0, 0})
	_, err = r4.Bytes(5)
	require.ErrorIs(t, err, errs.ErrWireDecode)
}
