package wire

import (
	"encoding/binary"

	"github.com/observerw/rrdt/errs"
)

// Writer appends big-endian fields to a growing byte buffer, the same
// byte-slice-view idiom the teacher uses in header/tcp.go (there applied to
// a fixed-layout view; here to an append-only cursor, since frames are
// variable length).
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given starting capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) Uint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) Uint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) Bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Buf returns the accumulated buffer.
func (w *Writer) Buf() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Reader consumes big-endian fields from a fixed byte slice, reporting
// errs.ErrWireDecode on underflow.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) Empty() bool {
	return r.Remaining() <= 0
}

func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, errs.ErrWireDecode
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, errs.ErrWireDecode
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, errs.ErrWireDecode
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, errs.ErrWireDecode
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
