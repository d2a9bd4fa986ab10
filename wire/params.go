package wire

// TransportParams is the wire form exchanged during the handshake (spec
// §4.1, §6): `[u64 max_ack_delay_ms][u64 initial_max_stream_data][u16 streams]`.
type TransportParams struct {
	MaxAckDelayMs         uint64
	InitialMaxStreamData  uint64
	Streams               uint16
}

// Encode appends the wire form to w.
func (p TransportParams) Encode(w *Writer) {
	w.Uint64(p.MaxAckDelayMs)
	w.Uint64(p.InitialMaxStreamData)
	w.Uint16(p.Streams)
}

// WireLen returns the encoded size in bytes.
func (p TransportParams) WireLen() int {
	return 8 + 8 + 2
}

// DecodeTransportParams reads a TransportParams from r.
func DecodeTransportParams(r *Reader) (TransportParams, error) {
	var p TransportParams
	var err error
	if p.MaxAckDelayMs, err = r.Uint64(); err != nil {
		return p, err
	}
	if p.InitialMaxStreamData, err = r.Uint64(); err != nil {
		return p, err
	}
	if p.Streams, err = r.Uint16(); err != nil {
		return p, err
	}
	return p, nil
}

// CompressedParams is the payload of a COMPRESSED long packet (spec §6):
// `[u8 byte][u64 size]`.
type CompressedParams struct {
	Byte byte
	Size uint64
}

// Encode appends the wire form to w.
func (p CompressedParams) Encode(w *Writer) {
	w.Byte(p.Byte)
	w.Uint64(p.Size)
}

// WireLen returns the encoded size in bytes.
func (p CompressedParams) WireLen() int {
	return 1 + 8
}

// DecodeCompressedParams reads a CompressedParams from r.
func DecodeCompressedParams(r *Reader) (CompressedParams, error) {
	var p CompressedParams
	b, err := r.Byte()
	if err != nil {
		return p, err
	}
	size, err := r.Uint64()
	if err != nil {
		return p, err
	}
	p.Byte = b
	p.Size = size
	return p, nil
}
