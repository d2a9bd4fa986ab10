package wire

import "github.com/observerw/rrdt/errs"

// Frame is implemented by every frame variant (spec §4.1, §3 data model).
type Frame interface {
	Type() FrameType
	Encode(w *Writer)
	// WireLen is the encoded size in bytes, including the leading type
	// byte. The Packetizer uses this to decide whether a frame fits in
	// the remaining space of the current packet.
	WireLen() int
}

// StreamFrame carries stream data, optionally terminal (FIN). FIN is
// expressed via the frame type byte, not a flag field (spec §4.1).
type StreamFrame struct {
	StreamID uint16
	Offset   uint64
	Data     []byte
	Fin      bool
}

func (f *StreamFrame) Type() FrameType {
	if f.Fin {
		return FrameTypeStreamFin
	}
	return FrameTypeStream
}

func (f *StreamFrame) Encode(w *Writer) {
	w.Byte(byte(f.Type()))
	w.Uint16(f.StreamID)
	w.Uint64(f.Offset)
	w.Uint64(uint64(len(f.Data)))
	w.Bytes(f.Data)
}

func (f *StreamFrame) WireLen() int {
	return StreamFrameHeaderLen + len(f.Data)
}

// StreamFrameHeaderLen is the on-wire size of a STREAM frame excluding its
// payload: type(1) + stream_id(2) + offset(8) + length(8).
const StreamFrameHeaderLen = 1 + 2 + 8 + 8

// AckRange is one (gap, length) pair in the backwards AckFrame encoding.
type AckRange struct {
	Gap    uint16
	Length uint16
}

// AckFrame is the wire form of an acknowledgement (spec §4.1).
type AckFrame struct {
	LargestAck    uint64
	DelayMs       uint64
	FirstAckRange uint16
	Ranges        []AckRange
}

func (f *AckFrame) Type() FrameType { return FrameTypeAck }

func (f *AckFrame) Encode(w *Writer) {
	w.Byte(byte(FrameTypeAck))
	w.Uint64(f.LargestAck)
	w.Uint64(f.DelayMs)
	w.Uint16(uint16(len(f.Ranges)))
	w.Uint16(f.FirstAckRange)
	for _, r := range f.Ranges {
		w.Uint16(r.Gap)
		w.Uint16(r.Length)
	}
}

func (f *AckFrame) WireLen() int {
	return 1 + 8 + 8 + 2 + 2 + 4*len(f.Ranges)
}

// MaxStreamDataFrame grants flow-control credit up to MaxData on StreamID
// (spec §4.1).
type MaxStreamDataFrame struct {
	StreamID uint16
	MaxData  uint64
}

func (f *MaxStreamDataFrame) Type() FrameType { return FrameTypeMaxStreamData }

func (f *MaxStreamDataFrame) Encode(w *Writer) {
	w.Byte(byte(FrameTypeMaxStreamData))
	w.Uint16(f.StreamID)
	w.Uint64(f.MaxData)
}

func (f *MaxStreamDataFrame) WireLen() int {
	return 1 + 2 + 8
}

// HandshakeFrame carries a side's TransportParams (spec §4.1).
type HandshakeFrame struct {
	Params TransportParams
}

func (f *HandshakeFrame) Type() FrameType { return FrameTypeHandshake }

func (f *HandshakeFrame) Encode(w *Writer) {
	w.Byte(byte(FrameTypeHandshake))
	f.Params.Encode(w)
}

func (f *HandshakeFrame) WireLen() int {
	return 1 + f.Params.WireLen()
}

// DecodeFrame reads one frame from r, dispatching on its leading type byte.
func DecodeFrame(r *Reader) (Frame, error) {
	t, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch FrameType(t) {
	case FrameTypeHandshake:
		params, err := DecodeTransportParams(r)
		if err != nil {
			return nil, err
		}
		return &HandshakeFrame{Params: params}, nil
	case FrameTypeStream, FrameTypeStreamFin:
		id, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		offset, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		length, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		data, err := r.Bytes(int(length))
		if err != nil {
			return nil, err
		}
		return &StreamFrame{
			StreamID: id,
			Offset:   offset,
			Data:     data,
			Fin:      FrameType(t) == FrameTypeStreamFin,
		}, nil
	case FrameTypeAck:
		largest, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		delay, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		rangeCount, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		first, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		ranges := make([]AckRange, 0, rangeCount)
		for i := uint16(0); i < rangeCount; i++ {
			gap, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			length, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, AckRange{Gap: gap, Length: length})
		}
		return &AckFrame{LargestAck: largest, DelayMs: delay, FirstAckRange: first, Ranges: ranges}, nil
	case FrameTypeMaxStreamData:
		id, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		max, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		return &MaxStreamDataFrame{StreamID: id, MaxData: max}, nil
	default:
		return nil, errs.ErrWireDecode
	}
}
