package wire

import "github.com/observerw/rrdt/errs"

// EncodeShort serialises a short (data-plane) packet: [u64 packet_num]
// [frames...] (spec §4.1).
func EncodeShort(packetNum uint64, frames []Frame) []byte {
	size := 8
	for _, f := range frames {
		size += f.WireLen()
	}
	w := NewWriter(size)
	w.Uint64(packetNum)
	for _, f := range frames {
		f.Encode(w)
	}
	return w.Buf()
}

// ShortPacket is the decoded form of a short packet.
type ShortPacket struct {
	PacketNum uint64
	Frames    []Frame
}

// DecodeShort decodes a short packet, consuming frames until the buffer is
// exhausted (a packet carries no explicit frame count).
func DecodeShort(data []byte) (ShortPacket, error) {
	r := NewReader(data)
	pn, err := r.Uint64()
	if err != nil {
		return ShortPacket{}, err
	}
	var frames []Frame
	for !r.Empty() {
		f, err := DecodeFrame(r)
		if err != nil {
			return ShortPacket{}, err
		}
		frames = append(frames, f)
	}
	return ShortPacket{PacketNum: pn, Frames: frames}, nil
}

// EncodeLongHandshake serialises a long HANDSHAKE packet carrying params.
func EncodeLongHandshake(params TransportParams) []byte {
	w := NewWriter(1 + params.WireLen())
	w.Byte(byte(PacketTypeHandshake))
	params.Encode(w)
	return w.Buf()
}

// EncodeLongCompressed serialises a long COMPRESSED packet.
func EncodeLongCompressed(params CompressedParams) []byte {
	w := NewWriter(1 + params.WireLen())
	w.Byte(byte(PacketTypeCompressed))
	params.Encode(w)
	return w.Buf()
}

// LongPacket is the decoded form of a handshake-plane packet. At most one
// of Handshake / Compressed is set, selected by Type; a HANDSHAKE_DONE
// packet sets neither.
type LongPacket struct {
	Type       PacketType
	Handshake  *TransportParams
	Compressed *CompressedParams
}

// DecodeLong decodes a long packet's type byte and payload.
func DecodeLong(data []byte) (LongPacket, error) {
	r := NewReader(data)
	t, err := r.Byte()
	if err != nil {
		return LongPacket{}, err
	}
	switch PacketType(t) {
	case PacketTypeHandshake:
		params, err := DecodeTransportParams(r)
		if err != nil {
			return LongPacket{}, err
		}
		return LongPacket{Type: PacketTypeHandshake, Handshake: &params}, nil
	case PacketTypeCompressed:
		params, err := DecodeCompressedParams(r)
		if err != nil {
			return LongPacket{}, err
		}
		return LongPacket{Type: PacketTypeCompressed, Compressed: &params}, nil
	case PacketTypeHandshakeDone:
		return LongPacket{Type: PacketTypeHandshakeDone}, nil
	default:
		return LongPacket{}, errs.ErrWireDecode
	}
}
