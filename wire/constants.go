package wire

import "time"

// Protocol-wide constants and defaults (spec §6).
const (
	// MaxPacketSize is the largest permitted encoded packet, in bytes.
	MaxPacketSize = 8192

	// BaseDatagramSize is the MTU assumed by the congestion controller.
	BaseDatagramSize = 1200

	// DefaultAckRangesLimit bounds the number of additional ack ranges an
	// AckFrame may carry; oldest ranges are dropped first when exceeded.
	DefaultAckRangesLimit = 200

	// DefaultMaxStreamData is the default per-stream receive window.
	DefaultMaxStreamData = 1 << 20 // 1 MiB

	// DefaultStreams is the default number of streams a side promises to
	// open.
	DefaultStreams = 10

	// DefaultMaxAckDelay is the default peer-facing ack-delay promise.
	DefaultMaxAckDelay = 100 * time.Millisecond

	// MaxPacketDelay bounds how long the Packetizer may batch frames
	// before a forced flush.
	MaxPacketDelay = 25 * time.Millisecond

	// MinPacketRemaining is the remaining-space threshold below which the
	// Packetizer flushes immediately rather than waiting for more frames.
	MinPacketRemaining = 20

	// MaxWindow is the fixed size of a RecvWindow buffer.
	MaxWindow = 1 << 20 // 1 MiB

	// StreamChunkSize is the application-level per-stream chunk size used
	// when splitting a file across streams.
	StreamChunkSize = 100 << 20 // 100 MiB
)

// FrameType is the one-byte tag prefixing every encoded frame (spec §4.1).
type FrameType byte

const (
	FrameTypeHandshake      FrameType = 0x01
	FrameTypeStream         FrameType = 0x02
	FrameTypeStreamFin      FrameType = 0x03
	FrameTypeAck            FrameType = 0x04
	FrameTypeMaxStreamData  FrameType = 0x05
)

// PacketType is the one-byte tag of a long (handshake-plane) packet.
type PacketType byte

const (
	PacketTypeHandshake     PacketType = 0x01
	PacketTypeHandshakeDone PacketType = 0x02
	PacketTypeCompressed    PacketType = 0x03
)
