// Package errs defines the RRDT error space. Using a dedicated type ensures
// errors outside this space are never mistaken for a protocol-defined one.
package errs

// Error is a sentinel error in the RRDT error space.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

// Error kinds, per the error handling design (§7).
var (
	// ErrWireDecode means a packet or frame was malformed. The caller
	// should drop the datagram and continue.
	ErrWireDecode = &Error{"rrdt: malformed wire data"}

	// ErrSocket means the underlying UDP socket failed. Fatal to the
	// connection.
	ErrSocket = &Error{"rrdt: socket error"}

	// ErrStreamReset means a write was attempted after wrote() or after
	// the peer reset the stream.
	ErrStreamReset = &Error{"rrdt: stream reset"}

	// ErrStreamClosed means an operation was attempted on a stream that
	// has already reached a terminal state.
	ErrStreamClosed = &Error{"rrdt: stream closed"}

	// ErrInvalidArgument covers misuse such as building a connection
	// without transport params.
	ErrInvalidArgument = &Error{"rrdt: invalid argument"}

	// ErrConnectionClosed means the connection has been torn down.
	ErrConnectionClosed = &Error{"rrdt: connection closed"}

	// ErrNoMoreStreams means the peer's promised stream count has been
	// exhausted.
	ErrNoMoreStreams = &Error{"rrdt: no more streams to accept"}
)
