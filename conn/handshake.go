package conn

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/wire"
)

// pollInterval bounds how long a read blocks before the handshake loops
// re-check ctx for cancellation; net.UDPConn has no native context support.
const pollInterval = 200 * time.Millisecond

func readLong(ctx context.Context, c *net.UDPConn, buf []byte) (int, *net.UDPAddr, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
		c.SetReadDeadline(time.Now().Add(pollInterval))
		n, remote, err := c.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return 0, nil, err
		}
		c.SetReadDeadline(time.Time{})
		return n, remote, nil
	}
}

// Listener binds a UDP socket and plays the server side of the
// one-round-trip handshake (spec §4.2). Whether it answers with its own
// TransportParams or a CompressedParams shortcut is decided entirely from
// its own static configuration, never by inspecting the client's
// handshake request (spec §4.2 step 2) — so the side that needs to make
// that decision (e.g. the file holder in the CLI) must bind as Listener.
type Listener struct {
	log    *logrus.Entry
	conn   *net.UDPConn
	params Params
	nextID uint64
}

// Bind opens a UDP listening socket at addr.
func Bind(log *logrus.Entry, addr string, params Params) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	c, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{log: log, conn: c, params: params}, nil
}

// Addr returns the socket's bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Accept waits for one inbound handshake request, replies with this
// side's TransportParams, and returns a Connection pinned to the
// requesting peer (spec §4.2 normal path: one send, one recv, no third
// datagram).
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	buf := make([]byte, wire.MaxPacketSize)
	for {
		n, remote, err := readLong(ctx, l.conn, buf)
		if err != nil {
			return nil, err
		}
		pkt, err := wire.DecodeLong(buf[:n])
		if err != nil || pkt.Type != wire.PacketTypeHandshake {
			if l.log != nil {
				l.log.Debug("rrdt: dropping non-handshake datagram on listening socket")
			}
			continue
		}
		peer := fromWire(*pkt.Handshake)

		reply := wire.EncodeLongHandshake(l.params.toWire())
		if _, err := l.conn.WriteToUDP(reply, remote); err != nil {
			return nil, err
		}

		l.nextID++
		socket := &pinnedSocket{conn: l.conn, remote: remote}
		return New(l.log, l.nextID, socket, l.params, peer), nil
	}
}

// ServeCompressedOnce answers the first handshake request with a
// CompressedParams shortcut and returns without ever building a
// Connection — the "same N bytes repeated" fast path (spec §4.2, §8
// scenario 2). It serves exactly one peer then returns.
func (l *Listener) ServeCompressedOnce(ctx context.Context, params wire.CompressedParams) error {
	buf := make([]byte, wire.MaxPacketSize)
	for {
		n, remote, err := readLong(ctx, l.conn, buf)
		if err != nil {
			return err
		}
		pkt, err := wire.DecodeLong(buf[:n])
		if err != nil || pkt.Type != wire.PacketTypeHandshake {
			continue
		}
		reply := wire.EncodeLongCompressed(params)
		_, err = l.conn.WriteToUDP(reply, remote)
		return err
	}
}

// Builder dials out and plays the client side of the handshake (spec
// §4.2). Build's result tells the caller whether a real data-plane
// Connection was established or the peer took the compressed shortcut.
type Builder struct {
	log    *logrus.Entry
	conn   *net.UDPConn
	remote *net.UDPAddr
	params Params
}

// Dial opens an ephemeral-port UDP socket aimed at addr.
func Dial(log *logrus.Entry, addr string, params Params) (*Builder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	c, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return &Builder{log: log, conn: c, remote: udpAddr, params: params}, nil
}

// Close releases the dialing socket. Only meaningful if Build never
// returned a Connection (which would own the socket from then on).
func (b *Builder) Close() error {
	return b.conn.Close()
}

// BuildResult is the outcome of Build: exactly one of Connection /
// Compressed is ever set (spec §4.2).
type BuildResult struct {
	Connection *Connection
	Compressed *wire.CompressedParams
}

// Build sends this side's TransportParams and waits for the peer's
// reply, resolving to either a running Connection or a compressed
// shortcut result.
func (b *Builder) Build(ctx context.Context) (BuildResult, error) {
	req := wire.EncodeLongHandshake(b.params.toWire())
	if _, err := b.conn.WriteToUDP(req, b.remote); err != nil {
		return BuildResult{}, err
	}

	buf := make([]byte, wire.MaxPacketSize)
	n, _, err := readLong(ctx, b.conn, buf)
	if err != nil {
		return BuildResult{}, err
	}
	pkt, err := wire.DecodeLong(buf[:n])
	if err != nil {
		return BuildResult{}, err
	}

	switch pkt.Type {
	case wire.PacketTypeCompressed:
		return BuildResult{Compressed: pkt.Compressed}, nil
	case wire.PacketTypeHandshake:
		peer := fromWire(*pkt.Handshake)

		socket := &pinnedSocket{conn: b.conn, remote: b.remote}
		return BuildResult{Connection: New(b.log, 1, socket, b.params, peer)}, nil
	default:
		return BuildResult{}, errs.ErrWireDecode
	}
}
