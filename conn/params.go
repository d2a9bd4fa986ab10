// Package conn wires the nine components into the Connection engine, and
// implements the handshake's Listener/Builder (spec §4.2, §4.4, §4.7, §6),
// grounded on original_source/rrdt-lib/src/connection/{mod,sender,
// receiver}.rs, with the constructor idiom of
// YaoZengzeng-yustack/stack/stack.go's New(...).
package conn

import (
	"time"

	"github.com/observerw/rrdt/wire"
)

// Params is the in-memory configuration surface, kept distinct from the
// wire.TransportParams struct it is encoded into (spec §3, §6 defaults).
type Params struct {
	MaxAckDelay          time.Duration
	InitialMaxStreamData uint64
	Streams              uint16
}

// DefaultParams returns the spec §6 default parameters.
func DefaultParams() Params {
	return Params{
		MaxAckDelay:          wire.DefaultMaxAckDelay,
		InitialMaxStreamData: wire.DefaultMaxStreamData,
		Streams:              wire.DefaultStreams,
	}
}

// Option customises a Params value.
type Option func(*Params)

// WithMaxAckDelay overrides the default max_ack_delay.
func WithMaxAckDelay(d time.Duration) Option {
	return func(p *Params) { p.MaxAckDelay = d }
}

// WithInitialMaxStreamData overrides the default per-stream send credit
// granted to the peer.
func WithInitialMaxStreamData(v uint64) Option {
	return func(p *Params) { p.InitialMaxStreamData = v }
}

// WithStreams overrides the number of streams this side promises to open.
func WithStreams(n uint16) Option {
	return func(p *Params) { p.Streams = n }
}

// NewParams builds a Params from DefaultParams with the given options
// applied, following the corpus's functional-options convention.
func NewParams(opts ...Option) Params {
	p := DefaultParams()
	for _, o := range opts {
		o(&p)
	}
	return p
}

func (p Params) toWire() wire.TransportParams {
	return wire.TransportParams{
		MaxAckDelayMs:        uint64(p.MaxAckDelay / time.Millisecond),
		InitialMaxStreamData: p.InitialMaxStreamData,
		Streams:              p.Streams,
	}
}

func fromWire(w wire.TransportParams) Params {
	return Params{
		MaxAckDelay:          time.Duration(w.MaxAckDelayMs) * time.Millisecond,
		InitialMaxStreamData: w.InitialMaxStreamData,
		Streams:              w.Streams,
	}
}
