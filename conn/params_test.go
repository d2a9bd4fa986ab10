package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/observerw/rrdt/wire"
)

func TestDefaultParamsMatchWireDefaults(t *testing.T) {
	p := DefaultParams()
	require.Equal(t, wire.DefaultMaxAckDelay, p.MaxAckDelay)
	require.Equal(t, uint64(wire.DefaultMaxStreamData), p.InitialMaxStreamData)
	require.Equal(t, uint16(wire.DefaultStreams), p.Streams)
}

func TestNewParamsAppliesOptionsOverDefaults(t *testing.T) {
	p := NewParams(
		WithMaxAckDelay(50*time.Millisecond),
		WithInitialMaxStreamData(4096),
		WithStreams(3),
	)
	require.Equal(t, 50*time.Millisecond, p.MaxAckDelay)
	require.Equal(t, uint64(4096), p.InitialMaxStreamData)
	require.Equal(t, uint16(3), p.Streams)
}

func TestParamsWireRoundTrip(t *testing.T) {
	p := NewParams(WithMaxAckDelay(25*time.Millisecond), WithInitialMaxStreamData(1<<16), WithStreams(7))
	back := fromWire(p.toWire())
	require.Equal(t, p, back)
}
