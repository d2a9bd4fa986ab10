// Package congestion implements the NewReno congestion controller (spec
// §4.9), grounded on original_source/rrdt-lib/src/congestion/mod.rs.
package congestion

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MTU is the assumed maximum transmission unit.
	MTU = 1200
	// LossReductionFactor shrinks the window on loss.
	LossReductionFactor = 0.5
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewReno is the second of the three shared read-mostly objects (spec
// §5), guarded by an RWMutex held only for a single update.
type NewReno struct {
	mu sync.RWMutex

	window             int
	ssthresh           int
	recoveryStart      time.Time
	bytesAcked         int
	mtu                int
	cwndGauge          prometheus.Gauge
}

// New returns a NewReno controller with the initial window clamped to
// [2*MTU, 10*MTU] around 14720 bytes, per spec §4.9.
func New(cwndGauge prometheus.Gauge) *NewReno {
	n := &NewReno{
		window:    clamp(14720, 2*MTU, 10*MTU),
		ssthresh:  math.MaxInt64,
		mtu:       MTU,
		cwndGauge: cwndGauge,
	}
	n.reportLocked()
	return n
}

func (n *NewReno) reportLocked() {
	if n.cwndGauge != nil {
		n.cwndGauge.Set(float64(n.window))
	}
}

// Window returns the current congestion window in bytes.
func (n *NewReno) Window() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.window
}

// OnAck folds in bytes newly acknowledged for a packet sent at instant
// sent.
func (n *NewReno) OnAck(sent time.Time, bytes int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.recoveryStart.IsZero() && !sent.After(n.recoveryStart) {
		return
	}
	if n.window < n.ssthresh {
		// Slow start.
		n.window += bytes
		if n.window > n.ssthresh {
			overflow := n.window - n.ssthresh
			n.window = n.ssthresh
			n.bytesAcked += overflow
		}
	} else {
		// Congestion avoidance.
		n.bytesAcked += bytes
		for n.bytesAcked >= n.window && n.window > 0 {
			n.bytesAcked -= n.window
			n.window += n.mtu
		}
	}
	n.reportLocked()
}

// OnLoss reacts to a packet declared lost at instant now, sent at instant
// sent.
func (n *NewReno) OnLoss(now, sent time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.recoveryStart.IsZero() && !sent.After(n.recoveryStart) {
		return
	}
	n.recoveryStart = now
	w := int(float64(n.window) * LossReductionFactor)
	if w < 2*n.mtu {
		w = 2 * n.mtu
	}
	n.window = w
	n.ssthresh = n.window
	n.reportLocked()
}
