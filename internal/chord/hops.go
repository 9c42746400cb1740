package chord

import "sync/atomic"

// HopCounter counts entries into lookup-path operations. It exists for
// benchmarking only and carries no correctness weight.
type HopCounter struct {
	n atomic.Int64
}

// Inc records one hop.
func (h *HopCounter) Inc() { h.n.Add(1) }

// Value returns the current count.
func (h *HopCounter) Value() int64 { return h.n.Load() }

// Clear resets the counter and returns the previous value.
func (h *HopCounter) Clear() int64 { return h.n.Swap(0) }
