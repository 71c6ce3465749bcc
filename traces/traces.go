// Package traces lets nodes publish real valued time series that edges can
// read back over a bounded lookback window.
package traces

import (
	"github.com/sarchlab/diligent/ringbuffer"
	"github.com/sarchlab/diligent/sim"
)

// LatencySource tells how many steps of history a trace must keep.
type LatencySource interface {
	MaxLatency() sim.VTimeInStep
}

// A Holder owns the traces of one node instance.
//
// Writes are expected for steps inside the slice being updated. Reads are
// expected for steps in [horizon, origin). Neither is checked.
type Holder struct {
	buffers []*ringbuffer.Buffer[float64]
}

// Init allocates n traces, each with MaxLatency slots. Previous content is
// dropped.
func (h *Holder) Init(n int, latencies LatencySource) {
	capacity := int(latencies.MaxLatency())

	h.buffers = make([]*ringbuffer.Buffer[float64], n)
	for i := range h.buffers {
		h.buffers[i] = ringbuffer.New(capacity, 0.0)
	}
}

// NumTraces returns the number of traces.
func (h *Holder) NumTraces() int {
	return len(h.buffers)
}

// Capacity returns the number of steps each trace keeps.
func (h *Holder) Capacity() int {
	if len(h.buffers) == 0 {
		return 0
	}

	return h.buffers[0].Len()
}

// Write stores the value of a trace at a step.
func (h *Holder) Write(step sim.VTimeInStep, v float64, traceID int) {
	h.buffers[traceID].Set(int64(step), v)
}

// Read returns an iterator positioned at a step of a trace.
func (h *Holder) Read(
	step sim.VTimeInStep,
	traceID int,
) *ringbuffer.Iterator[float64] {
	return h.buffers[traceID].ReadIterator(int64(step))
}

// Snapshot returns, for every trace, length values read forward from a step.
func (h *Holder) Snapshot(from sim.VTimeInStep, length int) [][]float64 {
	out := make([][]float64, len(h.buffers))

	for i := range h.buffers {
		values := make([]float64, length)
		it := h.Read(from, i)

		for j := 0; j < length; j++ {
			values[j] = it.Value()
			it.Next()
		}

		out[i] = values
	}

	return out
}

// Clone returns a deep copy of the holder.
func (h *Holder) Clone() *Holder {
	c := &Holder{buffers: make([]*ringbuffer.Buffer[float64], len(h.buffers))}
	for i, b := range h.buffers {
		c.buffers[i] = b.Clone()
	}

	return c
}
