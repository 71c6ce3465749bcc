package models

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sarchlab/diligent/ringbuffer"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/traces"
)

// ErrNoTraceWindow is returned when a trace node is initialized before the
// trace window is known.
var ErrNoTraceWindow = errors.New("models: trace window is not configured")

// TraceSource is implemented by nodes whose traces edges can read.
type TraceSource interface {
	NumTraces() int
	Read(step sim.VTimeInStep, traceID int) *ringbuffer.Iterator[float64]
}

// A PulseTraceNode publishes a single trace that is offset everywhere except
// at its spike times, where it is offset plus weight.
type PulseTraceNode struct {
	sim.NodeBase
	traces.Holder

	Offset float64
	Weight float64

	latencies  traces.LatencySource
	spikeTimes []sim.VTimeInStep
	received   []sim.SpikeEvent
}

// NewPulseTraceNode creates a trace node. The trace keeps as much history
// as latencies asks for.
func NewPulseTraceNode(
	latencies traces.LatencySource,
	spikeTimes ...sim.VTimeInStep,
) *PulseTraceNode {
	n := &PulseTraceNode{
		Weight:     1.0,
		latencies:  latencies,
		spikeTimes: slices.Clone(spikeTimes),
	}
	slices.Sort(n.spikeTimes)

	return n
}

// TraceValue returns the value the trace has at a step.
func (n *PulseTraceNode) TraceValue(step sim.VTimeInStep) float64 {
	if _, found := slices.BinarySearch(n.spikeTimes, step); found {
		return n.Offset + n.Weight
	}

	return n.Offset
}

// InitBuffers allocates the trace.
func (n *PulseTraceNode) InitBuffers() error {
	if n.latencies == nil || n.latencies.MaxLatency() < 1 {
		return fmt.Errorf("%w: node %d", ErrNoTraceWindow, n.ID())
	}

	n.Init(1, n.latencies)

	return nil
}

// Update writes the trace for the steps of the slice.
func (n *PulseTraceNode) Update(
	origin, from, to sim.VTimeInStep,
	_ sim.SpikeEmitter,
) {
	for t := origin + from; t < origin+to; t++ {
		n.Write(t, n.TraceValue(t), 0)
	}
}

// HandleSpike records a spike that reached the node.
func (n *PulseTraceNode) HandleSpike(s sim.SpikeEvent) {
	n.received = append(n.received, s)
}

// Received returns the spikes the node got so far.
func (n *PulseTraceNode) Received() []sim.SpikeEvent {
	return n.received
}

// Teardown forgets received spikes.
func (n *PulseTraceNode) Teardown() {
	n.received = nil
}
