// Package models provides ready made nodes and edges that exercise the
// connection update machinery.
package models

import (
	"slices"

	"github.com/sarchlab/diligent/sim"
)

// A SpikeSource emits one spike at each configured step.
type SpikeSource struct {
	sim.NodeBase

	times []sim.VTimeInStep
}

// NewSpikeSource creates a source that fires at the given steps.
func NewSpikeSource(times ...sim.VTimeInStep) *SpikeSource {
	s := &SpikeSource{times: slices.Clone(times)}
	slices.Sort(s.times)

	return s
}

// SpikeTimes returns the steps at which the source fires.
func (s *SpikeSource) SpikeTimes() []sim.VTimeInStep {
	return slices.Clone(s.times)
}

// Update emits the spikes that fall into [origin+from, origin+to).
func (s *SpikeSource) Update(
	origin, from, to sim.VTimeInStep,
	out sim.SpikeEmitter,
) {
	lo, _ := slices.BinarySearch(s.times, origin+from)

	for _, t := range s.times[lo:] {
		if t >= origin+to {
			break
		}

		out.EmitSpike(t, s.ID(), 1)
	}
}
