package kernel

import "github.com/sarchlab/diligent/sim"

var (
	// HookPosSliceStart fires before the nodes of a slice are updated.
	HookPosSliceStart = &sim.HookPos{Name: "SliceStart"}

	// HookPosSliceEnd fires after the spikes of a slice are delivered.
	HookPosSliceEnd = &sim.HookPos{Name: "SliceEnd"}
)

// Slice is the item of the slice hooks.
type Slice struct {
	Origin sim.VTimeInStep
	From   sim.VTimeInStep
	To     sim.VTimeInStep
	Spikes int
}
