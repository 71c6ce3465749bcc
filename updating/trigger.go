package updating

import (
	"github.com/sarchlab/diligent/sim"
)

// lifecycle is the part of the Manager the Trigger drives.
type lifecycle interface {
	Interval() sim.VTimeInStep
	AcceptableLatency() sim.VTimeInStep
	IsValid() bool
	HasConnections() bool

	Prepare() error
	Calibrate(th sim.ThreadID) error
	Update(time sim.VTimeInStep, th sim.ThreadID)
	Finalize(th sim.ThreadID)
	Reset()
}

// A Trigger is the per-thread node that runs forced update passes. The host
// advances it like any other node.
type Trigger struct {
	sim.NodeBase

	registry lifecycle
}

// NewTrigger creates a Trigger that drives the given manager.
func NewTrigger(m *Manager) *Trigger {
	return &Trigger{registry: m}
}

// ShouldFire returns true if the slice [origin+from, origin+to) crosses an
// interval boundary counted from acceptableLatency steps in the past.
func ShouldFire(
	origin, from, to sim.VTimeInStep,
	interval, acceptableLatency sim.VTimeInStep,
) bool {
	start := origin + from - acceptableLatency
	width := to - from

	return start%interval+width >= interval
}

// Update runs a forced pass on the thread of the trigger if the slice
// crosses an interval boundary.
func (t *Trigger) Update(origin, from, to sim.VTimeInStep, _ sim.SpikeEmitter) {
	if !ShouldFire(origin, from, to,
		t.registry.Interval(), t.registry.AcceptableLatency()) {
		return
	}

	t.registry.Update(origin, t.Thread())
}

// InitBuffers prepares the registry.
func (t *Trigger) InitBuffers() error {
	return t.registry.Prepare()
}

// Calibrate recalibrates the edge types of the thread. The trigger freezes
// itself if there is nothing to update.
func (t *Trigger) Calibrate() error {
	err := t.registry.Calibrate(t.Thread())

	t.SetFrozen(!t.registry.IsValid() || !t.registry.HasConnections())

	return err
}

// Finalize drains the garbage pile of the thread.
func (t *Trigger) Finalize() {
	t.registry.Finalize(t.Thread())
}

// Teardown resets the registry. Only the instance on thread 0 does so.
func (t *Trigger) Teardown() {
	if t.Thread() != 0 {
		return
	}

	t.registry.Reset()
}
