package updating

import "github.com/sarchlab/diligent/sim"

var (
	// HookPosForcedPass fires after every update pass that sent pulses.
	// The item is a ForcedPass.
	HookPosForcedPass = &sim.HookPos{Name: "ForcedPass"}

	// HookPosGarbageCollected fires after a queued edge has been removed.
	// The item is a GarbageEntry.
	HookPosGarbageCollected = &sim.HookPos{Name: "GarbageCollected"}

	// HookPosConnectorRegistered fires whenever the live set of a thread
	// changes. The item is a Registration.
	HookPosConnectorRegistered = &sim.HookPos{Name: "ConnectorRegistered"}
)

// ForcedPass summarizes one update pass on one thread.
type ForcedPass struct {
	Thread  sim.ThreadID
	Time    sim.VTimeInStep
	Live    int
	Touched int
}

// Registration describes a change of the authoritative connector of a
// sender and edge type.
type Registration struct {
	Thread   sim.ThreadID
	EdgeType sim.EdgeTypeID
	Sender   sim.NodeID
	New      sim.ConnectorHandle
	Old      sim.ConnectorHandle
}

// GarbageEntry is an edge that asked to be removed.
type GarbageEntry struct {
	Target   sim.NodeID
	Sender   sim.NodeID
	Thread   sim.ThreadID
	EdgeType sim.EdgeTypeID
}

// Entry is a connector tracked by the registry.
type Entry struct {
	Handle   sim.ConnectorHandle
	Sender   sim.NodeID
	EdgeType sim.EdgeTypeID
}
