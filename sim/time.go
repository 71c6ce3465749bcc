package sim

// VTimeInStep is the simulated time measured in integer simulation steps.
type VTimeInStep int64

// ThreadID identifies one worker of the host. Each worker owns its own
// partition of nodes, edges and registry state.
type ThreadID int

// NodeID identifies a node in the host. The zero value never names a node.
type NodeID uint64

// InvalidNodeID is the node id that never names a node.
const InvalidNodeID NodeID = 0

// EdgeTypeID identifies an edge model registered with the host.
type EdgeTypeID int

// InvalidPort is the receptor port carried by update pulses. No real event
// is ever addressed to it.
const InvalidPort = -1
