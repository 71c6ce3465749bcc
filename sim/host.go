package sim

// Host is the simulator the update manager plugs into.
type Host interface {
	EdgeHost

	NumThreads() int
	MinDelay() VTimeInStep

	// SliceOrigin returns the first step of the slice being processed.
	SliceOrigin() VTimeInStep

	// Connector resolves a handle. It returns false if the handle is stale.
	Connector(thread ThreadID, h ConnectorHandle) (Connector, bool)

	// Disconnect removes the edge of the given type from sender to target.
	Disconnect(target, sender NodeID, thread ThreadID, et EdgeTypeID) error

	// EdgeTypes returns the edge type table of a thread.
	EdgeTypes(thread ThreadID) EdgeTypeTable

	// AddReplicatedNode adds a node that has one instance on each thread.
	AddReplicatedNode(factory func(thread ThreadID) Node) NodeID

	// InvalidateNodeBuffers makes the host call InitBuffers again before the
	// next run.
	InvalidateNodeBuffers()
}
