package sim

// A Node is an element of the network that is advanced slice by slice.
type Node interface {
	// ID returns the id the host assigned to the node.
	ID() NodeID

	// Thread returns the worker thread that owns this instance.
	Thread() ThreadID

	// Bind is called by the host when the node is added.
	Bind(id NodeID, thread ThreadID)

	// Frozen returns true if the host should skip the node.
	Frozen() bool

	// Update advances the node over the steps [origin+from, origin+to).
	// Spikes produced by the node go to out.
	Update(origin, from, to VTimeInStep, out SpikeEmitter)
}

// SpikeEmitter receives the spikes a node produces during Update.
type SpikeEmitter interface {
	EmitSpike(stamp VTimeInStep, sender NodeID, multiplicity int)
}

// BufferIniter is implemented by nodes that own buffers whose size depends on
// host or registry configuration.
type BufferIniter interface {
	InitBuffers() error
}

// Calibrator is implemented by nodes that derive constants before a run.
type Calibrator interface {
	Calibrate() error
}

// Finalizer is implemented by nodes that need a flush at the end of a run.
type Finalizer interface {
	Finalize()
}

// Teardowner is implemented by nodes that release state when the host is
// reset.
type Teardowner interface {
	Teardown()
}

// SpikeHandler is implemented by nodes that accept spikes.
type SpikeHandler interface {
	HandleSpike(s SpikeEvent)
}

// NodeBase carries the identity every node needs.
type NodeBase struct {
	id     NodeID
	thread ThreadID
	frozen bool
}

// ID returns the id of the node.
func (n *NodeBase) ID() NodeID {
	return n.id
}

// Thread returns the thread that owns the node instance.
func (n *NodeBase) Thread() ThreadID {
	return n.thread
}

// Bind sets the id and the owning thread.
func (n *NodeBase) Bind(id NodeID, thread ThreadID) {
	n.id = id
	n.thread = thread
}

// Frozen returns true if the node should not be updated.
func (n *NodeBase) Frozen() bool {
	return n.frozen
}

// SetFrozen sets the frozen flag.
func (n *NodeBase) SetFrozen(frozen bool) {
	n.frozen = frozen
}
