package sim

import "fmt"

// An Edge connects one sender to one target.
type Edge interface {
	// Target returns the id of the receiving node.
	Target() NodeID

	// Send advances the edge to the stamp of the event. Real spikes are
	// delivered to the target through ctx.Host. Update pulses only advance
	// the edge state.
	Send(ev Event, ctx SendContext)
}

// Degenerable is implemented by edges that can retire themselves. Once an
// edge has reported itself as degenerated it keeps doing so until it is
// removed.
type Degenerable interface {
	IsDegenerated() bool
}

// SendContext is what an edge can see while it is handling an event.
type SendContext struct {
	Thread     ThreadID
	EdgeType   EdgeTypeID
	LastSpike  VTimeInStep
	Properties any
	Host       EdgeHost
	Service    UpdateService
}

// EdgeHost is the part of the host an edge can use while sending.
type EdgeHost interface {
	// Node returns the instance of the node owned by the thread.
	Node(id NodeID, thread ThreadID) (Node, bool)

	// Deliver hands a spike to its target.
	Deliver(s SpikeEvent, thread ThreadID) error
}

// UpdateService is the part of the update manager an edge can use.
type UpdateService interface {
	TriggerGarbageCollector(target, sender NodeID, thread ThreadID, et EdgeTypeID)
	Origin() VTimeInStep
	Horizon() VTimeInStep
	MaxLatency() VTimeInStep
}

// A Connector is a homogeneous group of edges that share one sender and one
// edge type on one thread.
type Connector interface {
	EdgeType() EdgeTypeID

	// LastSpike returns the stamp of the last event that went through the
	// connector.
	LastSpike() VTimeInStep

	Len() int

	// Send hands the event to every edge in the connector.
	Send(ev Event, thread ThreadID, table EdgeTypeTable)
}

// EdgeTypeTable holds the per-edge-type properties of one thread.
type EdgeTypeTable interface {
	// Calibrate recomputes the time dependent constants of an edge type.
	Calibrate(et EdgeTypeID)

	// Properties returns the shared properties of an edge type.
	Properties(et EdgeTypeID) any
}

// ConnectorHandle is a generation checked reference to a connector owned by
// the host. The zero value is the null handle.
type ConnectorHandle struct {
	Index      uint32
	Generation uint32
}

// IsNull returns true for the null handle.
func (h ConnectorHandle) IsNull() bool {
	return h.Generation == 0
}

// Less orders handles by index, then by generation.
func (h ConnectorHandle) Less(o ConnectorHandle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}

	return h.Generation < o.Generation
}

func (h ConnectorHandle) String() string {
	if h.IsNull() {
		return "connector(null)"
	}

	return fmt.Sprintf("connector(%d@%d)", h.Index, h.Generation)
}

// ConnectorRef names one connector in a collection.
type ConnectorRef struct {
	Handle   ConnectorHandle
	EdgeType EdgeTypeID
}

// Collection is the set of connectors a sender owns on one thread. A
// collection with exactly one member is homogeneous. Otherwise it is
// heterogeneous and members are told apart by edge type.
type Collection []ConnectorRef

// IsHomogeneous returns true if the collection holds a single connector.
func (c Collection) IsHomogeneous() bool {
	return len(c) == 1
}

// Find returns the connector of the given edge type.
func (c Collection) Find(et EdgeTypeID) (ConnectorHandle, bool) {
	for _, ref := range c {
		if ref.EdgeType == et {
			return ref.Handle, true
		}
	}

	return ConnectorHandle{}, false
}
