// Package kernel is a slice based spiking network host.
//
// Nodes are placed on worker threads round robin. Edges live on the thread
// of their target and are grouped per sender into connectors. Connectors are
// reallocated on every structural change and addressed through generation
// checked handles, so stale references are detected.
package kernel

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/diligent/sim"
)

// DelayedEdge is implemented by edges that deliver spikes with a delay.
type DelayedEdge interface {
	Delay() sim.VTimeInStep
}

type nodeEntry struct {
	id         sim.NodeID
	replicated bool
	thread     sim.ThreadID
	instances  []sim.Node
}

type localNode struct {
	node  sim.Node
	ready bool
}

type threadData struct {
	id          sim.ThreadID
	nodes       []*localNode
	collections map[sim.NodeID]sim.Collection
	arena       arena
	table       *edgeTypeTable
	outbox      []sim.Event
}

func newThreadData(id sim.ThreadID, resolution float64) *threadData {
	return &threadData{
		id:          id,
		collections: make(map[sim.NodeID]sim.Collection),
		table:       &edgeTypeTable{resolution: resolution},
	}
}

// EmitSpike queues a spike produced on the thread.
func (td *threadData) EmitSpike(
	stamp sim.VTimeInStep,
	sender sim.NodeID,
	multiplicity int,
) {
	td.outbox = append(td.outbox, sim.MakeSpike(stamp, sender, multiplicity))
}

// Kernel is the host simulator.
type Kernel struct {
	sim.HookableBase

	numThreads int
	minDelay   sim.VTimeInStep
	sliceWidth sim.VTimeInStep
	resolution float64
	logger     *slog.Logger

	nodes   map[sim.NodeID]*nodeEntry
	nextID  sim.NodeID
	threads []*threadData

	models     []*edgeModel
	modelIndex map[string]sim.EdgeTypeID

	service sim.UpdateService

	now     atomic.Int64
	origin  sim.VTimeInStep
	running atomic.Bool

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	singleRunLock sync.Mutex
}

// SetUpdateService sets the service edges use to read the trace window and
// to request their own removal.
func (k *Kernel) SetUpdateService(s sim.UpdateService) {
	k.service = s
}

// NumThreads returns the number of worker threads.
func (k *Kernel) NumThreads() int {
	return k.numThreads
}

// MinDelay returns the smallest delay an edge may have.
func (k *Kernel) MinDelay() sim.VTimeInStep {
	return k.minDelay
}

// SliceWidth returns the number of steps of a full slice.
func (k *Kernel) SliceWidth() sim.VTimeInStep {
	return k.sliceWidth
}

// Resolution returns the duration of one step in milliseconds.
func (k *Kernel) Resolution() float64 {
	return k.resolution
}

// SliceOrigin returns the first step of the slice being processed.
func (k *Kernel) SliceOrigin() sim.VTimeInStep {
	return k.origin
}

// CurrentTime returns the number of steps simulated so far.
func (k *Kernel) CurrentTime() sim.VTimeInStep {
	return sim.VTimeInStep(k.now.Load())
}

// IsRunning returns true while Simulate is executing.
func (k *Kernel) IsRunning() bool {
	return k.running.Load()
}

// AddNode adds a node. The node is placed on thread id mod threads.
func (k *Kernel) AddNode(n sim.Node) sim.NodeID {
	id := k.nextID
	k.nextID++

	th := sim.ThreadID(int(id) % k.numThreads)
	n.Bind(id, th)

	entry := &nodeEntry{
		id:        id,
		thread:    th,
		instances: make([]sim.Node, k.numThreads),
	}
	entry.instances[th] = n

	k.nodes[id] = entry
	k.threads[th].nodes = append(k.threads[th].nodes, &localNode{node: n})

	return id
}

// AddReplicatedNode adds a node with one instance per thread. All instances
// share one id.
func (k *Kernel) AddReplicatedNode(
	factory func(th sim.ThreadID) sim.Node,
) sim.NodeID {
	id := k.nextID
	k.nextID++

	entry := &nodeEntry{
		id:         id,
		replicated: true,
		instances:  make([]sim.Node, k.numThreads),
	}

	for i, td := range k.threads {
		th := sim.ThreadID(i)
		n := factory(th)
		n.Bind(id, th)

		entry.instances[i] = n
		td.nodes = append(td.nodes, &localNode{node: n})
	}

	k.nodes[id] = entry

	return id
}

// Node returns the instance of a node on a thread.
func (k *Kernel) Node(id sim.NodeID, th sim.ThreadID) (sim.Node, bool) {
	entry, found := k.nodes[id]
	if !found || th < 0 || int(th) >= k.numThreads {
		return nil, false
	}

	n := entry.instances[th]

	return n, n != nil
}

// NodeByID returns the instance that owns a node. Replicated nodes return
// their thread 0 instance.
func (k *Kernel) NodeByID(id sim.NodeID) (sim.Node, bool) {
	entry, found := k.nodes[id]
	if !found {
		return nil, false
	}

	if entry.replicated {
		return entry.instances[0], true
	}

	return entry.instances[entry.thread], true
}

// NodeIDs returns the ids of all nodes in increasing order.
func (k *Kernel) NodeIDs() []sim.NodeID {
	ids := make([]sim.NodeID, 0, len(k.nodes))
	for id := range k.nodes {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// InvalidateNodeBuffers makes the kernel call InitBuffers on every node
// before the next run.
func (k *Kernel) InvalidateNodeBuffers() {
	for _, td := range k.threads {
		for _, ln := range td.nodes {
			ln.ready = false
		}
	}
}

// Deliver hands a spike to its target on a thread.
func (k *Kernel) Deliver(s sim.SpikeEvent, th sim.ThreadID) error {
	n, ok := k.Node(s.Target, th)
	if !ok {
		return fmt.Errorf("%w: %d on thread %d", ErrUnknownNode, s.Target, th)
	}

	if h, ok := n.(sim.SpikeHandler); ok {
		h.HandleSpike(s)
	}

	return nil
}

// Stimulate hands an external event straight to a node, with no delay.
func (k *Kernel) Stimulate(target sim.NodeID, ev sim.Event) error {
	s, ok := ev.Spike()
	if !ok {
		return sim.ErrPulseNotDeliverable
	}

	entry, found := k.nodes[target]
	if !found || entry.replicated {
		return fmt.Errorf("%w: %d", ErrUnknownNode, target)
	}

	return k.Deliver(s.WithDelivery(target, 1.0, 0, s.Rport), entry.thread)
}

// Connect adds edge e from sender to the target of e using the named model.
// The edge is stored on the thread of its target.
func (k *Kernel) Connect(sender sim.NodeID, model string, e sim.Edge) error {
	et, err := k.EdgeModelID(model)
	if err != nil {
		return err
	}

	if _, found := k.nodes[sender]; !found {
		return fmt.Errorf("%w: sender %d", ErrUnknownNode, sender)
	}

	target, found := k.nodes[e.Target()]
	if !found || target.replicated {
		return fmt.Errorf("%w: target %d", ErrUnknownNode, e.Target())
	}

	if d, ok := e.(DelayedEdge); ok && d.Delay() < k.minDelay {
		return fmt.Errorf("%w: %d < %d", ErrInvalidDelay, d.Delay(), k.minDelay)
	}

	td := k.threads[target.thread]
	coll := td.collections[sender]

	nc, err := k.models[et].model.AddConnection(sender, coll, td.id, et, e)
	k.storeCollection(td, sender, nc)

	return err
}

// Disconnect removes one edge of type et from sender to target on a
// thread.
func (k *Kernel) Disconnect(
	target, sender sim.NodeID,
	th sim.ThreadID,
	et sim.EdgeTypeID,
) error {
	td := k.thread(th)

	coll, found := td.collections[sender]
	if !found {
		return fmt.Errorf("%w: from %d to %d", ErrNoSuchEdge, sender, target)
	}

	nc, err := k.models[et].model.DeleteConnection(target, coll, th, et)
	k.storeCollection(td, sender, nc)

	return err
}

// DisconnectByName removes one edge of the named model from sender to
// target.
func (k *Kernel) DisconnectByName(target, sender sim.NodeID, model string) error {
	et, err := k.EdgeModelID(model)
	if err != nil {
		return err
	}

	entry, found := k.nodes[target]
	if !found || entry.replicated {
		return fmt.Errorf("%w: target %d", ErrUnknownNode, target)
	}

	return k.Disconnect(target, sender, entry.thread, et)
}

func (k *Kernel) storeCollection(
	td *threadData,
	sender sim.NodeID,
	coll sim.Collection,
) {
	if len(coll) == 0 {
		delete(td.collections, sender)
		return
	}

	td.collections[sender] = coll
}

// Connection describes one edge.
type Connection struct {
	Sender   sim.NodeID
	Target   sim.NodeID
	Thread   sim.ThreadID
	EdgeType sim.EdgeTypeID
	Edge     sim.Edge
}

// Connections lists every edge, ordered by thread and sender. It must not
// be called while a slice is running.
func (k *Kernel) Connections() []Connection {
	var out []Connection

	for _, td := range k.threads {
		senders := make([]sim.NodeID, 0, len(td.collections))
		for s := range td.collections {
			senders = append(senders, s)
		}
		slices.Sort(senders)

		for _, s := range senders {
			for _, ref := range td.collections[s] {
				c, ok := td.arena.get(ref.Handle)
				if !ok {
					continue
				}

				for _, e := range c.edges {
					out = append(out, Connection{
						Sender:   s,
						Target:   e.Target(),
						Thread:   td.id,
						EdgeType: ref.EdgeType,
						Edge:     e,
					})
				}
			}
		}
	}

	return out
}

// Collection returns the collection of a sender on a thread.
func (k *Kernel) Collection(sender sim.NodeID, th sim.ThreadID) sim.Collection {
	return slices.Clone(k.thread(th).collections[sender])
}

// NumConnectors returns the number of live connectors on a thread.
func (k *Kernel) NumConnectors(th sim.ThreadID) int {
	return k.thread(th).arena.live()
}

func (k *Kernel) thread(th sim.ThreadID) *threadData {
	if th < 0 || int(th) >= k.numThreads {
		panic(fmt.Sprintf("kernel: thread %d out of range", th))
	}

	return k.threads[th]
}
