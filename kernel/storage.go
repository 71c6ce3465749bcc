package kernel

import (
	"fmt"
	"slices"

	"github.com/sarchlab/diligent/sim"
)

// homConnector holds the edges of one sender and one edge type on one
// thread.
type homConnector struct {
	edgeType  sim.EdgeTypeID
	edges     []sim.Edge
	lastSpike sim.VTimeInStep

	host    sim.EdgeHost
	service sim.UpdateService
}

func (c *homConnector) EdgeType() sim.EdgeTypeID {
	return c.edgeType
}

func (c *homConnector) LastSpike() sim.VTimeInStep {
	return c.lastSpike
}

func (c *homConnector) Len() int {
	return len(c.edges)
}

func (c *homConnector) Send(
	ev sim.Event,
	th sim.ThreadID,
	table sim.EdgeTypeTable,
) {
	ctx := sim.SendContext{
		Thread:     th,
		EdgeType:   c.edgeType,
		LastSpike:  c.lastSpike,
		Properties: table.Properties(c.edgeType),
		Host:       c.host,
		Service:    c.service,
	}

	for _, e := range c.edges {
		e.Send(ev, ctx)
	}

	c.lastSpike = ev.Stamp
}

func (c *homConnector) with(edges []sim.Edge) *homConnector {
	return &homConnector{
		edgeType:  c.edgeType,
		edges:     edges,
		lastSpike: c.lastSpike,
		host:      c.host,
		service:   c.service,
	}
}

type arenaSlot struct {
	generation uint32
	conn       *homConnector
}

// arena owns the connectors of a thread. A released slot bumps its
// generation so that old handles stop resolving.
type arena struct {
	slots []arenaSlot
	free  []uint32
}

func (a *arena) alloc(c *homConnector) sim.ConnectorHandle {
	if len(a.free) > 0 {
		idx := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		a.slots[idx].conn = c

		return sim.ConnectorHandle{Index: idx, Generation: a.slots[idx].generation}
	}

	idx := uint32(len(a.slots))
	a.slots = append(a.slots, arenaSlot{generation: 1, conn: c})

	return sim.ConnectorHandle{Index: idx, Generation: 1}
}

func (a *arena) get(h sim.ConnectorHandle) (*homConnector, bool) {
	if h.IsNull() || int(h.Index) >= len(a.slots) {
		return nil, false
	}

	s := a.slots[h.Index]
	if s.generation != h.Generation || s.conn == nil {
		return nil, false
	}

	return s.conn, true
}

func (a *arena) release(h sim.ConnectorHandle) {
	if _, ok := a.get(h); !ok {
		return
	}

	a.slots[h.Index].conn = nil
	a.slots[h.Index].generation++
	a.free = append(a.free, h.Index)
}

func (a *arena) live() int {
	return len(a.slots) - len(a.free)
}

// Insert adds an edge to a collection. The connector of the edge type is
// replaced by a new one.
func (k *Kernel) Insert(
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
	e sim.Edge,
) (sim.Collection, error) {
	td := k.thread(th)
	nc := slices.Clone(coll)

	for i, ref := range nc {
		if ref.EdgeType != et {
			continue
		}

		old, ok := td.arena.get(ref.Handle)
		if !ok {
			return coll, fmt.Errorf("%w: %s on thread %d",
				ErrDanglingConnector, ref.Handle, th)
		}

		edges := append(slices.Clone(old.edges), e)
		td.arena.release(ref.Handle)
		nc[i].Handle = td.arena.alloc(old.with(edges))

		return nc, nil
	}

	conn := &homConnector{
		edgeType:  et,
		edges:     []sim.Edge{e},
		lastSpike: k.CurrentTime(),
		host:      k,
		service:   k.service,
	}

	nc = append(nc, sim.ConnectorRef{Handle: td.arena.alloc(conn), EdgeType: et})

	return nc, nil
}

// Remove deletes the first matching edge to target from a collection. The
// connector of the edge type is replaced by a new one, or dropped if it
// becomes empty.
func (k *Kernel) Remove(
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
	target sim.NodeID,
	match func(sim.Edge) bool,
) (sim.Collection, bool, error) {
	td := k.thread(th)

	i := slices.IndexFunc(coll, func(ref sim.ConnectorRef) bool {
		return ref.EdgeType == et
	})
	if i < 0 {
		return coll, false, nil
	}

	ref := coll[i]
	old, ok := td.arena.get(ref.Handle)
	if !ok {
		return coll, false, fmt.Errorf("%w: %s on thread %d",
			ErrDanglingConnector, ref.Handle, th)
	}

	j := slices.IndexFunc(old.edges, func(e sim.Edge) bool {
		return e.Target() == target && match(e)
	})
	if j < 0 {
		return coll, false, nil
	}

	edges := slices.Delete(slices.Clone(old.edges), j, j+1)
	td.arena.release(ref.Handle)

	nc := slices.Clone(coll)
	if len(edges) == 0 {
		return slices.Delete(nc, i, i+1), true, nil
	}

	nc[i].Handle = td.arena.alloc(old.with(edges))

	return nc, true, nil
}

// Connector resolves a handle on a thread.
func (k *Kernel) Connector(
	th sim.ThreadID,
	h sim.ConnectorHandle,
) (sim.Connector, bool) {
	c, ok := k.thread(th).arena.get(h)
	if !ok {
		return nil, false
	}

	return c, true
}
