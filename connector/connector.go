// Package connector wraps the edge storage of the host so that every change
// to a diligent edge type is reported to the update manager.
package connector

import (
	"errors"

	"github.com/sarchlab/diligent/sim"
)

// ErrNoSuchEdge is returned when no edge matches a deletion.
var ErrNoSuchEdge = errors.New("connector: no such edge")

// Storage is the raw edge storage of the host. Every call returns the
// collection that replaces coll. Connectors touched by the call are
// reallocated, so their handles change.
type Storage interface {
	// Insert adds an edge to the collection.
	Insert(
		coll sim.Collection,
		th sim.ThreadID,
		et sim.EdgeTypeID,
		e sim.Edge,
	) (sim.Collection, error)

	// Remove deletes the first edge of type et to target for which match
	// returns true. The boolean is false if nothing matched.
	Remove(
		coll sim.Collection,
		th sim.ThreadID,
		et sim.EdgeTypeID,
		target sim.NodeID,
		match func(sim.Edge) bool,
	) (sim.Collection, bool, error)
}

// Registrar is told which connector is authoritative after a change.
type Registrar interface {
	// CheckSetUp returns an error if connectors cannot be registered yet.
	// It is called before the storage is touched.
	CheckSetUp() error

	RegisterConnector(
		nw, old sim.ConnectorHandle,
		sender sim.NodeID,
		th sim.ThreadID,
		et sim.EdgeTypeID,
	) error
}

// A Model adds edges to and deletes edges from the collection of a sender.
type Model interface {
	AddConnection(
		sender sim.NodeID,
		coll sim.Collection,
		th sim.ThreadID,
		et sim.EdgeTypeID,
		e sim.Edge,
	) (sim.Collection, error)

	DeleteConnection(
		target sim.NodeID,
		coll sim.Collection,
		th sim.ThreadID,
		et sim.EdgeTypeID,
	) (sim.Collection, error)
}

// HomogeneousConnector returns the connector of edge type et in coll, or the
// null handle if there is none.
func HomogeneousConnector(
	coll sim.Collection,
	et sim.EdgeTypeID,
) sim.ConnectorHandle {
	if coll.IsHomogeneous() {
		if coll[0].EdgeType == et {
			return coll[0].Handle
		}

		return sim.ConnectorHandle{}
	}

	h, _ := coll.Find(et)

	return h
}

func anyEdge(sim.Edge) bool {
	return true
}

func isDegenerated(e sim.Edge) bool {
	d, ok := e.(sim.Degenerable)

	return ok && d.IsDegenerated()
}
