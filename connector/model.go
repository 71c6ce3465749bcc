package connector

import (
	"fmt"

	"github.com/sarchlab/diligent/sim"
)

// PlainModel is the model of edge types that are only advanced by spikes.
type PlainModel struct {
	storage Storage
}

// NewPlainModel creates a PlainModel.
func NewPlainModel(storage Storage) *PlainModel {
	return &PlainModel{storage: storage}
}

// AddConnection adds an edge.
func (m *PlainModel) AddConnection(
	_ sim.NodeID,
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
	e sim.Edge,
) (sim.Collection, error) {
	return m.storage.Insert(coll, th, et, e)
}

// DeleteConnection deletes the first edge to target.
func (m *PlainModel) DeleteConnection(
	target sim.NodeID,
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
) (sim.Collection, error) {
	nc, found, err := m.storage.Remove(coll, th, et, target, anyEdge)
	if err != nil {
		return coll, err
	}

	if !found {
		return coll, fmt.Errorf("%w: to %d of type %d", ErrNoSuchEdge, target, et)
	}

	return nc, nil
}

// DiligentModel is the model of edge types that the update manager keeps
// advancing. After every change it registers the connector that now holds
// the edges of its type.
type DiligentModel struct {
	storage   Storage
	registrar Registrar
}

// NewDiligentModel creates a DiligentModel.
func NewDiligentModel(storage Storage, registrar Registrar) *DiligentModel {
	return &DiligentModel{
		storage:   storage,
		registrar: registrar,
	}
}

// AddConnection adds an edge and registers the connector that holds it. If
// the registrar is not set up, coll is returned unchanged. A registration
// error after the insert still returns the new collection, since the
// connectors of coll were reallocated.
func (m *DiligentModel) AddConnection(
	sender sim.NodeID,
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
	e sim.Edge,
) (sim.Collection, error) {
	if err := m.registrar.CheckSetUp(); err != nil {
		return coll, err
	}

	old := HomogeneousConnector(coll, et)

	nc, err := m.storage.Insert(coll, th, et, e)
	if err != nil {
		return coll, err
	}

	nw := HomogeneousConnector(nc, et)

	err = m.registrar.RegisterConnector(nw, old, sender, th, et)
	if err != nil {
		return nc, err
	}

	return nc, nil
}

// DeleteConnection deletes an edge to target. A degenerated edge is removed
// in preference to a live one.
func (m *DiligentModel) DeleteConnection(
	target sim.NodeID,
	coll sim.Collection,
	th sim.ThreadID,
	et sim.EdgeTypeID,
) (sim.Collection, error) {
	if err := m.registrar.CheckSetUp(); err != nil {
		return coll, err
	}

	old := HomogeneousConnector(coll, et)

	nc, found, err := m.storage.Remove(coll, th, et, target, isDegenerated)
	if err != nil {
		return coll, err
	}

	if !found {
		nc, found, err = m.storage.Remove(coll, th, et, target, anyEdge)
		if err != nil {
			return coll, err
		}
	}

	if !found {
		return coll, fmt.Errorf("%w: to %d of type %d", ErrNoSuchEdge, target, et)
	}

	nw := HomogeneousConnector(nc, et)

	err = m.registrar.RegisterConnector(nw, old, sim.InvalidNodeID, th, et)
	if err != nil {
		return nc, err
	}

	return nc, nil
}
