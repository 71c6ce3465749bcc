package kernel

import (
	"fmt"

	"github.com/sarchlab/diligent/connector"
	"github.com/sarchlab/diligent/sim"
)

// Properties is the state shared by all edges of one type on one thread.
type Properties interface {
	// Calibrate recomputes the constants that depend on the step duration.
	Calibrate(resolution float64)
}

// PropertiesFactory creates the properties of an edge type for one thread.
type PropertiesFactory func() Properties

type edgeModel struct {
	name     string
	id       sim.EdgeTypeID
	diligent bool
	model    connector.Model
	newProps PropertiesFactory
}

// edgeTypeTable is the per-thread table of edge type properties.
type edgeTypeTable struct {
	resolution float64
	props      []Properties
}

func (t *edgeTypeTable) Calibrate(et sim.EdgeTypeID) {
	if p := t.props[et]; p != nil {
		p.Calibrate(t.resolution)
	}
}

func (t *edgeTypeTable) Properties(et sim.EdgeTypeID) any {
	if p := t.props[et]; p != nil {
		return p
	}

	return nil
}

// RegisterEdgeModel adds an edge model. If registrar is not nil, the model
// is diligent and every change to its edges is reported to the registrar.
// newProps may be nil for models without shared properties.
func (k *Kernel) RegisterEdgeModel(
	name string,
	newProps PropertiesFactory,
	registrar connector.Registrar,
) (sim.EdgeTypeID, error) {
	if _, found := k.modelIndex[name]; found {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateModel, name)
	}

	m := &edgeModel{
		name:     name,
		id:       sim.EdgeTypeID(len(k.models)),
		newProps: newProps,
	}

	if registrar != nil {
		m.diligent = true
		m.model = connector.NewDiligentModel(k, registrar)
	} else {
		m.model = connector.NewPlainModel(k)
	}

	k.models = append(k.models, m)
	k.modelIndex[name] = m.id

	for _, td := range k.threads {
		td.table.props = append(td.table.props, m.properties())
	}

	return m.id, nil
}

// EdgeModelID returns the id of a registered edge model.
func (k *Kernel) EdgeModelID(name string) (sim.EdgeTypeID, error) {
	id, found := k.modelIndex[name]
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	return id, nil
}

// EdgeModelName returns the name of an edge type.
func (k *Kernel) EdgeModelName(et sim.EdgeTypeID) string {
	return k.models[et].name
}

// IsDiligent returns true if the edge type is tracked by the registrar.
func (k *Kernel) IsDiligent(et sim.EdgeTypeID) bool {
	return k.models[et].diligent
}

// EdgeTypes returns the edge type table of a thread.
func (k *Kernel) EdgeTypes(th sim.ThreadID) sim.EdgeTypeTable {
	return k.thread(th).table
}

func (m *edgeModel) properties() Properties {
	if m.newProps == nil {
		return nil
	}

	return m.newProps()
}
