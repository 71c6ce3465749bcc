package models

import (
	"log"
	"slices"

	"github.com/sarchlab/diligent/sim"
)

// Port identifies the recorder of one edge inside a ConnectionDataLogger.
type Port int

// NoPort is the port of an edge that does not record.
const NoPort Port = -1

type recorderData struct {
	interval sim.VTimeInStep
	times    []sim.VTimeInStep
	values   [][]float64
}

// A ConnectionDataLogger samples named variables of edges of type E. Each
// edge owns a port with its own sampling interval. A sample is taken when
// no sample exists yet or at least interval steps passed since the last
// one. An interval of 0 disables sampling.
type ConnectionDataLogger[E any] struct {
	names  []string
	access []func(E) float64
	data   []*recorderData
}

// RegisterVariable adds a variable that every sample reads from the edge.
// Variables must be registered before the first port is added.
func (l *ConnectionDataLogger[E]) RegisterVariable(
	name string,
	access func(E) float64,
) {
	if len(l.data) > 0 {
		log.Panicf("cannot register %q after ports were added", name)
	}

	l.names = append(l.names, name)
	l.access = append(l.access, access)
}

// Names returns the registered variable names.
func (l *ConnectionDataLogger[E]) Names() []string {
	return slices.Clone(l.names)
}

// AddConnection creates a port. The port does not sample until an interval
// is set.
func (l *ConnectionDataLogger[E]) AddConnection() Port {
	l.data = append(l.data, &recorderData{
		values: make([][]float64, len(l.names)),
	})

	return Port(len(l.data) - 1)
}

// NumPorts returns the number of ports.
func (l *ConnectionDataLogger[E]) NumPorts() int {
	return len(l.data)
}

// SetInterval sets the sampling interval of a port.
func (l *ConnectionDataLogger[E]) SetInterval(p Port, interval sim.VTimeInStep) {
	l.mustGet(p).interval = interval
}

// Record takes a sample of host at a step if the port is due.
func (l *ConnectionDataLogger[E]) Record(step sim.VTimeInStep, host E, p Port) {
	if p == NoPort {
		return
	}

	d := l.mustGet(p)
	if d.interval == 0 {
		return
	}

	if len(d.times) > 0 && d.times[len(d.times)-1]+d.interval > step {
		return
	}

	d.times = append(d.times, step)
	for i, f := range l.access {
		d.values[i] = append(d.values[i], f(host))
	}
}

// Times returns the sample steps of a port.
func (l *ConnectionDataLogger[E]) Times(p Port) []sim.VTimeInStep {
	return slices.Clone(l.mustGet(p).times)
}

// Values returns the samples of a variable on a port.
func (l *ConnectionDataLogger[E]) Values(p Port, name string) []float64 {
	i := slices.Index(l.names, name)
	if i < 0 {
		return nil
	}

	return slices.Clone(l.mustGet(p).values[i])
}

// Clear drops all samples. Ports and their intervals are kept.
func (l *ConnectionDataLogger[E]) Clear() {
	for _, d := range l.data {
		d.times = nil
		d.values = make([][]float64, len(l.names))
	}
}

func (l *ConnectionDataLogger[E]) mustGet(p Port) *recorderData {
	if p < 0 || int(p) >= len(l.data) {
		log.Panicf("recorder port %d out of range", p)
	}

	return l.data[p]
}
