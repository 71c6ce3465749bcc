package sim

import "errors"

// ErrPulseNotDeliverable is returned when something tries to hand an update
// pulse to a node as if it were real traffic.
var ErrPulseNotDeliverable = errors.New("sim: update pulses cannot be delivered to nodes")

// EventKind tells what an Event travelling through an edge represents.
type EventKind int

// The kinds of events an edge can receive.
const (
	// EventKindSpike is genuine traffic emitted by the sender.
	EventKindSpike EventKind = iota

	// EventKindUpdatePulse is a housekeeping pulse injected by the update
	// manager to advance an edge that has not seen traffic recently.
	EventKindUpdatePulse
)

func (k EventKind) String() string {
	switch k {
	case EventKindSpike:
		return "spike"
	case EventKindUpdatePulse:
		return "update-pulse"
	default:
		return "unknown"
	}
}

// An Event is what a connector hands to each of its edges in Send.
//
// Edges switch on Kind. Only spikes can be turned into something a node
// accepts (see Spike), so an update pulse can never leak to a target.
type Event struct {
	Kind         EventKind
	Stamp        VTimeInStep
	Sender       NodeID
	Rport        int
	Multiplicity int
}

// MakeSpike creates a spike event emitted by sender at the given step.
func MakeSpike(stamp VTimeInStep, sender NodeID, multiplicity int) Event {
	return Event{
		Kind:         EventKindSpike,
		Stamp:        stamp,
		Sender:       sender,
		Rport:        0,
		Multiplicity: multiplicity,
	}
}

// MakeUpdatePulse creates the housekeeping pulse the update manager sends on
// behalf of sender. The receptor port is InvalidPort.
func MakeUpdatePulse(stamp VTimeInStep, sender NodeID) Event {
	return Event{
		Kind:   EventKindUpdatePulse,
		Stamp:  stamp,
		Sender: sender,
		Rport:  InvalidPort,
	}
}

// IsUpdatePulse returns true if the event is a housekeeping pulse.
func (e Event) IsUpdatePulse() bool {
	return e.Kind == EventKindUpdatePulse
}

// Spike returns the deliverable form of the event. The second return value is
// false for update pulses.
func (e Event) Spike() (SpikeEvent, bool) {
	if e.Kind != EventKindSpike {
		return SpikeEvent{}, false
	}

	return SpikeEvent{
		Stamp:        e.Stamp,
		Sender:       e.Sender,
		Multiplicity: e.Multiplicity,
		Rport:        e.Rport,
	}, true
}

// SpikeEvent is a spike on its way to a target node. It is the only event
// type a node can be handed.
type SpikeEvent struct {
	Stamp        VTimeInStep
	Sender       NodeID
	Target       NodeID
	Multiplicity int
	Rport        int
	Weight       float64
	Delay        VTimeInStep
}

// WithDelivery returns a copy of the spike addressed to target with the
// edge's weight, delay and receptor port.
func (s SpikeEvent) WithDelivery(
	target NodeID,
	weight float64,
	delay VTimeInStep,
	rport int,
) SpikeEvent {
	s.Target = target
	s.Weight = weight
	s.Delay = delay
	s.Rport = rport

	return s
}

// ArrivalStep returns the step at which the spike reaches its target.
func (s SpikeEvent) ArrivalStep() VTimeInStep {
	return s.Stamp + s.Delay
}
