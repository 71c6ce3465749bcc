package models

import (
	"log"

	"github.com/sarchlab/diligent/sim"
)

// A StaticEdge passes spikes on with a fixed weight and delay.
type StaticEdge struct {
	target sim.NodeID
	weight float64
	delay  sim.VTimeInStep
}

// NewStaticEdge creates a static edge to target.
func NewStaticEdge(
	target sim.NodeID,
	weight float64,
	delay sim.VTimeInStep,
) *StaticEdge {
	if delay < 1 {
		log.Panicf("static delay must be at least 1, got %d", delay)
	}

	return &StaticEdge{target: target, weight: weight, delay: delay}
}

// Target returns the receiving node.
func (e *StaticEdge) Target() sim.NodeID {
	return e.target
}

// Delay returns the transmission delay.
func (e *StaticEdge) Delay() sim.VTimeInStep {
	return e.delay
}

// Send delivers real spikes. Update pulses are ignored.
func (e *StaticEdge) Send(ev sim.Event, ctx sim.SendContext) {
	s, ok := ev.Spike()
	if !ok {
		return
	}

	err := ctx.Host.Deliver(s.WithDelivery(e.target, e.weight, e.delay, 0),
		ctx.Thread)
	if err != nil {
		log.Panic(err)
	}
}
