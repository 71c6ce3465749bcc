package models

import (
	"log"
	"math"

	"github.com/sarchlab/diligent/ringbuffer"
	"github.com/sarchlab/diligent/sim"
)

// ProbeProperties are shared by all probe edges of one thread.
type ProbeProperties struct {
	// WeightUpdateTime is the period of the weight update, in ms.
	WeightUpdateTime float64

	// TraceID is the trace of the target the edges follow. The receptor
	// port of the edge is added to it.
	TraceID int

	// Logger samples the edges.
	Logger *ConnectionDataLogger[*ProbeEdge]

	resolution        float64
	weightUpdateSteps sim.VTimeInStep
}

// NewProbeProperties creates properties with a 100 ms weight update period
// and a logger that samples the weight and the last trace value.
func NewProbeProperties() *ProbeProperties {
	l := &ConnectionDataLogger[*ProbeEdge]{}
	l.RegisterVariable("weight", func(e *ProbeEdge) float64 {
		return e.weight
	})
	l.RegisterVariable("trace", func(e *ProbeEdge) float64 {
		return e.lastTrace
	})

	return &ProbeProperties{
		WeightUpdateTime: 100.0,
		Logger:           l,
	}
}

// Calibrate derives the weight update period in steps.
func (p *ProbeProperties) Calibrate(resolution float64) {
	p.resolution = resolution
	p.weightUpdateSteps = max(1,
		sim.VTimeInStep(math.Round(p.WeightUpdateTime/resolution)))
}

// WeightUpdateSteps returns the weight update period in steps. It is 0
// before calibration.
func (p *ProbeProperties) WeightUpdateSteps() sim.VTimeInStep {
	return p.weightUpdateSteps
}

// A ProbeEdge follows a trace of its target between events and records what
// it reads. Real spikes are passed on with the edge weight. The edge retires
// once an event at or after its retire step reaches it.
type ProbeEdge struct {
	target         sim.NodeID
	weight         float64
	delay          sim.VTimeInStep
	rport          int
	retireAt       sim.VTimeInStep
	recordInterval sim.VTimeInStep

	tWeight     sim.VTimeInStep
	lastTrace   float64
	pulses      int
	spikes      int
	degenerated bool
	port        Port
	hasPort     bool

	traceTimes  []sim.VTimeInStep
	traceValues []float64
}

// Target returns the receiving node.
func (e *ProbeEdge) Target() sim.NodeID {
	return e.target
}

// Delay returns the transmission delay.
func (e *ProbeEdge) Delay() sim.VTimeInStep {
	return e.delay
}

// Weight returns the weight used for delivered spikes.
func (e *ProbeEdge) Weight() float64 {
	return e.weight
}

// IsDegenerated returns true once the edge has retired.
func (e *ProbeEdge) IsDegenerated() bool {
	return e.degenerated
}

// Pulses returns the number of update pulses the edge handled.
func (e *ProbeEdge) Pulses() int {
	return e.pulses
}

// Spikes returns the number of real spikes the edge handled.
func (e *ProbeEdge) Spikes() int {
	return e.spikes
}

// LastWeightUpdate returns the step of the last weight update.
func (e *ProbeEdge) LastWeightUpdate() sim.VTimeInStep {
	return e.tWeight
}

// Port returns the logger port of the edge. It is NoPort until the edge
// handled its first event.
func (e *ProbeEdge) Port() Port {
	if !e.hasPort {
		return NoPort
	}

	return e.port
}

// TraceTimes returns the steps at which the trace was read.
func (e *ProbeEdge) TraceTimes() []sim.VTimeInStep {
	return e.traceTimes
}

// TraceValues returns the trace values read, one per entry of TraceTimes.
func (e *ProbeEdge) TraceValues() []float64 {
	return e.traceValues
}

// Send follows the target trace up to the stamp of the event and delivers
// real spikes.
func (e *ProbeEdge) Send(ev sim.Event, ctx sim.SendContext) {
	p, ok := ctx.Properties.(*ProbeProperties)
	if !ok {
		log.Panicf("probe edge used with properties of type %T", ctx.Properties)
	}

	if p.weightUpdateSteps == 0 {
		log.Panic("probe properties are not calibrated")
	}

	e.attach(p)

	if ev.IsUpdatePulse() {
		e.pulses++
	} else {
		e.spikes++
	}

	e.follow(ev.Stamp, ctx, p)

	if s, isSpike := ev.Spike(); isSpike && e.weight > 0 {
		err := ctx.Host.Deliver(
			s.WithDelivery(e.target, e.weight, e.delay, e.rport), ctx.Thread)
		if err != nil {
			log.Panic(err)
		}
	}

	e.retireIfDue(ev, ctx)
}

func (e *ProbeEdge) attach(p *ProbeProperties) {
	if e.hasPort || p.Logger == nil {
		return
	}

	e.port = p.Logger.AddConnection()
	e.hasPort = true
	p.Logger.SetInterval(e.port, e.recordInterval)
}

func (e *ProbeEdge) follow(
	tTo sim.VTimeInStep,
	ctx sim.SendContext,
	p *ProbeProperties,
) {
	tFrom := ctx.LastSpike
	if tTo <= tFrom {
		return
	}

	trace := e.openTrace(tFrom, ctx, p)
	step := p.weightUpdateSteps

	next := e.tWeight + step
	if next <= tFrom {
		next = tFrom - tFrom%step + step
	}

	for ; next <= tTo; next += step {
		e.readTrace(tFrom, next, trace)
		e.tWeight = next
		if p.Logger != nil {
			p.Logger.Record(next, e, e.port)
		}

		tFrom = next
	}

	if tTo > tFrom {
		e.readTrace(tFrom, tTo, trace)
	}
}

func (e *ProbeEdge) openTrace(
	from sim.VTimeInStep,
	ctx sim.SendContext,
	p *ProbeProperties,
) *ringbuffer.Iterator[float64] {
	n, found := ctx.Host.Node(e.target, ctx.Thread)
	if !found {
		log.Panicf("probe target %d not found on thread %d",
			e.target, ctx.Thread)
	}

	src, ok := n.(TraceSource)
	if !ok {
		log.Panicf("probe target %d does not expose traces", e.target)
	}

	return src.Read(from, p.TraceID+e.rport)
}

func (e *ProbeEdge) readTrace(
	from, to sim.VTimeInStep,
	trace *ringbuffer.Iterator[float64],
) {
	for t := from; t < to; t++ {
		e.lastTrace = trace.Value()
		e.traceTimes = append(e.traceTimes, t)
		e.traceValues = append(e.traceValues, e.lastTrace)
		trace.Next()
	}
}

func (e *ProbeEdge) retireIfDue(ev sim.Event, ctx sim.SendContext) {
	if e.retireAt <= 0 || e.degenerated || ev.Stamp < e.retireAt {
		return
	}

	e.degenerated = true

	if ctx.Service != nil {
		ctx.Service.TriggerGarbageCollector(
			e.target, ev.Sender, ctx.Thread, ctx.EdgeType)
	}
}

// ProbeEdgeBuilder builds probe edges.
type ProbeEdgeBuilder struct {
	weight         float64
	delay          sim.VTimeInStep
	rport          int
	retireAt       sim.VTimeInStep
	recordInterval sim.VTimeInStep
}

// MakeProbeEdgeBuilder returns a builder for edges with weight 1 and delay 1
// that never retire.
func MakeProbeEdgeBuilder() ProbeEdgeBuilder {
	return ProbeEdgeBuilder{
		weight: 1.0,
		delay:  1,
	}
}

// WithWeight sets the weight of delivered spikes. Edges with a weight of 0
// or less do not deliver.
func (b ProbeEdgeBuilder) WithWeight(w float64) ProbeEdgeBuilder {
	b.weight = w
	return b
}

// WithDelay sets the transmission delay.
func (b ProbeEdgeBuilder) WithDelay(d sim.VTimeInStep) ProbeEdgeBuilder {
	b.delay = d
	return b
}

// WithRport sets the receptor port.
func (b ProbeEdgeBuilder) WithRport(rport int) ProbeEdgeBuilder {
	b.rport = rport
	return b
}

// WithRetireAt makes the edge retire at the first event at or after step.
// A step of 0 means never.
func (b ProbeEdgeBuilder) WithRetireAt(step sim.VTimeInStep) ProbeEdgeBuilder {
	b.retireAt = step
	return b
}

// WithRecordInterval sets the sampling interval of the edge logger. An
// interval of 0 disables sampling.
func (b ProbeEdgeBuilder) WithRecordInterval(
	interval sim.VTimeInStep,
) ProbeEdgeBuilder {
	b.recordInterval = interval
	return b
}

// Build creates a probe edge to target.
func (b ProbeEdgeBuilder) Build(target sim.NodeID) *ProbeEdge {
	if b.delay < 1 {
		log.Panicf("probe delay must be at least 1, got %d", b.delay)
	}

	if b.rport < 0 {
		log.Panicf("probe receptor port must not be negative, got %d", b.rport)
	}

	return &ProbeEdge{
		target:         target,
		weight:         b.weight,
		delay:          b.delay,
		rport:          b.rport,
		retireAt:       b.retireAt,
		recordInterval: b.recordInterval,
	}
}
