package models

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/diligent/kernel"
	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

var _ = Describe("ProbeProperties", func() {
	It("should convert the weight update time into steps", func() {
		p := NewProbeProperties()
		Expect(p.WeightUpdateSteps()).To(Equal(sim.VTimeInStep(0)))

		p.Calibrate(0.5)
		Expect(p.WeightUpdateSteps()).To(Equal(sim.VTimeInStep(200)))

		p.WeightUpdateTime = 0.1
		p.Calibrate(1.0)
		Expect(p.WeightUpdateSteps()).To(Equal(sim.VTimeInStep(1)))
	})
})

var _ = Describe("ProbeEdge", func() {
	var (
		host   *fakeHost
		target *PulseTraceNode
		props  *ProbeProperties
	)

	BeforeEach(func() {
		target = NewPulseTraceNode(fixedLatency(50), 8)
		target.Bind(2, 0)
		Expect(target.InitBuffers()).To(Succeed())
		target.Update(0, 0, 50, nil)

		host = &fakeHost{nodes: map[sim.NodeID]sim.Node{2: target}}
		props = NewProbeProperties()
		props.Calibrate(1.0)
	})

	send := func(e *ProbeEdge, ev sim.Event, last sim.VTimeInStep) {
		e.Send(ev, sim.SendContext{
			LastSpike:  last,
			Properties: props,
			Host:       host,
		})
	}

	It("should panic on foreign properties", func() {
		e := MakeProbeEdgeBuilder().Build(2)

		Expect(func() {
			e.Send(sim.MakeSpike(3, 1, 1), sim.SendContext{Host: host})
		}).To(Panic())
	})

	It("should panic before calibration", func() {
		e := MakeProbeEdgeBuilder().Build(2)
		props = NewProbeProperties()

		Expect(func() { send(e, sim.MakeSpike(3, 1, 1), 0) }).To(Panic())
	})

	It("should read the trace since the last spike", func() {
		e := MakeProbeEdgeBuilder().Build(2)

		send(e, sim.MakeSpike(10, 1, 1), 5)

		Expect(e.TraceTimes()).To(Equal(
			[]sim.VTimeInStep{5, 6, 7, 8, 9}))
		Expect(e.TraceValues()).To(Equal([]float64{0, 0, 0, 1, 0}))
		Expect(e.Spikes()).To(Equal(1))
	})

	It("should not read anything for an event at the last spike", func() {
		e := MakeProbeEdgeBuilder().Build(2)

		send(e, sim.MakeUpdatePulse(5, 1), 5)

		Expect(e.TraceTimes()).To(BeEmpty())
		Expect(e.Pulses()).To(Equal(1))
	})

	It("should deliver spikes with its weight and delay", func() {
		e := MakeProbeEdgeBuilder().WithWeight(2).WithDelay(4).Build(2)

		send(e, sim.MakeSpike(10, 1, 1), 5)

		Expect(host.delivered).To(HaveLen(1))
		Expect(host.delivered[0].Target).To(Equal(sim.NodeID(2)))
		Expect(host.delivered[0].Weight).To(Equal(2.0))
		Expect(host.delivered[0].ArrivalStep()).To(Equal(sim.VTimeInStep(14)))
	})

	It("should not deliver update pulses or with a weight of zero", func() {
		e := MakeProbeEdgeBuilder().Build(2)
		mute := MakeProbeEdgeBuilder().WithWeight(0).Build(2)

		send(e, sim.MakeUpdatePulse(10, 1), 5)
		send(mute, sim.MakeSpike(10, 1, 1), 5)

		Expect(host.delivered).To(BeEmpty())
	})

	It("should retire without an update service", func() {
		e := MakeProbeEdgeBuilder().WithRetireAt(10).Build(2)

		send(e, sim.MakeSpike(9, 1, 1), 5)
		Expect(e.IsDegenerated()).To(BeFalse())

		send(e, sim.MakeSpike(12, 1, 1), 9)
		Expect(e.IsDegenerated()).To(BeTrue())
	})

	It("should panic on invalid parameters", func() {
		Expect(func() {
			MakeProbeEdgeBuilder().WithDelay(0).Build(2)
		}).To(Panic())
		Expect(func() {
			MakeProbeEdgeBuilder().WithRport(-1).Build(2)
		}).To(Panic())
	})
})

var _ = Describe("Probe edges in a running kernel", func() {
	var (
		k     *kernel.Kernel
		m     *updating.Manager
		props []*ProbeProperties
		trace *PulseTraceNode
		src   sim.NodeID
		dst   sim.NodeID
	)

	BeforeEach(func() {
		props = nil
		k = kernel.MakeBuilder().WithMinDelay(10).Build()
		m = updating.NewManager(k, logging.NewLogger("info", GinkgoWriter))
		k.SetUpdateService(m)

		_, err := k.RegisterEdgeModel("probe", func() kernel.Properties {
			p := NewProbeProperties()
			props = append(props, p)
			return p
		}, m)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Setup(100, 50)).To(Succeed())

		trace = NewPulseTraceNode(m, 30, 120, 199, 300)
		trace.Offset = 0.5
		dst = k.AddNode(trace)
	})

	It("should follow the trace through forced updates only", func() {
		src = k.AddNode(NewSpikeSource())
		e := MakeProbeEdgeBuilder().WithDelay(10).WithRecordInterval(150).
			Build(dst)
		Expect(k.Connect(src, "probe", e)).To(Succeed())

		Expect(k.Simulate(context.Background(), 350)).To(Succeed())

		Expect(trace.Capacity()).To(Equal(160))
		Expect(e.Pulses()).To(Equal(3))
		Expect(e.Spikes()).To(Equal(0))
		Expect(e.TraceTimes()).To(HaveLen(340))
		Expect(e.TraceTimes()[0]).To(Equal(sim.VTimeInStep(0)))
		Expect(e.TraceTimes()[339]).To(Equal(sim.VTimeInStep(339)))

		sum := 0.0
		for _, v := range e.TraceValues() {
			sum += v
		}
		Expect(sum).To(BeNumerically("~", 174.0, 1e-9))

		Expect(e.LastWeightUpdate()).To(Equal(sim.VTimeInStep(300)))
		Expect(props).To(HaveLen(1))
		Expect(props[0].Logger.Times(e.Port())).To(Equal(
			[]sim.VTimeInStep{100, 300}))
	})

	It("should deliver real spikes and keep following the trace", func() {
		src = k.AddNode(NewSpikeSource(55))
		e := MakeProbeEdgeBuilder().WithWeight(2).WithDelay(10).Build(dst)
		Expect(k.Connect(src, "probe", e)).To(Succeed())

		Expect(k.Simulate(context.Background(), 150)).To(Succeed())

		Expect(trace.Received()).To(HaveLen(1))
		Expect(trace.Received()[0].Weight).To(Equal(2.0))
		Expect(trace.Received()[0].ArrivalStep()).To(Equal(sim.VTimeInStep(65)))
		Expect(e.Spikes()).To(Equal(1))
		Expect(e.Pulses()).To(Equal(1))
		Expect(e.TraceTimes()).To(HaveLen(140))
	})

	It("should collect retired edges", func() {
		src = k.AddNode(NewSpikeSource())
		keeper := MakeProbeEdgeBuilder().WithDelay(10).Build(dst)
		retiree := MakeProbeEdgeBuilder().WithDelay(10).WithRetireAt(200).
			Build(dst)
		Expect(k.Connect(src, "probe", keeper)).To(Succeed())
		Expect(k.Connect(src, "probe", retiree)).To(Succeed())

		Expect(k.Simulate(context.Background(), 200)).To(Succeed())
		Expect(k.Connections()).To(HaveLen(2))

		Expect(k.Simulate(context.Background(), 150)).To(Succeed())

		Expect(retiree.Pulses()).To(Equal(2))
		Expect(keeper.Pulses()).To(Equal(3))

		conns := k.Connections()
		Expect(conns).To(HaveLen(1))
		Expect(conns[0].Edge).To(BeIdenticalTo(keeper))
		Expect(m.Live(0)).To(HaveLen(1))
		Expect(m.Pending(0)).To(BeEmpty())
	})
})
