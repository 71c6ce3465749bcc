package kernel

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

var _ = Describe("Kernel with connection updates", func() {
	var (
		k *Kernel
		m *updating.Manager
	)

	build := func(threads int, minDelay sim.VTimeInStep) {
		k = MakeBuilder().
			WithThreads(threads).
			WithMinDelay(minDelay).
			Build()
		m = updating.NewManager(k, logging.NewLogger("info", GinkgoWriter))
		k.SetUpdateService(m)

		_, err := k.RegisterEdgeModel("diligent", nil, m)
		Expect(err).NotTo(HaveOccurred())
	}

	It("should refuse diligent edges before setup", func() {
		build(1, 1)
		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})

		err := k.Connect(src, "diligent", &testEdge{target: dst, delay: 1})

		Expect(errors.Is(err, updating.ErrNotSetUp)).To(BeTrue())
	})

	It("should leave the storage unchanged when a connect is refused", func() {
		build(1, 1)
		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		edge := &testEdge{target: dst, delay: 1}

		err := k.Connect(src, "diligent", edge)
		Expect(errors.Is(err, updating.ErrNotSetUp)).To(BeTrue())
		Expect(k.Connections()).To(BeEmpty())
		Expect(k.NumConnectors(0)).To(Equal(0))

		Expect(m.Setup(10, 0)).To(Succeed())
		Expect(k.Connect(src, "diligent", edge)).To(Succeed())
		Expect(k.Connections()).To(HaveLen(1))
		Expect(m.Live(0)).To(HaveLen(1))

		Expect(k.DisconnectByName(dst, src, "diligent")).To(Succeed())
		Expect(k.Connections()).To(BeEmpty())
		Expect(m.Live(0)).To(BeEmpty())
	})

	It("should force exactly one update in the first three slices", func() {
		build(1, 50)
		Expect(m.Setup(100, 50)).To(Succeed())
		Expect(m.MaxLatency()).To(Equal(sim.VTimeInStep(151)))

		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		edge := &testEdge{target: dst, delay: 50}
		Expect(k.Connect(src, "diligent", edge)).To(Succeed())

		Expect(k.Simulate(context.Background(), 150)).To(Succeed())

		Expect(edge.pulses).To(Equal([]sim.VTimeInStep{100}))
		Expect(edge.spikes).To(BeEmpty())
	})

	It("should keep the forced update cadence", func() {
		build(1, 10)
		Expect(m.Setup(100, 30)).To(Succeed())

		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		edge := &testEdge{target: dst, delay: 10}
		Expect(k.Connect(src, "diligent", edge)).To(Succeed())

		Expect(k.Simulate(context.Background(), 2000)).To(Succeed())

		Expect(edge.pulses).NotTo(BeEmpty())
		Expect(edge.pulses[0]).To(BeNumerically("<=", 130))

		for i := 1; i < len(edge.pulses); i++ {
			gap := edge.pulses[i] - edge.pulses[i-1]
			Expect(gap).To(BeNumerically("<=", 100))
		}
	})

	It("should pulse edges stored on every thread", func() {
		build(2, 50)
		Expect(m.Setup(100, 50)).To(Succeed())

		src := k.AddNode(&sourceNode{})
		a := k.AddNode(&sinkNode{})
		b := k.AddNode(&sinkNode{})
		ea := &testEdge{target: a, delay: 50}
		eb := &testEdge{target: b, delay: 50}
		Expect(k.Connect(src, "diligent", ea)).To(Succeed())
		Expect(k.Connect(src, "diligent", eb)).To(Succeed())

		Expect(k.Simulate(context.Background(), 300)).To(Succeed())

		Expect(ea.pulses).To(Equal([]sim.VTimeInStep{100, 200}))
		Expect(eb.pulses).To(Equal([]sim.VTimeInStep{100, 200}))
		Expect(m.Live(0)).To(HaveLen(1))
		Expect(m.Live(1)).To(HaveLen(1))
	})

	It("should track the connector after every change", func() {
		build(1, 1)
		Expect(m.Setup(10, 0)).To(Succeed())

		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		Expect(k.Connect(src, "diligent", &testEdge{target: dst, delay: 1})).
			To(Succeed())
		Expect(k.Connect(src, "diligent", &testEdge{target: dst, delay: 1})).
			To(Succeed())

		live := m.Live(0)
		Expect(live).To(HaveLen(1))
		Expect(live[0].Handle).To(Equal(k.Collection(src, 0)[0].Handle))
		Expect(live[0].Sender).To(Equal(src))

		Expect(k.DisconnectByName(dst, src, "diligent")).To(Succeed())
		live = m.Live(0)
		Expect(live).To(HaveLen(1))
		Expect(live[0].Handle).To(Equal(k.Collection(src, 0)[0].Handle))
		Expect(live[0].Sender).To(Equal(src))

		Expect(k.DisconnectByName(dst, src, "diligent")).To(Succeed())
		Expect(m.Live(0)).To(BeEmpty())
	})

	It("should collect retired edges after the pass", func() {
		build(1, 50)
		Expect(m.Setup(100, 50)).To(Succeed())

		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		keeper := &testEdge{target: dst, delay: 50}
		retiree := &testEdge{target: dst, delay: 50, retireOnPulse: true}
		Expect(k.Connect(src, "diligent", keeper)).To(Succeed())
		Expect(k.Connect(src, "diligent", retiree)).To(Succeed())

		var collected []updating.GarbageEntry
		m.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == updating.HookPosGarbageCollected {
				collected = append(collected, ctx.Item.(updating.GarbageEntry))
			}
		}))

		Expect(k.Simulate(context.Background(), 300)).To(Succeed())

		Expect(retiree.pulses).To(Equal([]sim.VTimeInStep{100}))
		Expect(keeper.pulses).To(Equal([]sim.VTimeInStep{100, 200}))
		Expect(collected).To(Equal([]updating.GarbageEntry{
			{Target: dst, Sender: src, Thread: 0, EdgeType: 0},
		}))

		conns := k.Connections()
		Expect(conns).To(HaveLen(1))
		Expect(conns[0].Edge).To(BeIdenticalTo(keeper))
		Expect(m.Live(0)).To(HaveLen(1))
		Expect(m.Pending(0)).To(BeEmpty())
	})

	It("should freeze the trigger when nothing is connected", func() {
		build(1, 1)
		Expect(m.Setup(10, 0)).To(Succeed())

		Expect(k.Simulate(context.Background(), 20)).To(Succeed())

		trigger, ok := k.Node(m.UpdaterID(), 0)
		Expect(ok).To(BeTrue())
		Expect(trigger.Frozen()).To(BeTrue())
		Expect(m.IsInitialized()).To(BeTrue())
	})

	It("should reset the manager with the kernel", func() {
		build(2, 1)
		Expect(m.Setup(10, 0)).To(Succeed())

		src := k.AddNode(&sourceNode{})
		dst := k.AddNode(&sinkNode{})
		Expect(k.Connect(src, "diligent", &testEdge{target: dst, delay: 1})).
			To(Succeed())
		Expect(k.Simulate(context.Background(), 10)).To(Succeed())

		k.Reset()

		Expect(m.HasConnections()).To(BeFalse())
		Expect(m.IsInitialized()).To(BeFalse())

		src = k.AddNode(&sourceNode{})
		dst = k.AddNode(&sinkNode{})
		err := k.Connect(src, "diligent", &testEdge{target: dst, delay: 1})
		Expect(errors.Is(err, updating.ErrConfiguration)).To(BeTrue())
	})
})
