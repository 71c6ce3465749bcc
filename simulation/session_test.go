package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/diligent/datarecording"
	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/models"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

var _ = Describe("Session", func() {
	var (
		s *Session
	)

	build := func(b Builder) {
		var err error
		s, err = b.WithLogger(logging.NewLogger("info", GinkgoWriter)).Build()
		Expect(err).NotTo(HaveOccurred())
	}

	AfterEach(func() {
		if s != nil {
			Expect(s.Terminate()).To(Succeed())
			s = nil
		}
	})

	It("should register the built-in edge models", func() {
		build(MakeBuilder())

		probe, err := s.Kernel().EdgeModelID(ProbeModel)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Kernel().IsDiligent(probe)).To(BeTrue())

		static, err := s.Kernel().EdgeModelID(StaticModel)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Kernel().IsDiligent(static)).To(BeFalse())
		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.Recorder()).To(BeNil())
		Expect(s.Monitor()).To(BeNil())
	})

	It("should explain a bad interval", func() {
		build(MakeBuilder())

		err := s.InitSynapseUpdater(0, 10)

		Expect(errors.Is(err, updating.ErrConfiguration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(
			"first argument passed to InitSynapseUpdater"))
		Expect(s.Manager().IsSetUp()).To(BeFalse())
	})

	It("should explain a bad acceptable latency", func() {
		build(MakeBuilder())

		err := s.InitSynapseUpdater(10, -1)

		Expect(errors.Is(err, updating.ErrInvalidLatency)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("second argument"))
	})

	It("should panic on a monitor port without a monitor", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should run probe edges and collect the retired ones", func() {
		build(MakeBuilder().WithMinDelay(50))
		Expect(s.InitSynapseUpdater(100, 50)).To(Succeed())

		k := s.Kernel()
		dst := k.AddNode(models.NewPulseTraceNode(s.Manager()))
		src := k.AddNode(models.NewSpikeSource())
		keeper := models.MakeProbeEdgeBuilder().WithDelay(50).Build(dst)
		retiree := models.MakeProbeEdgeBuilder().WithDelay(50).
			WithRetireAt(150).Build(dst)
		Expect(k.Connect(src, ProbeModel, keeper)).To(Succeed())
		Expect(k.Connect(src, ProbeModel, retiree)).To(Succeed())

		Expect(s.Simulate(context.Background(), 300)).To(Succeed())

		Expect(keeper.Pulses()).To(Equal(2))
		Expect(k.Connections()).To(HaveLen(1))
		Expect(s.Manager().Live(0)).To(HaveLen(1))
	})

	It("should need a new setup after a reset", func() {
		build(MakeBuilder())
		Expect(s.InitSynapseUpdater(10, 0)).To(Succeed())

		s.ResetKernel()

		k := s.Kernel()
		dst := k.AddNode(models.NewPulseTraceNode(s.Manager()))
		src := k.AddNode(models.NewSpikeSource())
		err := k.Connect(src, ProbeModel,
			models.MakeProbeEdgeBuilder().Build(dst))

		Expect(errors.Is(err, updating.ErrNotSetUp)).To(BeTrue())
	})

	It("should record the update activity", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")
		build(MakeBuilder().WithMinDelay(50).WithDataRecording(path))
		Expect(s.InitSynapseUpdater(100, 50)).To(Succeed())

		k := s.Kernel()
		dst := k.AddNode(models.NewPulseTraceNode(s.Manager()))
		src := k.AddNode(models.NewSpikeSource())
		Expect(k.Connect(src, ProbeModel,
			models.MakeProbeEdgeBuilder().WithDelay(50).Build(dst))).
			To(Succeed())
		Expect(s.Simulate(context.Background(), 300)).To(Succeed())
		Expect(s.Terminate()).To(Succeed())
		s = nil

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()
		datarecording.MapTables(reader)

		passes, err := datarecording.QueryAs[datarecording.ForcedPassRow](
			context.Background(), reader, datarecording.TableForcedPass,
			datarecording.QueryParams{OrderBy: "Time"})
		Expect(err).NotTo(HaveOccurred())
		Expect(passes).To(HaveLen(2))
		Expect(passes[0].Time).To(Equal(sim.VTimeInStep(100)))
	})

	It("should serve the monitor", func() {
		build(MakeBuilder().WithMonitor())
		Expect(s.MonitorURL()).To(HavePrefix("http://localhost:"))

		rsp, err := http.Get(s.MonitorURL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		var body map[string]any
		Expect(json.NewDecoder(rsp.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("now", BeNumerically("==", 0)))
	})
})
