package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

type fakeEngine struct {
	paused  bool
	running bool
	now     sim.VTimeInStep
	nodes   map[sim.NodeID]sim.Node
}

func (e *fakeEngine) Pause()                       { e.paused = true }
func (e *fakeEngine) Continue()                    { e.paused = false }
func (e *fakeEngine) IsPaused() bool               { return e.paused }
func (e *fakeEngine) IsRunning() bool              { return e.running }
func (e *fakeEngine) CurrentTime() sim.VTimeInStep { return e.now }

func (e *fakeEngine) NodeByID(id sim.NodeID) (sim.Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

type fakeManager struct {
	horizon sim.VTimeInStep
}

func (m *fakeManager) Status() updating.Status {
	return updating.Status{Interval: 100, AcceptableLatency: 50, Valid: true}
}

func (m *fakeManager) Horizon() sim.VTimeInStep    { return m.horizon }
func (m *fakeManager) MaxLatency() sim.VTimeInStep { return 3 }

type plainNode struct {
	sim.NodeBase

	Label string
}

func (n *plainNode) Update(_, _, _ sim.VTimeInStep, _ sim.SpikeEmitter) {}

type tracedNode struct {
	plainNode

	from   sim.VTimeInStep
	length int
}

func (n *tracedNode) Snapshot(from sim.VTimeInStep, length int) [][]float64 {
	n.from = from
	n.length = length

	return [][]float64{{1, 2, 3}}
}

var _ = Describe("Monitor", func() {
	var (
		engine  *fakeEngine
		manager *fakeManager
		traced  *tracedNode
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		traced = &tracedNode{}
		traced.Bind(2, 0)
		plain := &plainNode{Label: "source"}
		plain.Bind(1, 0)

		engine = &fakeEngine{
			now:   42,
			nodes: map[sim.NodeID]sim.Node{1: plain, 2: traced},
		}
		manager = &fakeManager{horizon: 7}

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterUpdateManager(manager)
		handler = m.Handler()
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

		return rec
	}

	It("should pause and continue the engine", func() {
		Expect(do(http.MethodPost, "/api/pause").Code).
			To(Equal(http.StatusNoContent))
		Expect(engine.paused).To(BeTrue())

		Expect(do(http.MethodPost, "/api/continue").Code).
			To(Equal(http.StatusNoContent))
		Expect(engine.paused).To(BeFalse())
	})

	It("should refuse to pause with GET", func() {
		Expect(do(http.MethodGet, "/api/pause").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should report the current time", func() {
		rec := do(http.MethodGet, "/api/now")

		var rsp nowRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(Equal(sim.VTimeInStep(42)))
	})

	It("should report the status of an idle run", func() {
		rec := do(http.MethodGet, "/api/status")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var s updating.Status
		Expect(json.Unmarshal(rec.Body.Bytes(), &s)).To(Succeed())
		Expect(s.Interval).To(Equal(sim.VTimeInStep(100)))
		Expect(s.Valid).To(BeTrue())
	})

	It("should refuse the status while a slice may run", func() {
		engine.running = true

		Expect(do(http.MethodGet, "/api/status").Code).
			To(Equal(http.StatusConflict))

		engine.paused = true
		Expect(do(http.MethodGet, "/api/status").Code).
			To(Equal(http.StatusOK))
	})

	It("should serialize a node", func() {
		rec := do(http.MethodGet, "/api/node/1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should return 404 for unknown nodes", func() {
		Expect(do(http.MethodGet, "/api/node/9").Code).
			To(Equal(http.StatusNotFound))
		Expect(do(http.MethodGet, "/api/node/x").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should snapshot traces from the horizon", func() {
		rec := do(http.MethodGet, "/api/trace/2")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(traced.from).To(Equal(sim.VTimeInStep(7)))
		Expect(traced.length).To(Equal(3))

		var rsp traceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Node).To(Equal(sim.NodeID(2)))
		Expect(rsp.Values).To(Equal([][]float64{{1, 2, 3}}))
	})

	It("should refuse traces of nodes without traces", func() {
		Expect(do(http.MethodGet, "/api/trace/1").Code).
			To(Equal(http.StatusUnprocessableEntity))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("run", 100)
		bar.Advance(30)

		var rsp []progressRsp
		Expect(json.Unmarshal(do(http.MethodGet, "/api/progress").Body.Bytes(),
			&rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Finished).To(Equal(sim.VTimeInStep(30)))

		m.CompleteProgressBar(bar)
		Expect(strings.TrimSpace(do(http.MethodGet, "/api/progress").Body.String())).
			To(Equal("[]"))
	})

	It("should reject a bad profile duration", func() {
		Expect(do(http.MethodGet, "/api/profile?ms=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should serve metrics", func() {
		metrics, err := NewMetrics(m.Registry())
		Expect(err).NotTo(HaveOccurred())

		metrics.Func(sim.HookCtx{
			Pos:  updating.HookPosForcedPass,
			Item: updating.ForcedPass{Thread: 1, Touched: 4},
		})

		body := do(http.MethodGet, "/metrics").Body.String()
		Expect(body).To(ContainSubstring(
			`diligent_forced_updates_total{thread="1"} 4`))
	})
})
