package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

// Metrics is a hook that counts the activity of an update manager in
// Prometheus counters labelled by thread.
type Metrics struct {
	passes    *prometheus.CounterVec
	touched   *prometheus.CounterVec
	collected *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diligent_forced_passes_total",
			Help: "Number of forced update passes.",
		}, []string{"thread"}),
		touched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diligent_forced_updates_total",
			Help: "Number of connectors that received an update pulse.",
		}, []string{"thread"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diligent_garbage_collected_total",
			Help: "Number of edges removed by the garbage collector.",
		}, []string{"thread"}),
	}

	for _, c := range []prometheus.Collector{m.passes, m.touched, m.collected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Func updates the counters.
func (m *Metrics) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case updating.HookPosForcedPass:
		p := ctx.Item.(updating.ForcedPass)
		th := threadLabel(p.Thread)
		m.passes.WithLabelValues(th).Inc()
		m.touched.WithLabelValues(th).Add(float64(p.Touched))
	case updating.HookPosGarbageCollected:
		g := ctx.Item.(updating.GarbageEntry)
		m.collected.WithLabelValues(threadLabel(g.Thread)).Inc()
	}
}

func threadLabel(th sim.ThreadID) string {
	return strconv.Itoa(int(th))
}
