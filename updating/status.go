package updating

import "github.com/sarchlab/diligent/sim"

// ThreadStatus describes the partition of one thread.
type ThreadStatus struct {
	Thread    sim.ThreadID     `json:"thread"`
	Live      int              `json:"live"`
	EdgeTypes []sim.EdgeTypeID `json:"edge_types"`
	Pending   int              `json:"pending"`
}

// Status is a snapshot of the manager.
type Status struct {
	Interval          sim.VTimeInStep `json:"interval"`
	AcceptableLatency sim.VTimeInStep `json:"acceptable_latency"`
	MaxLatency        sim.VTimeInStep `json:"max_latency"`
	Valid             bool            `json:"valid"`
	HasConnections    bool            `json:"has_connections"`
	Initialized       bool            `json:"initialized"`
	UpdaterID         sim.NodeID      `json:"updater_id"`
	Threads           []ThreadStatus  `json:"threads"`
}

// Status returns a snapshot of the manager. It reads every partition, so
// it must not be called while the host is running a slice.
func (m *Manager) Status() Status {
	s := Status{
		Interval:          m.interval,
		AcceptableLatency: m.acceptableLatency,
		MaxLatency:        m.MaxLatency(),
		Valid:             m.IsValid(),
		HasConnections:    m.HasConnections(),
		Initialized:       m.IsInitialized(),
		UpdaterID:         m.updaterID,
	}

	for i, state := range m.threads {
		s.Threads = append(s.Threads, ThreadStatus{
			Thread:    sim.ThreadID(i),
			Live:      len(state.live),
			EdgeTypes: append([]sim.EdgeTypeID(nil), state.usedTypes...),
			Pending:   len(state.pile),
		})
	}

	return s
}
