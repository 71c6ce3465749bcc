// Package updating makes sure diligent connections are advanced on a fixed
// cadence, even when no spike reaches them, and removes connections that
// retired themselves.
//
// A Manager holds one partition of state per worker thread. A partition is
// only touched by the thread that owns it. The scalar configuration is
// written in Setup, before any worker runs, and is read-only afterwards.
package updating

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
)

type threadState struct {
	live      []Entry
	usedTypes []sim.EdgeTypeID
	pile      []GarbageEntry
}

// A Manager tracks the live diligent connectors of every thread and forces
// an update on the ones that have not been touched recently.
type Manager struct {
	sim.HookableBase

	host   sim.Host
	logger *slog.Logger

	interval          sim.VTimeInStep
	acceptableLatency sim.VTimeInStep
	updaterID         sim.NodeID

	hasConnections atomic.Bool
	isInitialized  atomic.Bool

	threads []*threadState
}

// NewManager creates a Manager bound to a host. A nil logger means
// slog.Default().
func NewManager(host sim.Host, logger *slog.Logger) *Manager {
	m := &Manager{
		host:              host,
		logger:            logging.OrDefault(logger),
		interval:          -1,
		acceptableLatency: -1,
	}

	return m
}

// Setup configures the cadence of forced updates. The first successful call
// allocates one partition per host thread and adds the per-thread trigger
// to the host. Later calls only change the cadence.
func (m *Manager) Setup(interval, acceptableLatency sim.VTimeInStep) error {
	if interval <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidInterval, interval)
	}

	if acceptableLatency < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidLatency, acceptableLatency)
	}

	numThreads := m.host.NumThreads()
	if numThreads <= 0 {
		log.Panicf("updating: host reports %d threads", numThreads)
	}

	if m.threads == nil {
		m.threads = make([]*threadState, numThreads)
		for i := range m.threads {
			m.threads[i] = &threadState{}
		}
	} else if len(m.threads) != numThreads {
		log.Panicf("updating: thread count changed from %d to %d",
			len(m.threads), numThreads)
	}

	if m.updaterID == sim.InvalidNodeID {
		m.updaterID = m.host.AddReplicatedNode(func(th sim.ThreadID) sim.Node {
			return NewTrigger(m)
		})
	}

	m.interval = interval
	m.acceptableLatency = acceptableLatency
	m.host.InvalidateNodeBuffers()

	m.logger.Info("connection updater set up",
		"interval", interval,
		"acceptable_latency", acceptableLatency,
		"max_latency", m.MaxLatency(),
		"threads", numThreads,
	)

	return nil
}

// Prepare marks the manager as initialized. It fails if connections exist
// but the configuration is not valid.
func (m *Manager) Prepare() error {
	if m.hasConnections.Load() && !m.IsValid() {
		return ErrNotValid
	}

	m.isInitialized.Store(true)

	return nil
}

// CheckSetUp returns ErrNotSetUp until Setup succeeded.
func (m *Manager) CheckSetUp() error {
	if m.threads == nil {
		return ErrNotSetUp
	}

	return nil
}

// RegisterConnector replaces the connector old with the connector nw in the
// live set of a thread. Either handle may be null. If sender is
// sim.InvalidNodeID, the sender of old is kept.
func (m *Manager) RegisterConnector(
	nw, old sim.ConnectorHandle,
	sender sim.NodeID,
	th sim.ThreadID,
	et sim.EdgeTypeID,
) error {
	if nw == old {
		return nil
	}

	if m.threads == nil {
		if nw.IsNull() {
			return nil
		}

		return ErrNotSetUp
	}

	state := m.mustGetThread(th)
	state.useType(et)

	owner := sim.InvalidNodeID
	if !old.IsNull() {
		owner = state.remove(old, th)
	}

	if sender != sim.InvalidNodeID {
		owner = sender
	}

	if !nw.IsNull() {
		if owner == sim.InvalidNodeID {
			log.Panicf("updating: no sender known for %s on thread %d", nw, th)
		}

		state.insert(Entry{Handle: nw, Sender: owner, EdgeType: et})
		m.hasConnections.Store(true)
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosConnectorRegistered,
		Item: Registration{
			Thread:   th,
			EdgeType: et,
			Sender:   owner,
			New:      nw,
			Old:      old,
		},
	})

	return nil
}

// Update sends an update pulse stamped with time to every live connector of
// the thread that has not seen an event at or after time. It then removes
// the edges that asked to be collected.
func (m *Manager) Update(time sim.VTimeInStep, th sim.ThreadID) {
	if !m.hasConnections.Load() {
		return
	}

	if !m.isInitialized.Load() {
		log.Panic("updating: update called before prepare")
	}

	state := m.mustGetThread(th)
	table := m.host.EdgeTypes(th)
	touched := 0

	for i := 0; i < len(state.live); i++ {
		e := state.live[i]

		conn, ok := m.host.Connector(th, e.Handle)
		if !ok {
			log.Panicf("updating: %s on thread %d is dangling", e.Handle, th)
		}

		if time > conn.LastSpike() {
			conn.Send(sim.MakeUpdatePulse(time, e.Sender), th, table)
			touched++
		}
	}

	pass := ForcedPass{
		Thread:  th,
		Time:    time,
		Live:    len(state.live),
		Touched: touched,
	}

	m.logger.Log(context.Background(), logging.LevelTrace, "forced pass",
		"thread", th, "time", time, "live", pass.Live, "touched", touched)

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosForcedPass,
		Item:   pass,
	})

	m.ExecuteGarbageCollector(th)
}

// TriggerGarbageCollector queues an edge for removal. The edge stays in
// place until the pile of its thread is drained.
func (m *Manager) TriggerGarbageCollector(
	target, sender sim.NodeID,
	th sim.ThreadID,
	et sim.EdgeTypeID,
) {
	state := m.mustGetThread(th)
	state.pile = append(state.pile, GarbageEntry{
		Target:   target,
		Sender:   sender,
		Thread:   th,
		EdgeType: et,
	})
}

// ExecuteGarbageCollector removes every queued edge of a thread.
func (m *Manager) ExecuteGarbageCollector(th sim.ThreadID) {
	state := m.mustGetThread(th)
	pile := state.pile
	state.pile = nil

	for _, g := range pile {
		err := m.host.Disconnect(g.Target, g.Sender, th, g.EdgeType)
		if err != nil {
			m.logger.Warn("garbage collection failed",
				"target", g.Target, "sender", g.Sender,
				"thread", th, "edge_type", g.EdgeType, "error", err)
			continue
		}

		m.logger.Debug("connection collected",
			"target", g.Target, "sender", g.Sender,
			"thread", th, "edge_type", g.EdgeType)

		m.InvokeHook(sim.HookCtx{
			Domain: m,
			Pos:    HookPosGarbageCollected,
			Item:   g,
		})
	}
}

// Calibrate recalibrates every edge type in use on the thread.
func (m *Manager) Calibrate(th sim.ThreadID) error {
	if !m.isInitialized.Load() {
		log.Panic("updating: calibrate called before prepare")
	}

	state := m.mustGetThread(th)
	table := m.host.EdgeTypes(th)

	for _, et := range state.usedTypes {
		table.Calibrate(et)
	}

	if m.hasConnections.Load() && !m.IsValid() {
		return ErrNotValid
	}

	return nil
}

// Finalize drains the garbage pile of a thread.
func (m *Manager) Finalize(th sim.ThreadID) {
	m.ExecuteGarbageCollector(th)
}

// Reset drops all per-thread state. It must not run while any thread is in
// Update.
func (m *Manager) Reset() {
	m.threads = nil
	m.updaterID = sim.InvalidNodeID
	m.hasConnections.Store(false)
	m.isInitialized.Store(false)

	m.logger.Info("connection updater reset")
}

// Interval returns the number of steps between forced passes.
func (m *Manager) Interval() sim.VTimeInStep {
	return m.interval
}

// AcceptableLatency returns the grace window after an interval boundary.
func (m *Manager) AcceptableLatency() sim.VTimeInStep {
	return m.acceptableLatency
}

// MaxLatency returns how many steps of history a trace must keep.
func (m *Manager) MaxLatency() sim.VTimeInStep {
	return m.interval + m.acceptableLatency + m.host.MinDelay()
}

// Origin returns the first step of the slice the host is processing.
func (m *Manager) Origin() sim.VTimeInStep {
	return m.host.SliceOrigin()
}

// Horizon returns the oldest step for which trace reads are valid.
func (m *Manager) Horizon() sim.VTimeInStep {
	return m.Origin() - (m.interval + m.acceptableLatency)
}

// IsValid returns true if the cadence is configured and the trigger exists.
func (m *Manager) IsValid() bool {
	return m.interval > 0 &&
		m.acceptableLatency >= 0 &&
		m.updaterID != sim.InvalidNodeID
}

// HasConnections returns true once a connector has been registered.
func (m *Manager) HasConnections() bool {
	return m.hasConnections.Load()
}

// IsInitialized returns true after Prepare.
func (m *Manager) IsInitialized() bool {
	return m.isInitialized.Load()
}

// UpdaterID returns the node id of the trigger.
func (m *Manager) UpdaterID() sim.NodeID {
	return m.updaterID
}

// IsSetUp returns true if the per-thread partitions exist.
func (m *Manager) IsSetUp() bool {
	return m.threads != nil
}

// Live returns a copy of the live set of a thread, ordered by handle.
func (m *Manager) Live(th sim.ThreadID) []Entry {
	state := m.mustGetThread(th)

	return slices.Clone(state.live)
}

// Pending returns a copy of the garbage pile of a thread.
func (m *Manager) Pending(th sim.ThreadID) []GarbageEntry {
	state := m.mustGetThread(th)

	return slices.Clone(state.pile)
}

// EdgeTypesInUse returns the edge types registered on a thread.
func (m *Manager) EdgeTypesInUse(th sim.ThreadID) []sim.EdgeTypeID {
	state := m.mustGetThread(th)

	return slices.Clone(state.usedTypes)
}

func (m *Manager) mustGetThread(th sim.ThreadID) *threadState {
	if th < 0 || int(th) >= len(m.threads) {
		log.Panicf("updating: thread %d out of range [0, %d)",
			th, len(m.threads))
	}

	return m.threads[th]
}

func compareEntry(e Entry, h sim.ConnectorHandle) int {
	if e.Handle == h {
		return 0
	}

	if e.Handle.Less(h) {
		return -1
	}

	return 1
}

func (s *threadState) insert(e Entry) {
	i, found := slices.BinarySearchFunc(s.live, e.Handle, compareEntry)
	if found {
		s.live[i] = e
		return
	}

	s.live = slices.Insert(s.live, i, e)
}

func (s *threadState) remove(h sim.ConnectorHandle, th sim.ThreadID) sim.NodeID {
	i, found := slices.BinarySearchFunc(s.live, h, compareEntry)
	if !found {
		log.Panicf("updating: %s was never registered on thread %d", h, th)
	}

	sender := s.live[i].Sender
	s.live = slices.Delete(s.live, i, i+1)

	return sender
}

func (s *threadState) useType(et sim.EdgeTypeID) {
	i, found := slices.BinarySearchFunc(s.usedTypes, et, cmp.Compare[sim.EdgeTypeID])
	if found {
		return
	}

	s.usedTypes = slices.Insert(s.usedTypes, i, et)
}
