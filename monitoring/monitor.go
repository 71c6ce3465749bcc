// Package monitoring turns a running simulation into an HTTP server that can
// pause it and report on the update manager.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

// Engine is the part of the kernel the monitor controls.
type Engine interface {
	Pause()
	Continue()
	IsPaused() bool
	IsRunning() bool
	CurrentTime() sim.VTimeInStep
	NodeByID(id sim.NodeID) (sim.Node, bool)
}

// StatusSource is the part of the update manager the monitor reports.
type StatusSource interface {
	Status() updating.Status
	Horizon() sim.VTimeInStep
	MaxLatency() sim.VTimeInStep
}

// traceSnapshotter is implemented by nodes that hold traces.
type traceSnapshotter interface {
	Snapshot(from sim.VTimeInStep, length int) [][]float64
}

// Monitor serves the state of a simulation over HTTP.
type Monitor struct {
	engine     Engine
	manager    StatusSource
	registry   *prometheus.Registry
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a Monitor with its own metrics registry.
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &Monitor{registry: reg}
}

// WithPortNumber sets the port of the server. Ports below 1000 are refused
// and replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine sets the kernel to control.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterUpdateManager sets the manager to report on.
func (m *Monitor) RegisterUpdateManager(s StatusSource) {
	m.manager = s
}

// Registry returns the registry served on /metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// CreateProgressBar adds a progress bar to the report.
func (m *Monitor) CreateProgressBar(name string, total sim.VTimeInStep) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a progress bar from the report.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := m.progressBars[:0]
	for _, b := range m.progressBars {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBars = bars
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.continueEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/node/{id:[0-9]+}", m.nodeDetails)
	r.HandleFunc("/api/trace/{id:[0-9]+}", m.traceSnapshot)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return r
}

// StartServer serves the monitor in the background and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		srv := &http.Server{
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if err := srv.Serve(listener); err != nil {
			fmt.Fprintf(os.Stderr, "Monitoring server stopped: %v\n", err)
		}
	}()

	return url, nil
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusNoContent)
}

type nowRsp struct {
	Now     sim.VTimeInStep `json:"now"`
	Paused  bool            `json:"paused"`
	Running bool            `json:"running"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{
		Now:     m.engine.CurrentTime(),
		Paused:  m.engine.IsPaused(),
		Running: m.engine.IsRunning(),
	})
}

// mustBeIdle writes a conflict if the kernel may be inside a slice.
func (m *Monitor) mustBeIdle(w http.ResponseWriter) bool {
	if m.engine.IsRunning() && !m.engine.IsPaused() {
		http.Error(w, "pause the simulation first", http.StatusConflict)
		return false
	}

	return true
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	if m.manager == nil {
		http.Error(w, "no update manager", http.StatusNotFound)
		return
	}

	if !m.mustBeIdle(w) {
		return
	}

	writeJSON(w, m.manager.Status())
}

func (m *Monitor) findNodeOr404(w http.ResponseWriter, r *http.Request) sim.Node {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	n, found := m.engine.NodeByID(sim.NodeID(id))
	if !found {
		http.Error(w, "node not found", http.StatusNotFound)
		return nil
	}

	return n
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	if !m.mustBeIdle(w) {
		return
	}

	n := m.findNodeOr404(w, r)
	if n == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(n)
	serializer.SetMaxDepth(1)

	var buf bytes.Buffer
	if err := serializer.Serialize(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type traceRsp struct {
	Node    sim.NodeID      `json:"node"`
	Horizon sim.VTimeInStep `json:"horizon"`
	Values  [][]float64     `json:"values"`
}

func (m *Monitor) traceSnapshot(w http.ResponseWriter, r *http.Request) {
	if m.manager == nil {
		http.Error(w, "no update manager", http.StatusNotFound)
		return
	}

	if !m.mustBeIdle(w) {
		return
	}

	n := m.findNodeOr404(w, r)
	if n == nil {
		return
	}

	src, ok := n.(traceSnapshotter)
	if !ok {
		http.Error(w, "node has no traces", http.StatusUnprocessableEntity)
		return
	}

	horizon := m.manager.Horizon()

	writeJSON(w, traceRsp{
		Node:    n.ID(),
		Horizon: horizon,
		Values:  src.Snapshot(horizon, int(m.manager.MaxLatency())),
	})
}

type progressRsp struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartTime time.Time       `json:"start_time"`
	Total     sim.VTimeInStep `json:"total"`
	Finished  sim.VTimeInStep `json:"finished"`
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	rsp := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		b.Lock()
		rsp = append(rsp, progressRsp{
			ID:        b.ID,
			Name:      b.Name,
			StartTime: b.StartTime,
			Total:     b.Total,
			Finished:  b.Finished,
		})
		b.Unlock()
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: mem.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	if s := r.URL.Query().Get("ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			http.Error(w, "ms must be a positive integer", http.StatusBadRequest)
			return
		}

		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
