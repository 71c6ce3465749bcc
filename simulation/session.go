// Package simulation wires a kernel, its update manager and the optional
// recording and monitoring into one session.
package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sarchlab/diligent/datarecording"
	"github.com/sarchlab/diligent/kernel"
	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/models"
	"github.com/sarchlab/diligent/monitoring"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

// Names of the edge models every session registers.
const (
	// ProbeModel is the diligent model of models.ProbeEdge.
	ProbeModel = "probe"

	// StaticModel is a plain model for edges without update needs.
	StaticModel = "static"
)

// A Session owns one kernel and the single update manager bound to it.
type Session struct {
	id     string
	logger *slog.Logger

	kernel  *kernel.Kernel
	manager *updating.Manager

	recorder   datarecording.Recorder
	monitor    *monitoring.Monitor
	monitorURL string
}

// Build builds the session.
func (b Builder) Build() (*Session, error) {
	b.parametersMustBeValid()

	s := &Session{
		id:     xid.New().String(),
		logger: logging.OrDefault(b.logger),
	}

	kb := kernel.MakeBuilder().
		WithThreads(b.threads).
		WithMinDelay(b.minDelay).
		WithResolution(b.resolution).
		WithLogger(s.logger)
	if b.sliceWidth > 0 {
		kb = kb.WithSliceWidth(b.sliceWidth)
	}

	s.kernel = kb.Build()
	s.manager = updating.NewManager(s.kernel, s.logger)
	s.kernel.SetUpdateService(s.manager)

	if err := s.registerModels(); err != nil {
		return nil, err
	}

	if b.recordingOn {
		if err := s.startRecording(b.outputFileName); err != nil {
			return nil, err
		}
	}

	if b.monitorOn {
		if err := s.startMonitor(b.monitorPort); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Session) registerModels() error {
	_, err := s.kernel.RegisterEdgeModel(ProbeModel,
		func() kernel.Properties { return models.NewProbeProperties() },
		s.manager)
	if err != nil {
		return err
	}

	_, err = s.kernel.RegisterEdgeModel(StaticModel, nil, nil)

	return err
}

func (s *Session) startRecording(path string) error {
	if path == "" {
		path = "diligent_" + s.id
	}

	rec, err := datarecording.New(path)
	if err != nil {
		return err
	}

	hook, err := datarecording.NewUpdateRecorder(rec, s.logger)
	if err != nil {
		_ = rec.Close()
		return err
	}

	s.kernel.AcceptHook(hook)
	s.manager.AcceptHook(hook)
	s.recorder = rec

	return nil
}

func (s *Session) startMonitor(port int) error {
	m := monitoring.NewMonitor().WithPortNumber(port)
	m.RegisterEngine(s.kernel)
	m.RegisterUpdateManager(s.manager)

	metrics, err := monitoring.NewMetrics(m.Registry())
	if err != nil {
		return err
	}

	s.manager.AcceptHook(metrics)

	url, err := m.StartServer()
	if err != nil {
		return err
	}

	s.monitor = m
	s.monitorURL = url

	return nil
}

// ID returns the unique id of the session.
func (s *Session) ID() string {
	return s.id
}

// Kernel returns the kernel of the session.
func (s *Session) Kernel() *kernel.Kernel {
	return s.kernel
}

// Manager returns the update manager of the session.
func (s *Session) Manager() *updating.Manager {
	return s.manager
}

// Recorder returns the data recorder, or nil if recording is off.
func (s *Session) Recorder() datarecording.Recorder {
	return s.recorder
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Session) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server.
func (s *Session) MonitorURL() string {
	return s.monitorURL
}

// InitSynapseUpdater configures the forced update cadence of the session.
func (s *Session) InitSynapseUpdater(
	interval, acceptableLatency sim.VTimeInStep,
) error {
	if interval <= 0 {
		return fmt.Errorf("%w: the update interval (first argument passed "+
			"to InitSynapseUpdater) must be larger than 0",
			updating.ErrInvalidInterval)
	}

	if acceptableLatency < 0 {
		return fmt.Errorf("%w: the maximum acceptable delay (second argument "+
			"passed to InitSynapseUpdater) must be larger or equal to 0",
			updating.ErrInvalidLatency)
	}

	return s.manager.Setup(interval, acceptableLatency)
}

// Simulate advances the kernel. A monitor, if any, shows the progress.
func (s *Session) Simulate(ctx context.Context, steps sim.VTimeInStep) error {
	if s.monitor == nil {
		return s.kernel.Simulate(ctx, steps)
	}

	bar := s.monitor.CreateProgressBar(
		fmt.Sprintf("simulate %d steps", steps), steps)
	defer s.monitor.CompleteProgressBar(bar)

	start := s.kernel.CurrentTime()
	err := s.kernel.Simulate(ctx, steps)
	bar.Advance(s.kernel.CurrentTime() - start)

	return err
}

// ResetKernel drops all nodes and edges. The update manager is reset with
// the kernel and must be set up again.
func (s *Session) ResetKernel() {
	s.kernel.Reset()
}

// Terminate flushes and closes the recording.
func (s *Session) Terminate() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}
