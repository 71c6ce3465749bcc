package simulation

import (
	"log/slog"

	"github.com/sarchlab/diligent/sim"
)

// Builder can be used to build a Session.
type Builder struct {
	threads    int
	minDelay   sim.VTimeInStep
	sliceWidth sim.VTimeInStep
	resolution float64
	logger     *slog.Logger

	recordingOn    bool
	outputFileName string

	monitorOn   bool
	monitorPort int
}

// MakeBuilder creates a builder for a single threaded session with a
// minimum delay of one step, no recording and no monitor.
func MakeBuilder() Builder {
	return Builder{
		threads:    1,
		minDelay:   1,
		resolution: 1.0,
	}
}

// WithThreads sets the number of worker threads.
func (b Builder) WithThreads(n int) Builder {
	b.threads = n
	return b
}

// WithMinDelay sets the smallest edge delay.
func (b Builder) WithMinDelay(d sim.VTimeInStep) Builder {
	b.minDelay = d
	return b
}

// WithSliceWidth sets the slice width. It defaults to the minimum delay.
func (b Builder) WithSliceWidth(w sim.VTimeInStep) Builder {
	b.sliceWidth = w
	return b
}

// WithResolution sets the duration of a step in ms.
func (b Builder) WithResolution(r float64) Builder {
	b.resolution = r
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// WithDataRecording records the update activity into a SQLite file. An
// empty name picks one from the session id.
func (b Builder) WithDataRecording(outputFileName string) Builder {
	b.recordingOn = true
	b.outputFileName = outputFileName

	return b
}

// WithMonitor starts the monitoring server.
func (b Builder) WithMonitor() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port of the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.resolution <= 0 {
		panic("resolution must be positive")
	}
}
