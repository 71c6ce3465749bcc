package kernel

import (
	"log/slog"

	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
)

// Builder can be used to build a Kernel.
type Builder struct {
	numThreads int
	minDelay   sim.VTimeInStep
	sliceWidth sim.VTimeInStep
	resolution float64
	logger     *slog.Logger
}

// MakeBuilder creates a new builder with one thread, a minimum delay of one
// step and a resolution of 1 ms.
func MakeBuilder() Builder {
	return Builder{
		numThreads: 1,
		minDelay:   1,
		resolution: 1.0,
	}
}

// WithThreads sets the number of worker threads.
func (b Builder) WithThreads(n int) Builder {
	b.numThreads = n
	return b
}

// WithMinDelay sets the smallest delay an edge may have.
func (b Builder) WithMinDelay(d sim.VTimeInStep) Builder {
	b.minDelay = d
	return b
}

// WithSliceWidth sets the number of steps advanced per slice. It defaults
// to the minimum delay.
func (b Builder) WithSliceWidth(w sim.VTimeInStep) Builder {
	b.sliceWidth = w
	return b
}

// WithResolution sets the duration of one step in milliseconds.
func (b Builder) WithResolution(ms float64) Builder {
	b.resolution = ms
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numThreads < 1 {
		panic("kernel needs at least one thread")
	}

	if b.minDelay < 1 {
		panic("minimum delay must be at least one step")
	}

	if b.sliceWidth < 0 || b.sliceWidth > b.minDelay {
		panic("slice width must be in [1, min delay]")
	}

	if b.resolution <= 0 {
		panic("resolution must be positive")
	}
}

// Build creates the kernel.
func (b Builder) Build() *Kernel {
	b.parametersMustBeValid()

	k := &Kernel{
		numThreads: b.numThreads,
		minDelay:   b.minDelay,
		sliceWidth: b.sliceWidth,
		resolution: b.resolution,
		logger:     logging.OrDefault(b.logger),
		nodes:      make(map[sim.NodeID]*nodeEntry),
		modelIndex: make(map[string]sim.EdgeTypeID),
		nextID:     1,
	}

	if k.sliceWidth == 0 {
		k.sliceWidth = k.minDelay
	}

	k.threads = make([]*threadData, k.numThreads)
	for i := range k.threads {
		k.threads[i] = newThreadData(sim.ThreadID(i), k.resolution)
	}

	return k
}
