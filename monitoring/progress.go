package monitoring

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/diligent/sim"
)

// A ProgressBar tracks how many steps of a run are done.
type ProgressBar struct {
	sync.Mutex
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartTime time.Time       `json:"start_time"`
	Total     sim.VTimeInStep `json:"total"`
	Finished  sim.VTimeInStep `json:"finished"`
}

func newProgressBar(name string, total sim.VTimeInStep) *ProgressBar {
	return &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// Advance marks more steps as done.
func (b *ProgressBar) Advance(steps sim.VTimeInStep) {
	b.Lock()
	defer b.Unlock()

	b.Finished = min(b.Total, b.Finished+steps)
}

// Fraction returns the done part of the run, between 0 and 1.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 1
	}

	return float64(b.Finished) / float64(b.Total)
}
