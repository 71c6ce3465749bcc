package kernel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/diligent/sim"
)

// Simulate advances the kernel by the given number of steps. Slices are
// aligned to multiples of the slice width, so a run that does not end on a
// slice boundary leaves the next run starting inside a slice.
func (k *Kernel) Simulate(ctx context.Context, steps sim.VTimeInStep) error {
	k.singleRunLock.Lock()
	defer k.singleRunLock.Unlock()

	if steps < 0 {
		return fmt.Errorf("kernel: cannot simulate %d steps", steps)
	}

	k.running.Store(true)
	defer k.running.Store(false)

	start := k.CurrentTime()
	end := start + steps

	k.logger.Info("simulate", "from", start, "to", end)

	if err := k.prepare(ctx); err != nil {
		return err
	}

	for k.CurrentTime() < end {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := k.CurrentTime()
		origin := now - now%k.sliceWidth
		from := now - origin
		to := min(k.sliceWidth, end-origin)

		k.pauseLock.Lock()
		err := k.runSlice(ctx, origin, from, to)
		k.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}

	return k.finalize(ctx)
}

func (k *Kernel) forEachThread(
	ctx context.Context,
	f func(td *threadData) error,
) error {
	g, _ := errgroup.WithContext(ctx)

	for _, td := range k.threads {
		g.Go(func() error {
			return f(td)
		})
	}

	return g.Wait()
}

func (k *Kernel) prepare(ctx context.Context) error {
	err := k.forEachThread(ctx, func(td *threadData) error {
		for _, ln := range td.nodes {
			if ln.ready {
				continue
			}

			if b, ok := ln.node.(sim.BufferIniter); ok {
				if err := b.InitBuffers(); err != nil {
					return err
				}
			}

			ln.ready = true
		}

		return nil
	})
	if err != nil {
		return err
	}

	return k.forEachThread(ctx, func(td *threadData) error {
		for _, ln := range td.nodes {
			if c, ok := ln.node.(sim.Calibrator); ok {
				if err := c.Calibrate(); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func (k *Kernel) runSlice(
	ctx context.Context,
	origin, from, to sim.VTimeInStep,
) error {
	k.origin = origin

	slice := Slice{Origin: origin, From: from, To: to}
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosSliceStart,
		Item:   slice,
	})

	err := k.forEachThread(ctx, func(td *threadData) error {
		for _, ln := range td.nodes {
			if ln.node.Frozen() {
				continue
			}

			ln.node.Update(origin, from, to, td)
		}

		return nil
	})
	if err != nil {
		return err
	}

	var spikes []sim.Event
	for _, td := range k.threads {
		spikes = append(spikes, td.outbox...)
		td.outbox = td.outbox[:0]
	}

	err = k.forEachThread(ctx, func(td *threadData) error {
		return k.exchange(td, spikes)
	})
	if err != nil {
		return err
	}

	k.now.Store(int64(origin + to))

	slice.Spikes = len(spikes)
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosSliceEnd,
		Item:   slice,
	})

	return nil
}

// exchange sends the spikes of the slice through the connectors of a
// thread.
func (k *Kernel) exchange(td *threadData, spikes []sim.Event) error {
	for _, ev := range spikes {
		coll := td.collections[ev.Sender]

		for _, ref := range coll {
			c, ok := td.arena.get(ref.Handle)
			if !ok {
				return fmt.Errorf("%w: %s on thread %d",
					ErrDanglingConnector, ref.Handle, td.id)
			}

			c.Send(ev, td.id, td.table)
		}
	}

	return nil
}

func (k *Kernel) finalize(ctx context.Context) error {
	return k.forEachThread(ctx, func(td *threadData) error {
		for _, ln := range td.nodes {
			if f, ok := ln.node.(sim.Finalizer); ok {
				f.Finalize()
			}
		}

		return nil
	})
}

// Reset tears down every node and drops all nodes and edges. Edge models
// stay registered.
func (k *Kernel) Reset() {
	k.singleRunLock.Lock()
	defer k.singleRunLock.Unlock()

	for _, td := range k.threads {
		for _, ln := range td.nodes {
			if t, ok := ln.node.(sim.Teardowner); ok {
				t.Teardown()
			}
		}
	}

	k.nodes = make(map[sim.NodeID]*nodeEntry)
	k.nextID = 1
	k.now.Store(0)
	k.origin = 0

	for i, td := range k.threads {
		fresh := newThreadData(td.id, k.resolution)
		for _, m := range k.models {
			fresh.table.props = append(fresh.table.props, m.properties())
		}

		k.threads[i] = fresh
	}

	k.logger.Info("kernel reset")
}

// Pause prevents the kernel from starting more slices.
func (k *Kernel) Pause() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if k.isPaused {
		return
	}

	k.pauseLock.Lock()
	k.isPaused = true
}

// Continue allows the kernel to start slices again.
func (k *Kernel) Continue() {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	if !k.isPaused {
		return
	}

	k.pauseLock.Unlock()
	k.isPaused = false
}

// IsPaused returns true if the kernel is paused.
func (k *Kernel) IsPaused() bool {
	k.isPausedLock.Lock()
	defer k.isPausedLock.Unlock()

	return k.isPaused
}
