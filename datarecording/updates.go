package datarecording

import (
	"log/slog"

	"github.com/sarchlab/diligent/kernel"
	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/updating"
)

// Table names used by UpdateRecorder.
const (
	TableForcedPass        = "forced_pass"
	TableGarbageCollection = "garbage_collection"
	TableConnectorChange   = "connector_change"
	TableSlice             = "slice"
)

// ForcedPassRow is a row of the forced_pass table.
type ForcedPassRow struct {
	Thread  sim.ThreadID
	Time    sim.VTimeInStep
	Live    int
	Touched int
}

// GarbageRow is a row of the garbage_collection table.
type GarbageRow struct {
	Thread   sim.ThreadID
	Target   sim.NodeID
	Sender   sim.NodeID
	EdgeType sim.EdgeTypeID
}

// ConnectorChangeRow is a row of the connector_change table. A zero
// generation stands for the null handle.
type ConnectorChangeRow struct {
	Thread        sim.ThreadID
	EdgeType      sim.EdgeTypeID
	Sender        sim.NodeID
	NewIndex      uint32
	NewGeneration uint32
	OldIndex      uint32
	OldGeneration uint32
}

// SliceRow is a row of the slice table.
type SliceRow struct {
	Origin sim.VTimeInStep
	From   sim.VTimeInStep
	To     sim.VTimeInStep
	Spikes int
}

// An UpdateRecorder is a hook that writes the activity of an update manager
// and of the kernel slices into a Recorder. It can be attached to both.
type UpdateRecorder struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewUpdateRecorder creates the tables and returns the hook.
func NewUpdateRecorder(r Recorder, logger *slog.Logger) (*UpdateRecorder, error) {
	tables := []struct {
		name   string
		sample any
	}{
		{TableForcedPass, ForcedPassRow{}},
		{TableGarbageCollection, GarbageRow{}},
		{TableConnectorChange, ConnectorChangeRow{}},
		{TableSlice, SliceRow{}},
	}

	for _, t := range tables {
		if err := r.CreateTable(t.name, t.sample); err != nil {
			return nil, err
		}
	}

	return &UpdateRecorder{
		recorder: r,
		logger:   logging.OrDefault(logger),
	}, nil
}

// MapTables maps the tables of an UpdateRecorder on a reader.
func MapTables(r Reader) {
	r.MapTable(TableForcedPass, ForcedPassRow{})
	r.MapTable(TableGarbageCollection, GarbageRow{})
	r.MapTable(TableConnectorChange, ConnectorChangeRow{})
	r.MapTable(TableSlice, SliceRow{})
}

// Func records the item of the hook.
func (u *UpdateRecorder) Func(ctx sim.HookCtx) {
	table, row, ok := rowOf(ctx)
	if !ok {
		return
	}

	if err := u.recorder.InsertData(table, row); err != nil {
		u.logger.Warn("failed to record", "table", table, "err", err)
	}
}

func rowOf(ctx sim.HookCtx) (string, any, bool) {
	switch ctx.Pos {
	case updating.HookPosForcedPass:
		p := ctx.Item.(updating.ForcedPass)
		return TableForcedPass, ForcedPassRow{
			Thread:  p.Thread,
			Time:    p.Time,
			Live:    p.Live,
			Touched: p.Touched,
		}, true
	case updating.HookPosGarbageCollected:
		g := ctx.Item.(updating.GarbageEntry)
		return TableGarbageCollection, GarbageRow{
			Thread:   g.Thread,
			Target:   g.Target,
			Sender:   g.Sender,
			EdgeType: g.EdgeType,
		}, true
	case updating.HookPosConnectorRegistered:
		r := ctx.Item.(updating.Registration)
		return TableConnectorChange, ConnectorChangeRow{
			Thread:        r.Thread,
			EdgeType:      r.EdgeType,
			Sender:        r.Sender,
			NewIndex:      r.New.Index,
			NewGeneration: r.New.Generation,
			OldIndex:      r.Old.Index,
			OldGeneration: r.Old.Generation,
		}, true
	case kernel.HookPosSliceEnd:
		s := ctx.Item.(kernel.Slice)
		return TableSlice, SliceRow{
			Origin: s.Origin,
			From:   s.From,
			To:     s.To,
			Spikes: s.Spikes,
		}, true
	}

	return "", nil, false
}
