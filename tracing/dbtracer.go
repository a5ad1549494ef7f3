package tracing

import (
	"github.com/sarchlab/vpsim/datarecording"
	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// Table names used by DBTracer.
const (
	ActivationTable = "activation"
	EventTable      = "clock_event"
)

// ActivationRecord is one activation of a time engine client.
type ActivationRecord struct {
	Time      int64
	Client    string
	NextDelay int64
}

// EventRecord is one dispatched clock event.
type EventRecord struct {
	Time  int64
	Clock string
	Cycle int64
	Owner string
}

// DBTracer writes activations and events into a data recorder. Attach it to
// the time engine and to the clock engines to trace.
type DBTracer struct {
	recorder datarecording.DataRecorder
}

// NewDBTracer creates the tracer and its tables.
func NewDBTracer(recorder datarecording.DataRecorder) (*DBTracer, error) {
	if err := recorder.CreateTable(ActivationTable, ActivationRecord{}); err != nil {
		return nil, err
	}

	if err := recorder.CreateTable(EventTable, EventRecord{}); err != nil {
		return nil, err
	}

	return &DBTracer{recorder: recorder}, nil
}

// Func records the activation or the event.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterExec:
		engine := ctx.Domain.(*timing.Engine)
		t.mustInsert(ActivationTable, ActivationRecord{
			Time:      int64(engine.CurrentTime()),
			Client:    nameOf(ctx.Item),
			NextDelay: int64(ctx.Detail.(timing.VTimeInPS)),
		})
	case clock.HookPosBeforeEvent:
		clk := ctx.Domain.(*clock.Engine)
		evt := ctx.Item.(*clock.Event)
		t.mustInsert(EventTable, EventRecord{
			Time:  int64(clk.TimeEngine().CurrentTime()),
			Clock: clk.Name(),
			Cycle: evt.Cycle(),
			Owner: nameOf(evt.Owner()),
		})
	}
}

func (t *DBTracer) mustInsert(table string, entry any) {
	if err := t.recorder.InsertData(table, entry); err != nil {
		panic(err)
	}
}

// Flush writes buffered records.
func (t *DBTracer) Flush() error {
	return t.recorder.Flush()
}
