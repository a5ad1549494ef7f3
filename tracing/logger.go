// Package tracing observes the kernel through hooks and reports what it sees
// to a logger or a data recorder.
package tracing

import (
	"log"
	"reflect"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// LogHookBase provides the common logic for hooks that print.
type LogHookBase struct {
	*log.Logger
}

// ActivationLogger prints every client activation of a time engine.
type ActivationLogger struct {
	LogHookBase
}

// NewActivationLogger creates an ActivationLogger writing to logger.
func NewActivationLogger(logger *log.Logger) *ActivationLogger {
	h := new(ActivationLogger)
	h.Logger = logger

	return h
}

// Func prints the activation.
func (h *ActivationLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosAfterExec {
		return
	}

	engine, ok := ctx.Domain.(*timing.Engine)
	if !ok {
		return
	}

	h.Printf("%d, %s, next %s",
		engine.CurrentTime(), nameOf(ctx.Item), ctx.Detail)
}

// EventLogger prints every event dispatched by a clock engine.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger creates an EventLogger writing to logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func prints the event.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != clock.HookPosBeforeEvent {
		return
	}

	clk, ok := ctx.Domain.(*clock.Engine)
	if !ok {
		return
	}

	evt := ctx.Item.(*clock.Event)
	h.Printf("%d, %s@%d -> %s",
		clk.TimeEngine().CurrentTime(), clk.Name(), evt.Cycle(),
		nameOf(evt.Owner()))
}

type named interface {
	Name() string
}

func nameOf(v any) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}

	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
