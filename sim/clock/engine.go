// Package clock implements clock domains. A clock engine holds the events of
// every component ticking at one frequency and asks the time engine to run it
// when the next of those events is due.
package clock

import (
	"fmt"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// DefaultRingSize is the number of cycles the ring covers by default.
const DefaultRingSize = 32

// HookPosBeforeEvent fires before an event callback. Item is the event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires after an event callback. Item is the event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

type slot struct {
	head, tail *Event
}

// Engine is a clock domain.
//
// Events due within RingSize cycles live in a ring of FIFO slots indexed by
// their absolute cycle. Events further away wait in a sorted delayed queue
// and move into the ring once they come within range.
type Engine struct {
	timing.ClientState
	*hooking.HookableBase

	name   string
	time   *timing.Engine
	freq   timing.Freq
	period timing.VTimeInPS

	// cycles is the next cycle to execute and syncTime the time of its edge.
	cycles   int64
	syncTime timing.VTimeInPS

	ring       []slot
	mask       int64
	numInRing  int
	delayed    *Event
	numDelayed int
}

// Name returns the name of the clock domain.
func (c *Engine) Name() string {
	return c.name
}

// TimeEngine returns the time engine the clock is scheduled on.
func (c *Engine) TimeEngine() *timing.Engine {
	return c.time
}

// Period returns the duration of one cycle.
func (c *Engine) Period() timing.VTimeInPS {
	return c.period
}

// Freq returns the frequency of the domain.
func (c *Engine) Freq() timing.Freq {
	return c.freq
}

// RingSize returns the number of cycles covered by the ring.
func (c *Engine) RingSize() int {
	return len(c.ring)
}

// NumPending returns the number of enqueued events.
func (c *Engine) NumPending() int {
	return c.numInRing + c.numDelayed
}

// NumDelayed returns the number of events in the delayed queue.
func (c *Engine) NumDelayed() int {
	return c.numDelayed
}

// Cycles returns the cycle count of the domain. A domain that has been idle
// lags behind the global time until something calls Sync. Calls arriving
// through a cross-domain binding are synchronized already.
func (c *Engine) Cycles() int64 {
	return c.cycles
}

// Sync brings a lagging domain up to date. The cycle count advances to the
// first edge at or after the current global time. Calls from inside the
// domain's own activation do nothing.
func (c *Engine) Sync() {
	if c.IsRunning() {
		return
	}

	c.catchUp(c.time.CurrentTime())
}

func (c *Engine) catchUp(now timing.VTimeInPS) {
	if now <= c.syncTime {
		return
	}

	n := (now - c.syncTime + c.period - 1) / c.period
	c.cycles += int64(n)
	c.syncTime += n * c.period
}

// Enqueue schedules evt offset cycles after the current cycle. Offset 0
// means the current cycle. If the domain is executing, an event at offset 0
// runs in the same activation, after the events already in the slot.
func (c *Engine) Enqueue(evt *Event, offset int64) {
	if offset < 0 {
		panic("clock: cannot enqueue an event in the past")
	}

	if evt.IsEnqueued() {
		panic(fmt.Sprintf("clock %s: event is already enqueued", c.name))
	}

	running := c.IsRunning()
	if !running {
		c.catchUp(c.time.CurrentTime())
	}

	evt.cycle = c.cycles + offset
	evt.engine = c

	if offset < int64(len(c.ring)) {
		c.pushRing(evt)
	} else {
		c.pushDelayed(evt)
	}

	if !running {
		due := c.syncTime + timing.VTimeInPS(offset)*c.period
		c.time.Reschedule(c, due-c.time.CurrentTime())
	}
}

func (c *Engine) pushRing(evt *Event) {
	s := &c.ring[evt.cycle&c.mask]

	evt.next = nil
	evt.loc = inRing

	if s.tail == nil {
		s.head = evt
	} else {
		s.tail.next = evt
	}

	s.tail = evt
	c.numInRing++
}

func (c *Engine) pushDelayed(evt *Event) {
	var prev *Event

	cur := c.delayed
	for cur != nil && cur.cycle <= evt.cycle {
		prev = cur
		cur = cur.next
	}

	evt.next = cur
	evt.loc = inDelayed

	if prev == nil {
		c.delayed = evt
	} else {
		prev.next = evt
	}

	c.numDelayed++
}

// Cancel removes an enqueued event. Cancelling an event that is not enqueued
// on this domain panics.
func (c *Engine) Cancel(evt *Event) {
	if !evt.IsEnqueued() || evt.engine != c {
		panic(fmt.Sprintf("clock %s: cancelling an event that is not enqueued",
			c.name))
	}

	switch evt.loc {
	case inRing:
		c.removeFromRing(evt)
	case inDelayed:
		c.removeFromDelayed(evt)
	}

	evt.next = nil
	evt.loc = nowhere
}

func (c *Engine) removeFromRing(evt *Event) {
	s := &c.ring[evt.cycle&c.mask]

	var prev *Event
	for cur := s.head; cur != nil; prev, cur = cur, cur.next {
		if cur != evt {
			continue
		}

		if prev == nil {
			s.head = cur.next
		} else {
			prev.next = cur.next
		}

		if s.tail == cur {
			s.tail = prev
		}

		c.numInRing--

		return
	}

	panic("clock: event not found in its ring slot")
}

func (c *Engine) removeFromDelayed(evt *Event) {
	var prev *Event
	for cur := c.delayed; cur != nil; prev, cur = cur, cur.next {
		if cur != evt {
			continue
		}

		if prev == nil {
			c.delayed = cur.next
		} else {
			prev.next = cur.next
		}

		c.numDelayed--

		return
	}

	panic("clock: event not found in the delayed queue")
}

// Exec runs one cycle of the domain. The time engine calls it.
func (c *Engine) Exec() timing.VTimeInPS {
	now := c.time.CurrentTime()

	c.catchUp(now)
	if c.syncTime > now {
		return c.syncTime - now
	}

	c.migrateDelayed()
	c.dispatch()

	c.cycles++
	c.syncTime += c.period

	if c.numInRing > 0 {
		return c.period
	}

	if c.delayed != nil {
		wait := timing.VTimeInPS(c.delayed.cycle - c.cycles)
		return c.syncTime + wait*c.period - now
	}

	return timing.Idle
}

func (c *Engine) migrateDelayed() {
	horizon := c.cycles + int64(len(c.ring))

	for c.delayed != nil && c.delayed.cycle < horizon {
		evt := c.delayed
		c.delayed = evt.next
		c.numDelayed--

		c.pushRing(evt)
	}
}

func (c *Engine) dispatch() {
	s := &c.ring[c.cycles&c.mask]

	for s.head != nil {
		evt := s.head

		s.head = evt.next
		if s.head == nil {
			s.tail = nil
		}

		evt.next = nil
		evt.loc = nowhere
		c.numInRing--

		if c.NumHooks() == 0 {
			evt.fn(evt.owner, evt)
			continue
		}

		ctx := hooking.HookCtx{Domain: c, Pos: HookPosBeforeEvent, Item: evt}
		c.InvokeHook(ctx)
		evt.fn(evt.owner, evt)
		ctx.Pos = HookPosAfterEvent
		c.InvokeHook(ctx)
	}
}
