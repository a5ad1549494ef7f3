package modeling

import (
	"github.com/sarchlab/vpsim/sim/clock"
)

// A Ticker is an object that updates states with ticks. Tick returns true if
// it made progress.
type Ticker interface {
	Tick() bool
}

// TickingComponent is a component that updates its state cycle by cycle. It
// ticks as long as the ticker makes progress and sleeps otherwise. Wake it
// with TickLater when new work arrives.
type TickingComponent struct {
	*ComponentBase

	ticker    Ticker
	tickEvent *clock.Event
}

// NewTickingComponent creates a ticking component in the given clock domain.
func NewTickingComponent(
	name string,
	clk *clock.Engine,
	ticker Ticker,
) *TickingComponent {
	tc := &TickingComponent{
		ComponentBase: NewComponentBase(name),
		ticker:        ticker,
	}
	tc.SetClock(clk)
	tc.tickEvent = clock.NewEvent(tc, func(owner any, _ *clock.Event) {
		owner.(*TickingComponent).handleTick()
	})

	return tc
}

// TickNow schedules a tick in the current cycle.
func (c *TickingComponent) TickNow() {
	if !c.tickEvent.IsEnqueued() {
		c.EventEnqueue(c.tickEvent, 0)
	}
}

// TickLater schedules a tick in the next cycle.
func (c *TickingComponent) TickLater() {
	if !c.tickEvent.IsEnqueued() {
		c.EventEnqueue(c.tickEvent, 1)
	}
}

// IsTicking tells if a tick is scheduled.
func (c *TickingComponent) IsTicking() bool {
	return c.tickEvent.IsEnqueued()
}

func (c *TickingComponent) handleTick() {
	madeProgress := c.ticker.Tick()
	if madeProgress {
		c.TickLater()
	}
}
