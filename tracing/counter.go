package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// ActivityCounter counts the activations of each time engine client and the
// events each clock domain dispatches. Attach it to the time engine and to
// the clock domains.
type ActivityCounter struct {
	lock        sync.Mutex
	names       []string
	activations map[string]uint64
	events      map[string]uint64
}

// NewActivityCounter creates an empty ActivityCounter.
func NewActivityCounter() *ActivityCounter {
	return &ActivityCounter{
		activations: make(map[string]uint64),
		events:      make(map[string]uint64),
	}
}

// Func counts.
func (c *ActivityCounter) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterExec:
		c.count(c.activations, nameOf(ctx.Item))
	case clock.HookPosAfterEvent:
		c.count(c.events, nameOf(ctx.Domain))
	}
}

func (c *ActivityCounter) count(m map[string]uint64, name string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, inActivations := c.activations[name]
	_, inEvents := c.events[name]
	if !inActivations && !inEvents {
		c.names = append(c.names, name)
	}

	m[name]++
}

// Names returns every name seen so far in alphabetical order.
func (c *ActivityCounter) Names() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := append([]string(nil), c.names...)
	sort.Strings(names)

	return names
}

// Activations returns how many times the named client was activated.
func (c *ActivityCounter) Activations(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.activations[name]
}

// Events returns how many events the named clock domain dispatched.
func (c *ActivityCounter) Events(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.events[name]
}
