// Package modeling provides the base pieces hardware models are built from.
package modeling

import (
	"fmt"
	"os"
	"sort"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/sim/wiring"
)

// A Component is a hardware model with ports and a clock.
type Component interface {
	wiring.Owner
	hooking.Hookable

	GetPortByName(name string) wiring.Port
	Ports() []wiring.Port
}

// ComponentBase implements the bookkeeping part of a component.
type ComponentBase struct {
	*hooking.HookableBase

	name  string
	clock *clock.Engine
	ports map[string]wiring.Port
}

// NewComponentBase creates a ComponentBase. The name must be valid.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		ports:        make(map[string]wiring.Port),
	}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// Clock returns the clock domain of the component.
func (c *ComponentBase) Clock() *clock.Engine {
	return c.clock
}

// SetClock attaches the component to a clock domain. Ports resolve their
// cross-domain stubs from it, so it must be set before the platform is
// finalized.
func (c *ComponentBase) SetClock(clk *clock.Engine) {
	c.clock = clk
}

// AddPort registers a port under its local name.
func (c *ComponentBase) AddPort(name string, port wiring.Port) {
	if _, found := c.ports[name]; found {
		panic(fmt.Sprintf("port %s already exists on %s", name, c.name))
	}

	if port.Name() != BuildName(c.name, name) {
		panic(fmt.Sprintf("port %s does not belong to %s", port.Name(), c.name))
	}

	c.ports[name] = port
}

// LookupPort returns the port with the given local name.
func (c *ComponentBase) LookupPort(name string) (wiring.Port, bool) {
	p, found := c.ports[name]
	return p, found
}

// GetPortByName returns the port by its local name. It panics if the port
// does not exist.
func (c *ComponentBase) GetPortByName(name string) wiring.Port {
	port, found := c.ports[name]
	if !found {
		errMsg := fmt.Sprintf(
			"Port %s is not available on component %s.\n", name, c.name)
		errMsg += "Available ports include:\n"
		for _, n := range c.portNames() {
			errMsg += fmt.Sprintf("\t%s\n", n)
		}
		fmt.Fprint(os.Stderr, errMsg)

		panic("port not found")
	}

	return port
}

// Ports returns the ports sorted by name.
func (c *ComponentBase) Ports() []wiring.Port {
	list := make([]wiring.Port, 0, len(c.ports))
	for _, n := range c.portNames() {
		list = append(list, c.ports[n])
	}

	return list
}

func (c *ComponentBase) portNames() []string {
	names := make([]string, 0, len(c.ports))
	for n := range c.ports {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Cycles returns the cycle count of the component's clock domain.
func (c *ComponentBase) Cycles() int64 {
	return c.mustHaveClock().Cycles()
}

// CurrentTime returns the global simulated time.
func (c *ComponentBase) CurrentTime() timing.VTimeInPS {
	return c.mustHaveClock().TimeEngine().CurrentTime()
}

// EventEnqueue schedules evt on the component's clock domain.
func (c *ComponentBase) EventEnqueue(evt *clock.Event, cycles int64) {
	c.mustHaveClock().Enqueue(evt, cycles)
}

// EventCancel removes evt from the component's clock domain.
func (c *ComponentBase) EventCancel(evt *clock.Event) {
	c.mustHaveClock().Cancel(evt)
}

func (c *ComponentBase) mustHaveClock() *clock.Engine {
	if c.clock == nil {
		panic(fmt.Sprintf("component %s has no clock", c.name))
	}

	return c.clock
}
