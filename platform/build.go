package platform

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/modeling"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/sim/wiring"
	"github.com/sarchlab/vpsim/simulation"
)

// ErrUnknownKind is returned for components of an unregistered kind.
var ErrUnknownKind = errors.New("unknown component kind")

// A Factory creates a component. clk is nil for components without a
// domain.
type Factory func(
	name string,
	clk *clock.Engine,
	params Params,
) (modeling.Component, error)

// Registry maps component kinds to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a kind twice panics.
func (r *Registry) Register(kind string, f Factory) {
	if _, found := r.factories[kind]; found {
		panic("platform: kind " + kind + " registered twice")
	}

	r.factories[kind] = f
}

// Kinds returns the registered kinds in alphabetical order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	return kinds
}

// Apply copies the engine settings of the platform into a simulation
// builder.
func (c *Config) Apply(b simulation.Builder) simulation.Builder {
	if c.RingSize != 0 {
		b = b.WithRingSize(c.RingSize)
	}

	if c.KeepAlive {
		b = b.WithKeepAlive()
	}

	return b
}

// Build creates the domains and components of the platform in sim, binds
// them and finalizes the simulation.
func Build(cfg *Config, sim *simulation.Simulation, reg *Registry) error {
	for _, d := range cfg.Domains {
		freq, err := timing.ParseFreq(d.Frequency)
		if err != nil {
			return errors.Wrapf(err, "domain %s", d.Name)
		}

		if _, err := sim.NewClockDomain(d.Name, freq); err != nil {
			return err
		}
	}

	for _, cc := range cfg.Components {
		if err := buildComponent(cc, sim, reg); err != nil {
			return err
		}
	}

	for _, b := range cfg.Bindings {
		var opts []wiring.BindOption
		if b.MuxID != nil {
			opts = append(opts, wiring.WithMuxID(*b.MuxID))
		}

		if err := sim.Bind(b.Master, b.Slave, opts...); err != nil {
			return err
		}
	}

	return sim.Finalize()
}

func buildComponent(
	cc ComponentConfig,
	sim *simulation.Simulation,
	reg *Registry,
) error {
	factory, found := reg.factories[cc.Kind]
	if !found {
		return errors.Wrapf(ErrUnknownKind, "component %s: %s", cc.Name, cc.Kind)
	}

	var clk *clock.Engine
	if cc.Domain != "" {
		var err error
		clk, err = sim.GetClockByName(cc.Domain)
		if err != nil {
			return errors.Wrapf(err, "component %s", cc.Name)
		}
	}

	comp, err := factory(cc.Name, clk, cc.Params)
	if err != nil {
		return errors.Wrapf(err, "component %s", cc.Name)
	}

	return sim.RegisterComponent(comp)
}
