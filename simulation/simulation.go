// Package simulation puts the kernel pieces together: one time engine, its
// clock domains, and the components bound to each other.
package simulation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/datarecording"
	"github.com/sarchlab/vpsim/monitoring"
	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/modeling"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/sim/wiring"
	"github.com/sarchlab/vpsim/tracing"
)

// Errors returned while composing a simulation.
var (
	ErrDuplicateName = errors.New("name already registered")
	ErrUnknownPort   = errors.New("unknown port")
	ErrUnknownClock  = errors.New("unknown clock domain")
)

// A Simulation owns everything a run needs.
type Simulation struct {
	id       string
	engine   *timing.Engine
	ringSize int

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	tracer       *tracing.DBTracer

	clocks     []*clock.Engine
	clockIndex map[string]int

	components    []modeling.Component
	compNameIndex map[string]int
	ports         []wiring.Port
	portNameIndex map[string]int

	finalized bool
}

func newSimulation() *Simulation {
	return &Simulation{
		clockIndex:    make(map[string]int),
		compNameIndex: make(map[string]int),
		portNameIndex: make(map[string]int),
	}
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the time engine.
func (s *Simulation) GetEngine() *timing.Engine {
	return s.engine
}

// GetDataRecorder returns the data recorder, or nil without recording.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil without monitoring.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// NewClockDomain creates a clock domain.
func (s *Simulation) NewClockDomain(
	name string,
	freq timing.Freq,
) (*clock.Engine, error) {
	if err := modeling.ValidateName(name); err != nil {
		return nil, err
	}

	if _, found := s.clockIndex[name]; found {
		return nil, errors.Wrapf(ErrDuplicateName, "clock domain %s", name)
	}

	if freq <= 0 {
		return nil, errors.Errorf("clock domain %s: frequency must be positive",
			name)
	}

	clk := clock.MakeBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		WithRingSize(s.ringSize).
		Build(name)

	s.clocks = append(s.clocks, clk)
	s.clockIndex[name] = len(s.clocks) - 1

	if s.tracer != nil {
		clk.AcceptHook(s.tracer)
	}

	if s.monitor != nil {
		s.monitor.RegisterClock(clk)
	}

	return clk, nil
}

// Clocks returns the clock domains in creation order.
func (s *Simulation) Clocks() []*clock.Engine {
	return s.clocks
}

// GetClockByName returns a clock domain.
func (s *Simulation) GetClockByName(name string) (*clock.Engine, error) {
	i, found := s.clockIndex[name]
	if !found {
		return nil, errors.Wrap(ErrUnknownClock, name)
	}

	return s.clocks[i], nil
}

// RegisterComponent registers a component and the ports it has already
// added.
func (s *Simulation) RegisterComponent(c modeling.Component) error {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		return errors.Wrapf(ErrDuplicateName, "component %s", compName)
	}

	for _, p := range c.Ports() {
		if _, found := s.portNameIndex[p.Name()]; found {
			return errors.Wrapf(ErrDuplicateName, "port %s", p.Name())
		}
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	for _, p := range c.Ports() {
		s.ports = append(s.ports, p)
		s.portNameIndex[p.Name()] = len(s.ports) - 1
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}

	return nil
}

// Components returns the components in registration order.
func (s *Simulation) Components() []modeling.Component {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) modeling.Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// GetPortByName returns the port with the given full name, or nil.
func (s *Simulation) GetPortByName(name string) wiring.Port {
	i, found := s.portNameIndex[name]
	if !found {
		return nil
	}

	return s.ports[i]
}

// Bind connects two registered ports given by their full names, such as
// "Cpu.Data" and "Mem.In".
func (s *Simulation) Bind(
	masterName, slaveName string,
	opts ...wiring.BindOption,
) error {
	master := s.GetPortByName(masterName)
	if master == nil {
		return errors.Wrapf(ErrUnknownPort, "bind %s -> %s: %s",
			masterName, slaveName, masterName)
	}

	slave := s.GetPortByName(slaveName)
	if slave == nil {
		return errors.Wrapf(ErrUnknownPort, "bind %s -> %s: %s",
			masterName, slaveName, slaveName)
	}

	return wiring.Bind(master, slave, opts...)
}

// Bindings lists the bindings of every registered master port.
func (s *Simulation) Bindings() []wiring.Binding {
	var bindings []wiring.Binding

	for _, p := range s.ports {
		if master, ok := p.(wiring.MasterPort); ok {
			bindings = append(bindings, master.Bindings()...)
		}
	}

	return bindings
}

// Finalize resolves every binding against the handlers the components have
// registered. Every registered master port must be bound. Run calls it if
// needed.
func (s *Simulation) Finalize() error {
	for _, p := range s.ports {
		master, ok := p.(wiring.MasterPort)
		if !ok {
			continue
		}

		if !master.IsBound() {
			return errors.Wrapf(wiring.ErrUnboundPort, "finalize %s", p.Name())
		}

		if err := master.Finalize(); err != nil {
			return errors.Wrapf(err, "finalize %s", p.Name())
		}
	}

	s.finalized = true

	return nil
}

// Run finalizes the platform if needed and runs the engine until it
// finishes, is stopped, or ctx ends.
func (s *Simulation) Run(ctx context.Context) (timing.RunResult, error) {
	if !s.finalized {
		if err := s.Finalize(); err != nil {
			return timing.RunFinished, err
		}
	}

	return s.engine.RunContext(ctx), nil
}

// Terminate ends the simulation. It notifies the engine's end handlers,
// flushes the recorder and stops the monitor. If the loop is still inside an
// activation after a killed run, Terminate waits for it to park first.
func (s *Simulation) Terminate() error {
	if s.engine.IsRunning() && !s.engine.IsLocked() {
		s.engine.Lock()
		defer s.engine.Unlock()
	}

	s.engine.Finished()

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			return err
		}
	}

	if s.monitor != nil {
		return s.monitor.StopServer()
	}

	return nil
}
