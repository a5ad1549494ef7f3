package simulation

import (
	"log"

	"github.com/rs/xid"

	"github.com/sarchlab/vpsim/datarecording"
	"github.com/sarchlab/vpsim/monitoring"
	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn     bool
	monitorPort   int
	monitorAssets string
	keepAlive     bool
	ringSize      int
	recordOn      bool
	recordPath    string
	activationLog *log.Logger
}

// MakeBuilder creates a new builder. Monitoring is on by default.
func MakeBuilder() Builder {
	return Builder{
		monitorOn: true,
		ringSize:  clock.DefaultRingSize,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithMonitorAssets makes the monitor serve its pages from dir.
func (b Builder) WithMonitorAssets(dir string) Builder {
	b.monitorAssets = dir
	return b
}

// WithKeepAlive keeps the engine waiting for work when nothing is scheduled.
// The simulation then only ends on stop.
func (b Builder) WithKeepAlive() Builder {
	b.keepAlive = true
	return b
}

// WithRingSize sets the ring size of every clock domain.
func (b Builder) WithRingSize(n int) Builder {
	b.ringSize = n
	return b
}

// WithRecording records activations and clock events into an SQLite file.
// An empty path picks a unique name.
func (b Builder) WithRecording(path string) Builder {
	b.recordOn = true
	b.recordPath = path

	return b
}

// WithActivationLog prints every activation to logger.
func (b Builder) WithActivationLog(logger *log.Logger) Builder {
	b.activationLog = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !clock.IsPowerOfTwo(b.ringSize) {
		panic("ring size must be a power of two")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := newSimulation()
	s.id = xid.New().String()
	s.ringSize = b.ringSize

	engineBuilder := timing.MakeBuilder()
	if b.keepAlive {
		engineBuilder = engineBuilder.WithKeepAlive()
	}
	s.engine = engineBuilder.Build()

	if b.activationLog != nil {
		s.engine.AcceptHook(tracing.NewActivationLogger(b.activationLog))
	}

	if b.recordOn {
		path := b.recordPath
		if path == "" {
			path = "vpsim_" + s.id
		}

		recorder, err := datarecording.New(path)
		if err != nil {
			return nil, err
		}

		tracer, err := tracing.NewDBTracer(recorder)
		if err != nil {
			return nil, err
		}

		s.dataRecorder = recorder
		s.tracer = tracer
		s.engine.AcceptHook(tracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		if b.monitorAssets != "" {
			s.monitor.WithAssetDir(b.monitorAssets)
		}
		s.monitor.RegisterEngine(s.engine)
		s.monitor.StartServer()
	}

	return s, nil
}
