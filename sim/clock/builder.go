package clock

import (
	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

// Builder builds clock engines.
type Builder struct {
	engine   *timing.Engine
	period   timing.VTimeInPS
	ringSize int
}

// MakeBuilder returns a Builder with a 1 GHz clock and the default ring size.
func MakeBuilder() Builder {
	return Builder{
		period:   timing.GHz.Period(),
		ringSize: DefaultRingSize,
	}
}

// WithEngine sets the time engine the clock is scheduled on.
func (b Builder) WithEngine(engine *timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the clock.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.period = freq.Period()
	return b
}

// WithPeriod sets the duration of one cycle.
func (b Builder) WithPeriod(period timing.VTimeInPS) Builder {
	b.period = period
	return b
}

// WithRingSize sets the number of cycles the ring covers. It must be a power
// of two.
func (b Builder) WithRingSize(n int) Builder {
	b.ringSize = n
	return b
}

// Build creates the clock engine.
func (b Builder) Build(name string) *Engine {
	b.parametersMustBeValid()

	return &Engine{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		time:         b.engine,
		freq:         timing.FreqFromPeriod(b.period),
		period:       b.period,
		ring:         make([]slot, b.ringSize),
		mask:         int64(b.ringSize - 1),
	}
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		panic("clock: engine is not set")
	}

	if b.period <= 0 {
		panic("clock: period must be positive")
	}

	if !IsPowerOfTwo(b.ringSize) {
		panic("clock: ring size must be a power of two")
	}
}

// IsPowerOfTwo tells if n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
