package timing

import (
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// VTimeInPS is a simulated time in picoseconds.
type VTimeInPS int64

// Idle is returned by a client that has nothing left to do. The time engine
// drops it from the schedule until somebody enqueues it again.
const Idle VTimeInPS = -1

// Common time units.
const (
	PS VTimeInPS = 1
	NS VTimeInPS = 1000 * PS
	US VTimeInPS = 1000 * NS
	MS VTimeInPS = 1000 * US
)

// Seconds converts the time to seconds.
func (t VTimeInPS) Seconds() float64 {
	return float64(t) * 1e-12
}

func (t VTimeInPS) String() string {
	if t == Idle {
		return "idle"
	}

	return strconv.FormatInt(int64(t), 10) + "ps"
}

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks, rounded to the
// nearest picosecond.
func (f Freq) Period() VTimeInPS {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	p := math.Round(1e12 / float64(f))
	if p < 1 {
		log.Panicf("frequency %g Hz is too high for picosecond resolution",
			float64(f))
	}

	return VTimeInPS(p)
}

// FreqFromPeriod returns the frequency whose period is p.
func FreqFromPeriod(p VTimeInPS) Freq {
	if p <= 0 {
		log.Panic("period must be positive")
	}

	return Freq(1e12 / float64(p))
}

func (f Freq) String() string {
	switch {
	case f >= GHz:
		return strconv.FormatFloat(float64(f/GHz), 'g', -1, 64) + "GHz"
	case f >= MHz:
		return strconv.FormatFloat(float64(f/MHz), 'g', -1, 64) + "MHz"
	case f >= KHz:
		return strconv.FormatFloat(float64(f/KHz), 'g', -1, 64) + "KHz"
	default:
		return strconv.FormatFloat(float64(f), 'g', -1, 64) + "Hz"
	}
}

// ParseFreq parses strings such as "100MHz", "1.5 GHz" or "32768".
// Values without a unit are in Hz.
func ParseFreq(s string) (Freq, error) {
	str := strings.TrimSpace(s)
	units := []struct {
		suffix string
		unit   Freq
	}{
		{"GHz", GHz}, {"MHz", MHz}, {"KHz", KHz}, {"kHz", KHz}, {"Hz", Hz},
	}

	unit := Hz
	for _, u := range units {
		if strings.HasSuffix(str, u.suffix) {
			unit = u.unit
			str = strings.TrimSpace(strings.TrimSuffix(str, u.suffix))

			break
		}
	}

	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, errors.Errorf("invalid frequency %q", s)
	}

	if v <= 0 {
		return 0, errors.Errorf("frequency %q must be positive", s)
	}

	return Freq(v) * unit, nil
}
