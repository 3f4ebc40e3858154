package meter

import (
	"fmt"

	"github.com/dspinellis/ax-178-logger/internal/frame"
)

// Mode describes how to interpret a frame's numeric payload: the unit
// label it reports and the divisor that scales the five-digit magnitude
// into that unit.
type Mode struct {
	Unit    string
	Divisor int
}

// modeKey converts a bit pattern written lowest bit first, the notation
// used throughout this package, into a frame.ModeKey.
func modeKey(pattern string) frame.ModeKey {
	if len(pattern) != 9 {
		panic(fmt.Sprintf("mode pattern %q must be 9 bits", pattern))
	}
	var key frame.ModeKey
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '1':
			key |= 1 << uint(i)
		case '0':
		default:
			panic(fmt.Sprintf("mode pattern %q has non-binary digit", pattern))
		}
	}
	return key
}

// modes maps the fifteen mode selectors the meter emits to their base
// unit and scale. Selector 001011101 is unused by the firmware.
var modes = map[frame.ModeKey]Mode{
	modeKey("001010000"): {Unit: "V AC", Divisor: 10000},
	modeKey("001010001"): {Unit: "%", Divisor: 100},
	modeKey("001010010"): {Unit: "mV DC", Divisor: 1000},
	modeKey("001010011"): {Unit: "nF", Divisor: 100},
	modeKey("001010100"): {Unit: "V DC", Divisor: 10000},
	modeKey("001010101"): {Unit: "Ohm", Divisor: 100},
	modeKey("001010110"): {Unit: "mV AC DC", Divisor: 100},
	modeKey("001010111"): {Unit: "uA AC", Divisor: 100},
	modeKey("001011000"): {Unit: "dBm", Divisor: 100},
	modeKey("001011001"): {Unit: "VF", Divisor: 10000},
	modeKey("001011010"): {Unit: "mV AC", Divisor: 1000},
	modeKey("001011011"): {Unit: "uA DC", Divisor: 100},
	modeKey("001011100"): {Unit: "A DC", Divisor: 10000},
	modeKey("001011110"): {Unit: "Hz", Divisor: 1000},
	modeKey("001011111"): {Unit: "uA AC DC", Divisor: 100},
}

// UnknownModeError reports a mode selector absent from the mode table.
// It is recoverable: the frame carrying it is dropped and decoding
// continues with the next frame.
type UnknownModeError struct {
	Key       frame.ModeKey
	Magnitude int
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown measurement mode %s (v=%d)", e.Key, e.Magnitude)
}

func lookupMode(key frame.ModeKey, magnitude int) (Mode, error) {
	m, ok := modes[key]
	if !ok {
		return Mode{}, &UnknownModeError{Key: key, Magnitude: magnitude}
	}
	return m, nil
}
