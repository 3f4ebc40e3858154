package meter

import (
	"fmt"
	"strconv"

	"github.com/dspinellis/ax-178-logger/internal/frame"
)

// Status bit indices within a frame's bit field.
const (
	bitTimesTen    = 0  // final x10 multiplier, applied after the rewrite rules
	bitRangeA      = 1  // range modifier tested by the Ohm and V AC rules
	bitRangeB      = 2  // range modifier tested by the Ohm and nF rules
	bitCurrent     = 12 // switches several voltage modes to current readings
	bitOverflow    = 13 // the reading exceeded the selected range
	bitCapacitance = 14 // switches % to capacitance
	bitNegative    = 21 // sign of the reading
)

// Measurement is one decoded reading: a scaled value with its unit.
// Overflow marks a reading that exceeded the selected range; its unit
// is still meaningful but its value is not.
type Measurement struct {
	Value    float64
	Unit     string
	Overflow bool
}

// FormatValue renders the numeric value, or the OVERFLOW sentinel when
// the reading exceeded the selected range.
func (m Measurement) FormatValue() string {
	if m.Overflow {
		return "OVERFLOW"
	}
	return strconv.FormatFloat(m.Value, 'g', -1, 64)
}

func (m Measurement) String() string {
	return m.FormatValue() + " " + m.Unit
}

// reading is the in-progress state the rewrite rules operate on.
type reading struct {
	value    float64
	unit     string
	negative bool
}

// A rewrite adjusts a reading whose current unit matches. The rules run
// in a fixed order; an earlier rule may rewrite the unit a later rule
// tests, and the % to nF to uF chain depends on exactly that.
type rewrite struct {
	unit  string
	apply func(bits frame.BitField, r *reading)
}

var rewrites = []rewrite{
	{"Ohm", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitRangeB) {
			r.unit = "M Ohm"
			r.value /= 100
		} else if bits.Bit(bitRangeA) {
			r.unit = "k Ohm"
			r.value /= 10
		}
	}},
	{"%", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitCapacitance) {
			r.unit = "nF"
			r.value /= 1000
		}
	}},
	{"nF", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitRangeB) {
			r.unit = "uF"
			r.value *= 10
		}
	}},
	{"V AC", func(bits frame.BitField, r *reading) {
		r.negative = false
		if bits.Bit(bitRangeA) {
			r.value *= 100
		}
	}},
	{"mV DC", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitCurrent) {
			r.unit = "A AC"
			r.negative = false
			r.value /= 10
		}
	}},
	{"V DC", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitCurrent) {
			r.unit = "mA AC DC"
			r.value *= 10
		}
	}},
	{"mV AC", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitCurrent) {
			r.unit = "A AC DC"
			r.value /= 10
		}
	}},
	{"V AC", func(bits frame.BitField, r *reading) {
		if bits.Bit(bitCurrent) {
			// The meter reports this range as mA DC without rescaling.
			r.unit = "mA DC"
		}
	}},
	{"dBm", func(bits frame.BitField, r *reading) {
		if r.negative {
			// The firmware labels this range "ma AC", lower case.
			r.unit = "ma AC"
			r.value /= 10
			r.negative = false
		}
	}},
	{"uA AC", func(bits frame.BitField, r *reading) {
		r.negative = false
	}},
}

// Decode turns one frame into a Measurement. The errors it returns are
// the recoverable per-frame diagnostics: *UnknownModeError when the
// mode selector is not in the table and *frame.InvalidDigitError when a
// numeral byte is malformed.
func Decode(f frame.Frame) (Measurement, error) {
	bits := f.Bits()
	magnitude, err := f.Magnitude()
	if err != nil {
		return Measurement{}, err
	}
	mode, err := lookupMode(f.ModeKey(), magnitude)
	if err != nil {
		return Measurement{}, err
	}

	r := reading{
		value:    float64(magnitude) / float64(mode.Divisor),
		unit:     mode.Unit,
		negative: bits.Bit(bitNegative),
	}
	for _, rw := range rewrites {
		if r.unit == rw.unit {
			rw.apply(bits, &r)
		}
	}
	if bits.Bit(bitTimesTen) {
		r.value *= 10
	}
	if r.negative {
		r.value = -r.value
	}
	if bits.Bit(bitOverflow) {
		return Measurement{Unit: r.unit, Overflow: true}, nil
	}
	return Measurement{Value: r.value, Unit: r.unit}, nil
}

// RawFrame is the passthrough view of a frame: the literal bit field,
// the mode selector, the sign bit and the unparsed digit string, with
// no measurement construction applied.
type RawFrame struct {
	Bits     frame.BitField
	ModeKey  frame.ModeKey
	Negative bool
	Digits   string
}

// Raw builds the passthrough view used by raw output mode.
func Raw(f frame.Frame) RawFrame {
	return RawFrame{
		Bits:     f.Bits(),
		ModeKey:  f.ModeKey(),
		Negative: f.Bits().Bit(bitNegative),
		Digits:   f.DigitString(),
	}
}

func (r RawFrame) String() string {
	sign := "0"
	if r.Negative {
		sign = "1"
	}
	return fmt.Sprintf("%s %s %s %s", r.Bits, r.ModeKey, sign, r.Digits)
}
