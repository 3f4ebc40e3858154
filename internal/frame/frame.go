package frame

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is the fixed length in bytes of one AX-178 frame.
const Size = 8

// Digits is the number of numeral bytes at the end of a frame.
const Digits = 5

// BitField is the 24-bit little-endian view of a frame's first three
// bytes: bit k lives in byte k/8 at bit position k%8, least significant
// bit first. Valid indices are 0 through 23.
type BitField uint32

// Bit reports whether bit i is set.
func (b BitField) Bit(i int) bool {
	return b>>uint(i)&1 == 1
}

// String renders the field as 24 '0'/'1' characters with bit 0 first,
// the order the device's bit patterns are written in.
func (b BitField) String() string {
	var sb strings.Builder
	sb.Grow(24)
	for i := 0; i < 24; i++ {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ModeKey is the 9-bit measurement mode selector carried in BitField
// bits 3 through 11.
type ModeKey uint16

// String renders the selector as 9 '0'/'1' characters, lowest bit first.
func (k ModeKey) String() string {
	var sb strings.Builder
	sb.Grow(9)
	for i := 0; i < 9; i++ {
		if k>>uint(i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Frame represents one 8-byte unit of multimeter output: a 24-bit
// status field followed by five numeral bytes.
type Frame struct {
	bits   BitField
	digits [Digits]byte
}

// Parse builds a Frame from exactly Size raw bytes.
func Parse(raw []byte) (Frame, error) {
	if len(raw) != Size {
		return Frame{}, fmt.Errorf("frame must be %d bytes, got %d", Size, len(raw))
	}
	f := Frame{
		bits: BitField(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16),
	}
	copy(f.digits[:], raw[3:])
	return f, nil
}

// Bits returns the frame's status field.
func (f Frame) Bits() BitField { return f.bits }

// ModeKey returns the frame's measurement mode selector.
func (f Frame) ModeKey() ModeKey {
	return ModeKey(f.bits >> 3 & 0x1FF)
}

// InvalidDigitError reports a numeral byte outside 0..9.
type InvalidDigitError struct {
	Pos  int // digit position, 0 (most significant) through 4
	Byte byte
}

func (e *InvalidDigitError) Error() string {
	return fmt.Sprintf("invalid digit byte 0x%02X at position %d", e.Byte, e.Pos)
}

// Magnitude parses the five numeral bytes as one unsigned decimal
// number. Each byte holds a binary value 0 through 9; anything else
// yields an *InvalidDigitError.
func (f Frame) Magnitude() (int, error) {
	value := 0
	for i, d := range f.digits {
		if d > 9 {
			return 0, &InvalidDigitError{Pos: i, Byte: d}
		}
		value = value*10 + int(d)
	}
	return value, nil
}

// DigitString renders the numeral bytes for passthrough output. Each
// byte is printed as its decimal value without validation, so a
// malformed frame remains inspectable.
func (f Frame) DigitString() string {
	var sb strings.Builder
	sb.Grow(Digits)
	for _, d := range f.digits {
		sb.WriteString(strconv.Itoa(int(d)))
	}
	return sb.String()
}
