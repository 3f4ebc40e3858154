// Package ax178 decodes measurement frames captured from an AXIOMET
// AX-178 multimeter's serial interface.
package ax178

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dspinellis/ax-178-logger/internal/frame"
	"github.com/dspinellis/ax-178-logger/internal/meter"
)

// Result captures the outcome of analyzing one frame.
type Result struct {
	RawHex    string
	ByteCount int
	Fields    map[string]any
}

// String renders a human-readable representation of the result.
func (r Result) String() string {
	summary := map[string]any{
		"raw_hex":    r.RawHex,
		"byte_count": r.ByteCount,
	}
	for k, v := range r.Fields {
		summary[k] = v
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Sprintf("raw:%s bytes:%d (marshal error: %v)", r.RawHex, r.ByteCount, err)
	}
	return string(data)
}

// AnalyzeHex decodes a single frame given as hex text. Whitespace and
// the separators '|' and '_' are ignored, and a 0x prefix is allowed.
func AnalyzeHex(raw string) (Result, error) {
	data, err := decodeHex(raw)
	if err != nil {
		return Result{}, err
	}
	return AnalyzeBytes(data)
}

// AnalyzeBytes decodes a single raw frame. A frame whose mode selector
// is unmapped or whose numeral bytes are malformed still yields a
// Result: the bit-level fields are populated and the decode failure is
// reported under the "error" field.
func AnalyzeBytes(data []byte) (Result, error) {
	f, err := frame.Parse(data)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RawHex:    strings.ToUpper(hex.EncodeToString(data)),
		ByteCount: len(data),
	}
	rf := meter.Raw(f)
	fields := map[string]any{
		"bits":     rf.Bits.String(),
		"mode_key": rf.ModeKey.String(),
		"negative": rf.Negative,
		"digits":   rf.Digits,
	}
	result.Fields = fields

	m, err := meter.Decode(f)
	if err != nil {
		var unknownMode *meter.UnknownModeError
		var invalidDigit *frame.InvalidDigitError
		if errors.As(err, &unknownMode) || errors.As(err, &invalidDigit) {
			fields["error"] = err.Error()
			return result, nil
		}
		return result, err
	}

	fields["unit"] = m.Unit
	if m.Overflow {
		fields["value"] = "OVERFLOW"
	} else {
		fields["value"] = m.Value
	}
	if magnitude, err := f.Magnitude(); err == nil {
		fields["magnitude"] = magnitude
	}
	return result, nil
}

func decodeHex(input string) ([]byte, error) {
	clean := stripSeparators(input)
	if len(clean) >= 2 && (clean[:2] == "0x" || clean[:2] == "0X") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex frame must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripSeparators(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
