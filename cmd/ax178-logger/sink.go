package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dspinellis/ax-178-logger/internal/meter"
)

// isoFormat carries microsecond precision, matching the resolution of
// the Unix timestamp prefix.
const isoFormat = "2006-01-02T15:04:05.000000"

// consoleSink prints measurements to out and per-frame decode
// diagnostics to errOut, one line each.
type consoleSink struct {
	out    io.Writer
	errOut io.Writer
	sep    string
	stamp  func(time.Time) string
}

// newConsoleSink builds the sink selected by the output flags. When
// both timestamp formats are requested the Unix one wins.
func newConsoleSink(out, errOut io.Writer, csv, iso, unix bool) *consoleSink {
	sep := "\t"
	if csv {
		sep = ","
	}
	return &consoleSink{
		out:    out,
		errOut: errOut,
		sep:    sep,
		stamp:  timestampFunc(sep, iso, unix),
	}
}

// timestampFunc returns the renderer for a line's timestamp prefix,
// separator included, or an empty prefix when timestamps are off.
func timestampFunc(sep string, iso, unix bool) func(time.Time) string {
	switch {
	case unix:
		return func(ts time.Time) string {
			return fmt.Sprintf("%.6f%s", float64(ts.UnixNano())/1e9, sep)
		}
	case iso:
		return func(ts time.Time) string {
			return ts.Format(isoFormat) + sep
		}
	default:
		return func(time.Time) string { return "" }
	}
}

func (s *consoleSink) Measurement(ts time.Time, m meter.Measurement) error {
	_, err := fmt.Fprintf(s.out, "%s%s%s%s\n", s.stamp(ts), m.FormatValue(), s.sep, m.Unit)
	return err
}

func (s *consoleSink) Diagnostic(_ time.Time, diag error) error {
	_, err := fmt.Fprintln(s.errOut, diag)
	return err
}

// Raw lines mirror the frame as read and carry no timestamp.
func (s *consoleSink) Raw(_ time.Time, rf meter.RawFrame) error {
	_, err := fmt.Fprintln(s.out, rf)
	return err
}
