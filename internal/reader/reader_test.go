package reader

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dspinellis/ax-178-logger/internal/meter"
	"github.com/dspinellis/ax-178-logger/internal/serialport"
)

var (
	frameVDC     = []byte{0xA0, 0x02, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04} // 0.1234 V DC
	frameCurrent = []byte{0xA0, 0x12, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04} // 1.234 mA AC DC
	frameUnknown = []byte{0xA0, 0x0B, 0x00, 0x00, 0x00, 0x04, 0x00, 0x02} // unmapped selector
)

type event struct {
	Kind string
	Line string
	TS   time.Time
}

type captureSink struct {
	events []event
	err    error
}

func (s *captureSink) Measurement(ts time.Time, m meter.Measurement) error {
	s.events = append(s.events, event{Kind: "measurement", Line: m.String(), TS: ts})
	return s.err
}

func (s *captureSink) Diagnostic(ts time.Time, err error) error {
	s.events = append(s.events, event{Kind: "diagnostic", Line: err.Error(), TS: ts})
	return s.err
}

func (s *captureSink) Raw(ts time.Time, rf meter.RawFrame) error {
	s.events = append(s.events, event{Kind: "raw", Line: rf.String(), TS: ts})
	return s.err
}

// testClock hands out strictly increasing timestamps one second apart.
func testClock() func() time.Time {
	base := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		ts := base.Add(time.Duration(n) * time.Second)
		n++
		return ts
	}
}

func newTestReader(port serialport.Port, sink Sink, raw bool) *Reader {
	return New(port, sink, Config{
		Raw: raw,
		Now: testClock(),
		Log: quietLog(),
	})
}

func runUntilEOF(t *testing.T, r *Reader) {
	t.Helper()
	err := r.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF when the script ran out, got %v", err)
	}
}

func TestRunDecodesSteadyStream(t *testing.T) {
	port := &serialport.MockPort{Script: [][]byte{
		{},           // nothing stale
		frameVDC,     // consumed as the alignment probe
		frameVDC,     // first decoded frame
		frameCurrent, // second decoded frame
	}}
	sink := &captureSink{}
	runUntilEOF(t, newTestReader(port, sink, false))

	base := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	want := []event{
		{Kind: "measurement", Line: "0.1234 V DC", TS: base},
		{Kind: "measurement", Line: "1.234 mA AC DC", TS: base.Add(time.Second)},
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReportsUnknownModes(t *testing.T) {
	port := &serialport.MockPort{Script: [][]byte{
		{},
		frameVDC, // alignment probe
		frameUnknown,
		frameVDC, // decoding continues after the diagnostic
	}}
	sink := &captureSink{}
	runUntilEOF(t, newTestReader(port, sink, false))

	base := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	want := []event{
		{Kind: "diagnostic", Line: "unknown measurement mode 001011101 (v=402)", TS: base},
		{Kind: "measurement", Line: "0.1234 V DC", TS: base.Add(time.Second)},
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRecoversFromDesync(t *testing.T) {
	port := &serialport.MockPort{Script: [][]byte{
		{},                     // initial sync: nothing stale
		frameVDC,               // alignment probe
		frameVDC,               // decoded
		{0xAA, 0xBB, 0xCC}, {}, // short read: alignment lost
		{},           // resync: nothing stale
		frameCurrent, // alignment probe, sacrificed
		frameCurrent, // decoded after recovery
	}}
	sink := &captureSink{}
	r := newTestReader(port, sink, false)
	runUntilEOF(t, r)

	base := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	want := []event{
		{Kind: "measurement", Line: "0.1234 V DC", TS: base},
		{Kind: "measurement", Line: "1.234 mA AC DC", TS: base.Add(time.Second)},
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
	if got := r.Resyncs(); got != 2 {
		t.Fatalf("resync count mismatch: %d", got)
	}
	wantTimeouts := []time.Duration{
		DefaultSyncTimeout, DefaultFrameTimeout,
		DefaultSyncTimeout, DefaultFrameTimeout,
	}
	if diff := cmp.Diff(wantTimeouts, port.ReadTimeouts); diff != "" {
		t.Fatalf("timeout sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRawPassthrough(t *testing.T) {
	port := &serialport.MockPort{Script: [][]byte{
		{},
		frameVDC, // alignment probe
		frameUnknown,
	}}
	sink := &captureSink{}
	runUntilEOF(t, newTestReader(port, sink, true))

	// Raw mode never decodes, so the unmapped selector passes through.
	want := []event{
		{
			Kind: "raw",
			Line: "000001011101000000000000 001011101 0 00402",
			TS:   time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnSinkError(t *testing.T) {
	sinkErr := errors.New("pipe closed")
	port := &serialport.MockPort{Script: [][]byte{
		{},
		frameVDC,
		frameVDC,
		frameVDC, // never reached
	}}
	sink := &captureSink{err: sinkErr}
	err := newTestReader(port, sink, false).Run(context.Background())
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("loop kept running after sink error: %d events", len(sink.events))
	}
}

// cancellingPort cancels a context from inside the Nth Read call,
// modeling an interrupt arriving while a read is in flight.
type cancellingPort struct {
	*serialport.MockPort
	cancel context.CancelFunc
	after  int
	calls  int
}

func (p *cancellingPort) Read(b []byte) (int, error) {
	p.calls++
	if p.calls == p.after {
		p.cancel()
	}
	return p.MockPort.Read(b)
}

func TestRunDropsInFlightFrameOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	port := &cancellingPort{
		MockPort: &serialport.MockPort{Script: [][]byte{
			{},
			frameVDC, // alignment probe
			frameVDC, // decoded
			frameVDC, // in flight when the cancel lands
		}},
		cancel: cancel,
		after:  4,
	}
	sink := &captureSink{}
	if err := newTestReader(port, sink, false).Run(ctx); err != nil {
		t.Fatalf("cancelled run must return nil, got %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one event before cancellation, got %d", len(sink.events))
	}
}

func TestRunStopsBeforeFirstFrameWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	port := &serialport.MockPort{Script: [][]byte{{}, frameVDC, frameVDC}}
	sink := &captureSink{}
	if err := newTestReader(port, sink, false).Run(ctx); err != nil {
		t.Fatalf("cancelled run must return nil, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("no frames should be forwarded after cancellation")
	}
}
