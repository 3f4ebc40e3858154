// Package reader drives the synchronize/read/decode cycle that turns
// the AX-178 serial stream into timestamped measurements.
package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dspinellis/ax-178-logger/internal/frame"
	"github.com/dspinellis/ax-178-logger/internal/meter"
	"github.com/dspinellis/ax-178-logger/internal/serialport"
)

// Sink receives the per-frame outputs of the read loop. A sink error
// stops the loop and is returned from Run.
type Sink interface {
	// Measurement receives one decoded reading.
	Measurement(ts time.Time, m meter.Measurement) error
	// Diagnostic receives a recoverable per-frame decode failure, an
	// unknown mode selector or a malformed numeral byte. The frame is
	// dropped and reading continues.
	Diagnostic(ts time.Time, err error) error
	// Raw receives the passthrough view when raw output is selected.
	Raw(ts time.Time, rf meter.RawFrame) error
}

// Config adjusts the read loop. The zero value selects decoded output,
// the default timeouts, the system clock and the standard logger.
type Config struct {
	// Raw forwards frames as passthrough views instead of decoding them.
	Raw bool
	// SyncTimeout and FrameTimeout bound reads while hunting for frame
	// alignment and in steady state respectively.
	SyncTimeout  time.Duration
	FrameTimeout time.Duration
	// Now stamps each forwarded frame.
	Now func() time.Time
	Log *logrus.Entry
}

func (c Config) withDefaults() Config {
	if c.SyncTimeout == 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
	if c.FrameTimeout == 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// Reader runs the frame loop against one opened port.
type Reader struct {
	port serialport.Port
	sink Sink
	cfg  Config
	sync Synchronizer
}

// New builds a Reader over an opened port.
func New(port serialport.Port, sink Sink, cfg Config) *Reader {
	cfg = cfg.withDefaults()
	return &Reader{
		port: port,
		sink: sink,
		cfg:  cfg,
		sync: Synchronizer{Sync: cfg.SyncTimeout, Steady: cfg.FrameTimeout, log: cfg.Log},
	}
}

// Resyncs reports how many times the reader aligned to the frame
// boundary, the initial synchronization included.
func (r *Reader) Resyncs() uint64 { return r.sync.Resyncs() }

// Run reads frames until ctx is cancelled or the stream fails. A short
// read in steady state means alignment was lost: the partial data is
// discarded and the loop re-synchronizes before continuing.
// Cancellation drops whatever read was in flight and returns nil.
func (r *Reader) Run(ctx context.Context) error {
	if err := r.synchronize(ctx); err != nil || ctx.Err() != nil {
		return err
	}

	buf := make([]byte, frame.Size)
	for {
		n, err := serialport.Fill(r.port, buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if n != frame.Size {
			r.cfg.Log.WithField("bytes", n).Warn("synchronization lost; retrying")
			if err := r.synchronize(ctx); err != nil || ctx.Err() != nil {
				return err
			}
			continue
		}
		if err := r.forward(buf); err != nil {
			return err
		}
	}
}

// synchronize aligns the port and maps cancellation to a clean stop.
func (r *Reader) synchronize(ctx context.Context) error {
	err := r.sync.Synchronize(ctx, r.port)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Reader) forward(raw []byte) error {
	f, err := frame.Parse(raw)
	if err != nil {
		return err
	}
	ts := r.cfg.Now()
	if r.cfg.Raw {
		return r.sink.Raw(ts, meter.Raw(f))
	}
	m, err := meter.Decode(f)
	if err != nil {
		return r.sink.Diagnostic(ts, err)
	}
	return r.sink.Measurement(ts, m)
}
