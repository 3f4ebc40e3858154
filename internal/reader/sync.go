package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dspinellis/ax-178-logger/internal/frame"
	"github.com/dspinellis/ax-178-logger/internal/serialport"
)

// Read timeout defaults. One frame takes about 33 ms on the wire at
// 2400 baud and frames arrive roughly every 380 ms, so 50 ms admits a
// full transmission without bridging into the next frame, and 400 ms
// covers a whole inter-frame period once aligned.
const (
	DefaultSyncTimeout  = 50 * time.Millisecond
	DefaultFrameTimeout = 400 * time.Millisecond
)

// junkSize is how many buffered bytes the synchronizer discards up
// front to clear whatever partial transmission the OS was holding.
const junkSize = 16

// Synchronizer aligns reads on a port to the device's frame boundary.
// Alignment is observed, not negotiated: under a timeout shorter than
// the inter-frame gap, the only way a single read returns a full frame
// is for that read to have started while the line was idle.
type Synchronizer struct {
	Sync   time.Duration // read timeout while hunting for alignment
	Steady time.Duration // read timeout once aligned

	log      *logrus.Entry
	attempts uint64
	resyncs  uint64
}

// Synchronize blocks until reads are frame-aligned or ctx is cancelled.
// Bytes consumed while hunting, a full sacrificial frame included, are
// discarded. The hunt is unbounded: a silent or endlessly misframed
// line keeps it probing until cancellation.
func (s *Synchronizer) Synchronize(ctx context.Context, port serialport.Port) error {
	if err := port.SetReadTimeout(s.Sync); err != nil {
		return fmt.Errorf("set sync read timeout: %w", err)
	}
	junk := make([]byte, junkSize)
	if _, err := serialport.Fill(port, junk); err != nil {
		return fmt.Errorf("discard stale input: %w", err)
	}

	buf := make([]byte, frame.Size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := serialport.Fill(port, buf)
		if err != nil {
			return fmt.Errorf("align to frame boundary: %w", err)
		}
		s.attempts++
		s.log.WithField("bytes", n).Debug("synchronizing")
		if n == frame.Size {
			break
		}
	}

	if err := port.SetReadTimeout(s.Steady); err != nil {
		return fmt.Errorf("set steady read timeout: %w", err)
	}
	s.resyncs++
	return nil
}

// Attempts returns how many alignment probes have been read over the
// synchronizer's lifetime.
func (s *Synchronizer) Attempts() uint64 { return s.attempts }

// Resyncs returns how many times alignment completed, the initial
// synchronization included.
func (s *Synchronizer) Resyncs() uint64 { return s.resyncs }
