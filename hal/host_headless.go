//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the host runner.
type HeadlessConfig struct {
	Host HostConfig
	// Hz is how often the tick source is pumped. Ticks stay
	// Host.TickPeriod apart whatever the rate.
	Hz int
	// Console, when set, is bridged to UART0: its bytes arrive as received
	// data and transmitted bytes are written to ConsoleOut.
	Console    io.Reader
	ConsoleOut io.Writer
}

// RunHeadless builds a Host and runs run on it with the tick source and
// console pumps alongside, until run returns or ctx ends.
func RunHeadless(ctx context.Context, cfg HeadlessConfig, run func(ctx context.Context, h HAL) error) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1000
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	h := NewHost(cfg.Host)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				h.t.step(time.Now())
				if cfg.ConsoleOut != nil && len(h.uarts) > 0 {
					if out := h.uarts[0].Drain(); len(out) > 0 {
						if _, err := cfg.ConsoleOut.Write(out); err != nil {
							return fmt.Errorf("console: %w", err)
						}
					}
				}
			}
		}
	})

	if cfg.Console != nil && len(h.uarts) > 0 {
		in := make(chan []byte)
		// Reads block and cannot be canceled, so the reader runs outside
		// the group.
		go func() {
			defer close(in)
			for {
				buf := make([]byte, 64)
				n, err := cfg.Console.Read(buf)
				if n > 0 {
					select {
					case in <- buf[:n]:
					case <-ctx.Done():
						return
					}
				}
				if err != nil {
					return
				}
			}
		}()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case p, ok := <-in:
					if !ok {
						return nil
					}
					feed(ctx, h.uarts[0], p, d)
				}
			}
		})
	}

	g.Go(func() error {
		defer cancel()
		return run(ctx, h)
	})
	return g.Wait()
}

// feed injects p into s without overrunning it, waiting one pump period
// whenever the receive FIFO is full.
func feed(ctx context.Context, s *LoopbackSerial, p []byte, wait time.Duration) {
	for len(p) > 0 {
		room := s.depth - s.Buffered()
		if room > 0 {
			n := s.Inject(p[:min(room, len(p))])
			p = p[n:]
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
