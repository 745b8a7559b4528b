//go:build !tinygo

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/shlex"
	tty "github.com/mattn/go-tty"

	"ember/app"
	"ember/ember/kernel"
	"ember/hal"
	"ember/internal/buildinfo"
)

// devFlags collects repeated -dev lines.
type devFlags []string

func (f *devFlags) String() string { return fmt.Sprint(*f) }

func (f *devFlags) Set(s string) error {
	if _, err := shlex.Split(s); err != nil {
		return err
	}
	*f = append(*f, s)
	return nil
}

// openConsole puts the controlling terminal in raw mode so keystrokes reach
// uart0 one at a time. Without a terminal it falls back to stdin/stdout.
func openConsole() (io.Reader, io.Writer, func()) {
	t, err := tty.Open()
	if err != nil {
		return os.Stdin, os.Stdout, func() {}
	}
	restore := t.MustRaw()
	return t.Input(), t.Output(), func() {
		_ = restore()
		_ = t.Close()
	}
}

// interruptReader turns Ctrl-C typed on a raw terminal into stop.
type interruptReader struct {
	r    io.Reader
	stop func()
}

func (r *interruptReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if i := bytes.IndexByte(p[:n], 0x03); i >= 0 {
		r.stop()
		return i, io.EOF
	}
	return n, err
}

func main() {
	var (
		cfg     hal.HeadlessConfig
		devs    devFlags
		ticks   uint64
		echo    bool
		console bool
		version bool
	)
	flag.IntVar(&cfg.Hz, "hz", 1000, "Tick source pump rate.")
	flag.Uint64Var(&ticks, "ticks", 0, "Stop after N ticks (0 = run forever).")
	flag.IntVar(&cfg.Host.MemoryBytes, "mem", 64<<10, "Raw memory handed to the allocator.")
	flag.IntVar(&cfg.Host.Pins, "pins", 8, "Virtual GPIO pins.")
	flag.Var(&devs, "dev", `Open a device at boot: "driver instance key=value ..." (repeatable).`)
	flag.BoolVar(&echo, "echo", false, "Echo uart0 input back.")
	flag.BoolVar(&console, "console", false, "Bridge stdin/stdout to uart0.")
	flag.BoolVar(&version, "version", false, "Print the build version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	kcfg := kernel.DefaultConfig()
	kcfg.StopAfter = ticks

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if console {
		in, out, restore := openConsole()
		defer restore()
		cfg.Console = &interruptReader{r: in, stop: stop}
		cfg.ConsoleOut = out
	}
	err := hal.RunHeadless(ctx, cfg, func(ctx context.Context, h hal.HAL) error {
		sys, err := app.New(h, app.Config{Kernel: kcfg, Devices: devs, Echo: echo})
		if err != nil {
			return err
		}
		return sys.Run(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
