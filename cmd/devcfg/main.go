//go:build !tinygo

// Command devcfg checks device config lines against the driver schemas and
// prints the packed config a device would be enabled with.
//
//	devcfg -list
//	devcfg uart "baud=9600 parity=even"
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"ember/ember/cfgstruct"
	"ember/ember/device"
	"ember/ember/drivers/adc"
	"ember/ember/drivers/gpio"
	"ember/ember/drivers/i2c"
	"ember/ember/drivers/spi"
	"ember/ember/drivers/uart"
	"ember/hal"
)

func schemas() map[string]cfgstruct.Schema {
	h := hal.NewHost(hal.HostConfig{Log: io.Discard})
	drivers := map[string]device.Configurable{
		uart.Name: uart.New(h, 1),
		i2c.Name:  i2c.New(h, 1),
		spi.Name:  spi.New(h, 1),
		adc.Name:  adc.New(h, 1),
		gpio.Name: gpio.New(h),
	}
	out := make(map[string]cfgstruct.Schema, len(drivers))
	for name, d := range drivers {
		out[name] = d.Schema()
	}
	return out
}

func main() {
	list := flag.Bool("list", false, "List every driver's fields.")
	flag.Parse()

	all := schemas()
	if *list {
		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
			printSchema(all[name])
		}
		return
	}

	if flag.NArg() < 1 {
		fatalf("usage: devcfg -list\n       devcfg driver [\"key=value ...\"]")
	}
	schema, ok := all[flag.Arg(0)]
	if !ok {
		fatalf("devcfg: unknown driver %q", flag.Arg(0))
	}
	cfg, err := cfgstruct.New(schema)
	if err != nil {
		fatalf("devcfg: %v", err)
	}
	if line := strings.Join(flag.Args()[1:], " "); line != "" {
		if err := cfg.Parse(line); err != nil {
			fatalf("devcfg: %v", err)
		}
	}
	fmt.Println(cfg)
	fmt.Print(hex.Dump(cfg.Raw()))
}

func printSchema(s cfgstruct.Schema) {
	for _, f := range s {
		desc := f.Kind.String()
		if f.Kind == cfgstruct.Enum {
			desc += " " + strings.Join(f.Options, "|")
		} else {
			desc += fmt.Sprintf(" %d", f.Size)
		}
		if f.Default != "" {
			desc += " default " + f.Default
		}
		fmt.Printf("  %-8s %s\n", f.Name, desc)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
