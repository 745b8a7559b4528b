//go:build tinygo && baremetal

package main

import (
	"context"

	"ember/app"
	"ember/ember/kernel"
	"ember/hal"
)

func main() {
	h := hal.New()
	sys, err := app.New(h, app.Config{Kernel: kernel.DefaultConfig(), Devices: []string{"uart 0"}, Echo: true})
	if err != nil {
		h.Logger().WriteLineString(err.Error())
		select {}
	}
	if err := sys.Run(context.Background()); err != nil {
		h.Logger().WriteLineString(err.Error())
	}
	select {}
}
