// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/cdev"
	"github.com/warthog618/gpiolib/device/bananapi"
	"github.com/warthog618/gpiolib/device/jetsonnano"
	"github.com/warthog618/gpiolib/device/rpi"
	"github.com/warthog618/gpiolib/irq"
	"github.com/warthog618/gpiolib/mockup"
)

// the board used when no layout is provided.
const defaultLayout = `
banks:
  - label: gpio-mockup-A
    lines: 8
    irq: direct
    names: [LED0, LED1, BUTTON0, BUTTON1]
    hogs:
      - line: 7
        consumer: gpio-mockup
        direction: output-high
`

// board is the simulated board the commands operate on.
type board struct {
	reg *gpiolib.Registry
	m   *mockup.Mockup
	log logrus.FieldLogger

	// maps pin names to offsets, if the board has named pins.
	pin func(string) (int, error)
}

func newBoard(model, layout string, irqs int, log logrus.FieldLogger) (*board, error) {
	var l *mockup.Layout
	var pin func(string) (int, error)
	var err error
	switch model {
	case "":
		if layout == "" {
			l, err = mockup.ParseLayout([]byte(defaultLayout))
		} else {
			l, err = mockup.LoadLayout(layout)
		}
	case "rpi":
		l = rpi.Layout()
		pin = rpi.Pin
	case "bananapi":
		l = bananapi.Layout()
		pin = bananapi.Pin
	case "jetsonnano":
		l = jetsonnano.Layout()
		pin = jetsonnano.Pin
	default:
		return nil, fmt.Errorf("unknown board '%s'", model)
	}
	if model != "" && layout != "" {
		return nil, errors.New("can't provide a layout for a known board")
	}
	if err != nil {
		return nil, err
	}
	reg := gpiolib.NewRegistry(gpiolib.WithLogger(log))
	pool := irq.NewPool(0, irqs, irq.WithLogger(log))
	m, err := mockup.NewFromLayout(l, mockup.WithRegistry(reg), mockup.WithIRQPool(pool))
	if err != nil {
		return nil, err
	}
	return &board{reg: reg, m: m, log: log, pin: pin}, nil
}

// Close removes the chips from the board.
func (b *board) Close() error {
	return b.m.Close()
}

// open opens a session on the named chip.
func (b *board) open(name string) (*cdev.Session, error) {
	return cdev.Open(name, cdev.WithRegistry(b.reg))
}

// mockChip returns the simulated chip with the given name or label.
func (b *board) mockChip(name string) (*mockup.Chip, error) {
	for i := 0; i < b.m.Chips(); i++ {
		c, err := b.m.Chip(i)
		if err != nil {
			return nil, err
		}
		if c.Name == name || c.Label == name {
			return c, nil
		}
	}
	return nil, gpiolib.ErrNotFound
}
