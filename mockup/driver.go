// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup

import (
	"time"

	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
)

// driver provides the gpiolib.Driver for a mocked chip.
type driver struct {
	c *Chip
}

func (d driver) Get(offset int) (int, error) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	return d.c.lines[offset].level(), nil
}

func (d driver) Set(offset int, value int) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].value = value
	return nil
}

func (d driver) DirectionInput(offset int) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].out = false
	return nil
}

func (d driver) DirectionOutput(offset int, value int) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	l := &d.c.lines[offset]
	l.out = true
	l.value = value
	return nil
}

func (d driver) GetDirection(offset int) (gpiolib.Direction, error) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	if d.c.lines[offset].out {
		return gpiolib.DirectionOutput, nil
	}
	return gpiolib.DirectionInput, nil
}

func (d driver) Request(offset int) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	return d.c.lines[offset].refuse
}

func (d driver) Free(offset int) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	l := &d.c.lines[offset]
	l.out = false
	l.debounce = 0
}

func (d driver) SetDebounce(offset int, period time.Duration) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].debounce = period
	return nil
}

func (d driver) GetMultiple(mask gpiolib.Bitmap, bits gpiolib.Bitmap) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	for i := range d.c.lines {
		if mask.Test(i) {
			bits.Assign(i, d.c.lines[i].level())
		}
	}
	return nil
}

func (d driver) SetMultiple(mask gpiolib.Bitmap, bits gpiolib.Bitmap) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	for i := range d.c.lines {
		if mask.Test(i) {
			d.c.lines[i].value = bits.Value(i)
		}
	}
	return nil
}

func (d driver) SetIRQType(offset int, t irq.Trigger) error {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].trigger = t
	return nil
}

func (d driver) MaskIRQ(offset int) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].masked = true
}

func (d driver) UnmaskIRQ(offset int) {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	d.c.lines[offset].masked = false
}

func (d driver) PendingIRQs() []int {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	p := d.c.pending
	d.c.pending = nil
	return p
}
