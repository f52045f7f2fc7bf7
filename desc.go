// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Flags is the state of a line.
type Flags uint32

const (
	// FlagRequested indicates the line is held by a Lease.
	FlagRequested Flags = 1 << iota

	// FlagIsOut indicates the line is an output.
	FlagIsOut

	// FlagActiveLow indicates the logical value of the line is the inverse of
	// its electrical level.
	FlagActiveLow

	// FlagOpenDrain indicates the line is driven low and floats high.
	FlagOpenDrain

	// FlagOpenSource indicates the line is driven high and floats low.
	FlagOpenSource

	// FlagUsedAsIRQ indicates the line is in use as an interrupt source.
	FlagUsedAsIRQ

	// FlagIsHogged indicates the line is held by its chip.
	FlagIsHogged

	// the drive of the line is configured in hardware, so needs no emulation.
	flagNativeDrive
)

// IsRequested returns true if the line is requested.
func (f Flags) IsRequested() bool {
	return f&FlagRequested != 0
}

// IsOut returns true if the line is an output.
func (f Flags) IsOut() bool {
	return f&FlagIsOut != 0
}

// IsActiveLow returns true if the line is active low.
func (f Flags) IsActiveLow() bool {
	return f&FlagActiveLow != 0
}

// IsOpenDrain returns true if the line is open drain.
func (f Flags) IsOpenDrain() bool {
	return f&FlagOpenDrain != 0
}

// IsOpenSource returns true if the line is open source.
func (f Flags) IsOpenSource() bool {
	return f&FlagOpenSource != 0
}

// IsUsedAsIRQ returns true if the line is used as an interrupt source.
func (f Flags) IsUsedAsIRQ() bool {
	return f&FlagUsedAsIRQ != 0
}

// IsHogged returns true if the line is hogged by its chip.
func (f Flags) IsHogged() bool {
	return f&FlagIsHogged != 0
}

// IsKernel returns true if the line is in use by anything.
func (f Flags) IsKernel() bool {
	return f&(FlagRequested|FlagIsHogged|FlagUsedAsIRQ) != 0
}

func (f Flags) String() string {
	names := []string{}
	for i, n := range []string{"requested", "output", "active-low", "open-drain", "open-source", "irq", "hogged"} {
		if f&(1<<uint(i)) != 0 {
			names = append(names, n)
		}
	}
	return "[" + strings.Join(names, " ") + "]"
}

// Mode is the mode of a line, as derived from its Flags.
type Mode int

const (
	// ModeUnconfigured indicates the line is not requested.
	ModeUnconfigured Mode = iota

	// ModeInput indicates the line is a requested input.
	ModeInput

	// ModeOutput indicates the line is a requested output.
	ModeOutput

	// ModeIRQSource indicates the line is a requested input used as an
	// interrupt source.
	ModeIRQSource
)

// Mode returns the mode of the line implied by the flags.
func (f Flags) Mode() Mode {
	switch {
	case !f.IsRequested():
		return ModeUnconfigured
	case f.IsUsedAsIRQ():
		return ModeIRQSource
	case f.IsOut():
		return ModeOutput
	}
	return ModeInput
}

// LineInfo is a snapshot of the state of a line.
type LineInfo struct {
	// The line offset within the chip.
	Offset int

	// The name of the line, set at registration.
	Name string

	// The label of the holder of the line, if requested.
	Consumer string

	// The line state.
	Flags Flags
}

// Desc is a single line on a chip.
type Desc struct {
	chip   *Chip
	offset int
	name   string

	// flags and label are covered by the registry mutex.
	flags Flags
	label string
}

// Chip returns the chip containing the line.
func (d *Desc) Chip() *Chip {
	return d.chip
}

// Offset returns the offset of the line within its chip.
func (d *Desc) Offset() int {
	return d.offset
}

// GPIO returns the global line number of the line.
func (d *Desc) GPIO() int {
	return d.chip.base + d.offset
}

// Name returns the name of the line, which may be empty.
func (d *Desc) Name() string {
	return d.name
}

// Flags returns a snapshot of the line flags.
func (d *Desc) Flags() Flags {
	r := d.chip.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	return d.flags &^ flagNativeDrive
}

// Info returns a snapshot of the state of the line.
func (d *Desc) Info() LineInfo {
	r := d.chip.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	return LineInfo{
		Offset:   d.offset,
		Name:     d.name,
		Consumer: d.label,
		Flags:    d.flags &^ flagNativeDrive,
	}
}

func (d *Desc) logger() logrus.FieldLogger {
	return d.chip.log.WithField("offset", d.offset)
}

// Request requests the line on behalf of a client.
//
// The returned Lease holds the line exclusively, and holds references on the
// chip and its owner, until it is closed.
func (d *Desc) Request(label string) (*Lease, error) {
	c := d.chip
	if !c.owner.Get() {
		return nil, ErrOwnerGone
	}
	if err := d.request(label); err != nil {
		c.owner.Put()
		return nil, err
	}
	c.Get()
	return &Lease{d: d}, nil
}

// requestOwn requests the line on behalf of its own chip, so without
// referencing the chip or its owner.
func (d *Desc) requestOwn(label string) (*Lease, error) {
	if err := d.request(label); err != nil {
		return nil, err
	}
	return &Lease{d: d, own: true}, nil
}

func (d *Desc) request(label string) error {
	if label == "" {
		label = "?"
	}
	c := d.chip
	r := c.reg
	r.mu.Lock()
	drv := c.drv
	if drv == nil || c.removed {
		r.mu.Unlock()
		return ErrGone
	}
	if d.flags&FlagRequested != 0 {
		r.mu.Unlock()
		return ErrBusy
	}
	d.flags |= FlagRequested
	d.label = label
	r.mu.Unlock()

	if rq, ok := drv.(Requester); ok {
		if err := rq.Request(d.offset); err != nil {
			r.mu.Lock()
			d.flags &^= FlagRequested
			d.label = ""
			r.mu.Unlock()
			return err
		}
	}
	if dg, ok := drv.(DirectionGetter); ok {
		if dir, err := dg.GetDirection(d.offset); err == nil {
			r.mu.Lock()
			if dir == DirectionOutput {
				d.flags |= FlagIsOut
			} else {
				d.flags &^= FlagIsOut
			}
			r.mu.Unlock()
		}
	}
	c.notify(d.offset, LineRequested)
	return nil
}

// free releases the line, returning true if the line was requested.
func (d *Desc) free() bool {
	c := d.chip
	r := c.reg
	r.mu.Lock()
	if d.flags&FlagRequested == 0 {
		r.mu.Unlock()
		return false
	}
	drv := c.drv
	r.mu.Unlock()

	if f, ok := drv.(Freer); ok {
		f.Free(d.offset)
	}

	r.mu.Lock()
	locked := d.flags&FlagUsedAsIRQ != 0
	d.label = ""
	d.flags = 0
	r.mu.Unlock()
	if locked {
		c.owner.Put()
	}
	c.notify(d.offset, LineReleased)
	return true
}

// Lease is the exclusive hold of a client on a requested line.
type Lease struct {
	d *Desc

	// requested by the chip itself, so holds no references
	own bool

	closed int32
}

// Desc returns the line held by the lease.
func (l *Lease) Desc() *Desc {
	return l.d
}

// Close frees the line.
//
// Closing a closed lease has no effect.
func (l *Lease) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	d := l.d
	if !d.free() {
		d.logger().Warn("lease closed on line not requested")
		return nil
	}
	if l.own {
		return nil
	}
	d.chip.owner.Put()
	d.chip.Put()
	return nil
}

// IsClosed returns true once the lease has been closed.
func (l *Lease) IsClosed() bool {
	return atomic.LoadInt32(&l.closed) != 0
}

// driver returns the driver for the line, or an error if the lease is closed
// or the chip is gone.
func (l *Lease) driver() (Driver, error) {
	if l.IsClosed() {
		return nil, ErrClosed
	}
	r := l.d.chip.reg
	r.mu.Lock()
	drv := l.d.chip.drv
	r.mu.Unlock()
	if drv == nil {
		return nil, ErrGone
	}
	return drv, nil
}
