// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"time"

	"github.com/warthog618/gpiolib/irq"
)

// Driver provides the low level access to the lines of a chip.
//
// Lines are identified by their offset within the chip.  Values are the
// electrical level of the line, 0 for low and 1 for high.
//
// A driver that cannot perform an operation should return ErrNotSupported.
// UnimplementedDriver may be embedded to provide that for all operations.
//
// Drivers may optionally implement any of Requester, Freer, DirectionGetter,
// Debouncer, DriveSetter, MultiGetter, MultiSetter, IRQTyper, IRQMasker and
// IRQDemuxer.
type Driver interface {
	Get(offset int) (int, error)
	Set(offset int, value int) error
	DirectionInput(offset int) error
	DirectionOutput(offset int, value int) error
}

// Requester is called when a line is requested.  Returning an error refuses
// the request.
type Requester interface {
	Request(offset int) error
}

// Freer is called when a requested line is freed.
type Freer interface {
	Free(offset int)
}

// Direction is the direction of a line.
type Direction int

const (
	// DirectionInput indicates the line is an input.
	DirectionInput Direction = iota

	// DirectionOutput indicates the line is an output.
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// DirectionGetter reports the direction of a line as set in hardware.
type DirectionGetter interface {
	GetDirection(offset int) (Direction, error)
}

// Debouncer applies a debounce period to an input line.
type Debouncer interface {
	SetDebounce(offset int, period time.Duration) error
}

// Drive indicates how an output line is driven.
type Drive int

const (
	// DrivePushPull indicates the line is driven in both directions.
	DrivePushPull Drive = iota

	// DriveOpenDrain indicates the line is driven low and floats high.
	DriveOpenDrain

	// DriveOpenSource indicates the line is driven high and floats low.
	DriveOpenSource
)

func (d Drive) String() string {
	switch d {
	case DriveOpenDrain:
		return "open-drain"
	case DriveOpenSource:
		return "open-source"
	}
	return "push-pull"
}

// DriveSetter configures the electrical drive of a line natively.
//
// If the driver returns an error for open-drain or open-source the drive is
// emulated by switching the line to an input for the undriven level.
type DriveSetter interface {
	SetDrive(offset int, drive Drive) error
}

// MultiGetter reads the values of several lines in one operation.
//
// Only lines set in mask are to be read, and their values returned in bits.
type MultiGetter interface {
	GetMultiple(mask Bitmap, bits Bitmap) error
}

// MultiSetter sets the values of several lines in one operation.
//
// Only lines set in mask are to be written, with values from bits.
type MultiSetter interface {
	SetMultiple(mask Bitmap, bits Bitmap) error
}

// IRQTyper sets the trigger for interrupts raised by a line.
type IRQTyper interface {
	SetIRQType(offset int, trigger irq.Trigger) error
}

// IRQMasker masks and unmasks interrupts raised by a line.
type IRQMasker interface {
	MaskIRQ(offset int)
	UnmaskIRQ(offset int)
}

// IRQDemuxer reports, and clears, the lines with an interrupt pending.
//
// It is called by the IRQ domain when the parent interrupt of the chip is
// raised.
type IRQDemuxer interface {
	PendingIRQs() []int
}

// UnimplementedDriver returns ErrNotSupported for all Driver operations.
type UnimplementedDriver struct{}

// Get is not supported.
func (UnimplementedDriver) Get(int) (int, error) {
	return 0, ErrNotSupported
}

// Set is not supported.
func (UnimplementedDriver) Set(int, int) error {
	return ErrNotSupported
}

// DirectionInput is not supported.
func (UnimplementedDriver) DirectionInput(int) error {
	return ErrNotSupported
}

// DirectionOutput is not supported.
func (UnimplementedDriver) DirectionOutput(int, int) error {
	return ErrNotSupported
}
