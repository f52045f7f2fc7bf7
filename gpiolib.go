// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package gpiolib is a registry of GPIO controllers and the lines they expose.
//
// Controllers, or chips, register with a Registry by providing a Driver that
// implements the low level access to their lines.  Each chip occupies a
// contiguous range of a flat global line numbering, and each line is
// represented by a Desc.
//
// Lines must be requested before they can be driven.  A successful request
// returns a Lease, which holds the line exclusively until the Lease is closed.
// All value and direction operations are performed through the Lease.
//
// Chips that can raise interrupts may attach an IRQ domain, which maps their
// lines onto interrupt numbers from an irq.Pool, so that lines can be used as
// interrupt sources.
//
// Example of use:
//
//  c, err := gpiolib.Default().Register("my-chip", 8, drv)
//  if err != nil {
//  	panic(err)
//  }
//  l, err := c.RequestLine(4, "blinker")
//  if err != nil {
//  	panic(err)
//  }
//  defer l.Close()
//  v := 0
//  for {
//  	<-time.After(time.Second)
//  	v ^= 1
//  	l.DirectionOutput(v)
//  }
//
package gpiolib

import (
	"errors"
	"fmt"
)

// MaxLabel is the maximum length of chip and line labels and names as reported
// to clients.
const MaxLabel = 32

var (
	// ErrInvalidCount indicates a chip was registered with an invalid number of
	// lines, or with more names than lines.
	ErrInvalidCount = errors.New("invalid line count")

	// ErrNoSpace indicates there is no free range of global line numbers large
	// enough for the chip.
	ErrNoSpace = errors.New("no space in global line numbering")

	// ErrBusy indicates the line is already requested.
	ErrBusy = errors.New("line busy")

	// ErrGone indicates the chip has been unregistered.
	ErrGone = errors.New("chip gone")

	// ErrNotRequested indicates the operation requires a requested line.
	ErrNotRequested = errors.New("line not requested")

	// ErrUsedAsIRQ indicates the line is in use as an interrupt source and
	// cannot be set as an output.
	ErrUsedAsIRQ = errors.New("line used as interrupt")

	// ErrIsOutput indicates the line is an output and cannot be used as an
	// interrupt source.
	ErrIsOutput = errors.New("line is output")

	// ErrNotSupported indicates the driver does not support the operation.
	ErrNotSupported = errors.New("operation not supported")

	// ErrInvalidOffset indicates a line offset is outside the range supported
	// by the chip.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrNoIRQ indicates no interrupt could be mapped to the line.
	ErrNoIRQ = errors.New("no interrupt available")

	// ErrNotFound indicates the requested chip or line could not be found.
	ErrNotFound = errors.New("not found")

	// ErrOwnerGone indicates the owner of the chip is unloading and new
	// requests are being refused.
	ErrOwnerGone = errors.New("owner unloading")

	// ErrClosed indicates the lease has been closed.
	ErrClosed = errors.New("lease closed")
)

// ErrRangeOverlap indicates a chip could not be registered at the requested
// base as the range overlaps an existing chip.
type ErrRangeOverlap struct {
	Base  int
	Count int

	// the name of the chip overlapped
	Chip string
}

func (e ErrRangeOverlap) Error() string {
	return fmt.Sprintf("range [%d,%d) overlaps %s", e.Base, e.Base+e.Count, e.Chip)
}
