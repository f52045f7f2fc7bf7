// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package cdev serves the GPIO character device requests for the chips of a
// gpiolib registry.
//
// A Session is opened on a chip and provides the chip and line info requests,
// line info watches, and the creation of LineHandles and LineEvents.
// Handles and events hold their lines until closed, independent of the
// session that created them.
package cdev

import (
	"errors"

	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
	"golang.org/x/sys/unix"
)

// EventBufferSize is the number of events buffered by a LineEvent, or line
// info changes buffered by a Session, before further events are dropped.
const EventBufferSize = 16

var (
	// ErrClosed indicates the session, handle or event has been closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidCount indicates a handle request for zero lines or more than
	// uapi.HandlesMax lines.
	ErrInvalidCount = errors.New("invalid line count")

	// ErrUnknownFlag indicates a request contains flags that are not
	// defined.
	ErrUnknownFlag = errors.New("unknown flag")

	// ErrInvalidFlags indicates a request contains a contradictory
	// combination of flags.
	ErrInvalidFlags = errors.New("invalid flag combination")

	// ErrOutputRequested indicates an event request asked for an output.
	ErrOutputRequested = errors.New("events require an input")

	// ErrWouldBlock indicates a non-blocking read found nothing to read.
	ErrWouldBlock = errors.New("operation would block")

	// ErrPermissionDenied indicates an attempt to set the values of lines
	// not requested as outputs.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrShortBuffer indicates a read buffer too small to hold one record.
	ErrShortBuffer = errors.New("buffer too small")

	// ErrAlreadyWatched indicates the line is already watched by the session.
	ErrAlreadyWatched = errors.New("line already watched")

	// ErrNotWatched indicates the line is not watched by the session.
	ErrNotWatched = errors.New("line not watched")

	// ErrUnknownRequest indicates an unsupported request code.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrBadArgument indicates the argument passed with a request code is not
	// the type the request expects.
	ErrBadArgument = errors.New("bad request argument")
)

// Errno returns the errno the GPIO character device returns for err.
//
// Returns 0 for a nil error.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	switch {
	case errors.Is(err, gpiolib.ErrBusy),
		errors.Is(err, irq.ErrBusy),
		errors.Is(err, ErrAlreadyWatched),
		errors.Is(err, ErrNotWatched):
		return unix.EBUSY
	case errors.Is(err, gpiolib.ErrGone),
		errors.Is(err, gpiolib.ErrOwnerGone):
		return unix.ENODEV
	case errors.Is(err, gpiolib.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, ErrWouldBlock):
		return unix.EAGAIN
	case errors.Is(err, ErrPermissionDenied):
		return unix.EPERM
	case errors.Is(err, gpiolib.ErrNoIRQ),
		errors.Is(err, irq.ErrNoIRQ):
		return unix.ENXIO
	case errors.Is(err, gpiolib.ErrNotSupported):
		return unix.EOPNOTSUPP
	case errors.Is(err, ErrClosed),
		errors.Is(err, gpiolib.ErrClosed):
		return unix.EBADF
	case errors.Is(err, ErrBadArgument):
		return unix.EFAULT
	case errors.Is(err, ErrInvalidCount),
		errors.Is(err, ErrUnknownFlag),
		errors.Is(err, ErrInvalidFlags),
		errors.Is(err, ErrOutputRequested),
		errors.Is(err, ErrShortBuffer),
		errors.Is(err, ErrUnknownRequest),
		errors.Is(err, gpiolib.ErrInvalidOffset),
		errors.Is(err, gpiolib.ErrInvalidCount):
		return unix.EINVAL
	}
	// ErrIsOutput, ErrUsedAsIRQ and driver failures
	return unix.EIO
}
