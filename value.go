// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"time"
)

// Flags returns a snapshot of the flags of the leased line.
func (l *Lease) Flags() Flags {
	return l.d.Flags()
}

// RawValue returns the electrical level of the line, ignoring active low.
func (l *Lease) RawValue() (int, error) {
	drv, err := l.driver()
	if err != nil {
		return 0, err
	}
	v, err := drv.Get(l.d.offset)
	if err != nil {
		return 0, err
	}
	return normalize(v), nil
}

// Value returns the logical value of the line.
func (l *Lease) Value() (int, error) {
	v, err := l.RawValue()
	if err != nil {
		return 0, err
	}
	if l.d.Flags().IsActiveLow() {
		v ^= 1
	}
	return v, nil
}

// SetRawValue sets the electrical level of the line, ignoring active low.
//
// Open drain and open source lines that the driver does not support natively
// are emulated by switching the line to an input for the level they do not
// drive.  The emulation assumes the input mode of the controller floats the
// line, leaving an external pull to set the level.  Controllers without a
// floating input will drive the line to whatever level their input mode
// presents.
func (l *Lease) SetRawValue(v int) error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	return l.setRaw(drv, l.d.Flags()|l.nativeFlag(), normalize(v))
}

// SetValue sets the logical value of the line.
func (l *Lease) SetValue(v int) error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	f := l.d.Flags() | l.nativeFlag()
	v = normalize(v)
	if f.IsActiveLow() {
		v ^= 1
	}
	return l.setRaw(drv, f, v)
}

func (l *Lease) nativeFlag() Flags {
	r := l.d.chip.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	return l.d.flags & flagNativeDrive
}

func (l *Lease) setRaw(drv Driver, f Flags, v int) error {
	if f&flagNativeDrive == 0 {
		if f.IsOpenDrain() {
			if v != 0 {
				return l.directionInput(drv)
			}
			return l.directionOutputRaw(drv, 0)
		}
		if f.IsOpenSource() {
			if v == 0 {
				return l.directionInput(drv)
			}
			return l.directionOutputRaw(drv, 1)
		}
	}
	return drv.Set(l.d.offset, v)
}

// DirectionInput sets the line to an input.
func (l *Lease) DirectionInput() error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	return l.directionInput(drv)
}

func (l *Lease) directionInput(drv Driver) error {
	if err := drv.DirectionInput(l.d.offset); err != nil {
		return err
	}
	r := l.d.chip.reg
	r.mu.Lock()
	l.d.flags &^= FlagIsOut
	r.mu.Unlock()
	return nil
}

// DirectionOutput sets the line to an output with the given logical value.
//
// Fails with ErrUsedAsIRQ if the line is in use as an interrupt source.
func (l *Lease) DirectionOutput(v int) error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	f := l.d.Flags()
	v = normalize(v)
	if f.IsActiveLow() {
		v ^= 1
	}
	return l.directionOutput(drv, f, v)
}

// DirectionOutputRaw sets the line to an output with the given electrical
// level, ignoring active low and drive.
func (l *Lease) DirectionOutputRaw(v int) error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	return l.directionOutputRaw(drv, normalize(v))
}

func (l *Lease) directionOutput(drv Driver, f Flags, v int) error {
	d := l.d
	r := d.chip.reg
	ds, native := drv.(DriveSetter)
	switch {
	case f.IsOpenDrain(), f.IsOpenSource():
		drive := DriveOpenDrain
		if f.IsOpenSource() {
			drive = DriveOpenSource
		}
		if native && ds.SetDrive(d.offset, drive) == nil {
			r.mu.Lock()
			d.flags |= flagNativeDrive
			r.mu.Unlock()
			return l.directionOutputRaw(drv, v)
		}
		r.mu.Lock()
		d.flags &^= flagNativeDrive
		r.mu.Unlock()
		if (drive == DriveOpenDrain) == (v != 0) {
			// emulate by floating the undriven level
			return l.directionInput(drv)
		}
	case native:
		if err := ds.SetDrive(d.offset, DrivePushPull); err != nil {
			d.logger().WithError(err).Error("unable to set push-pull drive")
			return err
		}
	}
	return l.directionOutputRaw(drv, v)
}

func (l *Lease) directionOutputRaw(drv Driver, v int) error {
	d := l.d
	r := d.chip.reg
	r.mu.Lock()
	if d.flags&FlagUsedAsIRQ != 0 {
		r.mu.Unlock()
		d.logger().Error("refusing to set interrupt line as output")
		return ErrUsedAsIRQ
	}
	// set early so the line cannot be locked as an interrupt in the meantime
	wasOut := d.flags & FlagIsOut
	d.flags |= FlagIsOut
	r.mu.Unlock()

	if err := drv.DirectionOutput(d.offset, v); err != nil {
		r.mu.Lock()
		d.flags = d.flags&^FlagIsOut | wasOut
		r.mu.Unlock()
		return err
	}
	return nil
}

// SetActiveLow sets or clears the active low flag of the line.
func (l *Lease) SetActiveLow(activeLow bool) error {
	if l.IsClosed() {
		return ErrClosed
	}
	return l.updateFlags(FlagActiveLow, activeLow)
}

// SetDrive sets the drive of the line.
//
// The drive is applied by the next DirectionOutput.
func (l *Lease) SetDrive(drive Drive) error {
	if l.IsClosed() {
		return ErrClosed
	}
	r := l.d.chip.reg
	r.mu.Lock()
	l.d.flags &^= FlagOpenDrain | FlagOpenSource | flagNativeDrive
	switch drive {
	case DriveOpenDrain:
		l.d.flags |= FlagOpenDrain
	case DriveOpenSource:
		l.d.flags |= FlagOpenSource
	}
	r.mu.Unlock()
	return nil
}

func (l *Lease) updateFlags(f Flags, set bool) error {
	r := l.d.chip.reg
	r.mu.Lock()
	if set {
		l.d.flags |= f
	} else {
		l.d.flags &^= f
	}
	r.mu.Unlock()
	return nil
}

// SetDebounce sets the debounce period of an input line.
func (l *Lease) SetDebounce(period time.Duration) error {
	drv, err := l.driver()
	if err != nil {
		return err
	}
	db, ok := drv.(Debouncer)
	if !ok {
		return ErrNotSupported
	}
	return db.SetDebounce(l.d.offset, period)
}

func normalize(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}
