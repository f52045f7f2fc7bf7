// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/uapi"
)

// LineHandle is a set of lines on a chip, requested together, with batched
// access to their values.
type LineHandle struct {
	chip    *gpiolib.Chip
	label   string
	offsets []int
	leases  []*gpiolib.Lease
	log     logrus.FieldLogger

	// mu covers flags and closed, and serialises reconfiguration against
	// value access.
	mu     sync.RWMutex
	flags  uapi.HandleFlag
	closed bool
}

func validateHandleFlags(f uapi.HandleFlag) error {
	if f.HasUnknown() {
		return ErrUnknownFlag
	}
	if f.IsInput() && f.IsOutput() {
		return ErrInvalidFlags
	}
	if f.IsOpenDrain() && f.IsOpenSource() {
		return ErrInvalidFlags
	}
	if !f.IsOutput() && (f.IsOpenDrain() || f.IsOpenSource()) {
		return ErrInvalidFlags
	}
	return nil
}

func drive(f uapi.HandleFlag) gpiolib.Drive {
	switch {
	case f.IsOpenDrain():
		return gpiolib.DriveOpenDrain
	case f.IsOpenSource():
		return gpiolib.DriveOpenSource
	}
	return gpiolib.DrivePushPull
}

// GetLineHandle requests the lines in the request and returns a handle
// holding them.
//
// Either all the lines are requested or none are.
func (s *Session) GetLineHandle(req *uapi.HandleRequest) (*LineHandle, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	n := int(req.Lines)
	if n < 1 || n > uapi.HandlesMax {
		return nil, ErrInvalidCount
	}
	if err := validateHandleFlags(req.Flags); err != nil {
		return nil, err
	}
	for _, o := range req.Offsets[:n] {
		if int(o) >= s.chip.Lines() {
			return nil, gpiolib.ErrInvalidOffset
		}
	}
	label := uapi.BytesToString(req.Consumer[:])
	lh := &LineHandle{
		chip:    s.chip,
		label:   label,
		offsets: make([]int, n),
		leases:  make([]*gpiolib.Lease, 0, n),
		flags:   req.Flags,
		log:     s.log.WithField("consumer", label),
	}
	for i, o := range req.Offsets[:n] {
		lh.offsets[i] = int(o)
	}
	for _, o := range lh.offsets {
		l, err := s.chip.RequestLine(o, label)
		if err != nil {
			lh.log.WithError(err).WithField("offset", o).Debug("handle request failed")
			lh.release()
			return nil, err
		}
		lh.leases = append(lh.leases, l)
	}
	if err := lh.configure(req.Flags, req.DefaultValues[:n]); err != nil {
		lh.release()
		return nil, err
	}
	lh.log.WithField("lines", n).Debug("handle requested")
	return lh, nil
}

// configure applies active low and drive, then the direction.
func (lh *LineHandle) configure(f uapi.HandleFlag, values []uint8) error {
	for i, l := range lh.leases {
		if err := l.SetActiveLow(f.IsActiveLow()); err != nil {
			return err
		}
		if err := l.SetDrive(drive(f)); err != nil {
			return err
		}
		switch {
		case f.IsOutput():
			if err := l.DirectionOutput(int(values[i])); err != nil {
				return err
			}
		case f.IsInput():
			if err := l.DirectionInput(); err != nil {
				return err
			}
		}
	}
	return nil
}

// release frees the requested lines in reverse order.
func (lh *LineHandle) release() {
	for i := len(lh.leases) - 1; i >= 0; i-- {
		lh.leases[i].Close()
	}
	lh.leases = nil
}

// Close releases the lines.
//
// Closing a closed handle has no effect.
func (lh *LineHandle) Close() error {
	lh.mu.Lock()
	defer lh.mu.Unlock()
	if lh.closed {
		return nil
	}
	lh.closed = true
	lh.release()
	lh.log.Debug("handle released")
	return nil
}

// Lines returns the number of lines held by the handle.
func (lh *LineHandle) Lines() int {
	return len(lh.offsets)
}

// Offsets returns the offsets of the lines held by the handle, in request
// order.
func (lh *LineHandle) Offsets() []int {
	oo := make([]int, len(lh.offsets))
	copy(oo, lh.offsets)
	return oo
}

// Values returns the logical values of the lines, in request order.
func (lh *LineHandle) Values() ([]int, error) {
	lh.mu.RLock()
	defer lh.mu.RUnlock()
	if lh.closed {
		return nil, ErrClosed
	}
	vv := make([]int, len(lh.leases))
	if err := gpiolib.GetArray(lh.leases, vv); err != nil {
		return nil, err
	}
	return vv, nil
}

// SetValues sets the logical values of the lines, in request order.
//
// The lines must have been requested as outputs.  Values beyond the number of
// lines are ignored, and missing values are set low.
func (lh *LineHandle) SetValues(values []int) error {
	lh.mu.RLock()
	defer lh.mu.RUnlock()
	if lh.closed {
		return ErrClosed
	}
	if !lh.flags.IsOutput() {
		return ErrPermissionDenied
	}
	vv := make([]int, len(lh.leases))
	copy(vv, values)
	return gpiolib.SetArray(lh.leases, vv)
}

// SetConfig reconfigures the lines.
//
// The config is validated as per the flags of a handle request.
func (lh *LineHandle) SetConfig(cfg *uapi.HandleConfig) error {
	if err := validateHandleFlags(cfg.Flags); err != nil {
		return err
	}
	lh.mu.Lock()
	if lh.closed {
		lh.mu.Unlock()
		return ErrClosed
	}
	err := lh.configure(cfg.Flags, cfg.DefaultValues[:len(lh.leases)])
	if err == nil {
		lh.flags = cfg.Flags
	}
	lh.mu.Unlock()
	if err != nil {
		return err
	}
	for _, o := range lh.offsets {
		lh.chip.Notify(o, gpiolib.LineReconfigured)
	}
	return nil
}

// Ioctl performs the request identified by code.
//
// GET_LINE_VALUES and SET_LINE_VALUES take a *uapi.HandleData, and
// SET_CONFIG a *uapi.HandleConfig.
func (lh *LineHandle) Ioctl(code uapi.Ioctl, arg interface{}) (io.Closer, error) {
	switch code {
	case uapi.GetLineValuesIoctl:
		hd, ok := arg.(*uapi.HandleData)
		if !ok {
			return nil, ErrBadArgument
		}
		vv, err := lh.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range vv {
			hd[i] = uint8(v)
		}
	case uapi.SetLineValuesIoctl:
		hd, ok := arg.(*uapi.HandleData)
		if !ok {
			return nil, ErrBadArgument
		}
		vv := make([]int, uapi.HandlesMax)
		for i, v := range hd {
			vv[i] = int(v)
		}
		return nil, lh.SetValues(vv)
	case uapi.SetLineConfigIoctl:
		hc, ok := arg.(*uapi.HandleConfig)
		if !ok {
			return nil, ErrBadArgument
		}
		return nil, lh.SetConfig(hc)
	default:
		return nil, ErrUnknownRequest
	}
	return nil, nil
}
