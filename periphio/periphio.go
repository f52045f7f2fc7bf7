// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package periphio exposes the lines of a chip as periph.io GPIO pins.
//
// Pins request their line on first use, as an input or output handle, or as
// an event when edge detection is enabled, and hold it until closed.
package periphio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib/cdev"
	"github.com/warthog618/gpiolib/uapi"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

var (
	// ErrPullNotSupported indicates a pull was requested, which the
	// character device cannot configure.
	ErrPullNotSupported = errors.New("pull not supported")

	// ErrPWMNotSupported indicates a PWM output was requested.
	ErrPWMNotSupported = errors.New("PWM not supported")

	// ErrUnsupportedFunc indicates SetFunc was passed a function other than
	// those returned by SupportedFuncs.
	ErrUnsupportedFunc = errors.New("unsupported function")
)

type direction int

const (
	dirNotSet direction = iota
	dirInput
	dirOutput
)

// Pin is a line of a chip, implementing gpio.PinIO.
type Pin struct {
	s        *cdev.Session
	offset   int
	number   int
	name     string
	consumer string
	log      logrus.FieldLogger

	mu   sync.Mutex
	dir  direction
	edge gpio.Edge
	lh   *cdev.LineHandle
	le   *cdev.LineEvent

	// cancels an in progress WaitForEdge
	hmu  sync.Mutex
	halt context.CancelFunc
}

var (
	_ gpio.PinIO  = &Pin{}
	_ pin.PinFunc = &Pin{}
)

// NewPin creates a pin for the line at offset on the session's chip.
//
// The pin is named after the line, or GPIO and the global line number if
// the line is unnamed.  The consumer labels the line when requested.
func NewPin(s *cdev.Session, offset int, consumer string) (*Pin, error) {
	c := s.Chip()
	d, err := c.Desc(offset)
	if err != nil {
		return nil, err
	}
	name := d.Name()
	if name == "" {
		name = fmt.Sprintf("GPIO%d", d.GPIO())
	}
	return &Pin{
		s:        s,
		offset:   offset,
		number:   d.GPIO(),
		name:     name,
		consumer: consumer,
		log:      c.Logger().WithFields(logrus.Fields{"offset": offset, "pin": name}),
	}, nil
}

// Register creates a pin for every line of the session's chip and adds them
// to the periph.io gpio registry.
//
// On error any pins already registered are unregistered.
func Register(s *cdev.Session, consumer string) ([]*Pin, error) {
	pp := make([]*Pin, 0, s.Chip().Lines())
	for offset := 0; offset < s.Chip().Lines(); offset++ {
		p, err := NewPin(s, offset, consumer)
		if err == nil {
			err = gpioreg.Register(p)
		}
		if err != nil {
			Unregister(pp)
			return nil, err
		}
		pp = append(pp, p)
	}
	return pp, nil
}

// Unregister removes the pins from the periph.io gpio registry and releases
// their lines.
func Unregister(pp []*Pin) {
	for _, p := range pp {
		gpioreg.Unregister(p.name)
		p.Close()
	}
}

// Close releases the line, if requested.
func (p *Pin) Close() error {
	p.Halt()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	return nil
}

func (p *Pin) release() {
	if p.lh != nil {
		p.lh.Close()
		p.lh = nil
	}
	if p.le != nil {
		p.le.Close()
		p.le = nil
	}
	p.dir = dirNotSet
	p.edge = gpio.NoEdge
}

// String implements conn.Resource.
func (p *Pin) String() string {
	return fmt.Sprintf("%s(%d)", p.name, p.number)
}

// Halt interrupts a pending WaitForEdge.
func (p *Pin) Halt() error {
	p.hmu.Lock()
	if p.halt != nil {
		p.halt()
	}
	p.hmu.Unlock()
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.name
}

// Number returns the global line number.
func (p *Pin) Number() int {
	return p.number
}

// Offset returns the offset of the line on its chip.
func (p *Pin) Offset() int {
	return p.offset
}

// Function implements pin.Pin.
//
// Deprecated: Use Func.
func (p *Pin) Function() string {
	return string(p.Func())
}

// Func implements pin.PinFunc.
func (p *Pin) Func() pin.Func {
	p.mu.Lock()
	dir := p.dir
	p.mu.Unlock()
	switch dir {
	case dirInput:
		if p.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	case dirOutput:
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (p *Pin) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	}
	return ErrUnsupportedFunc
}

// In requests the line as an input, with edge detection if edge is not
// NoEdge.
//
// Only PullNoChange and Float are supported, as the pull is set externally.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull != gpio.PullNoChange && pull != gpio.Float {
		return ErrPullNotSupported
	}
	p.Halt()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == dirInput && p.edge == edge {
		return nil
	}
	p.release()
	if edge == gpio.NoEdge {
		lh, err := p.s.GetLineHandle(p.handleRequest(uapi.HandleRequestInput, gpio.Low))
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		p.lh = lh
	} else {
		er := uapi.EventRequest{
			Offset:      uint32(p.offset),
			HandleFlags: uapi.HandleRequestInput,
		}
		switch edge {
		case gpio.RisingEdge:
			er.EventFlags = uapi.EventRequestRisingEdge
		case gpio.FallingEdge:
			er.EventFlags = uapi.EventRequestFallingEdge
		default:
			er.EventFlags = uapi.EventRequestBothEdges
		}
		uapi.PutString(er.Consumer[:], p.consumer)
		le, err := p.s.GetLineEvent(&er)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		le.SetNonBlock(true)
		p.le = le
	}
	p.dir = dirInput
	p.edge = edge
	return nil
}

func (p *Pin) handleRequest(flags uapi.HandleFlag, l gpio.Level) *uapi.HandleRequest {
	hr := uapi.HandleRequest{Flags: flags, Lines: 1}
	hr.Offsets[0] = uint32(p.offset)
	if l {
		hr.DefaultValues[0] = 1
	}
	uapi.PutString(hr.Consumer[:], p.consumer)
	return &hr
}

// Read returns the level of the line.
//
// The line is requested as an input if not already requested.  Errors are
// logged and read as Low.
func (p *Pin) Read() gpio.Level {
	p.mu.Lock()
	dir := p.dir
	p.mu.Unlock()
	if dir == dirNotSet {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			p.log.WithError(err).Error("read failed")
			return gpio.Low
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var v int
	var err error
	switch {
	case p.le != nil:
		v, err = p.le.Value()
	case p.lh != nil:
		var vv []int
		if vv, err = p.lh.Values(); err == nil {
			v = vv[0]
		}
	}
	if err != nil {
		p.log.WithError(err).Error("read failed")
		return gpio.Low
	}
	return v != 0
}

// WaitForEdge waits for an edge, or returns immediately if an edge has
// occurred since the last call.
//
// A negative timeout waits indefinitely.  Returns false if the timeout
// expires, the wait is halted, or the pin is not configured to detect
// edges.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	p.mu.Lock()
	le := p.le
	p.mu.Unlock()
	if le == nil {
		p.log.Warn("wait for edge on line without edge detection")
		return false
	}
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout < 0 {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	p.hmu.Lock()
	p.halt = cancel
	p.hmu.Unlock()
	defer func() {
		p.hmu.Lock()
		p.halt = nil
		p.hmu.Unlock()
		cancel()
	}()
	ok, err := le.Wait(ctx)
	if !ok || err != nil {
		return false
	}
	_, err = le.ReadEvent()
	return err == nil
}

// Pull returns PullNoChange as the pull is not controlled by the pin.
func (p *Pin) Pull() gpio.Pull {
	return gpio.PullNoChange
}

// DefaultPull returns PullNoChange as the pull is not controlled by the pin.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out requests the line as an output, if not already, and sets its level.
func (p *Pin) Out(l gpio.Level) error {
	p.Halt()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == dirOutput {
		v := 0
		if l {
			v = 1
		}
		return p.lh.SetValues([]int{v})
	}
	p.release()
	lh, err := p.s.GetLineHandle(p.handleRequest(uapi.HandleRequestOutput, l))
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	p.lh = lh
	p.dir = dirOutput
	return nil
}

// PWM is not supported.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return ErrPWMNotSupported
}
