// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package irq provides a pool of global interrupt numbers and the machinery to
// bind handlers to them and dispatch interrupts to those handlers.
//
// Interrupts are identified by their global number.  A number is allocated
// from a Pool, optionally attached to the controller that sources it, and then
// bound to a handler with Request.  Sources raise the interrupt with Handle,
// or HandleNested when the source itself runs in a context that may block.
//
// Handlers come in two parts, as in the Linux kernel.  The primary handler runs
// inline in the context that raised the interrupt.  The optional thread
// handler runs on a goroutine dedicated to the interrupt and is woken when the
// primary handler returns WakeThread.
package irq

import (
	"errors"
	"fmt"
)

// Trigger indicates the condition that raises an interrupt.
type Trigger int

const (
	// TriggerNone indicates the trigger is left as is.
	TriggerNone Trigger = 0

	// TriggerRising triggers on a transition from low to high.
	TriggerRising Trigger = 1 << (iota - 1)

	// TriggerFalling triggers on a transition from high to low.
	TriggerFalling

	// TriggerHigh triggers while the level is high.
	TriggerHigh

	// TriggerLow triggers while the level is low.
	TriggerLow

	// TriggerBoth triggers on both rising and falling edges.
	TriggerBoth = TriggerRising | TriggerFalling

	// TriggerMask covers all valid trigger bits.
	TriggerMask = TriggerBoth | TriggerHigh | TriggerLow
)

// IsRising returns true if the trigger includes rising edges.
func (t Trigger) IsRising() bool {
	return t&TriggerRising != 0
}

// IsFalling returns true if the trigger includes falling edges.
func (t Trigger) IsFalling() bool {
	return t&TriggerFalling != 0
}

func (t Trigger) String() string {
	switch t & TriggerMask {
	case TriggerNone:
		return "none"
	case TriggerRising:
		return "rising"
	case TriggerFalling:
		return "falling"
	case TriggerBoth:
		return "both"
	case TriggerHigh:
		return "high"
	case TriggerLow:
		return "low"
	}
	return fmt.Sprintf("trigger(%#x)", int(t))
}

// Return is the result of a handler invocation.
type Return int

const (
	// None indicates the interrupt was not for this handler.
	None Return = iota

	// Handled indicates the interrupt has been fully handled.
	Handled

	// WakeThread requests the thread handler be run.
	WakeThread
)

// Handler services an interrupt.
//
// The dev is the cookie provided when the handler was bound.
type Handler func(irq int, dev interface{}) Return

// FlowHandler replaces the handler flow entirely, and is used by controllers
// that cascade their interrupts from a parent interrupt.
type FlowHandler func(d *Desc)

// Chip is the set of callbacks provided by the controller that sources an
// interrupt.
type Chip interface {
	// RequestResources is called when a handler is bound to the interrupt.
	//
	// Returning an error prevents the binding.
	RequestResources(d *Desc) error

	// ReleaseResources is called once the handler has been unbound.
	ReleaseResources(d *Desc)

	// SetType configures the trigger for the interrupt.
	SetType(d *Desc, t Trigger) error

	// Mask prevents the source raising the interrupt.
	Mask(d *Desc)

	// Unmask allows the source to raise the interrupt.
	Unmask(d *Desc)
}

var (
	// ErrBusy indicates the interrupt already has a handler bound.
	ErrBusy = errors.New("interrupt busy")

	// ErrInvalidIRQ indicates the interrupt number is not allocated from the
	// pool.
	ErrInvalidIRQ = errors.New("invalid interrupt")

	// ErrNoHandler indicates neither a primary nor a thread handler was
	// provided.
	ErrNoHandler = errors.New("no handler provided")

	// ErrNoIRQ indicates the pool has no free interrupt numbers.
	ErrNoIRQ = errors.New("no interrupt available")

	// ErrNotBound indicates the interrupt has no handler to free.
	ErrNotBound = errors.New("interrupt not bound")
)
