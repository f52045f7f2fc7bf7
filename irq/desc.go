// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package irq

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Desc describes one allocated interrupt.
type Desc struct {
	irq  int
	name string
	pool *Pool

	// counts of dispatched and unhandled interrupts
	count    uint64
	spurious uint64

	// cmu covers the controller attributes.
	cmu      sync.Mutex
	chip     Chip
	hwirq    int
	chipData interface{}

	// mu covers the binding attributes.
	mu      sync.Mutex
	trigger Trigger
	nested  bool
	action  *action
	chained *chained
}

type action struct {
	primary Handler
	thread  Handler
	dev     interface{}
	name    string

	// nil for nested interrupts, which run the thread handler inline.
	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	inflight sync.WaitGroup
}

type chained struct {
	h        FlowHandler
	inflight sync.WaitGroup
}

// IRQ returns the global interrupt number.
func (d *Desc) IRQ() int {
	return d.irq
}

// Name returns the name the interrupt was allocated with.
func (d *Desc) Name() string {
	return d.name
}

// HWIRQ returns the controller local number of the interrupt.
func (d *Desc) HWIRQ() int {
	d.cmu.Lock()
	defer d.cmu.Unlock()
	return d.hwirq
}

// ChipData returns the controller data attached with SetChip.
func (d *Desc) ChipData() interface{} {
	d.cmu.Lock()
	defer d.cmu.Unlock()
	return d.chipData
}

// SetChip attaches the controller that sources the interrupt.
func (d *Desc) SetChip(chip Chip, hwirq int, data interface{}) {
	d.cmu.Lock()
	d.chip = chip
	d.hwirq = hwirq
	d.chipData = data
	d.cmu.Unlock()
}

func (d *Desc) controller() Chip {
	d.cmu.Lock()
	defer d.cmu.Unlock()
	return d.chip
}

// SetNested marks the interrupt as raised from a context that may block.
//
// Nested interrupts have no thread goroutine of their own - the thread handler
// runs in the context of HandleNested.
func (d *Desc) SetNested(nested bool) {
	d.mu.Lock()
	d.nested = nested
	d.mu.Unlock()
}

// Trigger returns the currently configured trigger.
func (d *Desc) Trigger() Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trigger
}

// Count returns the number of times the interrupt has been dispatched to a
// handler.
func (d *Desc) Count() uint64 {
	return atomic.LoadUint64(&d.count)
}

// Spurious returns the number of times the interrupt was raised with no
// handler bound, or was not claimed by its handler.
func (d *Desc) Spurious() uint64 {
	return atomic.LoadUint64(&d.spurious)
}

func (d *Desc) bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.action != nil || d.chained != nil
}

// Request binds handlers to the interrupt.
//
// Either the primary or thread handler may be nil, but not both.  If primary
// is nil the thread handler is woken for every interrupt.  If the trigger is
// not TriggerNone the controller is asked to configure it.
func (d *Desc) Request(primary, thread Handler, trigger Trigger, name string, dev interface{}) error {
	if primary == nil && thread == nil {
		return ErrNoHandler
	}
	chip := d.controller()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.action != nil || d.chained != nil {
		return ErrBusy
	}
	if chip != nil {
		if err := chip.RequestResources(d); err != nil {
			return err
		}
		if trigger&TriggerMask != TriggerNone {
			if err := chip.SetType(d, trigger&TriggerMask); err != nil {
				chip.ReleaseResources(d)
				return err
			}
		}
	}
	if trigger&TriggerMask != TriggerNone {
		d.trigger = trigger & TriggerMask
	}
	a := &action{
		primary: primary,
		thread:  thread,
		dev:     dev,
		name:    name,
	}
	if thread != nil && !d.nested {
		a.wake = make(chan struct{}, 1)
		a.quit = make(chan struct{})
		a.done = make(chan struct{})
		go a.run(d.irq)
	}
	d.action = a
	if chip != nil {
		chip.Unmask(d)
	}
	return nil
}

// Free unbinds the handlers from the interrupt.
//
// Free waits for any in-flight handler invocations to complete, so on return
// no handler for the interrupt is running or will run.
func (d *Desc) Free() error {
	chip := d.controller()
	d.mu.Lock()
	a := d.action
	if a == nil {
		d.mu.Unlock()
		return ErrNotBound
	}
	d.action = nil
	if chip != nil {
		chip.Mask(d)
	}
	d.mu.Unlock()

	// synchronize - nothing may still be running the handlers on return.
	a.inflight.Wait()
	if a.quit != nil {
		close(a.quit)
		<-a.done
	}

	d.mu.Lock()
	if chip != nil {
		chip.ReleaseResources(d)
	}
	d.trigger = TriggerNone
	d.mu.Unlock()
	return nil
}

func (d *Desc) setChained(h FlowHandler) error {
	if h == nil {
		return ErrNoHandler
	}
	chip := d.controller()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.action != nil || d.chained != nil {
		return ErrBusy
	}
	d.chained = &chained{h: h}
	if chip != nil {
		chip.Unmask(d)
	}
	return nil
}

func (d *Desc) removeChained() error {
	chip := d.controller()
	d.mu.Lock()
	c := d.chained
	if c == nil {
		d.mu.Unlock()
		return ErrNotBound
	}
	d.chained = nil
	if chip != nil {
		chip.Mask(d)
	}
	d.mu.Unlock()
	c.inflight.Wait()
	return nil
}

func (d *Desc) handle() {
	d.mu.Lock()
	if c := d.chained; c != nil {
		c.inflight.Add(1)
		d.mu.Unlock()
		defer c.inflight.Done()
		atomic.AddUint64(&d.count, 1)
		c.h(d)
		return
	}
	a := d.action
	if a == nil {
		d.mu.Unlock()
		d.unhandled()
		return
	}
	a.inflight.Add(1)
	d.mu.Unlock()
	defer a.inflight.Done()

	atomic.AddUint64(&d.count, 1)
	ret := WakeThread
	if a.primary != nil {
		ret = a.primary(d.irq, a.dev)
	}
	switch ret {
	case None:
		d.unhandled()
	case WakeThread:
		a.wakeThread(d.irq)
	}
}

func (d *Desc) handleNested() {
	d.mu.Lock()
	a := d.action
	if a == nil {
		d.mu.Unlock()
		d.unhandled()
		return
	}
	a.inflight.Add(1)
	d.mu.Unlock()
	defer a.inflight.Done()

	atomic.AddUint64(&d.count, 1)
	h := a.thread
	if h == nil {
		h = a.primary
	}
	if h(d.irq, a.dev) == None {
		d.unhandled()
	}
}

func (d *Desc) unhandled() {
	n := atomic.AddUint64(&d.spurious, 1)
	d.pool.log.WithFields(logrus.Fields{
		"irq":   d.irq,
		"count": n,
	}).Debug("unhandled interrupt")
}

func (a *action) wakeThread(irq int) {
	if a.thread == nil {
		return
	}
	if a.wake == nil {
		a.thread(irq, a.dev)
		return
	}
	select {
	case a.wake <- struct{}{}:
	default:
		// thread already pending
	}
}

func (a *action) run(irq int) {
	defer close(a.done)
	for {
		select {
		case <-a.quit:
			return
		case <-a.wake:
			a.thread(irq, a.dev)
		}
	}
}
