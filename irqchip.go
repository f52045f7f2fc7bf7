// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib/irq"
)

// NoParent indicates the chip has no parent interrupt, and raises the
// interrupts for its lines directly with HandleIRQ.
const NoParent = -1

// DispatchMode determines how interrupts are dispatched from the parent
// interrupt to the interrupts for the individual lines.
type DispatchMode int

const (
	// DispatchChained indicates the domain owns the parent interrupt and
	// demultiplexes it in the context the parent is raised.
	//
	// The driver must not sleep.
	DispatchChained DispatchMode = iota

	// DispatchNested indicates the parent interrupt is demultiplexed in a
	// thread, and the line interrupts run their thread handlers in that
	// context.
	//
	// Required for drivers that may sleep.
	DispatchNested
)

func (m DispatchMode) String() string {
	if m == DispatchNested {
		return "nested"
	}
	return "chained"
}

// IRQConfig describes the interrupt domain of a chip.
type IRQConfig struct {
	// The pool interrupts for the lines are allocated from.
	Pool *irq.Pool

	// The interrupt the chip raises when any line has an interrupt pending,
	// or NoParent.
	//
	// The driver must be an IRQDemuxer if a parent is provided.
	Parent int

	// How interrupts are dispatched.
	Mode DispatchMode

	// The trigger applied to lines when they are mapped.
	DefaultTrigger irq.Trigger
}

var (
	// ErrIRQAttached indicates the chip already has an interrupt domain.
	ErrIRQAttached = errors.New("interrupt domain already attached")

	// ErrNoDemuxer indicates the chip has a parent interrupt but the driver
	// cannot report which lines are pending.
	ErrNoDemuxer = errors.New("driver cannot demultiplex interrupts")
)

// irqDomain maps the lines of a chip to interrupts.
type irqDomain struct {
	cfg  IRQConfig
	chip *Chip
	ic   irqChip

	// covered by Chip.dmu
	irqs     []int
	detached bool
}

// irqChip provides the irq.Chip callbacks for interrupts mapped to lines.
type irqChip struct {
	c *Chip
}

// AttachIRQChip attaches an interrupt domain to the chip.
//
// Every valid line is mapped to an interrupt from the pool, until the pool is
// exhausted.  Lines that could not be mapped are mapped on demand by ToIRQ.
func (c *Chip) AttachIRQChip(cfg IRQConfig) error {
	if cfg.Pool == nil {
		return ErrNoIRQ
	}
	drv, err := c.driver()
	if err != nil {
		return err
	}
	if cfg.Parent != NoParent {
		if _, ok := drv.(IRQDemuxer); !ok {
			return ErrNoDemuxer
		}
	}
	dom := &irqDomain{
		cfg:  cfg,
		chip: c,
		ic:   irqChip{c},
		irqs: make([]int, len(c.descs)),
	}
	for i := range dom.irqs {
		dom.irqs[i] = -1
	}

	c.dmu.Lock()
	if c.domain != nil {
		c.dmu.Unlock()
		return ErrIRQAttached
	}
	c.domain = dom
	mapped := 0
	for offset := range dom.irqs {
		if !c.isValidIRQ(offset) {
			continue
		}
		if _, err := dom.mapLocked(offset); err != nil {
			c.log.WithFields(logrus.Fields{
				"offset": offset,
				"mapped": mapped,
			}).Warn("interrupt pool exhausted - remaining lines mapped on demand")
			break
		}
		mapped++
	}
	c.dmu.Unlock()

	switch {
	case cfg.Parent == NoParent:
	case cfg.Mode == DispatchNested:
		err = cfg.Pool.Request(cfg.Parent, nil, dom.demuxThread, irq.TriggerNone, c.label, c)
	default:
		err = cfg.Pool.SetChainedHandler(cfg.Parent, dom.demuxChained)
	}
	if err != nil {
		c.detachIRQChip()
		return err
	}
	c.log.WithFields(logrus.Fields{
		"mode":   cfg.Mode,
		"mapped": mapped,
	}).Debug("interrupt domain attached")
	return nil
}

// mapLocked maps the line to an interrupt, allocating one if necessary.
//
// Must be called with Chip.dmu held.
func (dom *irqDomain) mapLocked(offset int) (int, error) {
	if n := dom.irqs[offset]; n >= 0 {
		return n, nil
	}
	c := dom.chip
	d, err := dom.cfg.Pool.Alloc(c.descs[offset].name)
	if err != nil {
		return -1, ErrNoIRQ
	}
	d.SetChip(dom.ic, offset, c)
	d.SetNested(dom.cfg.Mode == DispatchNested)
	if dom.cfg.DefaultTrigger != irq.TriggerNone {
		if drv, err := c.driver(); err == nil {
			if t, ok := drv.(IRQTyper); ok {
				t.SetIRQType(offset, dom.cfg.DefaultTrigger)
			}
		}
	}
	dom.irqs[offset] = d.IRQ()
	return d.IRQ(), nil
}

// ToIRQ returns the interrupt mapped to the line at offset, mapping one if
// necessary.
func (c *Chip) ToIRQ(offset int) (int, error) {
	if _, err := c.driver(); err != nil {
		return -1, err
	}
	if !c.isValidIRQ(offset) {
		return -1, ErrNoIRQ
	}
	c.dmu.Lock()
	defer c.dmu.Unlock()
	dom := c.domain
	if dom == nil || dom.detached {
		return -1, ErrNoIRQ
	}
	return dom.mapLocked(offset)
}

// IRQPool returns the pool the interrupts of the chip are allocated from, or
// nil if the chip has no interrupt domain.
func (c *Chip) IRQPool() *irq.Pool {
	c.dmu.Lock()
	defer c.dmu.Unlock()
	if c.domain == nil || c.domain.detached {
		return nil
	}
	return c.domain.cfg.Pool
}

// ToIRQ returns the interrupt mapped to the leased line.
func (l *Lease) ToIRQ() (int, error) {
	if l.IsClosed() {
		return -1, ErrClosed
	}
	return l.d.chip.ToIRQ(l.d.offset)
}

// HandleIRQ raises the interrupt for the line at offset.
//
// It is called by drivers with no parent interrupt, and by the domain itself
// when demultiplexing the parent interrupt.
func (c *Chip) HandleIRQ(offset int) error {
	if offset < 0 || offset >= len(c.descs) {
		return ErrInvalidOffset
	}
	c.dmu.Lock()
	dom := c.domain
	if dom == nil || dom.detached {
		c.dmu.Unlock()
		return ErrNoIRQ
	}
	n := dom.irqs[offset]
	c.dmu.Unlock()
	if n < 0 {
		return ErrNoIRQ
	}
	if dom.cfg.Mode == DispatchNested {
		return dom.cfg.Pool.HandleNested(n)
	}
	return dom.cfg.Pool.Handle(n)
}

func (dom *irqDomain) demux() {
	drv, err := dom.chip.driver()
	if err != nil {
		return
	}
	dm, ok := drv.(IRQDemuxer)
	if !ok {
		return
	}
	for _, offset := range dm.PendingIRQs() {
		dom.chip.HandleIRQ(offset)
	}
}

func (dom *irqDomain) demuxChained(*irq.Desc) {
	dom.demux()
}

func (dom *irqDomain) demuxThread(int, interface{}) irq.Return {
	dom.demux()
	return irq.Handled
}

// detachIRQChip unmaps every line and releases the parent interrupt.
//
// Handlers still bound to line interrupts are forcibly freed.
func (c *Chip) detachIRQChip() {
	c.dmu.Lock()
	dom := c.domain
	if dom == nil || dom.detached {
		c.dmu.Unlock()
		return
	}
	dom.detached = true
	irqs := make([]int, len(dom.irqs))
	copy(irqs, dom.irqs)
	c.dmu.Unlock()

	pool := dom.cfg.Pool
	switch {
	case dom.cfg.Parent == NoParent:
	case dom.cfg.Mode == DispatchNested:
		pool.Free(dom.cfg.Parent)
	default:
		pool.RemoveChainedHandler(dom.cfg.Parent)
	}
	for offset, n := range irqs {
		if n < 0 {
			continue
		}
		if err := pool.Release(n); errors.Is(err, irq.ErrBusy) {
			c.log.WithFields(logrus.Fields{
				"offset": offset,
				"irq":    n,
			}).Error("freeing interrupt still in use")
			pool.Free(n)
			pool.Release(n)
		}
	}
	c.dmu.Lock()
	c.domain = nil
	c.dmu.Unlock()
	c.log.Debug("interrupt domain detached")
}

// driver returns the chip driver, or ErrGone once unregistered.
func (c *Chip) driver() (Driver, error) {
	c.reg.mu.Lock()
	drv := c.drv
	c.reg.mu.Unlock()
	if drv == nil {
		return nil, ErrGone
	}
	return drv, nil
}

// LockAsIRQ marks the line at offset as in use as an interrupt source.
//
// The line must be requested and must not be an output.  A reference is taken
// on the owner of the chip until the line is unlocked or freed.  Locking a
// locked line has no further effect.
func (c *Chip) LockAsIRQ(offset int) error {
	d, err := c.Desc(offset)
	if err != nil {
		return err
	}
	drv, err := c.driver()
	if err != nil {
		return err
	}
	if !c.owner.Get() {
		return ErrOwnerGone
	}
	r := c.reg
	if !c.canSleep {
		if dg, ok := drv.(DirectionGetter); ok {
			if dir, err := dg.GetDirection(offset); err == nil {
				r.mu.Lock()
				if dir == DirectionOutput {
					d.flags |= FlagIsOut
				} else {
					d.flags &^= FlagIsOut
				}
				r.mu.Unlock()
			}
		}
	}
	r.mu.Lock()
	locked := false
	switch {
	case d.flags&FlagRequested == 0:
		err = ErrNotRequested
	case d.flags&FlagIsOut != 0:
		err = ErrIsOutput
	case d.flags&FlagUsedAsIRQ != 0:
		locked = true
	default:
		d.flags |= FlagUsedAsIRQ
	}
	r.mu.Unlock()
	if locked {
		// the existing lock holds the only reference
		c.owner.Put()
		return nil
	}
	if err != nil {
		c.owner.Put()
		d.logger().WithError(err).Error("unable to lock line as interrupt")
		return err
	}
	return nil
}

// UnlockAsIRQ clears the interrupt source mark set by LockAsIRQ and releases
// the owner reference.
func (c *Chip) UnlockAsIRQ(offset int) {
	d, err := c.Desc(offset)
	if err != nil {
		return
	}
	r := c.reg
	r.mu.Lock()
	locked := d.flags&FlagUsedAsIRQ != 0
	d.flags &^= FlagUsedAsIRQ
	r.mu.Unlock()
	if locked {
		c.owner.Put()
	}
}

func (ic irqChip) RequestResources(d *irq.Desc) error {
	return ic.c.LockAsIRQ(d.HWIRQ())
}

func (ic irqChip) ReleaseResources(d *irq.Desc) {
	ic.c.UnlockAsIRQ(d.HWIRQ())
}

func (ic irqChip) SetType(d *irq.Desc, t irq.Trigger) error {
	drv, err := ic.c.driver()
	if err != nil {
		return err
	}
	if it, ok := drv.(IRQTyper); ok {
		return it.SetIRQType(d.HWIRQ(), t)
	}
	return nil
}

func (ic irqChip) Mask(d *irq.Desc) {
	if drv, err := ic.c.driver(); err == nil {
		if m, ok := drv.(IRQMasker); ok {
			m.MaskIRQ(d.HWIRQ())
		}
	}
}

func (ic irqChip) Unmask(d *irq.Desc) {
	if drv, err := ic.c.driver(); err == nil {
		if m, ok := drv.(IRQMasker); ok {
			m.UnmaskIRQ(d.HWIRQ())
		}
	}
}
