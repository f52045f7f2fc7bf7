// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultMaxGPIO is the default size of the global line numbering.
const DefaultMaxGPIO = 512

// Registry is a collection of chips, ordered by base, with non-overlapping
// ranges of global line numbers.
type Registry struct {
	log     logrus.FieldLogger
	maxGPIO int

	// mu covers the chip list, chip ids, and the state of every line on every
	// chip.
	mu    sync.Mutex
	chips []*Chip
	ids   []bool

	// uevent monitors
	mmu      sync.Mutex
	monitors []*monitor
	seqnum   uint64
}

var defaultRegistry = NewRegistry()

// Default returns the process wide registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry creates an empty Registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		log:     logrus.StandardLogger(),
		maxGPIO: DefaultMaxGPIO,
	}
	for _, option := range options {
		option.applyRegistryOption(r)
	}
	return r
}

// MaxGPIO returns the size of the global line numbering.
func (r *Registry) MaxGPIO() int {
	return r.maxGPIO
}

// Register adds a chip with ngpio lines, accessed through drv, to the
// registry.
//
// Unless a base is provided with WithBase, the chip is assigned the highest
// free range of global line numbers that will contain it.
func (r *Registry) Register(label string, ngpio int, drv Driver, options ...ChipOption) (*Chip, error) {
	co := ChipOptions{base: -1, device: "gpiolib"}
	for _, option := range options {
		option.applyChipOption(&co)
	}
	if ngpio <= 0 || ngpio > r.maxGPIO || len(co.names) > ngpio {
		return nil, ErrInvalidCount
	}
	if drv == nil {
		return nil, ErrNotSupported
	}
	c := &Chip{
		reg:      r,
		label:    label,
		descs:    make([]Desc, ngpio),
		owner:    co.owner,
		canSleep: co.canSleep,
		valid:    co.validMask,
		drv:      drv,
		refs:     1,
		watchers: map[int]LineChangeHandler{},
	}
	for i := range c.descs {
		c.descs[i].chip = c
		c.descs[i].offset = i
		if i < len(co.names) {
			c.descs[i].name = co.names[i]
		}
	}

	r.mu.Lock()
	base := co.base
	if base < 0 {
		base = r.findBase(ngpio)
		if base < 0 {
			r.mu.Unlock()
			return nil, ErrNoSpace
		}
	} else if base > r.maxGPIO-ngpio {
		r.mu.Unlock()
		return nil, ErrNoSpace
	}
	c.base = base
	if err := r.insert(c); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	c.id = r.allocID()
	c.name = fmt.Sprintf("gpiochip%d", c.id)
	c.devpath = fmt.Sprintf("/devices/platform/%s/%s", co.device, c.name)
	c.log = r.log.WithFields(logrus.Fields{"chip": c.name, "label": label})
	r.mu.Unlock()

	for _, h := range co.hogs {
		c.hog(h)
	}
	c.log.WithFields(logrus.Fields{
		"base":  base,
		"lines": ngpio,
	}).Info("registered")
	r.publish(c, actionAdd)
	return c, nil
}

// findBase returns the highest base that will fit a chip of ngpio lines, or
// -1 if there is no space.
//
// Must be called with the mutex held.
func (r *Registry) findBase(ngpio int) int {
	base := r.maxGPIO - ngpio
	for i := len(r.chips) - 1; i >= 0; i-- {
		c := r.chips[i]
		if c.base+len(c.descs) <= base {
			break
		}
		base = c.base - ngpio
	}
	if base < 0 {
		return -1
	}
	return base
}

// insert adds the chip to the list, maintaining base order.
//
// Must be called with the mutex held.
func (r *Registry) insert(c *Chip) error {
	end := c.base + len(c.descs)
	i := sort.Search(len(r.chips), func(i int) bool {
		return r.chips[i].base >= c.base
	})
	if i < len(r.chips) && r.chips[i].base < end {
		n := r.chips[i]
		return ErrRangeOverlap{Base: c.base, Count: len(c.descs), Chip: n.name}
	}
	if i > 0 {
		p := r.chips[i-1]
		if p.base+len(p.descs) > c.base {
			return ErrRangeOverlap{Base: c.base, Count: len(c.descs), Chip: p.name}
		}
	}
	r.chips = append(r.chips, nil)
	copy(r.chips[i+1:], r.chips[i:])
	r.chips[i] = c
	return nil
}

// allocID returns the lowest free chip id.
//
// Must be called with the mutex held.
func (r *Registry) allocID() int {
	for i, used := range r.ids {
		if !used {
			r.ids[i] = true
			return i
		}
	}
	r.ids = append(r.ids, true)
	return len(r.ids) - 1
}

// Unregister removes the chip.
//
// Hogged lines are freed, the interrupt domain detached, and the driver
// released, so no further driver operations are performed for the chip.  Lines
// still held by clients remain held, but their operations fail with ErrGone.
// The chip remains in the registry, occupying its range, until the last
// reference on it is released.
func (r *Registry) Unregister(c *Chip) error {
	r.mu.Lock()
	if c.reg != r || c.removed {
		r.mu.Unlock()
		return ErrGone
	}
	c.removed = true
	hogs := c.hogs
	c.hogs = nil
	r.mu.Unlock()

	for _, l := range hogs {
		l.Close()
	}

	r.mu.Lock()
	c.drv = nil
	r.mu.Unlock()

	c.detachIRQChip()

	r.mu.Lock()
	requested := 0
	for i := range c.descs {
		if c.descs[i].flags&FlagRequested != 0 {
			requested++
		}
	}
	r.mu.Unlock()
	if requested != 0 {
		c.log.WithField("requested", requested).Error("removing chip with lines still requested")
	}
	c.log.Info("unregistered")
	r.publish(c, actionRemove)
	c.Put()
	return nil
}

// release removes the chip from the list once the last reference is dropped.
func (r *Registry) release(c *Chip) {
	r.mu.Lock()
	for i, n := range r.chips {
		if n == c {
			r.chips = append(r.chips[:i], r.chips[i+1:]...)
			break
		}
	}
	if c.id < len(r.ids) {
		r.ids[c.id] = false
	}
	r.mu.Unlock()
	c.log.Debug("released")
}

// Chips returns the chips in the registry, ordered by base.
func (r *Registry) Chips() []*Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := make([]*Chip, len(r.chips))
	copy(cc, r.chips)
	return cc
}

// Chip returns the chip with the given name or label.
func (r *Registry) Chip(name string) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chips {
		if c.name == name {
			return c, nil
		}
	}
	for _, c := range r.chips {
		if c.label == name {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// OpenChip returns the live chip with the given name or label, with a
// reference taken on it.
//
// The caller must release the reference with Put.
func (r *Registry) OpenChip(name string) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c *Chip
	for _, n := range r.chips {
		if n.name == name {
			c = n
			break
		}
	}
	if c == nil {
		for _, n := range r.chips {
			if n.label == name {
				c = n
				break
			}
		}
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.drv == nil {
		return nil, ErrGone
	}
	c.Get()
	return c, nil
}

// ToDesc returns the line with the given global line number.
func (r *Registry) ToDesc(gpio int) (*Desc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.Search(len(r.chips), func(i int) bool {
		c := r.chips[i]
		return c.base+len(c.descs) > gpio
	})
	if i < len(r.chips) {
		c := r.chips[i]
		if gpio >= c.base {
			return &c.descs[gpio-c.base], nil
		}
	}
	return nil, ErrNotFound
}

// FindLine returns the first line, in registry order, with the given name.
func (r *Registry) FindLine(name string) (*Desc, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chips {
		for i := range c.descs {
			if c.descs[i].name == name {
				return &c.descs[i], nil
			}
		}
	}
	return nil, ErrNotFound
}
