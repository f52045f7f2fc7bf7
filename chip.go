// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Chip is a registered GPIO controller.
type Chip struct {
	reg *Registry
	log logrus.FieldLogger

	// assigned at registration and immutable thereafter.
	id       int
	name     string
	label    string
	base     int
	descs    []Desc
	owner    *Owner
	canSleep bool
	devpath  string
	valid    []bool

	// drv is covered by the registry mutex, and is nil once unregistered.
	drv     Driver
	removed bool

	// references on the chip, including the registry's own.
	refs int32

	// lines hogged at registration, covered by the registry mutex.
	hogs []*Lease

	// the interrupt domain, if attached.
	dmu    sync.Mutex
	domain *irqDomain

	// handlers for line changes.
	wmu      sync.Mutex
	watchers map[int]LineChangeHandler
	nextw    int
}

// Name returns the system name of the chip, gpiochipN.
func (c *Chip) Name() string {
	return c.name
}

// Label returns the label provided when the chip was registered.
func (c *Chip) Label() string {
	return c.label
}

// Base returns the global line number of the first line on the chip.
func (c *Chip) Base() int {
	return c.base
}

// Lines returns the number of lines on the chip.
func (c *Chip) Lines() int {
	return len(c.descs)
}

// CanSleep returns true if the driver operations may block.
func (c *Chip) CanSleep() bool {
	return c.canSleep
}

// Owner returns the owner of the chip, which may be nil.
func (c *Chip) Owner() *Owner {
	return c.owner
}

// Logger returns the logger for the chip, which carries the chip name and
// label.
func (c *Chip) Logger() logrus.FieldLogger {
	return c.log
}

// IsLive returns true until the chip is unregistered.
func (c *Chip) IsLive() bool {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	return c.drv != nil
}

// Desc returns the line at offset.
func (c *Chip) Desc(offset int) (*Desc, error) {
	if offset < 0 || offset >= len(c.descs) {
		return nil, ErrInvalidOffset
	}
	return &c.descs[offset], nil
}

// LineInfo returns a snapshot of the state of the line at offset.
func (c *Chip) LineInfo(offset int) (LineInfo, error) {
	d, err := c.Desc(offset)
	if err != nil {
		return LineInfo{}, err
	}
	return d.Info(), nil
}

// RequestLine requests the line at offset on behalf of a client.
func (c *Chip) RequestLine(offset int, label string) (*Lease, error) {
	d, err := c.Desc(offset)
	if err != nil {
		return nil, err
	}
	return d.Request(label)
}

// RequestOwnLine requests the line at offset on behalf of the chip itself.
//
// The lease does not hold a reference on the chip or its owner, so the chip
// may be unregistered while the lease is held, and must close the lease no
// later than its unregistration.
func (c *Chip) RequestOwnLine(offset int, label string) (*Lease, error) {
	d, err := c.Desc(offset)
	if err != nil {
		return nil, err
	}
	return d.requestOwn(label)
}

// Get takes a reference on the chip, which keeps the chip in the registry,
// though not necessarily live, until released with Put.
func (c *Chip) Get() {
	atomic.AddInt32(&c.refs, 1)
}

// Put releases a reference taken by Get.
//
// The chip is removed from the registry when the last reference is released.
func (c *Chip) Put() {
	n := atomic.AddInt32(&c.refs, -1)
	if n < 0 {
		panic("gpiolib: chip reference underflow")
	}
	if n == 0 {
		c.reg.release(c)
	}
}

func (c *Chip) isValidIRQ(offset int) bool {
	if offset < 0 || offset >= len(c.descs) {
		return false
	}
	if c.valid == nil {
		return true
	}
	return offset < len(c.valid) && c.valid[offset]
}
