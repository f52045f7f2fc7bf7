// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package irq

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is a contiguous range of global interrupt numbers.
//
// Numbers are handed out lowest first, so the allocation for a given sequence
// of Alloc and Release calls is deterministic.
type Pool struct {
	base int
	log  logrus.FieldLogger

	// mu covers descs.
	mu sync.Mutex

	// allocated descriptors, indexed by irq-base; nil entries are free.
	descs []*Desc
}

// PoolOption defines the interface required to provide a Pool option.
type PoolOption interface {
	applyPoolOption(*Pool)
}

// LoggerOption provides the logger for the pool.
type LoggerOption struct {
	log logrus.FieldLogger
}

// WithLogger specifies the logger used to report spurious and unhandled
// interrupts.
func WithLogger(log logrus.FieldLogger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyPoolOption(p *Pool) {
	p.log = o.log
}

// NewPool creates a pool of size interrupt numbers starting from base.
func NewPool(base, size int, options ...PoolOption) *Pool {
	if size < 0 {
		size = 0
	}
	p := &Pool{
		base:  base,
		log:   logrus.StandardLogger(),
		descs: make([]*Desc, size),
	}
	for _, option := range options {
		option.applyPoolOption(p)
	}
	return p
}

// Base returns the first interrupt number in the pool.
func (p *Pool) Base() int {
	return p.base
}

// Size returns the number of interrupts in the pool.
func (p *Pool) Size() int {
	return len(p.descs)
}

// Available returns the number of unallocated interrupts in the pool.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, d := range p.descs {
		if d == nil {
			n++
		}
	}
	return n
}

// Alloc allocates the lowest free interrupt number from the pool.
func (p *Pool) Alloc(name string) (*Desc, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, d := range p.descs {
		if d == nil {
			d = &Desc{irq: p.base + i, name: name, pool: p}
			p.descs[i] = d
			return d, nil
		}
	}
	return nil, ErrNoIRQ
}

// Release returns the interrupt number to the pool.
//
// The interrupt must not have a handler bound.
func (p *Pool) Release(irq int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := irq - p.base
	if idx < 0 || idx >= len(p.descs) || p.descs[idx] == nil {
		return ErrInvalidIRQ
	}
	d := p.descs[idx]
	if d.bound() {
		return ErrBusy
	}
	p.descs[idx] = nil
	return nil
}

// Desc returns the descriptor for an allocated interrupt.
func (p *Pool) Desc(irq int) (*Desc, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := irq - p.base
	if idx < 0 || idx >= len(p.descs) || p.descs[idx] == nil {
		return nil, ErrInvalidIRQ
	}
	return p.descs[idx], nil
}

// Request binds handlers to the interrupt.
//
// See Desc.Request.
func (p *Pool) Request(irq int, primary, thread Handler, trigger Trigger, name string, dev interface{}) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	return d.Request(primary, thread, trigger, name, dev)
}

// Free unbinds the handlers from the interrupt.
//
// See Desc.Free.
func (p *Pool) Free(irq int) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	return d.Free()
}

// SetChainedHandler installs a flow handler that takes full ownership of the
// interrupt.
func (p *Pool) SetChainedHandler(irq int, h FlowHandler) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	return d.setChained(h)
}

// RemoveChainedHandler removes a flow handler installed by SetChainedHandler.
func (p *Pool) RemoveChainedHandler(irq int) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	return d.removeChained()
}

// Handle raises the interrupt.
//
// The primary handler, or chained flow handler, runs in the calling context.
func (p *Pool) Handle(irq int) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	d.handle()
	return nil
}

// HandleNested raises an interrupt whose source runs in a context that may
// block.
//
// The thread handler runs directly in the calling context.
func (p *Pool) HandleNested(irq int) error {
	d, err := p.Desc(irq)
	if err != nil {
		return err
	}
	d.handleNested()
	return nil
}
