// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup

import (
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
)

// Option defines the interface required to provide an option to New.
type Option interface {
	applyOption(*mockupOptions)
}

type mockupOptions struct {
	reg      *gpiolib.Registry
	pool     *irq.Pool
	mode     IRQMode
	setMode  bool
	canSleep bool
}

// RegistryOption specifies the registry the chips are registered with.
type RegistryOption struct {
	reg *gpiolib.Registry
}

// WithRegistry specifies the registry the chips are registered with.
//
// The default is gpiolib.Default().
func WithRegistry(r *gpiolib.Registry) RegistryOption {
	return RegistryOption{r}
}

func (o RegistryOption) applyOption(m *mockupOptions) {
	m.reg = o.reg
}

// IRQPoolOption specifies the pool interrupts are allocated from.
type IRQPoolOption struct {
	pool *irq.Pool
}

// WithIRQPool specifies the pool interrupts are allocated from.
//
// The default is a pool private to the Mockup and large enough to map every
// line.
func WithIRQPool(p *irq.Pool) IRQPoolOption {
	return IRQPoolOption{p}
}

func (o IRQPoolOption) applyOption(m *mockupOptions) {
	m.pool = o.pool
}

// WithIRQ specifies how interrupts are raised for all chips.
//
// This overrides any mode set in a layout.
func WithIRQ(mode IRQMode) IRQMode {
	return mode
}

func (o IRQMode) applyOption(m *mockupOptions) {
	m.mode = o
	m.setMode = true
}

// CanSleepOption indicates the chips may sleep when accessed.
type CanSleepOption bool

// WithCanSleep indicates the chips may sleep when accessed.
func WithCanSleep() CanSleepOption {
	return CanSleepOption(true)
}

func (o CanSleepOption) applyOption(m *mockupOptions) {
	m.canSleep = bool(o)
}
