// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"github.com/sirupsen/logrus"
)

// RegistryOption defines the interface required to provide a Registry option.
type RegistryOption interface {
	applyRegistryOption(*Registry)
}

// LoggerOption specifies the logger for the registry.
type LoggerOption struct {
	log logrus.FieldLogger
}

// WithLogger specifies the logger used by the registry and its chips.
func WithLogger(log logrus.FieldLogger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyRegistryOption(r *Registry) {
	r.log = o.log
}

// MaxGPIOOption specifies the size of the global line numbering.
type MaxGPIOOption int

// WithMaxGPIO specifies the size of the global line numbering.
//
// Chips must fit in the range [0,max).  The default is 512.
func WithMaxGPIO(max int) MaxGPIOOption {
	return MaxGPIOOption(max)
}

func (o MaxGPIOOption) applyRegistryOption(r *Registry) {
	r.maxGPIO = int(o)
}

// ChipOption defines the interface required to provide a Chip option.
type ChipOption interface {
	applyChipOption(*ChipOptions)
}

// ChipOptions contains the options for a Chip.
type ChipOptions struct {
	base      int
	names     []string
	hogs      []Hog
	validMask []bool
	owner     *Owner
	canSleep  bool
	device    string
}

// BaseOption specifies the first global line number of the chip.
type BaseOption int

// WithBase specifies the first global line number of the chip.
//
// A negative base, which is the default, requests that a base be assigned.
func WithBase(base int) BaseOption {
	return BaseOption(base)
}

func (o BaseOption) applyChipOption(c *ChipOptions) {
	c.base = int(o)
}

// NamesOption specifies the names of the lines on the chip.
type NamesOption []string

// WithNames specifies the names of the lines on the chip, in offset order.
//
// Empty names are left unnamed.  There may be fewer names than lines, but not
// more.
func WithNames(names ...string) NamesOption {
	return NamesOption(names)
}

func (o NamesOption) applyChipOption(c *ChipOptions) {
	c.names = []string(o)
}

// HogDirection is the direction a hogged line is configured to.
type HogDirection int

const (
	// HogInput hogs the line as an input.
	HogInput HogDirection = iota

	// HogOutputLow hogs the line as an output, driven inactive.
	HogOutputLow

	// HogOutputHigh hogs the line as an output, driven active.
	HogOutputHigh
)

// Hog is a line requested by the chip itself when it is registered.
type Hog struct {
	Offset    int
	Consumer  string
	Direction HogDirection
	ActiveLow bool
}

// HogOption specifies a line to be hogged.
type HogOption Hog

// WithHog specifies a line to be requested by the chip when it is registered.
//
// The hog is held until the chip is unregistered.
func WithHog(offset int, consumer string, direction HogDirection) HogOption {
	return HogOption{Offset: offset, Consumer: consumer, Direction: direction}
}

// WithActiveLowHog specifies an active low line to be requested by the chip
// when it is registered.
func WithActiveLowHog(offset int, consumer string, direction HogDirection) HogOption {
	return HogOption{Offset: offset, Consumer: consumer, Direction: direction, ActiveLow: true}
}

func (o HogOption) applyChipOption(c *ChipOptions) {
	c.hogs = append(c.hogs, Hog(o))
}

// ValidMaskOption specifies the lines that may be used as interrupts.
type ValidMaskOption []bool

// WithValidMask specifies the lines that may be mapped to interrupts, indexed
// by offset.  Lines beyond the end of the mask are invalid.
//
// By default all lines are valid.
func WithValidMask(mask ...bool) ValidMaskOption {
	return ValidMaskOption(mask)
}

func (o ValidMaskOption) applyChipOption(c *ChipOptions) {
	c.validMask = []bool(o)
}

// OwnerOption specifies the owner of the chip.
type OwnerOption struct {
	o *Owner
}

// WithOwner specifies the owner of the chip.
//
// The owner is referenced for every line requested from outside the chip, and
// for every line used as an interrupt.
func WithOwner(o *Owner) OwnerOption {
	return OwnerOption{o}
}

func (o OwnerOption) applyChipOption(c *ChipOptions) {
	c.owner = o.o
}

// CanSleepOption indicates the driver may block.
type CanSleepOption bool

// WithCanSleep indicates the driver operations may block, and so must not be
// called from a primary interrupt handler.
func WithCanSleep() CanSleepOption {
	return CanSleepOption(true)
}

func (o CanSleepOption) applyChipOption(c *ChipOptions) {
	c.canSleep = bool(o)
}

// DeviceOption names the device that provides the chip.
type DeviceOption string

// WithDevice names the device that provides the chip, as reported in the
// DEVPATH of the chip uevents.
func WithDevice(name string) DeviceOption {
	return DeviceOption(name)
}

func (o DeviceOption) applyChipOption(c *ChipOptions) {
	c.device = string(o)
}
