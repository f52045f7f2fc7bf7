// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package mockup provides simulated GPIO chips registered with a gpiolib
// Registry.
//
// The chips behave like the Linux gpio-mockup module.  Each line has a pull,
// which determines its level while it is an input, and changing the pull
// raises an interrupt if the line is configured to trigger on the resulting
// edge.
//
// This is intended for testing gpiolib and its clients, but could also be
// used for testing by users of their own code that uses gpiolib.
package mockup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
	"golang.org/x/sys/unix"
)

// Mockup represents a number of GPIO chips being mocked.
type Mockup struct {
	mu     sync.Mutex
	reg    *gpiolib.Registry
	owner  *gpiolib.Owner
	device string
	pool   *irq.Pool
	cc     []*Chip
}

// Chip represents a single mocked GPIO chip.
type Chip struct {
	Name    string
	Label   string
	Lines   int
	Base    int
	DevPath string

	mode IRQMode
	pool *irq.Pool
	// the parent interrupt, for chained and nested chips.
	parent int

	// the registered chip, which is not valid until registration completes.
	chip *gpiolib.Chip

	mu      sync.Mutex
	lines   []line
	pending []int
}

type line struct {
	pull     int
	value    int
	out      bool
	trigger  irq.Trigger
	masked   bool
	debounce time.Duration
	refuse   error
}

var devices int32

// New creates a new Mockup.
//
// A number of GPIO chips can be mocked, with the number of lines on each
// specified in lines. e.g. []int{4,6} would create two chips, the first with 4
// lines and the second with 6.
//
// If namedLines is set the lines are named after the chip label and offset,
// e.g. gpio-mockup-A-3.
func New(lines []int, namedLines bool, options ...Option) (*Mockup, error) {
	if len(lines) == 0 {
		return nil, unix.EINVAL
	}
	banks := make([]Bank, len(lines))
	for i, l := range lines {
		label := fmt.Sprintf("gpio-mockup-%c", 'A'+i)
		banks[i] = Bank{Label: label, Lines: l}
		if namedLines {
			banks[i].Names = make([]string, l)
			for j := range banks[i].Names {
				banks[i].Names[j] = fmt.Sprintf("%s-%d", label, j)
			}
		}
	}
	return newMockup(banks, options...)
}

// NewFromLayout creates a new Mockup with a chip for each bank in the layout.
func NewFromLayout(l *Layout, options ...Option) (*Mockup, error) {
	if l == nil || len(l.Banks) == 0 {
		return nil, unix.EINVAL
	}
	banks := make([]Bank, len(l.Banks))
	copy(banks, l.Banks)
	for i := range banks {
		if banks[i].Label == "" {
			banks[i].Label = fmt.Sprintf("gpio-mockup-%c", 'A'+i)
		}
	}
	return newMockup(banks, options...)
}

func newMockup(banks []Bank, options ...Option) (*Mockup, error) {
	mo := mockupOptions{
		reg: gpiolib.Default(),
	}
	for _, option := range options {
		option.applyOption(&mo)
	}
	for i := range banks {
		if banks[i].Lines <= 0 {
			return nil, unix.EINVAL
		}
		if mo.setMode {
			banks[i].IRQ = mo.mode
		}
		if mo.canSleep {
			banks[i].CanSleep = true
		}
	}
	m := &Mockup{
		reg:    mo.reg,
		owner:  gpiolib.NewOwner("gpio-mockup"),
		device: fmt.Sprintf("gpio-mockup.%d", atomic.AddInt32(&devices, 1)-1),
		pool:   mo.pool,
	}
	if m.pool == nil {
		size := 0
		for _, b := range banks {
			size += b.Lines + 1
		}
		m.pool = irq.NewPool(0, size)
	}

	um, err := newUdevMonitor(m.reg, m.device)
	if err != nil {
		return nil, fmt.Errorf("failed to start udev monitor: %w", err)
	}
	defer um.close()

	for _, b := range banks {
		c, err := m.addChip(b)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.cc = append(m.cc, c)
	}
	if err = um.waitChips(m.cc); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mockup) addChip(b Bank) (*Chip, error) {
	c := &Chip{
		Label:  b.Label,
		Lines:  b.Lines,
		mode:   b.IRQ,
		pool:   m.pool,
		parent: gpiolib.NoParent,
		lines:  make([]line, b.Lines),
	}
	for i := range c.lines {
		c.lines[i].masked = true
	}
	options := []gpiolib.ChipOption{
		gpiolib.WithDevice(m.device),
		gpiolib.WithOwner(m.owner),
	}
	if b.Base != nil {
		options = append(options, gpiolib.WithBase(*b.Base))
	}
	if len(b.Names) > 0 {
		options = append(options, gpiolib.WithNames(b.Names...))
	}
	if b.CanSleep {
		options = append(options, gpiolib.WithCanSleep())
	}
	mask, err := b.irqMask()
	if err != nil {
		return nil, err
	}
	if mask != nil {
		options = append(options, gpiolib.WithValidMask(mask...))
	}
	for _, h := range b.Hogs {
		if h.ActiveLow {
			options = append(options, gpiolib.WithActiveLowHog(h.Line, h.Consumer, h.Direction.hog()))
		} else {
			options = append(options, gpiolib.WithHog(h.Line, h.Consumer, h.Direction.hog()))
		}
	}
	gc, err := m.reg.Register(b.Label, b.Lines, driver{c}, options...)
	if err != nil {
		return nil, err
	}
	c.chip = gc
	c.Name = gc.Name()
	c.Base = gc.Base()
	if err = c.attach(); err != nil {
		m.reg.Unregister(gc)
		return nil, err
	}
	return c, nil
}

func (c *Chip) attach() error {
	cfg := gpiolib.IRQConfig{
		Pool:   c.pool,
		Parent: gpiolib.NoParent,
	}
	switch c.mode {
	case IRQNone:
		return nil
	case IRQChained:
		cfg.Mode = gpiolib.DispatchChained
	case IRQNested:
		cfg.Mode = gpiolib.DispatchNested
	}
	if c.mode != IRQDirect {
		d, err := c.pool.Alloc(c.Label)
		if err != nil {
			return err
		}
		c.parent = d.IRQ()
		cfg.Parent = c.parent
	}
	err := c.chip.AttachIRQChip(cfg)
	if err != nil && c.parent != gpiolib.NoParent {
		c.pool.Release(c.parent)
		c.parent = gpiolib.NoParent
	}
	return err
}

// Registry returns the registry the chips are registered with.
func (m *Mockup) Registry() *gpiolib.Registry {
	return m.reg
}

// Owner returns the owner of the mocked chips.
func (m *Mockup) Owner() *gpiolib.Owner {
	return m.owner
}

// Device returns the name of the platform device providing the chips.
func (m *Mockup) Device() string {
	return m.device
}

// IRQPool returns the pool interrupts for the chips are allocated from.
func (m *Mockup) IRQPool() *irq.Pool {
	return m.pool
}

// Chip returns the mocked chip indicated by num.
func (m *Mockup) Chip(num int) (*Chip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if num < 0 || num >= len(m.cc) {
		return nil, ErrorIndexRange{num, len(m.cc)}
	}
	return m.cc[num], nil
}

// Chips returns the number of chips mocked.
func (m *Mockup) Chips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cc)
}

// Close unregisters all the mocked chips.
//
// Chips with lines still held by clients remain in the registry, numbed,
// until those lines are released.
func (m *Mockup) Close() error {
	m.mu.Lock()
	cc := m.cc
	m.cc = nil
	m.mu.Unlock()
	for _, c := range cc {
		m.reg.Unregister(c.chip)
		if c.parent != gpiolib.NoParent {
			c.pool.Release(c.parent)
		}
	}
	return nil
}

// GPIOChip returns the registered chip.
func (c *Chip) GPIOChip() *gpiolib.Chip {
	return c.chip
}

// Parent returns the parent interrupt of the chip, or NoParent if the line
// interrupts are raised directly.
func (c *Chip) Parent() int {
	return c.parent
}

// Value returns the value of the line.
//
// This is the value driven by the chip for outputs, else the pull.
func (c *Chip) Value(line int) (int, error) {
	if line < 0 || line >= c.Lines {
		return 0, ErrorIndexRange{line, c.Lines}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[line].level(), nil
}

// SetValue sets the pull value of the line.
//
// If the line is an input, and configured to trigger on the resulting edge,
// the line interrupt is raised.
func (c *Chip) SetValue(line int, value int) error {
	if line < 0 || line >= c.Lines {
		return ErrorIndexRange{line, c.Lines}
	}
	if value != 0 {
		value = 1
	}
	c.mu.Lock()
	l := &c.lines[line]
	old := l.level()
	l.pull = value
	fire := !l.out && !l.masked && triggered(l.trigger, old, value)
	if fire && c.mode != IRQDirect {
		c.pending = append(c.pending, line)
	}
	c.mu.Unlock()
	if fire {
		c.raise(line)
	}
	return nil
}

// Trigger returns the interrupt trigger configured for the line.
func (c *Chip) Trigger(line int) (irq.Trigger, error) {
	if line < 0 || line >= c.Lines {
		return irq.TriggerNone, ErrorIndexRange{line, c.Lines}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines[line].masked {
		return irq.TriggerNone, nil
	}
	return c.lines[line].trigger, nil
}

// Debounce returns the debounce period configured for the line.
func (c *Chip) Debounce(line int) (time.Duration, error) {
	if line < 0 || line >= c.Lines {
		return 0, ErrorIndexRange{line, c.Lines}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[line].debounce, nil
}

// IsOutput returns true if the chip is driving the line.
func (c *Chip) IsOutput(line int) (bool, error) {
	if line < 0 || line >= c.Lines {
		return false, ErrorIndexRange{line, c.Lines}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[line].out, nil
}

// Refuse causes subsequent requests for the line to fail with err.
//
// A nil err allows requests again.
func (c *Chip) Refuse(line int, err error) error {
	if line < 0 || line >= c.Lines {
		return ErrorIndexRange{line, c.Lines}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[line].refuse = err
	return nil
}

func (c *Chip) raise(line int) {
	switch c.mode {
	case IRQDirect:
		c.chip.HandleIRQ(line)
	case IRQChained, IRQNested:
		c.pool.Handle(c.parent)
	}
}

func (l *line) level() int {
	if l.out {
		return l.value
	}
	return l.pull
}

func triggered(t irq.Trigger, old, new int) bool {
	if old == new {
		return false
	}
	if new == 1 {
		return t&(irq.TriggerRising|irq.TriggerHigh) != 0
	}
	return t&(irq.TriggerFalling|irq.TriggerLow) != 0
}

// ErrorIndexRange indicates the requested index is beyond the limit of the array.
type ErrorIndexRange struct {
	Req   int
	Limit int
}

func (e ErrorIndexRange) Error() string {
	return fmt.Sprintf("index out of range - got %d, limit is %d.", e.Req, e.Limit)
}
