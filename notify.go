// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

// LineChange is the type of change to the state of a line.
type LineChange int

const (
	_ LineChange = iota

	// LineRequested indicates the line has been requested.
	LineRequested

	// LineReleased indicates the line has been released.
	LineReleased

	// LineReconfigured indicates the configuration of a requested line has
	// changed.
	LineReconfigured
)

func (c LineChange) String() string {
	switch c {
	case LineRequested:
		return "requested"
	case LineReleased:
		return "released"
	case LineReconfigured:
		return "reconfigured"
	}
	return "unknown"
}

// LineChangeHandler receives notifications of changes to the lines of a chip.
//
// The handler is called after the change has been applied, with no locks
// held, so it may query the line.  It must not block.
type LineChangeHandler func(offset int, change LineChange)

// Watch adds a handler for changes to the lines of the chip.
//
// The returned function removes the handler.
func (c *Chip) Watch(h LineChangeHandler) func() {
	c.wmu.Lock()
	id := c.nextw
	c.nextw++
	c.watchers[id] = h
	c.wmu.Unlock()
	return func() {
		c.wmu.Lock()
		delete(c.watchers, id)
		c.wmu.Unlock()
	}
}

// Notify reports a change to the line at offset to all watchers of the chip.
func (c *Chip) Notify(offset int, change LineChange) {
	c.notify(offset, change)
}

func (c *Chip) notify(offset int, change LineChange) {
	c.wmu.Lock()
	hh := make([]LineChangeHandler, 0, len(c.watchers))
	for _, h := range c.watchers {
		hh = append(hh, h)
	}
	c.wmu.Unlock()
	for _, h := range hh {
		h(offset, change)
	}
}
