// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"github.com/sirupsen/logrus"
)

// hog requests and configures a line on behalf of the chip.
//
// Failures are logged, and the line left free, but do not prevent the chip
// being registered.
func (c *Chip) hog(h Hog) {
	log := c.log.WithFields(logrus.Fields{
		"offset":   h.Offset,
		"consumer": h.Consumer,
	})
	l, err := c.RequestOwnLine(h.Offset, h.Consumer)
	if err != nil {
		log.WithError(err).Error("hog request failed")
		return
	}
	if h.ActiveLow {
		l.SetActiveLow(true)
	}
	switch h.Direction {
	case HogOutputLow:
		err = l.DirectionOutput(0)
	case HogOutputHigh:
		err = l.DirectionOutput(1)
	default:
		err = l.DirectionInput()
	}
	if err != nil {
		log.WithError(err).Error("hog configuration failed")
		l.Close()
		return
	}
	r := c.reg
	r.mu.Lock()
	l.d.flags |= FlagIsHogged
	c.hogs = append(c.hogs, l)
	r.mu.Unlock()
	log.WithField("direction", h.Direction).Info("hogged")
}

// Hogs returns the offsets of the lines hogged by the chip.
func (c *Chip) Hogs() []int {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	oo := make([]int, len(c.hogs))
	for i, l := range c.hogs {
		oo[i] = l.d.offset
	}
	return oo
}

func (d HogDirection) String() string {
	switch d {
	case HogOutputLow:
		return "output-low"
	case HogOutputHigh:
		return "output-high"
	}
	return "input"
}
