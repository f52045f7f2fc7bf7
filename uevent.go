// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"strconv"

	"github.com/pilebones/go-udev/netlink"
)

const (
	actionAdd    = netlink.ADD
	actionRemove = netlink.REMOVE

	// uevents buffered per monitor before they are dropped.
	monitorQueueSize = 16
)

type monitor struct {
	queue   chan netlink.UEvent
	matcher netlink.Matcher
	buf     chan netlink.UEvent
	quit    chan struct{}
}

// Monitor forwards the uevents for chips added to and removed from the
// registry to queue, filtered by matcher.
//
// A nil matcher passes all events.  Monitoring stops when a value is sent to,
// or the close of, the returned quit channel.
func (r *Registry) Monitor(queue chan netlink.UEvent, matcher netlink.Matcher) (chan struct{}, error) {
	if matcher != nil {
		if err := matcher.Compile(); err != nil {
			return nil, err
		}
	}
	m := &monitor{
		queue:   queue,
		matcher: matcher,
		buf:     make(chan netlink.UEvent, monitorQueueSize),
		quit:    make(chan struct{}),
	}
	r.mmu.Lock()
	r.monitors = append(r.monitors, m)
	r.mmu.Unlock()
	go func() {
		defer r.removeMonitor(m)
		for {
			select {
			case <-m.quit:
				return
			case e := <-m.buf:
				select {
				case m.queue <- e:
				case <-m.quit:
					return
				}
			}
		}
	}()
	return m.quit, nil
}

func (r *Registry) removeMonitor(m *monitor) {
	r.mmu.Lock()
	defer r.mmu.Unlock()
	for i, n := range r.monitors {
		if n == m {
			r.monitors = append(r.monitors[:i], r.monitors[i+1:]...)
			return
		}
	}
}

func (r *Registry) publish(c *Chip, action netlink.KObjAction) {
	r.mmu.Lock()
	defer r.mmu.Unlock()
	r.seqnum++
	e := netlink.UEvent{
		Action: action,
		KObj:   c.devpath,
		Env: map[string]string{
			"ACTION":    string(action),
			"DEVPATH":   c.devpath,
			"SUBSYSTEM": "gpio",
			"DEVNAME":   c.name,
			"SEQNUM":    strconv.FormatUint(r.seqnum, 10),
		},
	}
	for _, m := range r.monitors {
		if m.matcher != nil && !m.matcher.Evaluate(e) {
			continue
		}
		select {
		case m.buf <- e:
		default:
			r.log.WithField("devpath", c.devpath).Warn("uevent dropped")
		}
	}
}
