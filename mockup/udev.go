// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup

import (
	"errors"
	"regexp"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/warthog618/gpiolib"
)

type udevMonitor struct {
	queue chan netlink.UEvent
	quit  chan struct{}
}

// waitChips waits for the add uevent of each chip, and sets its DevPath.
func (m *udevMonitor) waitChips(cc []*Chip) error {
	pending := make(map[string]*Chip, len(cc))
	for _, c := range cc {
		pending[c.Name] = c
	}
	for len(pending) > 0 {
		select {
		case evt := <-m.queue:
			name := evt.Env["DEVNAME"]
			c, ok := pending[name]
			if !ok {
				continue
			}
			c.DevPath = evt.Env["DEVPATH"]
			delete(pending, name)
		case <-time.After(time.Second):
			return errors.New("timeout waiting for udev events")
		}
	}
	return nil
}

func newUdevMonitor(r *gpiolib.Registry, device string) (*udevMonitor, error) {
	action := "add"
	matcher := &netlink.RuleDefinition{Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "gpio",
			"DEVPATH":   "/devices/platform/" + regexp.QuoteMeta(device) + "/gpiochip\\d+",
		}}
	queue := make(chan netlink.UEvent, 16)
	quit, err := r.Monitor(queue, matcher)
	if err != nil {
		return nil, err
	}
	return &udevMonitor{queue: queue, quit: quit}, nil
}

func (m *udevMonitor) close() {
	close(m.quit)
}
