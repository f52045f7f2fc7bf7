// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"sync"
	"time"

	"github.com/warthog618/gpiolib/uapi"
	"golang.org/x/sys/unix"
)

// notifier signals the availability of records to read.
//
// Readers within the process wait on the channel returned by wake, which is
// closed, and replaced, by each signal, so every waiter is woken.  The
// eventfd makes the same signal available to epoll.
type notifier struct {
	fd int

	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() (*notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &notifier{fd: fd, ch: make(chan struct{})}, nil
}

// wake returns the channel closed by the next signal.
//
// Waiters must take the channel before checking for records.
func (n *notifier) wake() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

func (n *notifier) signal() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
	n.signalFd()
}

func (n *notifier) signalFd() {
	var b [8]byte
	uapi.NativeEndian().PutUint64(b[:], 1)
	unix.Write(n.fd, b[:])
}

// settle clears the fd readiness, then restores it if records remain.
//
// Must be called by the reader after consuming records.
func (n *notifier) settle(remaining func() int) {
	var b [8]byte
	unix.Read(n.fd, b[:])
	if remaining() > 0 {
		n.signalFd()
	}
}

// wait blocks until wake is closed, done is closed, or the timeout expires.
//
// A negative timeout waits indefinitely.  Returns true if woken.
func wait(wake, done <-chan struct{}, timeout time.Duration) bool {
	if timeout < 0 {
		select {
		case <-wake:
			return true
		case <-done:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-wake:
		return true
	case <-done:
	case <-t.C:
	}
	return false
}

func (n *notifier) close() {
	unix.Close(n.fd)
}

// monotonicNow returns the CLOCK_MONOTONIC time in nanoseconds.
func monotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}
