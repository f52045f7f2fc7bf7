// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/gpiolib/uapi"
	"golang.org/x/sys/unix"
)

// EventType indicates the type of an edge event.
type EventType int

const (
	_ EventType = iota

	// RisingEdge indicates an inactive to active transition.
	RisingEdge

	// FallingEdge indicates an active to inactive transition.
	FallingEdge
)

func (t EventType) String() string {
	switch t {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	}
	return "unknown"
}

// Event is an edge detected on a line.
type Event struct {
	// The offset of the line within its chip.
	Offset int

	// The CLOCK_MONOTONIC time the edge was detected.
	Timestamp time.Duration

	// The type of edge.
	Type EventType
}

// EventHandler is called for each event read by a Watcher.
type EventHandler func(Event)

// ErrNoEvents indicates a Watcher was created with no events to watch.
var ErrNoEvents = errors.New("no events to watch")

// Watcher reads the events from a set of LineEvents and passes them to a
// handler.
//
// The events are read in a single goroutine, so the handler is never called
// concurrently.
type Watcher struct {
	epfd int

	// fd to event mapping
	evts map[int32]*LineEvent

	// the handler for detected events
	eh EventHandler

	// eventfd to signal watcher to shutdown
	donefd int

	// closed once watcher exits
	doneCh chan struct{}
}

// NewWatcher starts watching the events.
//
// The events remain owned by the caller and must not be closed until the
// watcher is closed.
func NewWatcher(eh EventHandler, events ...*LineEvent) (w *Watcher, err error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	epfd, donefd, err := newEpoll()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			unix.Close(epfd)
			unix.Close(donefd)
		}
	}()
	evts := make(map[int32]*LineEvent, len(events))
	for _, le := range events {
		fd := le.Fd()
		epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &epv); err != nil {
			return nil, err
		}
		evts[int32(fd)] = le
	}
	w = &Watcher{
		epfd:   epfd,
		evts:   evts,
		eh:     eh,
		donefd: donefd,
		doneCh: make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// newEpoll creates an epoll instance with an eventfd added to signal
// shutdown.
func newEpoll() (epfd, donefd int, err error) {
	epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			unix.Close(epfd)
		}
	}()
	donefd, err = unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			unix.Close(donefd)
		}
	}()
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(donefd)}
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, donefd, &epv)
	return
}

func signalDone(donefd int) {
	var b [8]byte
	uapi.NativeEndian().PutUint64(b[:], 1)
	unix.Write(donefd, b[:])
}

// Close stops the watcher.
//
// Once Close returns the handler will not be called again.
func (w *Watcher) Close() {
	signalDone(w.donefd)
	<-w.doneCh
	unix.Close(w.donefd)
}

func (w *Watcher) watch() {
	epollEvents := make([]unix.EpollEvent, len(w.evts)+1)
	defer close(w.doneCh)
	for {
		n, err := unix.EpollWait(w.epfd, epollEvents[:], -1)
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				// fd closed so exit
				return
			}
			if err == unix.EINTR {
				continue
			}
			panic(fmt.Sprintf("EpollWait unexpected error: %v", err))
		}
		for i := 0; i < n; i++ {
			fd := epollEvents[i].Fd
			if fd == int32(w.donefd) {
				unix.Close(w.epfd)
				return
			}
			le := w.evts[fd]
			if le == nil {
				continue
			}
			for {
				ed, ok := le.tryRead()
				if !ok {
					break
				}
				w.eh(Event{
					Offset:    le.offset,
					Timestamp: time.Duration(ed.Timestamp),
					Type:      EventType(ed.ID),
				})
			}
		}
	}
}
