// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"fmt"
	"time"

	"github.com/warthog618/gpiolib/uapi"
	"golang.org/x/sys/unix"
)

// InfoChangeEvent is a change to the info of a watched line.
type InfoChangeEvent struct {
	// The info of the line after the change.
	Info uapi.LineInfo

	// The CLOCK_MONOTONIC time the change occurred.
	Timestamp time.Duration

	// The type of change.
	Type uapi.ChangeType
}

// InfoChangeHandler is called for each change read by an InfoWatcher.
type InfoChangeHandler func(InfoChangeEvent)

// InfoWatcher reads the line info changes from a session and passes them to
// a handler.
type InfoWatcher struct {
	epfd int

	s *Session

	// eventfd to signal watcher to shutdown
	donefd int

	// the handler for detected changes
	ch InfoChangeHandler

	// closed once watcher exits
	doneCh chan struct{}
}

// NewInfoWatcher starts watching the line info changes of the session.
//
// Only lines watched with WatchLineInfo report changes.  The session must
// not be closed until the watcher is closed.
func NewInfoWatcher(s *Session, ch InfoChangeHandler) (iw *InfoWatcher, err error) {
	epfd, donefd, err := newEpoll()
	if err != nil {
		return nil, err
	}
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(s.Fd())}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, s.Fd(), &epv); err != nil {
		unix.Close(epfd)
		unix.Close(donefd)
		return nil, err
	}
	iw = &InfoWatcher{
		epfd:   epfd,
		s:      s,
		donefd: donefd,
		ch:     ch,
		doneCh: make(chan struct{}),
	}
	go iw.watch()
	return iw, nil
}

// Close stops the watcher.
func (iw *InfoWatcher) Close() {
	signalDone(iw.donefd)
	<-iw.doneCh
	unix.Close(iw.donefd)
}

func (iw *InfoWatcher) watch() {
	epollEvents := make([]unix.EpollEvent, 2)
	defer close(iw.doneCh)
	for {
		n, err := unix.EpollWait(iw.epfd, epollEvents[:], -1)
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
			if fd == int32(iw.donefd) {
				unix.Close(iw.epfd)
				return
			}
			for {
				lic, ok := iw.s.tryRead()
				if !ok {
					break
				}
				iw.ch(InfoChangeEvent{
					Info:      lic.Info,
					Timestamp: time.Duration(lic.Timestamp),
					Type:      lic.Type,
				})
			}
		}
	}
}
