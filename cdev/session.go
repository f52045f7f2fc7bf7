// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/uapi"
)

// Session is an open chip, equivalent to an open file on the chip's
// character device.
type Session struct {
	chip *gpiolib.Chip
	log  logrus.FieldLogger

	// mu covers closed and watched, and serialises pushes to changes with
	// closing the notifier.
	mu      sync.Mutex
	closed  bool
	watched []bool
	unwatch func()

	changes  *fifo[uapi.LineInfoChanged]
	ready    *notifier
	done     chan struct{}
	rmu      sync.Mutex
	nonblock int32
}

// Open opens a session on the named chip.
//
// The name may be the system name, gpiochipN, or the chip label.
func Open(name string, options ...SessionOption) (*Session, error) {
	so := sessionOptions{reg: gpiolib.Default()}
	for _, option := range options {
		option.applySessionOption(&so)
	}
	c, err := so.reg.OpenChip(name)
	if err != nil {
		return nil, err
	}
	ready, err := newNotifier()
	if err != nil {
		c.Put()
		return nil, err
	}
	s := &Session{
		chip:    c,
		log:     c.Logger(),
		watched: make([]bool, c.Lines()),
		changes: newFifo[uapi.LineInfoChanged](EventBufferSize),
		ready:   ready,
		done:    make(chan struct{}),
	}
	if so.nonblock {
		s.nonblock = 1
	}
	s.unwatch = c.Watch(s.lineChanged)
	s.log.Debug("session opened")
	return s, nil
}

// Close closes the session.
//
// Closing a closed session has no effect.  Handles and events created by the session remain open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.unwatch()
	close(s.done)
	s.rmu.Lock()
	s.ready.close()
	s.rmu.Unlock()
	s.chip.Put()
	s.log.Debug("session closed")
	return nil
}

// Chip returns the chip the session is open on.
func (s *Session) Chip() *gpiolib.Chip {
	return s.chip
}

// Fd returns a file descriptor that is readable when line info changes are
// available to read, for use with poll or epoll.
func (s *Session) Fd() int {
	return s.ready.fd
}

// SetNonBlock sets whether reads of line info changes block.
func (s *Session) SetNonBlock(nonblock bool) {
	var v int32
	if nonblock {
		v = 1
	}
	atomic.StoreInt32(&s.nonblock, v)
}

func (s *Session) check() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !s.chip.IsLive() {
		return gpiolib.ErrGone
	}
	return nil
}

// ChipInfo returns the details of the chip.
func (s *Session) ChipInfo() (uapi.ChipInfo, error) {
	var ci uapi.ChipInfo
	if err := s.check(); err != nil {
		return ci, err
	}
	uapi.PutString(ci.Name[:], s.chip.Name())
	uapi.PutString(ci.Label[:], s.chip.Label())
	ci.Lines = uint32(s.chip.Lines())
	return ci, nil
}

// LineInfo returns the details of the line at offset.
func (s *Session) LineInfo(offset int) (uapi.LineInfo, error) {
	if err := s.check(); err != nil {
		return uapi.LineInfo{}, err
	}
	li, err := s.chip.LineInfo(offset)
	if err != nil {
		return uapi.LineInfo{}, err
	}
	return newLineInfo(li), nil
}

func newLineInfo(li gpiolib.LineInfo) uapi.LineInfo {
	info := uapi.LineInfo{Offset: uint32(li.Offset)}
	uapi.PutString(info.Name[:], li.Name)
	uapi.PutString(info.Consumer[:], li.Consumer)
	f := li.Flags
	if f.IsKernel() {
		info.Flags |= uapi.LineFlagRequested
	}
	if f.IsOut() {
		info.Flags |= uapi.LineFlagIsOut
	}
	if f.IsActiveLow() {
		info.Flags |= uapi.LineFlagActiveLow
	}
	if f.IsOpenDrain() {
		info.Flags |= uapi.LineFlagOpenDrain
	}
	if f.IsOpenSource() {
		info.Flags |= uapi.LineFlagOpenSource
	}
	return info
}

// WatchLineInfo returns the details of the line at offset and starts
// reporting changes to it.
func (s *Session) WatchLineInfo(offset int) (uapi.LineInfo, error) {
	if err := s.check(); err != nil {
		return uapi.LineInfo{}, err
	}
	li, err := s.chip.LineInfo(offset)
	if err != nil {
		return uapi.LineInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched[offset] {
		return uapi.LineInfo{}, ErrAlreadyWatched
	}
	s.watched[offset] = true
	return newLineInfo(li), nil
}

// UnwatchLineInfo stops reporting changes to the line at offset.
func (s *Session) UnwatchLineInfo(offset int) error {
	if err := s.check(); err != nil {
		return err
	}
	if offset < 0 || offset >= len(s.watched) {
		return gpiolib.ErrInvalidOffset
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watched[offset] {
		return ErrNotWatched
	}
	s.watched[offset] = false
	return nil
}

func (s *Session) lineChanged(offset int, change gpiolib.LineChange) {
	var ct uapi.ChangeType
	switch change {
	case gpiolib.LineRequested:
		ct = uapi.LineChangedRequested
	case gpiolib.LineReleased:
		ct = uapi.LineChangedReleased
	case gpiolib.LineReconfigured:
		ct = uapi.LineChangedConfig
	default:
		return
	}
	li, err := s.chip.LineInfo(offset)
	if err != nil {
		return
	}
	lic := uapi.LineInfoChanged{
		Info:      newLineInfo(li),
		Timestamp: monotonicNow(),
		Type:      ct,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.watched[offset] {
		return
	}
	if !s.changes.push(lic) {
		s.log.WithField("offset", offset).Debug("line info change dropped")
		return
	}
	s.ready.signal()
}

// ReadLineInfoChanged returns the oldest unread change to a watched line.
//
// Blocks until a change is available unless the session is non-blocking.
func (s *Session) ReadLineInfoChanged() (uapi.LineInfoChanged, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	lic, err := s.waitChange()
	if err != nil {
		return lic, err
	}
	s.ready.settle(s.changes.len)
	return lic, nil
}

// Read reads encoded line info changes into b.
//
// Only whole records are read, so b must be large enough to contain at
// least one.
func (s *Session) Read(b []byte) (int, error) {
	if len(b) < uapi.LineInfoChangedSize {
		return 0, ErrShortBuffer
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	lic, err := s.waitChange()
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		m, err := uapi.Encode(b[n:], lic)
		if err != nil {
			break
		}
		n += m
		if len(b)-n < uapi.LineInfoChangedSize {
			break
		}
		var ok bool
		if lic, ok = s.changes.pop(); !ok {
			break
		}
	}
	s.ready.settle(s.changes.len)
	return n, nil
}

func (s *Session) waitChange() (uapi.LineInfoChanged, error) {
	for {
		wake := s.ready.wake()
		if lic, ok := s.changes.pop(); ok {
			return lic, nil
		}
		select {
		case <-s.done:
			return uapi.LineInfoChanged{}, ErrClosed
		default:
		}
		if atomic.LoadInt32(&s.nonblock) != 0 {
			return uapi.LineInfoChanged{}, ErrWouldBlock
		}
		if !wait(wake, s.done, -1) {
			return uapi.LineInfoChanged{}, ErrClosed
		}
	}
}

// Poll waits up to timeout for a line info change to become available.
//
// Returns true if a change is available to read.
func (s *Session) Poll(timeout time.Duration) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	deadline := time.Now().Add(timeout)
	for {
		wake := s.ready.wake()
		if s.changes.len() != 0 {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 || !wait(wake, s.done, remaining) {
			return s.changes.len() != 0, nil
		}
	}
}

// Ioctl performs the request identified by code.
//
// The arg must be a pointer to the uapi record the request expects.  The
// requests that create a handle or event return it, and also set the Fd
// field of an event request to the event's readiness fd.
func (s *Session) Ioctl(code uapi.Ioctl, arg interface{}) (io.Closer, error) {
	switch code {
	case uapi.GetChipInfoIoctl:
		ci, ok := arg.(*uapi.ChipInfo)
		if !ok {
			return nil, ErrBadArgument
		}
		info, err := s.ChipInfo()
		if err != nil {
			return nil, err
		}
		*ci = info
	case uapi.GetLineInfoIoctl, uapi.WatchLineInfoIoctl:
		li, ok := arg.(*uapi.LineInfo)
		if !ok {
			return nil, ErrBadArgument
		}
		get := s.LineInfo
		if code == uapi.WatchLineInfoIoctl {
			get = s.WatchLineInfo
		}
		info, err := get(int(li.Offset))
		if err != nil {
			return nil, err
		}
		*li = info
	case uapi.UnwatchLineInfoIoctl:
		offset, ok := arg.(*uint32)
		if !ok {
			return nil, ErrBadArgument
		}
		return nil, s.UnwatchLineInfo(int(*offset))
	case uapi.GetLineHandleIoctl:
		hr, ok := arg.(*uapi.HandleRequest)
		if !ok {
			return nil, ErrBadArgument
		}
		lh, err := s.GetLineHandle(hr)
		if err != nil {
			return nil, err
		}
		return lh, nil
	case uapi.GetLineEventIoctl:
		er, ok := arg.(*uapi.EventRequest)
		if !ok {
			return nil, ErrBadArgument
		}
		le, err := s.GetLineEvent(er)
		if err != nil {
			return nil, err
		}
		er.Fd = int32(le.Fd())
		return le, nil
	default:
		return nil, ErrUnknownRequest
	}
	return nil, nil
}

// tryRead returns the oldest unread line info change without blocking.
func (s *Session) tryRead() (uapi.LineInfoChanged, bool) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	select {
	case <-s.done:
		return uapi.LineInfoChanged{}, false
	default:
	}
	lic, ok := s.changes.pop()
	s.ready.settle(s.changes.len)
	return lic, ok
}
