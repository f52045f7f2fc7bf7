// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
	"github.com/warthog618/gpiolib/uapi"
)

// LineEvent is a line requested as an input with edge detection.
//
// Edges are timestamped and buffered until read.  Once the buffer is full
// further edges are dropped until events are read.
type LineEvent struct {
	chip   *gpiolib.Chip
	offset int
	label  string
	hflags uapi.HandleFlag
	eflags uapi.EventFlag
	lease  *gpiolib.Lease
	desc   *irq.Desc
	log    logrus.FieldLogger

	events  *fifo[uapi.EventData]
	ready   *notifier
	dropped uint64

	// timestamp of the last edge, passed from the primary handler to the
	// thread on chips that can sleep.
	ts uint64

	// rmu serialises readers, and closing the notifier.
	rmu      sync.Mutex
	nonblock int32
	closed   int32
	done     chan struct{}
}

func validateEventFlags(hf uapi.HandleFlag, ef uapi.EventFlag) error {
	if hf.HasUnknown() || ef.HasUnknown() {
		return ErrUnknownFlag
	}
	if hf.IsOutput() {
		return ErrOutputRequested
	}
	if hf.IsOpenDrain() && hf.IsOpenSource() {
		return ErrInvalidFlags
	}
	return nil
}

// trigger returns the electrical edges that correspond to the logical edges
// requested.
func trigger(hf uapi.HandleFlag, ef uapi.EventFlag) irq.Trigger {
	rising, falling := irq.TriggerRising, irq.TriggerFalling
	if hf.IsActiveLow() {
		rising, falling = falling, rising
	}
	var t irq.Trigger
	if ef.IsRisingEdge() {
		t |= rising
	}
	if ef.IsFallingEdge() {
		t |= falling
	}
	return t
}

// GetLineEvent requests the line in the request as an input and binds an
// interrupt handler to it to report edges.
//
// If no interrupt is available for the line it is released and the request
// fails.
func (s *Session) GetLineEvent(req *uapi.EventRequest) (le *LineEvent, err error) {
	if err = s.check(); err != nil {
		return nil, err
	}
	if err = validateEventFlags(req.HandleFlags, req.EventFlags); err != nil {
		return nil, err
	}
	offset := int(req.Offset)
	if offset >= s.chip.Lines() {
		return nil, gpiolib.ErrInvalidOffset
	}
	label := uapi.BytesToString(req.Consumer[:])
	log := s.log.WithFields(logrus.Fields{"offset": offset, "consumer": label})
	ready, err := newNotifier()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ready.close()
		}
	}()
	l, err := s.chip.RequestLine(offset, label)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			l.Close()
			log.WithError(err).Debug("event request failed")
		}
	}()
	if err = l.SetActiveLow(req.HandleFlags.IsActiveLow()); err != nil {
		return nil, err
	}
	if err = l.SetDrive(drive(req.HandleFlags)); err != nil {
		return nil, err
	}
	if err = l.DirectionInput(); err != nil {
		return nil, err
	}
	n, err := l.ToIRQ()
	if err != nil {
		return nil, err
	}
	pool := s.chip.IRQPool()
	if pool == nil {
		return nil, gpiolib.ErrNoIRQ
	}
	desc, err := pool.Desc(n)
	if err != nil {
		return nil, err
	}
	le = &LineEvent{
		chip:   s.chip,
		offset: offset,
		label:  label,
		hflags: req.HandleFlags,
		eflags: req.EventFlags,
		lease:  l,
		desc:   desc,
		log:    log,
		events: newFifo[uapi.EventData](EventBufferSize),
		ready:  ready,
		done:   make(chan struct{}),
	}
	primary, thread := le.handleIRQ, irq.Handler(nil)
	if s.chip.CanSleep() {
		primary, thread = le.stamp, le.handleThread
	}
	if err = desc.Request(primary, thread, trigger(req.HandleFlags, req.EventFlags), label, le); err != nil {
		return nil, err
	}
	log.WithField("irq", n).Debug("event requested")
	return le, nil
}

// handleIRQ reports the edge directly, for chips that do not sleep.
func (le *LineEvent) handleIRQ(int, interface{}) irq.Return {
	return le.push(monotonicNow())
}

// stamp records the time of the edge and defers the report to the thread.
func (le *LineEvent) stamp(int, interface{}) irq.Return {
	atomic.StoreUint64(&le.ts, monotonicNow())
	return irq.WakeThread
}

func (le *LineEvent) handleThread(int, interface{}) irq.Return {
	ts := atomic.SwapUint64(&le.ts, 0)
	if ts == 0 {
		// nested interrupts bypass the primary handler
		ts = monotonicNow()
	}
	return le.push(ts)
}

func (le *LineEvent) push(ts uint64) irq.Return {
	ed := uapi.EventData{Timestamp: ts}
	switch {
	case le.eflags.IsBothEdges():
		v, err := le.lease.Value()
		if err != nil {
			return irq.None
		}
		if v != 0 {
			ed.ID = uapi.EventRisingEdge
		} else {
			ed.ID = uapi.EventFallingEdge
		}
	case le.eflags.IsRisingEdge():
		ed.ID = uapi.EventRisingEdge
	case le.eflags.IsFallingEdge():
		ed.ID = uapi.EventFallingEdge
	default:
		return irq.None
	}
	if !le.events.push(ed) {
		n := atomic.AddUint64(&le.dropped, 1)
		le.log.WithField("dropped", n).Debug("event buffer full")
		return irq.Handled
	}
	le.ready.signal()
	return irq.Handled
}

// Close unbinds the interrupt handler and releases the line.
//
// Closing a closed event has no effect.
func (le *LineEvent) Close() error {
	if !atomic.CompareAndSwapInt32(&le.closed, 0, 1) {
		return nil
	}
	close(le.done)
	// the chip may already have forced the handler off
	if err := le.desc.Free(); err != nil && !errors.Is(err, irq.ErrNotBound) {
		le.log.WithError(err).Warn("freeing event interrupt failed")
	}
	le.lease.Close()
	le.rmu.Lock()
	le.ready.close()
	le.rmu.Unlock()
	le.log.Debug("event released")
	return nil
}

// Offset returns the offset of the line.
func (le *LineEvent) Offset() int {
	return le.offset
}

// Fd returns a file descriptor that is readable when events are available
// to read, for use with poll or epoll.
func (le *LineEvent) Fd() int {
	return le.ready.fd
}

// Dropped returns the number of events dropped as the buffer was full.
func (le *LineEvent) Dropped() uint64 {
	return atomic.LoadUint64(&le.dropped)
}

// SetNonBlock sets whether reads block waiting for an event.
func (le *LineEvent) SetNonBlock(nonblock bool) {
	var v int32
	if nonblock {
		v = 1
	}
	atomic.StoreInt32(&le.nonblock, v)
}

// Value returns the logical value of the line.
func (le *LineEvent) Value() (int, error) {
	if atomic.LoadInt32(&le.closed) != 0 {
		return 0, ErrClosed
	}
	return le.lease.Value()
}

// ReadEvent returns the oldest unread event.
//
// Blocks until an event is available unless the event is non-blocking.
func (le *LineEvent) ReadEvent() (uapi.EventData, error) {
	le.rmu.Lock()
	defer le.rmu.Unlock()
	ed, err := le.waitEvent()
	if err != nil {
		return ed, err
	}
	le.ready.settle(le.events.len)
	return ed, nil
}

// Read reads encoded events into b.
//
// Only whole events are read, so b must be large enough to contain at least
// one.
func (le *LineEvent) Read(b []byte) (int, error) {
	if len(b) < uapi.EventDataSize {
		return 0, ErrShortBuffer
	}
	le.rmu.Lock()
	defer le.rmu.Unlock()
	ed, err := le.waitEvent()
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		m, err := uapi.Encode(b[n:], ed)
		if err != nil {
			break
		}
		n += m
		if len(b)-n < uapi.EventDataSize {
			break
		}
		var ok bool
		if ed, ok = le.events.pop(); !ok {
			break
		}
	}
	le.ready.settle(le.events.len)
	return n, nil
}

func (le *LineEvent) waitEvent() (uapi.EventData, error) {
	for {
		wake := le.ready.wake()
		if atomic.LoadInt32(&le.closed) != 0 {
			return uapi.EventData{}, ErrClosed
		}
		if ed, ok := le.events.pop(); ok {
			return ed, nil
		}
		if atomic.LoadInt32(&le.nonblock) != 0 {
			return uapi.EventData{}, ErrWouldBlock
		}
		if !wait(wake, le.done, -1) {
			return uapi.EventData{}, ErrClosed
		}
	}
}

// tryRead returns the oldest unread event without blocking.
func (le *LineEvent) tryRead() (uapi.EventData, bool) {
	le.rmu.Lock()
	defer le.rmu.Unlock()
	if atomic.LoadInt32(&le.closed) != 0 {
		return uapi.EventData{}, false
	}
	ed, ok := le.events.pop()
	le.ready.settle(le.events.len)
	return ed, ok
}

// Poll waits up to timeout for an event to become available.
//
// Returns true if an event is available to read.
func (le *LineEvent) Poll(timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return le.Wait(ctx)
}

// Wait waits until an event is available to read or the ctx is done.
//
// Returns true if an event is available to read.
func (le *LineEvent) Wait(ctx context.Context) (bool, error) {
	if atomic.LoadInt32(&le.closed) != 0 {
		return false, ErrClosed
	}
	for {
		wake := le.ready.wake()
		if le.events.len() != 0 {
			return true, nil
		}
		select {
		case <-wake:
		case <-le.done:
			return false, ErrClosed
		case <-ctx.Done():
			return le.events.len() != 0, nil
		}
	}
}

// Ioctl performs the request identified by code.
//
// Only GET_LINE_VALUES, taking a *uapi.HandleData, is supported.
func (le *LineEvent) Ioctl(code uapi.Ioctl, arg interface{}) (io.Closer, error) {
	if code != uapi.GetLineValuesIoctl {
		return nil, ErrUnknownRequest
	}
	hd, ok := arg.(*uapi.HandleData)
	if !ok {
		return nil, ErrBadArgument
	}
	v, err := le.Value()
	if err != nil {
		return nil, err
	}
	hd[0] = uint8(v)
	return nil, nil
}
