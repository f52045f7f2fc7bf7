// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import "sync/atomic"

// fifo is a bounded queue that may be pushed from interrupt handlers without
// locking.
//
// Each cell carries a sequence number that tells pushers and poppers whether
// the cell is free for the current lap of the ring.
type fifo[T any] struct {
	mask  uint64
	cells []cell[T]
	head  atomic.Uint64
	tail  atomic.Uint64
}

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

// newFifo creates a fifo holding at least size records, rounded up to a
// power of two.
func newFifo[T any](size int) *fifo[T] {
	n := 1
	for n < size {
		n <<= 1
	}
	f := &fifo[T]{
		mask:  uint64(n - 1),
		cells: make([]cell[T], n),
	}
	for i := range f.cells {
		f.cells[i].seq.Store(uint64(i))
	}
	return f
}

// push adds v to the fifo, returning false and dropping v if the fifo is
// full.
func (f *fifo[T]) push(v T) bool {
	pos := f.head.Load()
	for {
		c := &f.cells[pos&f.mask]
		dif := int64(c.seq.Load()) - int64(pos)
		switch {
		case dif == 0:
			if f.head.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
		case dif < 0:
			return false
		}
		pos = f.head.Load()
	}
}

// pop removes the oldest record from the fifo.
func (f *fifo[T]) pop() (T, bool) {
	pos := f.tail.Load()
	for {
		c := &f.cells[pos&f.mask]
		dif := int64(c.seq.Load()) - int64(pos+1)
		switch {
		case dif == 0:
			if f.tail.CompareAndSwap(pos, pos+1) {
				v := c.val
				var zero T
				c.val = zero
				c.seq.Store(pos + f.mask + 1)
				return v, true
			}
		case dif < 0:
			var zero T
			return zero, false
		}
		pos = f.tail.Load()
	}
}

// len returns the number of records in the fifo.
//
// The result is a snapshot and may be stale if pushers or poppers are active.
func (f *fifo[T]) len() int {
	head := f.head.Load()
	tail := f.tail.Load()
	if head < tail {
		return 0
	}
	return int(head - tail)
}

func (f *fifo[T]) capacity() int {
	return len(f.cells)
}
