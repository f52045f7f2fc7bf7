// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

// Bitmap is a set of bits, indexed by line offset.
type Bitmap []uint64

// NewBitmap creates a Bitmap large enough for n bits.
func NewBitmap(n int) Bitmap {
	return make(Bitmap, (n+63)/64)
}

// Set sets bit n.
func (b Bitmap) Set(n int) {
	b[n/64] |= 1 << uint(n%64)
}

// Clear clears bit n.
func (b Bitmap) Clear(n int) {
	b[n/64] &^= 1 << uint(n%64)
}

// Assign sets bit n if v is non-zero, else clears it.
func (b Bitmap) Assign(n int, v int) {
	if v != 0 {
		b.Set(n)
	} else {
		b.Clear(n)
	}
}

// Test returns true if bit n is set.
func (b Bitmap) Test(n int) bool {
	idx := n / 64
	if idx >= len(b) {
		return false
	}
	return b[idx]&(1<<uint(n%64)) != 0
}

// Value returns bit n as an int.
func (b Bitmap) Value(n int) int {
	if b.Test(n) {
		return 1
	}
	return 0
}

// Empty returns true if no bits are set.
func (b Bitmap) Empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

// SetArray sets the logical values of a collection of lines.
//
// Lines may be on different chips.  Consecutive lines on the same chip are set
// in one driver operation if the driver is a MultiSetter.  Lines emulating
// open drain or open source are always set individually.
func SetArray(ll []*Lease, values []int) error {
	return setArray(false, ll, values)
}

// SetRawArray sets the electrical levels of a collection of lines, ignoring
// active low.
func SetRawArray(ll []*Lease, values []int) error {
	return setArray(true, ll, values)
}

// GetArray reads the logical values of a collection of lines into values.
//
// Consecutive lines on the same chip are read in one driver operation if the
// driver is a MultiGetter.
func GetArray(ll []*Lease, values []int) error {
	return getArray(false, ll, values)
}

// GetRawArray reads the electrical levels of a collection of lines into
// values, ignoring active low.
func GetRawArray(ll []*Lease, values []int) error {
	return getArray(true, ll, values)
}

// run returns the end of the run of leases on the same chip as ll[start].
func run(ll []*Lease, start int) int {
	c := ll[start].d.chip
	end := start + 1
	for end < len(ll) && ll[end].d.chip == c {
		end++
	}
	return end
}

func setArray(raw bool, ll []*Lease, values []int) error {
	if len(values) < len(ll) {
		return ErrInvalidCount
	}
	for i := 0; i < len(ll); {
		end := run(ll, i)
		drv, err := ll[i].driver()
		if err != nil {
			return err
		}
		c := ll[i].d.chip
		mask := NewBitmap(len(c.descs))
		bits := NewBitmap(len(c.descs))
		for ; i < end; i++ {
			l := ll[i]
			if l.IsClosed() {
				return ErrClosed
			}
			f := l.d.Flags() | l.nativeFlag()
			v := normalize(values[i])
			if !raw && f.IsActiveLow() {
				v ^= 1
			}
			if f&flagNativeDrive == 0 && (f.IsOpenDrain() || f.IsOpenSource()) {
				if err := l.setRaw(drv, f, v); err != nil {
					return err
				}
				continue
			}
			mask.Set(l.d.offset)
			bits.Assign(l.d.offset, v)
		}
		if mask.Empty() {
			continue
		}
		if err := setMultiple(drv, mask, bits, len(c.descs)); err != nil {
			return err
		}
	}
	return nil
}

func setMultiple(drv Driver, mask, bits Bitmap, n int) error {
	if ms, ok := drv.(MultiSetter); ok {
		return ms.SetMultiple(mask, bits)
	}
	for offset := 0; offset < n; offset++ {
		if mask.Test(offset) {
			if err := drv.Set(offset, bits.Value(offset)); err != nil {
				return err
			}
		}
	}
	return nil
}

func getArray(raw bool, ll []*Lease, values []int) error {
	if len(values) < len(ll) {
		return ErrInvalidCount
	}
	for i := 0; i < len(ll); {
		start := i
		end := run(ll, i)
		drv, err := ll[i].driver()
		if err != nil {
			return err
		}
		c := ll[i].d.chip
		mask := NewBitmap(len(c.descs))
		bits := NewBitmap(len(c.descs))
		for ; i < end; i++ {
			if ll[i].IsClosed() {
				return ErrClosed
			}
			mask.Set(ll[i].d.offset)
		}
		if err := getMultiple(drv, mask, bits, len(c.descs)); err != nil {
			return err
		}
		for j := start; j < end; j++ {
			l := ll[j]
			v := bits.Value(l.d.offset)
			if !raw && l.d.Flags().IsActiveLow() {
				v ^= 1
			}
			values[j] = v
		}
	}
	return nil
}

func getMultiple(drv Driver, mask, bits Bitmap, n int) error {
	if mg, ok := drv.(MultiGetter); ok {
		return mg.GetMultiple(mask, bits)
	}
	for offset := 0; offset < n; offset++ {
		if mask.Test(offset) {
			v, err := drv.Get(offset)
			if err != nil {
				return err
			}
			bits.Assign(offset, v)
		}
	}
	return nil
}
