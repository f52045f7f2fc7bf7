// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
)

func TestBitmap(t *testing.T) {
	b := gpiolib.NewBitmap(70)
	assert.Equal(t, 2, len(b))
	assert.True(t, b.Empty())
	b.Set(3)
	b.Set(65)
	assert.True(t, b.Test(3))
	assert.True(t, b.Test(65))
	assert.False(t, b.Test(64))
	assert.False(t, b.Test(200))
	assert.Equal(t, 1, b.Value(65))
	b.Assign(65, 0)
	assert.Equal(t, 0, b.Value(65))
	b.Clear(3)
	assert.True(t, b.Empty())
}

func requestAll(t *testing.T, c *gpiolib.Chip, offsets ...int) []*gpiolib.Lease {
	t.Helper()
	ll := []*gpiolib.Lease{}
	for _, o := range offsets {
		l, err := c.RequestLine(o, "array")
		require.Nil(t, err)
		require.Nil(t, l.DirectionOutput(0))
		ll = append(ll, l)
	}
	return ll
}

func closeAll(ll []*gpiolib.Lease) {
	for _, l := range ll {
		l.Close()
	}
}

func TestSetArray(t *testing.T) {
	r := newRegistry()
	ma := &multiDriver{fakeDriver: newFakeDriver(4)}
	a, err := r.Register("a", 4, ma)
	require.Nil(t, err)
	mb := &multiDriver{fakeDriver: newFakeDriver(4)}
	b, err := r.Register("b", 4, mb)
	require.Nil(t, err)
	pc := newFakeDriver(4)
	c, err := r.Register("c", 4, pc)
	require.Nil(t, err)

	// runs: a[0,2] b[1] a[3] c[0,1]
	ll := requestAll(t, a, 0, 2)
	ll = append(ll, requestAll(t, b, 1)...)
	ll = append(ll, requestAll(t, a, 3)...)
	ll = append(ll, requestAll(t, c, 0, 1)...)
	defer closeAll(ll)
	ll[1].SetActiveLow(true)
	pcSets := pc.setCount()

	err = gpiolib.SetArray(ll, []int{1, 1, 1, 0, 1, 1})
	assert.Nil(t, err)
	assert.Equal(t, 1, ma.level(0))
	assert.Equal(t, 0, ma.level(2))
	assert.Equal(t, 1, mb.level(1))
	assert.Equal(t, 0, ma.level(3))
	assert.Equal(t, 1, pc.level(0))
	assert.Equal(t, 1, pc.level(1))
	sa, _ := ma.counts()
	sb, _ := mb.counts()
	assert.Equal(t, 2, sa)
	assert.Equal(t, 1, sb)
	// no multi setter - set individually
	assert.Equal(t, pcSets+2, pc.setCount())

	vv := make([]int, len(ll))
	err = gpiolib.GetArray(ll, vv)
	assert.Nil(t, err)
	assert.Equal(t, []int{1, 1, 1, 0, 1, 1}, vv)
	err = gpiolib.GetRawArray(ll, vv)
	assert.Nil(t, err)
	assert.Equal(t, []int{1, 0, 1, 0, 1, 1}, vv)
	_, ga := ma.counts()
	assert.Equal(t, 4, ga)

	err = gpiolib.SetRawArray(ll, []int{0, 1, 0, 0, 0, 0})
	assert.Nil(t, err)
	assert.Equal(t, 1, ma.level(2))
	assert.Equal(t, 0, ma.level(0))

	// short values
	err = gpiolib.SetArray(ll, []int{1})
	assert.Equal(t, gpiolib.ErrInvalidCount, err)
	err = gpiolib.GetArray(ll, []int{1})
	assert.Equal(t, gpiolib.ErrInvalidCount, err)
}

func TestSetArrayEquivalence(t *testing.T) {
	values := []int{1, 0, 1, 1}
	levels := func(drv gpiolib.Driver, get func(int) int, batched bool) []int {
		r := newRegistry()
		c, err := r.Register("eq", 4, drv)
		require.Nil(t, err)
		ll := requestAll(t, c, 0, 1, 2, 3)
		defer closeAll(ll)
		ll[1].SetActiveLow(true)
		ll[2].SetDrive(gpiolib.DriveOpenDrain)
		if batched {
			require.Nil(t, gpiolib.SetArray(ll, values))
		} else {
			for i, l := range ll {
				require.Nil(t, l.SetValue(values[i]))
			}
		}
		out := []int{}
		for i := range ll {
			out = append(out, get(i))
		}
		return out
	}
	md := &multiDriver{fakeDriver: newFakeDriver(4)}
	batched := levels(md, md.level, true)
	fd := newFakeDriver(4)
	single := levels(fd, fd.level, false)
	assert.Equal(t, single, batched)
	// open drain line was floated in both
	assert.False(t, md.isOut(2))
	assert.False(t, fd.isOut(2))
}

func TestSetArrayOpenDrain(t *testing.T) {
	r := newRegistry()
	md := &multiDriver{fakeDriver: newFakeDriver(3)}
	c, err := r.Register("od", 3, md)
	require.Nil(t, err)
	ll := requestAll(t, c, 0, 1, 2)
	defer closeAll(ll)
	ll[1].SetDrive(gpiolib.DriveOpenDrain)

	err = gpiolib.SetArray(ll, []int{1, 1, 1})
	assert.Nil(t, err)
	// emulated line switched to input, not included in the batch
	assert.False(t, md.isOut(1))
	assert.Equal(t, 0, md.level(1))
	assert.Equal(t, 1, md.level(0))
	assert.Equal(t, 1, md.level(2))

	err = gpiolib.SetArray(ll, []int{0, 0, 0})
	assert.Nil(t, err)
	assert.True(t, md.isOut(1))
	assert.Equal(t, 0, md.level(0))

	// closed lease
	ll[2].Close()
	err = gpiolib.SetArray(ll, []int{0, 0, 0})
	assert.Equal(t, gpiolib.ErrClosed, err)
}
