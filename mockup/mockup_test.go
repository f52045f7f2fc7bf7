// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup_test

import (
	"errors"
	"fmt"
	"io/ioutil"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
	"github.com/warthog618/gpiolib/mockup"
	"golang.org/x/sys/unix"
)

func newRegistry() *gpiolib.Registry {
	log := logrus.New()
	log.Out = ioutil.Discard
	return gpiolib.NewRegistry(gpiolib.WithLogger(log))
}

func TestNew(t *testing.T) {
	patterns := []struct {
		name  string
		lines []int
		named bool
	}{
		{"one", []int{3}, false},
		{"two", []int{3, 4}, false},
		{"three", []int{3, 2, 1}, false},
		{"named", []int{3}, true},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			r := newRegistry()
			m, err := mockup.New(p.lines, p.named, mockup.WithRegistry(r))
			require.Nil(t, err)
			require.NotNil(t, m)
			defer m.Close()
			assert.Equal(t, r, m.Registry())
			assert.Equal(t, len(p.lines), m.Chips())
			assert.Equal(t, len(p.lines), len(r.Chips()))
			for i := 0; i < m.Chips(); i++ {
				c, err := m.Chip(i)
				assert.Nil(t, err)
				checkChipExists(t, r, m, c)
				assert.Equal(t, fmt.Sprintf("gpio-mockup-%c", 'A'+i), c.Label)
				assert.Equal(t, p.lines[i], c.Lines)
				d, err := r.FindLine(fmt.Sprintf("%s-%d", c.Label, c.Lines-1))
				if p.named {
					assert.Nil(t, err)
					require.NotNil(t, d)
					assert.Equal(t, c.GPIOChip(), d.Chip())
				} else {
					assert.Equal(t, gpiolib.ErrNotFound, err)
				}
			}
		}
		t.Run(p.name, tf)
	}
	_, err := mockup.New([]int{}, false)
	assert.Equal(t, unix.EINVAL, err)
	_, err = mockup.New([]int{2, 0}, false)
	assert.Equal(t, unix.EINVAL, err)
}

func TestChip(t *testing.T) {
	patterns := []struct {
		name string
		cnum int
		err  error
	}{
		{"one", 0, nil},
		{"two", 1, nil},
		{"three", 2, nil},
		{"negative", -2, mockup.ErrorIndexRange{-2, 3}},
		{"oorange", 4, mockup.ErrorIndexRange{4, 3}},
	}
	r := newRegistry()
	m, err := mockup.New([]int{4, 8, 8}, false, mockup.WithRegistry(r))
	require.Nil(t, err)
	defer m.Close()
	for _, p := range patterns {
		tf := func(t *testing.T) {
			c, err := m.Chip(p.cnum)
			assert.Equal(t, p.err, err)
			if p.err == nil {
				checkChipExists(t, r, m, c)
			}
		}
		t.Run(p.name, tf)
	}
}

func checkChipExists(t *testing.T, r *gpiolib.Registry, m *mockup.Mockup, c *mockup.Chip) {
	t.Helper()
	require.NotNil(t, c)
	gc, err := r.Chip(c.Name)
	require.Nil(t, err)
	assert.Equal(t, c.GPIOChip(), gc)
	assert.True(t, gc.IsLive())
	assert.Equal(t, c.Base, gc.Base())
	assert.Equal(t, c.Label, gc.Label())
	assert.Equal(t, m.Owner(), gc.Owner())
	assert.Equal(t, fmt.Sprintf("/devices/platform/%s/%s", m.Device(), c.Name), c.DevPath)
	v, err := c.Value(0)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
}

func TestClose(t *testing.T) {
	patterns := []struct {
		name string
		ll   []int
	}{
		{"one", []int{4}},
		{"two", []int{4, 8}},
		{"three", []int{4, 8, 8}},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			r := newRegistry()
			m, err := mockup.New(p.ll, true, mockup.WithRegistry(r), mockup.WithIRQ(mockup.IRQChained))
			require.Nil(t, err)
			cc := []*mockup.Chip{}
			for i := 0; i < m.Chips(); i++ {
				c, err := m.Chip(i)
				require.Nil(t, err)
				require.NotNil(t, c)
				cc = append(cc, c)
			}
			m.Close()
			assert.Equal(t, 0, m.Chips())
			assert.Equal(t, 0, len(r.Chips()))
			for _, c := range cc {
				assert.False(t, c.GPIOChip().IsLive())
				_, err = r.Chip(c.Name)
				assert.Equal(t, gpiolib.ErrNotFound, err)
			}
			// parents released
			assert.Equal(t, m.IRQPool().Size(), m.IRQPool().Available())
		}
		t.Run(p.name, tf)
	}
}

func TestChipValue(t *testing.T) {
	patterns := []struct {
		name string
		line int
		err  error
	}{
		{"negative", -2, mockup.ErrorIndexRange{-2, 3}},
		{"oorange", 4, mockup.ErrorIndexRange{4, 3}},
	}
	m, err := mockup.New([]int{3}, true, mockup.WithRegistry(newRegistry()))
	require.Nil(t, err)
	require.NotNil(t, m)
	defer m.Close()
	c, err := m.Chip(0)
	require.Nil(t, err)
	require.NotNil(t, c)
	for _, p := range patterns {
		tf := func(t *testing.T) {
			v, err := c.Value(p.line)
			assert.Equal(t, p.err, err)
			assert.Equal(t, 0, v)
		}
		t.Run(p.name, tf)
	}
}

func TestChipSetValue(t *testing.T) {
	patterns := []struct {
		name string
		ll   []int
	}{
		{"one", []int{4}},
		{"two", []int{4, 8}},
		{"three", []int{4, 8, 8}},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			m, err := mockup.New(p.ll, true, mockup.WithRegistry(newRegistry()))
			require.Nil(t, err)
			defer m.Close()
			for i := 0; i < m.Chips(); i++ {
				c, err := m.Chip(i)
				require.Nil(t, err)
				require.NotNil(t, c)
				for l := 0; l < c.Lines; l++ {
					v, err := c.Value(l)
					assert.Nil(t, err)
					assert.Equal(t, 0, v)
					vv := []int{1, 0, 2, 1, 0}
					for _, v = range vv {
						err = c.SetValue(l, v)
						assert.Nil(t, err)
						rv, err := c.Value(l)
						assert.Nil(t, err)
						xv := v
						if xv > 1 {
							xv = 1
						}
						assert.Equal(t, xv, rv)
					}
				}
			}
		}
		t.Run(p.name, tf)
	}
	epatterns := []struct {
		name string
		line int
		err  error
	}{
		{"negative", -2, mockup.ErrorIndexRange{-2, 3}},
		{"oorange", 4, mockup.ErrorIndexRange{4, 3}},
	}
	m, err := mockup.New([]int{3}, true, mockup.WithRegistry(newRegistry()))
	require.Nil(t, err)
	require.NotNil(t, m)
	defer m.Close()
	c, err := m.Chip(0)
	require.Nil(t, err)
	require.NotNil(t, c)
	for _, p := range epatterns {
		tf := func(t *testing.T) {
			err := c.SetValue(p.line, 1)
			assert.Equal(t, p.err, err)
		}
		t.Run(p.name, tf)
	}
}

func TestDriver(t *testing.T) {
	m, err := mockup.New([]int{4}, false, mockup.WithRegistry(newRegistry()))
	require.Nil(t, err)
	defer m.Close()
	c, err := m.Chip(0)
	require.Nil(t, err)
	l, err := c.GPIOChip().RequestLine(2, "test")
	require.Nil(t, err)
	defer l.Close()

	// input follows pull
	c.SetValue(2, 1)
	v, err := l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	// output overrides pull
	require.Nil(t, l.DirectionOutput(0))
	out, err := c.IsOutput(2)
	assert.Nil(t, err)
	assert.True(t, out)
	v, err = c.Value(2)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
	require.Nil(t, l.SetValue(1))
	v, err = c.Value(2)
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
	c.SetValue(2, 0)
	v, err = c.Value(2)
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	require.Nil(t, l.SetDebounce(time.Millisecond))
	db, err := c.Debounce(2)
	assert.Nil(t, err)
	assert.Equal(t, time.Millisecond, db)

	// batched
	l2, err := c.GPIOChip().RequestLine(3, "test")
	require.Nil(t, err)
	defer l2.Close()
	require.Nil(t, l2.DirectionOutput(0))
	ll := []*gpiolib.Lease{l, l2}
	require.Nil(t, gpiolib.SetArray(ll, []int{0, 1}))
	vv := []int{5, 5}
	require.Nil(t, gpiolib.GetArray(ll, vv))
	assert.Equal(t, []int{0, 1}, vv)

	// released lines revert to inputs
	l.Close()
	out, err = c.IsOutput(2)
	assert.Nil(t, err)
	assert.False(t, out)
	db, err = c.Debounce(2)
	assert.Nil(t, err)
	assert.Equal(t, time.Duration(0), db)
}

func TestRefuse(t *testing.T) {
	m, err := mockup.New([]int{4}, false, mockup.WithRegistry(newRegistry()))
	require.Nil(t, err)
	defer m.Close()
	c, err := m.Chip(0)
	require.Nil(t, err)
	errRefused := errors.New("refused")
	require.Nil(t, c.Refuse(1, errRefused))
	_, err = c.GPIOChip().RequestLine(1, "test")
	assert.Equal(t, errRefused, err)
	require.Nil(t, c.Refuse(1, nil))
	l, err := c.GPIOChip().RequestLine(1, "test")
	assert.Nil(t, err)
	l.Close()
	assert.Equal(t, mockup.ErrorIndexRange{4, 4}, c.Refuse(4, nil))
}

func TestIRQ(t *testing.T) {
	patterns := []struct {
		name  string
		mode  mockup.IRQMode
		sleep bool
	}{
		{"direct", mockup.IRQDirect, false},
		{"chained", mockup.IRQChained, false},
		{"nested", mockup.IRQNested, true},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			options := []mockup.Option{
				mockup.WithRegistry(newRegistry()),
				mockup.WithIRQ(p.mode),
			}
			if p.sleep {
				options = append(options, mockup.WithCanSleep())
			}
			m, err := mockup.New([]int{4}, false, options...)
			require.Nil(t, err)
			defer m.Close()
			c, err := m.Chip(0)
			require.Nil(t, err)
			assert.Equal(t, p.sleep, c.GPIOChip().CanSleep())
			if p.mode == mockup.IRQDirect {
				assert.Equal(t, gpiolib.NoParent, c.Parent())
			} else {
				assert.NotEqual(t, gpiolib.NoParent, c.Parent())
			}
			l, err := c.GPIOChip().RequestLine(1, "test")
			require.Nil(t, err)
			defer l.Close()
			n, err := l.ToIRQ()
			require.Nil(t, err)
			hits := make(chan int, 4)
			pool := m.IRQPool()
			err = pool.Request(n, func(irqn int, dev interface{}) irq.Return {
				hits <- irqn
				return irq.Handled
			}, nil, irq.TriggerRising, "test", nil)
			require.Nil(t, err)
			defer pool.Free(n)
			tr, err := c.Trigger(1)
			assert.Nil(t, err)
			assert.Equal(t, irq.TriggerRising, tr)

			c.SetValue(1, 1)
			select {
			case irqn := <-hits:
				assert.Equal(t, n, irqn)
			case <-time.After(time.Second):
				require.Fail(t, "interrupt not raised")
			}
			// falling edge not triggered
			c.SetValue(1, 0)
			// no edge
			c.SetValue(1, 0)
			select {
			case <-hits:
				assert.Fail(t, "unexpected interrupt")
			case <-time.After(20 * time.Millisecond):
			}
		}
		t.Run(p.name, tf)
	}
}

func TestNoIRQ(t *testing.T) {
	m, err := mockup.New([]int{4}, false, mockup.WithRegistry(newRegistry()))
	require.Nil(t, err)
	defer m.Close()
	c, err := m.Chip(0)
	require.Nil(t, err)
	_, err = c.GPIOChip().ToIRQ(1)
	assert.Equal(t, gpiolib.ErrNoIRQ, err)
	tr, err := c.Trigger(1)
	assert.Nil(t, err)
	assert.Equal(t, irq.TriggerNone, tr)
}

func TestIRQPoolShared(t *testing.T) {
	r := newRegistry()
	pool := irq.NewPool(32, 3)
	m, err := mockup.New([]int{4}, false,
		mockup.WithRegistry(r), mockup.WithIRQPool(pool), mockup.WithIRQ(mockup.IRQDirect))
	require.Nil(t, err)
	defer m.Close()
	assert.Equal(t, pool, m.IRQPool())
	assert.Equal(t, 0, pool.Available())
	c, err := m.Chip(0)
	require.Nil(t, err)
	n, err := c.GPIOChip().ToIRQ(2)
	assert.Nil(t, err)
	assert.Equal(t, 34, n)
	_, err = c.GPIOChip().ToIRQ(3)
	assert.Equal(t, gpiolib.ErrNoIRQ, err)
}
