// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/mockup"
)

const board = `
banks:
  - label: header
    lines: 8
    base: 100
    names: [led, button, "", sda, scl]
    irq: chained
    irqLines: [1, 3, 4]
    hogs:
      - line: 0
        consumer: heartbeat
        direction: output-high
      - line: 2
        consumer: reset
        activeLow: true
  - lines: 4
    irq: nested
    canSleep: true
`

func TestParseLayout(t *testing.T) {
	l, err := mockup.ParseLayout([]byte(board))
	require.Nil(t, err)
	require.Equal(t, 2, len(l.Banks))
	b := l.Banks[0]
	assert.Equal(t, "header", b.Label)
	assert.Equal(t, 8, b.Lines)
	require.NotNil(t, b.Base)
	assert.Equal(t, 100, *b.Base)
	assert.Equal(t, []string{"led", "button", "", "sda", "scl"}, b.Names)
	assert.Equal(t, mockup.IRQChained, b.IRQ)
	assert.Equal(t, []int{1, 3, 4}, b.IRQLines)
	assert.Equal(t, []mockup.Hog{
		{Line: 0, Consumer: "heartbeat", Direction: "output-high"},
		{Line: 2, Consumer: "reset", ActiveLow: true},
	}, b.Hogs)
	b = l.Banks[1]
	assert.Equal(t, "", b.Label)
	assert.Nil(t, b.Base)
	assert.Equal(t, mockup.IRQNested, b.IRQ)
	assert.True(t, b.CanSleep)
}

func TestParseLayoutErrors(t *testing.T) {
	patterns := []struct {
		name   string
		layout string
		err    error
	}{
		{"irq mode", "banks:\n  - lines: 2\n    irq: edge\n", mockup.ErrorUnknownValue{"irq", "edge"}},
		{"no lines", "banks:\n  - label: empty\n", mockup.ErrorUnknownValue{"lines", "0"}},
		{"hog direction", "banks:\n  - lines: 2\n    hogs:\n      - line: 1\n        direction: sideways\n",
			mockup.ErrorUnknownValue{"direction", "sideways"}},
		{"hog line", "banks:\n  - lines: 2\n    hogs:\n      - line: 2\n", mockup.ErrorIndexRange{2, 2}},
		{"irq line", "banks:\n  - lines: 2\n    irqLines: [0, 3]\n", mockup.ErrorIndexRange{3, 2}},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			l, err := mockup.ParseLayout([]byte(p.layout))
			assert.Nil(t, l)
			require.NotNil(t, err)
			assert.True(t, errors.Is(err, p.err), err)
		}
		t.Run(p.name, tf)
	}
	_, err := mockup.ParseLayout([]byte("banks: [unterminated"))
	assert.NotNil(t, err)
}

func TestNewFromLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.Nil(t, os.WriteFile(path, []byte(board), 0644))
	l, err := mockup.LoadLayout(path)
	require.Nil(t, err)
	r := newRegistry()
	m, err := mockup.NewFromLayout(l, mockup.WithRegistry(r))
	require.Nil(t, err)
	defer m.Close()
	require.Equal(t, 2, m.Chips())

	c, err := m.Chip(0)
	require.Nil(t, err)
	assert.Equal(t, "header", c.Label)
	assert.Equal(t, 100, c.Base)
	assert.NotEqual(t, -1, c.Parent())
	d, err := r.FindLine("scl")
	require.Nil(t, err)
	assert.Equal(t, 104, d.GPIO())

	// only the listed lines are interrupts
	_, err = c.GPIOChip().ToIRQ(3)
	assert.Nil(t, err)
	_, err = c.GPIOChip().ToIRQ(2)
	assert.Equal(t, gpiolib.ErrNoIRQ, err)

	// hogs
	gc := c.GPIOChip()
	assert.Equal(t, []int{0, 2}, gc.Hogs())
	info, err := gc.LineInfo(0)
	require.Nil(t, err)
	assert.Equal(t, "heartbeat", info.Consumer)
	assert.True(t, info.Flags.IsHogged())
	assert.True(t, info.Flags.IsOut())
	v, err := c.Value(0)
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
	info, err = gc.LineInfo(2)
	require.Nil(t, err)
	assert.True(t, info.Flags.IsActiveLow())
	assert.False(t, info.Flags.IsOut())
	// hogs hold no owner references
	assert.Equal(t, 0, m.Owner().Refs())

	c, err = m.Chip(1)
	require.Nil(t, err)
	assert.Equal(t, "gpio-mockup-B", c.Label)
	assert.True(t, c.GPIOChip().CanSleep())

	_, err = mockup.LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
	_, err = mockup.NewFromLayout(&mockup.Layout{})
	assert.NotNil(t, err)
}
