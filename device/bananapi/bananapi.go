// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package bananapi describes the GPIO lines of a Banana Pi and provides a
// simulated board with the same layout.
//
// The header is compatible with the Raspberry Pi, so header lines are also
// known by the BCM GPIO number of the matching Raspberry Pi pin.
package bananapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/warthog618/gpiolib/mockup"
)

// Label is the label of the A20 pin controller.
const Label = "1c20800.pinctrl"

// Lines is the number of lines on the pin controller, ports PA to PI.
const Lines = 9 * portLines

const portLines = 32

// GPIO aliases to offsets
var (
	GPIO2  = gpioToOffset[2]
	GPIO3  = gpioToOffset[3]
	GPIO4  = gpioToOffset[4]
	GPIO5  = gpioToOffset[5]
	GPIO6  = gpioToOffset[6]
	GPIO7  = gpioToOffset[7]
	GPIO8  = gpioToOffset[8]
	GPIO9  = gpioToOffset[9]
	GPIO10 = gpioToOffset[10]
	GPIO11 = gpioToOffset[11]
	GPIO12 = gpioToOffset[12]
	GPIO13 = gpioToOffset[13]
	GPIO14 = gpioToOffset[14]
	GPIO15 = gpioToOffset[15]
	GPIO16 = gpioToOffset[16]
	GPIO17 = gpioToOffset[17]
	GPIO18 = gpioToOffset[18]
	GPIO19 = gpioToOffset[19]
	GPIO20 = gpioToOffset[20]
	GPIO21 = gpioToOffset[21]
	GPIO22 = gpioToOffset[22]
	GPIO23 = gpioToOffset[23]
	GPIO24 = gpioToOffset[24]
	GPIO25 = gpioToOffset[25]
	GPIO26 = gpioToOffset[26]
	GPIO27 = gpioToOffset[27]
)

var gpioToOffset = map[int]int{
	2:  53,
	3:  52,
	4:  259,
	5:  37,
	6:  38,
	7:  270,
	8:  266,
	9:  269,
	10: 268,
	11: 267,
	12: 38,
	13: 39,
	14: 224,
	15: 225,
	16: 277,
	17: 275,
	18: 226,
	19: 40,
	20: 276,
	21: 45,
	22: 273,
	23: 244,
	24: 245,
	25: 272,
	26: 35,
	27: 274,
}

// ErrInvalid indicates the pin name does not match a known pin.
var ErrInvalid = errors.New("invalid pin name")

// LineName returns the name of the line at offset, e.g. PH2.
func LineName(offset int) string {
	return fmt.Sprintf("P%c%d", 'A'+offset/portLines, offset%portLines)
}

func portLine(s string) (int, error) {
	if len(s) < 3 || s[0] != 'p' || s[1] < 'a' || s[1] > 'i' {
		return 0, ErrInvalid
	}
	n, err := strconv.Atoi(s[2:])
	if err != nil || n < 0 || n >= portLines {
		return 0, ErrInvalid
	}
	return int(s[1]-'a')*portLines + n, nil
}

func gpioLine(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalid
	}
	o, ok := gpioToOffset[n]
	if !ok {
		return 0, ErrInvalid
	}
	return o, nil
}

// Pin maps a pin string name to a line offset.
//
// Pin names are case insensitive and may be of the form GPIOX or X, using
// the BCM GPIO number, or the name of the line, e.g. PH2.
func Pin(s string) (int, error) {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "gpio"):
		return gpioLine(s[4:])
	case strings.HasPrefix(s, "p"):
		return portLine(s)
	default:
		return gpioLine(s)
	}
}

// MustPin converts the string to the corresponding line offset or panics if
// that is not possible.
func MustPin(s string) int {
	v, err := Pin(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Layout returns the layout of a simulated Banana Pi.
//
// Only the external interrupt lines, PH0-PH21 and PI10-PI19, may be used
// as interrupts.
func Layout() *mockup.Layout {
	names := make([]string, Lines)
	for o := range names {
		names[o] = LineName(o)
	}
	var irqs []int
	for o := 7 * portLines; o <= 7*portLines+21; o++ {
		irqs = append(irqs, o)
	}
	for o := 8*portLines + 10; o <= 8*portLines+19; o++ {
		irqs = append(irqs, o)
	}
	return &mockup.Layout{
		Banks: []mockup.Bank{{
			Label:    Label,
			Lines:    Lines,
			Names:    names,
			IRQ:      mockup.IRQDirect,
			IRQLines: irqs,
		}},
	}
}
