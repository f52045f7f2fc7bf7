// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package jetsonnano describes the GPIO lines of a Jetson Nano and provides
// a simulated board with the same layout.
//
// The J41 header is compatible with the Raspberry Pi, so header lines are
// also known by the BCM GPIO number of the matching Raspberry Pi pin.
package jetsonnano

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/warthog618/gpiolib/mockup"
)

// Label is the label of the Tegra GPIO controller.
const Label = "tegra-gpio"

// Lines is the number of lines on the controller, ports PA to PFF.
const Lines = 32 * portLines

const portLines = 8

// J41 header pins that are GPIOs, as offsets on the controller.
const (
	J41p7  = 216
	J41p11 = 50
	J41p12 = 79
	J41p13 = 14
	J41p15 = 194
	J41p16 = 232
	J41p18 = 15
	J41p19 = 16
	J41p21 = 17
	J41p22 = 13
	J41p23 = 18
	J41p24 = 19
	J41p26 = 20
	J41p29 = 149
	J41p31 = 200
	J41p32 = 168
	J41p33 = 38
	J41p35 = 76
	J41p36 = 51
	J41p37 = 12
	J41p38 = 77
	J41p40 = 78
)

// GPIO aliases to J41 pins
const (
	GPIO4  = J41p7
	GPIO5  = J41p29
	GPIO6  = J41p31
	GPIO7  = J41p26
	GPIO8  = J41p24
	GPIO9  = J41p21
	GPIO10 = J41p19
	GPIO11 = J41p23
	GPIO12 = J41p32
	GPIO13 = J41p33
	GPIO16 = J41p36
	GPIO17 = J41p11
	GPIO18 = J41p12
	GPIO19 = J41p35
	GPIO20 = J41p38
	GPIO21 = J41p40
	GPIO22 = J41p15
	GPIO23 = J41p16
	GPIO24 = J41p18
	GPIO25 = J41p22
	GPIO26 = J41p37
	GPIO27 = J41p13
)

var j41Names = map[int]int{
	7: J41p7, 11: J41p11, 12: J41p12, 13: J41p13, 15: J41p15,
	16: J41p16, 18: J41p18, 19: J41p19, 21: J41p21, 22: J41p22,
	23: J41p23, 24: J41p24, 26: J41p26, 29: J41p29, 31: J41p31,
	32: J41p32, 33: J41p33, 35: J41p35, 36: J41p36, 37: J41p37,
	38: J41p38, 40: J41p40,
}

var bcmNames = map[int]int{
	4: GPIO4, 5: GPIO5, 6: GPIO6, 7: GPIO7, 8: GPIO8, 9: GPIO9,
	10: GPIO10, 11: GPIO11, 12: GPIO12, 13: GPIO13, 16: GPIO16,
	17: GPIO17, 18: GPIO18, 19: GPIO19, 20: GPIO20, 21: GPIO21,
	22: GPIO22, 23: GPIO23, 24: GPIO24, 25: GPIO25, 26: GPIO26,
	27: GPIO27,
}

// ErrInvalid indicates the pin name does not match a known pin.
var ErrInvalid = errors.New("invalid pin name")

// port returns the name of the port, A to Z then AA to FF.
func port(n int) string {
	if n < 26 {
		return string(rune('A' + n))
	}
	return strings.Repeat(string(rune('A'+n-26)), 2)
}

// LineName returns the name of the line at offset, e.g. PBB.00.
func LineName(offset int) string {
	return fmt.Sprintf("P%s.%02d", port(offset/portLines), offset%portLines)
}

func lookup(m map[int]int, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalid
	}
	v, ok := m[n]
	if !ok {
		return 0, ErrInvalid
	}
	return v, nil
}

// Pin maps a pin string name to a line offset.
//
// Pin names are case insensitive and may be of the form J41pX, GPIOX or X,
// using the BCM GPIO number, or the name of the line, e.g. PBB.00.
func Pin(s string) (int, error) {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "j41p"):
		return lookup(j41Names, s[4:])
	case strings.HasPrefix(s, "gpio"):
		return lookup(bcmNames, s[4:])
	case strings.HasPrefix(s, "p"):
		for o := 0; o < Lines; o++ {
			if strings.ToLower(LineName(o)) == s {
				return o, nil
			}
		}
		return 0, ErrInvalid
	default:
		return lookup(bcmNames, s)
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

// Layout returns the layout of a simulated Jetson Nano.
//
// Only the lines on the J41 header may be used as interrupts.
func Layout() *mockup.Layout {
	names := make([]string, Lines)
	for o := range names {
		names[o] = LineName(o)
	}
	irqs := make([]int, 0, len(j41Names))
	for _, o := range j41Names {
		irqs = append(irqs, o)
	}
	sort.Ints(irqs)
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
