// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package rpi describes the GPIO lines of a Raspberry Pi and provides a
// simulated board with the same layout.
//
// The lines are numbered by BCM GPIO, which is the offset of the line on the
// pinctrl-bcm2835 chip.
package rpi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/warthog618/gpiolib/mockup"
)

// Label is the label of the GPIO chip on a Raspberry Pi.
const Label = "pinctrl-bcm2835"

// Lines is the number of lines on the GPIO chip.
const Lines = 54

// J8 header pins, as BCM GPIO numbers.
const (
	J8p3  = 2
	J8p5  = 3
	J8p7  = 4
	J8p8  = 14
	J8p10 = 15
	J8p11 = 17
	J8p12 = 18
	J8p13 = 27
	J8p15 = 22
	J8p16 = 23
	J8p18 = 24
	J8p19 = 10
	J8p21 = 9
	J8p22 = 25
	J8p23 = 11
	J8p24 = 8
	J8p26 = 7
	J8p27 = 0
	J8p28 = 1
	J8p29 = 5
	J8p31 = 6
	J8p32 = 12
	J8p33 = 13
	J8p35 = 19
	J8p36 = 16
	J8p37 = 26
	J8p38 = 20
	J8p40 = 21
)

// GPIO lines available on the J8 header, other than the ID EEPROM lines.
const (
	GPIO2      = 2
	GPIO27     = 27
	MaxGPIOPin = GPIO27 + 1
)

// header maps J8 pins to lines, with power and ground pins absent.
var header = map[int]int{
	3: J8p3, 5: J8p5, 7: J8p7, 8: J8p8, 10: J8p10,
	11: J8p11, 12: J8p12, 13: J8p13, 15: J8p15, 16: J8p16,
	18: J8p18, 19: J8p19, 21: J8p21, 22: J8p22, 23: J8p23,
	24: J8p24, 26: J8p26, 27: J8p27, 28: J8p28, 29: J8p29,
	31: J8p31, 32: J8p32, 33: J8p33, 35: J8p35, 36: J8p36,
	37: J8p37, 38: J8p38, 40: J8p40,
}

// lineNames are the names the firmware assigns to the header lines.
var lineNames = []string{
	"ID_SDA", "ID_SCL", "SDA1", "SCL1", "GPIO_GCLK", "GPIO5", "GPIO6",
	"SPI_CE1_N", "SPI_CE0_N", "SPI_MISO", "SPI_MOSI", "SPI_SCLK",
	"GPIO12", "GPIO13", "TXD1", "RXD1", "GPIO16", "GPIO17", "GPIO18",
	"GPIO19", "GPIO20", "GPIO21", "GPIO22", "GPIO23", "GPIO24", "GPIO25",
	"GPIO26", "GPIO27",
}

// ErrInvalid indicates the pin name does not match a known pin.
var ErrInvalid = errors.New("invalid pin name")

func rangeCheck(p int) (int, error) {
	if p < GPIO2 || p >= MaxGPIOPin {
		return 0, ErrInvalid
	}
	return p, nil
}

// Pin maps a pin string name to a line offset.
//
// Pin names are case insensitive and may be of the form J8pX, GPIOX, X, or
// the name of the line, e.g. SPI_MOSI.
func Pin(s string) (int, error) {
	s = strings.ToLower(s)
	for o, n := range lineNames {
		if o >= GPIO2 && strings.ToLower(n) == s {
			return o, nil
		}
	}
	switch {
	case strings.HasPrefix(s, "j8p"):
		n, err := strconv.Atoi(s[3:])
		if err != nil {
			return 0, ErrInvalid
		}
		v, ok := header[n]
		if !ok {
			return 0, ErrInvalid
		}
		return v, nil
	case strings.HasPrefix(s, "gpio"):
		v, err := strconv.ParseInt(s[4:], 10, 8)
		if err != nil {
			return 0, err
		}
		return rangeCheck(int(v))
	default:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return 0, err
		}
		return rangeCheck(int(v))
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

// Layout returns the layout of a simulated Raspberry Pi.
//
// The ID EEPROM lines are hogged, as the firmware does, so only the lines
// on the header from GPIO2 up are available.
func Layout() *mockup.Layout {
	names := make([]string, len(lineNames))
	copy(names, lineNames)
	return &mockup.Layout{
		Banks: []mockup.Bank{{
			Label: Label,
			Lines: Lines,
			Names: names,
			IRQ:   mockup.IRQDirect,
			Hogs: []mockup.Hog{
				{Line: 0, Consumer: "id-eeprom"},
				{Line: 1, Consumer: "id-eeprom"},
			},
		}},
	}
}
