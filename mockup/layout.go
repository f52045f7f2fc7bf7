// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package mockup

import (
	"fmt"
	"os"

	"github.com/warthog618/gpiolib"
	"gopkg.in/yaml.v3"
)

// IRQMode defines how a mocked chip raises line interrupts.
type IRQMode int

const (
	// IRQNone indicates the chip has no interrupt support.
	IRQNone IRQMode = iota

	// IRQDirect indicates line interrupts are raised directly, with no
	// parent interrupt.
	IRQDirect

	// IRQChained indicates line interrupts are demultiplexed from a parent
	// interrupt in its flow handler.
	IRQChained

	// IRQNested indicates line interrupts are demultiplexed from a parent
	// interrupt in its thread.
	IRQNested
)

var irqModeNames = map[IRQMode]string{
	IRQNone:    "none",
	IRQDirect:  "direct",
	IRQChained: "chained",
	IRQNested:  "nested",
}

func (m IRQMode) String() string {
	if s, ok := irqModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("IRQMode(%d)", int(m))
}

// ParseIRQMode returns the IRQMode with the given name.
func ParseIRQMode(s string) (IRQMode, error) {
	if s == "" {
		return IRQNone, nil
	}
	for m, n := range irqModeNames {
		if n == s {
			return m, nil
		}
	}
	return IRQNone, ErrorUnknownValue{"irq", s}
}

// UnmarshalYAML decodes the IRQMode from its name.
func (m *IRQMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	mode, err := ParseIRQMode(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = mode
	return nil
}

// MarshalYAML encodes the IRQMode as its name.
func (m IRQMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// HogDirection is the direction a hogged line is configured in.
type HogDirection string

// hog returns the gpiolib equivalent of the direction.
func (d HogDirection) hog() gpiolib.HogDirection {
	switch d {
	case "output-low":
		return gpiolib.HogOutputLow
	case "output-high":
		return gpiolib.HogOutputHigh
	}
	return gpiolib.HogInput
}

func (d HogDirection) valid() bool {
	switch d {
	case "", "input", "output-low", "output-high":
		return true
	}
	return false
}

// Hog describes a line hogged by a mocked chip.
type Hog struct {
	Line      int          `yaml:"line"`
	Consumer  string       `yaml:"consumer"`
	Direction HogDirection `yaml:"direction,omitempty"`
	ActiveLow bool         `yaml:"activeLow,omitempty"`
}

// Bank describes one mocked chip.
type Bank struct {
	Label    string   `yaml:"label"`
	Lines    int      `yaml:"lines"`
	Base     *int     `yaml:"base,omitempty"`
	Names    []string `yaml:"names,omitempty"`
	Hogs     []Hog    `yaml:"hogs,omitempty"`
	IRQ      IRQMode  `yaml:"irq,omitempty"`
	CanSleep bool     `yaml:"canSleep,omitempty"`

	// IRQLines restricts interrupts to the listed lines.  All lines may be
	// interrupts if empty.
	IRQLines []int `yaml:"irqLines,omitempty"`
}

// irqMask returns the interrupt valid mask for the bank, or nil if all lines
// are valid.
func (b Bank) irqMask() ([]bool, error) {
	if len(b.IRQLines) == 0 {
		return nil, nil
	}
	mask := make([]bool, b.Lines)
	for _, o := range b.IRQLines {
		if o < 0 || o >= b.Lines {
			return nil, ErrorIndexRange{o, b.Lines}
		}
		mask[o] = true
	}
	return mask, nil
}

// Layout describes a board of mocked chips.
type Layout struct {
	Banks []Bank `yaml:"banks"`
}

// ParseLayout decodes a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadLayout reads a YAML layout from a file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLayout(data)
}

func (l *Layout) validate() error {
	for i, b := range l.Banks {
		if b.Lines <= 0 {
			return fmt.Errorf("bank %d: %w", i, ErrorUnknownValue{"lines", fmt.Sprint(b.Lines)})
		}
		if len(b.Names) > b.Lines {
			return fmt.Errorf("bank %d: more names than lines", i)
		}
		for _, h := range b.Hogs {
			if !h.Direction.valid() {
				return fmt.Errorf("bank %d: %w", i, ErrorUnknownValue{"direction", string(h.Direction)})
			}
			if h.Line < 0 || h.Line >= b.Lines {
				return fmt.Errorf("bank %d: hog %w", i, ErrorIndexRange{h.Line, b.Lines})
			}
		}
		if _, err := b.irqMask(); err != nil {
			return fmt.Errorf("bank %d: irq line %w", i, err)
		}
	}
	return nil
}

// ErrorUnknownValue indicates a layout field has an invalid value.
type ErrorUnknownValue struct {
	Field string
	Value string
}

func (e ErrorUnknownValue) Error() string {
	return fmt.Sprintf("invalid %s: '%s'", e.Field, e.Value)
}
