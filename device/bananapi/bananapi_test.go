// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package bananapi_test

import (
	"io/ioutil"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/device/bananapi"
	"github.com/warthog618/gpiolib/mockup"
)

var patterns = []struct {
	name string
	val  int
	err  error
}{
	{"gpio0", 0, bananapi.ErrInvalid},
	{"gpio1", 0, bananapi.ErrInvalid},
	{"gpio2", 53, nil},
	{"GPIO2", bananapi.GPIO2, nil},
	{"Gpio4", 259, nil},
	{"gpio14", 224, nil},
	{"gpio27", bananapi.GPIO27, nil},
	{"gpio28", 0, bananapi.ErrInvalid},
	{"gpiox", 0, bananapi.ErrInvalid},
	{"2", 53, nil},
	{"17", bananapi.GPIO17, nil},
	{"40", 0, bananapi.ErrInvalid},
	{"PA0", 0, nil},
	{"pb3", 35, nil},
	{"PH2", 226, nil},
	{"PI21", 277, nil},
	{"PI32", 0, bananapi.ErrInvalid},
	{"PJ0", 0, bananapi.ErrInvalid},
	{"P", 0, bananapi.ErrInvalid},
	{"", 0, bananapi.ErrInvalid},
}

func TestPin(t *testing.T) {
	for _, p := range patterns {
		tf := func(t *testing.T) {
			val, err := bananapi.Pin(p.name)
			assert.Equal(t, p.err, err)
			assert.Equal(t, p.val, val)
		}
		t.Run(p.name, tf)
	}
}

func TestMustPin(t *testing.T) {
	for _, p := range patterns {
		tf := func(t *testing.T) {
			if p.err != nil {
				assert.Panics(t, func() {
					bananapi.MustPin(p.name)
				})
			} else {
				val := bananapi.MustPin(p.name)
				assert.Equal(t, p.val, val)
			}
		}
		t.Run(p.name, tf)
	}
}

func TestLineName(t *testing.T) {
	assert.Equal(t, "PA0", bananapi.LineName(0))
	assert.Equal(t, "PH20", bananapi.LineName(244))
	assert.Equal(t, "PI31", bananapi.LineName(bananapi.Lines-1))
}

func TestLayout(t *testing.T) {
	log := logrus.New()
	log.Out = ioutil.Discard
	r := gpiolib.NewRegistry(gpiolib.WithLogger(log))
	m, err := mockup.NewFromLayout(bananapi.Layout(), mockup.WithRegistry(r))
	require.Nil(t, err)
	defer m.Close()
	c, err := r.Chip(bananapi.Label)
	require.Nil(t, err)
	assert.Equal(t, bananapi.Lines, c.Lines())

	d, err := r.FindLine("PH2")
	require.Nil(t, err)
	assert.Equal(t, bananapi.MustPin("GPIO18"), d.Offset())

	// external interrupt lines only
	_, err = c.ToIRQ(bananapi.GPIO14)
	assert.Nil(t, err)
	_, err = c.ToIRQ(bananapi.GPIO7)
	assert.Nil(t, err)
	_, err = c.ToIRQ(bananapi.GPIO2)
	assert.Equal(t, gpiolib.ErrNoIRQ, err)
}
