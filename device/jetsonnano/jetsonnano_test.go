// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package jetsonnano_test

import (
	"io/ioutil"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/device/jetsonnano"
	"github.com/warthog618/gpiolib/mockup"
)

var patterns = []struct {
	name string
	val  int
	err  error
}{
	{"gpio2", 0, jetsonnano.ErrInvalid},
	{"gpio3", 0, jetsonnano.ErrInvalid},
	{"gpio4", 216, nil},
	{"GPIO17", jetsonnano.J41p11, nil},
	{"Gpio27", jetsonnano.J41p13, nil},
	{"gpio28", 0, jetsonnano.ErrInvalid},
	{"gpiox", 0, jetsonnano.ErrInvalid},
	{"J41p3", 0, jetsonnano.ErrInvalid},
	{"j41p7", jetsonnano.J41p7, nil},
	{"J41P12", 79, nil},
	{"J41p40", jetsonnano.J41p40, nil},
	{"J41p41", 0, jetsonnano.ErrInvalid},
	{"J41px", 0, jetsonnano.ErrInvalid},
	{"4", jetsonnano.GPIO4, nil},
	{"26", jetsonnano.J41p37, nil},
	{"14", 0, jetsonnano.ErrInvalid},
	{"PBB.00", 216, nil},
	{"pg.02", 50, nil},
	{"PFF.07", jetsonnano.Lines - 1, nil},
	{"PGG.00", 0, jetsonnano.ErrInvalid},
	{"", 0, jetsonnano.ErrInvalid},
}

func TestPin(t *testing.T) {
	for _, p := range patterns {
		tf := func(t *testing.T) {
			val, err := jetsonnano.Pin(p.name)
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
					jetsonnano.MustPin(p.name)
				})
			} else {
				val := jetsonnano.MustPin(p.name)
				assert.Equal(t, p.val, val)
			}
		}
		t.Run(p.name, tf)
	}
}

func TestLineName(t *testing.T) {
	assert.Equal(t, "PA.00", jetsonnano.LineName(0))
	assert.Equal(t, "PZ.07", jetsonnano.LineName(207))
	assert.Equal(t, "PAA.00", jetsonnano.LineName(208))
	assert.Equal(t, "PBB.00", jetsonnano.LineName(jetsonnano.J41p7))
}

func TestLayout(t *testing.T) {
	log := logrus.New()
	log.Out = ioutil.Discard
	r := gpiolib.NewRegistry(gpiolib.WithLogger(log))
	m, err := mockup.NewFromLayout(jetsonnano.Layout(), mockup.WithRegistry(r))
	require.Nil(t, err)
	defer m.Close()
	c, err := r.Chip(jetsonnano.Label)
	require.Nil(t, err)
	assert.Equal(t, jetsonnano.Lines, c.Lines())

	d, err := r.FindLine("PBB.00")
	require.Nil(t, err)
	assert.Equal(t, jetsonnano.MustPin("J41p7"), d.Offset())

	// header lines only
	_, err = c.ToIRQ(jetsonnano.GPIO17)
	assert.Nil(t, err)
	_, err = c.ToIRQ(0)
	assert.Equal(t, gpiolib.ErrNoIRQ, err)
}
