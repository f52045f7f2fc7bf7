// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib_test

import (
	"errors"
	"io/ioutil"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/gpiolib"
	"github.com/warthog618/gpiolib/irq"
)

var errRefused = errors.New("refused")

// fakeDriver records the operations performed on it.
type fakeDriver struct {
	mu         sync.Mutex
	levels     []int
	out        []bool
	requestErr error
	requested  []int
	freed      []int
	sets       int
	debounce   map[int]time.Duration
	triggers   map[int]irq.Trigger
	masked     map[int]bool
	pending    []int

	// called, without the mutex held, after a line is freed
	onFree func(offset int)
}

func newFakeDriver(lines int) *fakeDriver {
	return &fakeDriver{
		levels:   make([]int, lines),
		out:      make([]bool, lines),
		debounce: map[int]time.Duration{},
		triggers: map[int]irq.Trigger{},
		masked:   map[int]bool{},
	}
}

func (f *fakeDriver) Get(offset int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[offset], nil
}

func (f *fakeDriver) Set(offset int, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.levels[offset] = value
	return nil
}

func (f *fakeDriver) DirectionInput(offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out[offset] = false
	return nil
}

func (f *fakeDriver) DirectionOutput(offset int, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out[offset] = true
	f.levels[offset] = value
	return nil
}

func (f *fakeDriver) GetDirection(offset int) (gpiolib.Direction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.out[offset] {
		return gpiolib.DirectionOutput, nil
	}
	return gpiolib.DirectionInput, nil
}

func (f *fakeDriver) Request(offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return f.requestErr
	}
	f.requested = append(f.requested, offset)
	return nil
}

func (f *fakeDriver) Free(offset int) {
	f.mu.Lock()
	f.freed = append(f.freed, offset)
	onFree := f.onFree
	f.mu.Unlock()
	if onFree != nil {
		onFree(offset)
	}
}

func (f *fakeDriver) SetDebounce(offset int, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debounce[offset] = period
	return nil
}

func (f *fakeDriver) SetIRQType(offset int, t irq.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers[offset] = t
	return nil
}

func (f *fakeDriver) MaskIRQ(offset int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[offset] = true
}

func (f *fakeDriver) UnmaskIRQ(offset int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[offset] = false
}

func (f *fakeDriver) PendingIRQs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pp := f.pending
	f.pending = nil
	return pp
}

func (f *fakeDriver) level(offset int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[offset]
}

func (f *fakeDriver) isOut(offset int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out[offset]
}

func (f *fakeDriver) setLevel(offset, v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[offset] = v
}

func (f *fakeDriver) setOut(offset int, out bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out[offset] = out
}

func (f *fakeDriver) raise(offset int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, offset)
}

func (f *fakeDriver) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// nativeDriver supports open drain and open source in hardware.
type nativeDriver struct {
	*fakeDriver
	drives   map[int]gpiolib.Drive
	driveErr error
}

func (n *nativeDriver) SetDrive(offset int, drive gpiolib.Drive) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.driveErr != nil {
		return n.driveErr
	}
	n.drives[offset] = drive
	return nil
}

// multiDriver supports setting and getting several lines at once.
type multiDriver struct {
	*fakeDriver
	multiSets int
	multiGets int
}

func (m *multiDriver) SetMultiple(mask, bits gpiolib.Bitmap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiSets++
	for i := range m.levels {
		if mask.Test(i) {
			m.levels[i] = bits.Value(i)
		}
	}
	return nil
}

func (m *multiDriver) GetMultiple(mask, bits gpiolib.Bitmap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiGets++
	for i := range m.levels {
		if mask.Test(i) {
			bits.Assign(i, m.levels[i])
		}
	}
	return nil
}

func (m *multiDriver) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.multiSets, m.multiGets
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}

func newRegistry() *gpiolib.Registry {
	return gpiolib.NewRegistry(gpiolib.WithLogger(quietLogger()))
}
