// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoSize(t *testing.T) {
	patterns := []struct {
		name string
		size int
		cap  int
	}{
		{"one", 1, 1},
		{"pow2", 16, 16},
		{"rounded", 5, 8},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			f := newFifo[int](p.size)
			assert.Equal(t, p.cap, f.capacity())
			assert.Equal(t, 0, f.len())
		}
		t.Run(p.name, tf)
	}
}

func TestFifoDropNewest(t *testing.T) {
	f := newFifo[int](4)
	for i := 0; i < 6; i++ {
		ok := f.push(i)
		assert.Equal(t, i < 4, ok, i)
	}
	assert.Equal(t, 4, f.len())
	for i := 0; i < 4; i++ {
		v, ok := f.pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := f.pop()
	assert.False(t, ok)

	// wraps
	for lap := 0; lap < 3; lap++ {
		for i := 0; i < 3; i++ {
			assert.True(t, f.push(lap*10+i))
		}
		for i := 0; i < 3; i++ {
			v, ok := f.pop()
			assert.True(t, ok)
			assert.Equal(t, lap*10+i, v)
		}
	}
	assert.Equal(t, 0, f.len())
}

func TestFifoConcurrent(t *testing.T) {
	f := newFifo[int](16)
	producers := 4
	per := 1000
	var wg sync.WaitGroup
	var pushed [4]int
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				if f.push(p*per + i) {
					pushed[p]++
				}
			}
		}(p)
	}
	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	done := make(chan struct{})
	popped := make([]int, 0, producers*per)
	go func() {
		defer close(done)
		for {
			v, ok := f.pop()
			if ok {
				popped = append(popped, v)
				continue
			}
			select {
			case <-stopped:
				for v, ok := f.pop(); ok; v, ok = f.pop() {
					popped = append(popped, v)
				}
				return
			default:
			}
		}
	}()
	<-done
	total := 0
	for _, n := range pushed {
		total += n
	}
	assert.Equal(t, total, len(popped))
	assert.LessOrEqual(t, f.len(), f.capacity())
	// per producer order is preserved
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for _, v := range popped {
		p := v / per
		assert.Greater(t, v, last[p])
		last[p] = v
	}
}

