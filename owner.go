// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package gpiolib

import (
	"errors"
	"sync/atomic"
)

// ErrOwnerBusy indicates the owner still has references and cannot unload.
var ErrOwnerBusy = errors.New("owner busy")

// Owner is the module that provides one or more chips.
//
// Every line held by a client, or used as an interrupt, holds a reference on
// the owner of its chip, so the owner cannot Unload while its lines are in
// use.
type Owner struct {
	name string
	refs int64
	// set while unloading, or unloaded
	going int32
}

// NewOwner creates an Owner.
func NewOwner(name string) *Owner {
	return &Owner{name: name}
}

// Name returns the name of the owner.
func (o *Owner) Name() string {
	return o.name
}

// Refs returns the number of references currently held.
func (o *Owner) Refs() int {
	return int(atomic.LoadInt64(&o.refs))
}

// Get takes a reference on the owner.
//
// Returns false if the owner is unloading.  A nil owner is always available.
func (o *Owner) Get() bool {
	if o == nil {
		return true
	}
	if atomic.LoadInt32(&o.going) != 0 {
		return false
	}
	atomic.AddInt64(&o.refs, 1)
	if atomic.LoadInt32(&o.going) != 0 {
		o.Put()
		return false
	}
	return true
}

// Put releases a reference taken by Get.
func (o *Owner) Put() {
	if o == nil {
		return
	}
	if atomic.AddInt64(&o.refs, -1) < 0 {
		panic("gpiolib: owner reference underflow")
	}
}

// Unload marks the owner as gone, so subsequent Gets fail.
//
// Fails with ErrOwnerBusy, and the owner remains available, if any references
// are held.
func (o *Owner) Unload() error {
	atomic.StoreInt32(&o.going, 1)
	if atomic.LoadInt64(&o.refs) != 0 {
		atomic.StoreInt32(&o.going, 0)
		return ErrOwnerBusy
	}
	return nil
}
