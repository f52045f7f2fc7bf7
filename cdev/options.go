// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package cdev

import "github.com/warthog618/gpiolib"

// SessionOption defines the interface required to provide an option for
// Open.
type SessionOption interface {
	applySessionOption(*sessionOptions)
}

type sessionOptions struct {
	reg      *gpiolib.Registry
	nonblock bool
}

// RegistryOption selects the registry containing the chip.
type RegistryOption struct {
	r *gpiolib.Registry
}

// WithRegistry opens the chip from the given registry rather than the
// default registry.
func WithRegistry(r *gpiolib.Registry) RegistryOption {
	return RegistryOption{r}
}

func (o RegistryOption) applySessionOption(so *sessionOptions) {
	so.reg = o.r
}

// NonBlockOption makes reads of line info changes non-blocking.
type NonBlockOption struct{}

// WithNonBlock makes reads from the session return ErrWouldBlock rather than
// waiting for a line info change.
//
// Handles and events created by the session are unaffected.
var WithNonBlock = NonBlockOption{}

func (o NonBlockOption) applySessionOption(so *sessionOptions) {
	so.nonblock = true
}
