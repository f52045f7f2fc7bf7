// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/cdev"
	"github.com/warthog618/gpiolib/mockup"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	monCmd.Flags().BoolVarP(&monOpts.ActiveLow, "active-low", "l", false, "treat the line state as active low")
	monCmd.Flags().StringVarP(&monOpts.Edge, "edge", "e", "both", "select the edge detection.")
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0, "exit after n edges")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false, "don't display event details")
	monCmd.Flags().DurationVarP(&monOpts.Toggle, "toggle", "t", 0, "toggle the pull of the lines on the simulated chip with this period")
	monCmd.SetHelpTemplate(monCmd.HelpTemplate() + extendedMonHelp)
	rootCmd.AddCommand(monCmd)
}

var extendedMonHelp = `
Edges:
  both:         both rising and falling edge events are detected
                and reported
  rising:       only rising edge events are detected and reported
  falling:      only falling edge events are detected and reported
`

var (
	monCmd = &cobra.Command{
		Use:                   "mon [flags] <chip> <offset1>...",
		Short:                 "Monitor the state of a line or lines",
		Long:                  `Wait for events on GPIO lines and print them to standard output.`,
		Args:                  cobra.MinimumNArgs(2),
		RunE:                  mon,
		DisableFlagsInUseLine: true,
	}
	monOpts = struct {
		ActiveLow bool
		Edge      string
		Quiet     bool
		NumEvents uint
		Toggle    time.Duration
	}{}
)

func mon(cmd *cobra.Command, args []string) error {
	name := args[0]
	oo, err := parseOffsets(args[1:])
	if err != nil {
		return err
	}
	s, err := brd.open(name)
	if err != nil {
		return err
	}
	defer s.Close()
	hflags, eflags := makeMonFlags()
	ll := make([]*cdev.LineEvent, 0, len(oo))
	defer func() {
		for _, l := range ll {
			l.Close()
		}
	}()
	for _, o := range oo {
		er := uapi.EventRequest{
			Offset:      uint32(o),
			HandleFlags: hflags,
			EventFlags:  eflags,
		}
		uapi.PutString(er.Consumer[:], consumer())
		l, err := s.GetLineEvent(&er)
		if err != nil {
			return fmt.Errorf("error requesting GPIO line %d: %w", o, err)
		}
		ll = append(ll, l)
	}
	evtchan := make(chan cdev.Event)
	done := make(chan struct{})
	eh := func(evt cdev.Event) {
		select {
		case evtchan <- evt:
		case <-done:
		}
	}
	w, err := cdev.NewWatcher(eh, ll...)
	if err != nil {
		return err
	}
	defer w.Close()
	// release a handler blocked on evtchan before the watcher is closed
	defer close(done)
	if monOpts.Toggle > 0 {
		mc, err := brd.mockChip(name)
		if err != nil {
			return err
		}
		go toggle(mc, oo, monOpts.Toggle, done)
	}
	monWait(cmd.OutOrStdout(), evtchan)
	return nil
}

// toggle flips the pull of the lines until done is closed.
func toggle(mc *mockup.Chip, oo []int, period time.Duration, done <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	v := 1
	for {
		select {
		case <-t.C:
			for _, o := range oo {
				mc.SetValue(o, v)
			}
			v ^= 1
		case <-done:
			return
		}
	}
}

func monWait(w io.Writer, evtchan <-chan cdev.Event) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case evt := <-evtchan:
			if !monOpts.Quiet {
				t := time.Now()
				fmt.Fprintf(w, "event:%3d %-7s %s (%s)\n",
					evt.Offset,
					evt.Type,
					t.Format(time.RFC3339Nano),
					evt.Timestamp)
			}
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}

func makeMonFlags() (uapi.HandleFlag, uapi.EventFlag) {
	hflags := uapi.HandleRequestInput
	if monOpts.ActiveLow {
		hflags |= uapi.HandleRequestActiveLow
	}
	eflags := uapi.EventRequestBothEdges
	switch strings.ToLower(monOpts.Edge) {
	case "falling":
		eflags = uapi.EventRequestFallingEdge
	case "rising":
		eflags = uapi.EventRequestRisingEdge
	}
	return hflags, eflags
}
