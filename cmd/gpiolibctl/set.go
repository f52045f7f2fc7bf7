// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	setCmd.Flags().BoolVarP(&setOpts.ActiveLow, "active-low", "l", false, "treat the line state as active low")
	setCmd.Flags().BoolVarP(&setOpts.OpenDrain, "open-drain", "D", false, "set the line as open drain")
	setCmd.Flags().BoolVarP(&setOpts.OpenSource, "open-source", "S", false, "set the line as open source")
	setCmd.Flags().DurationVar(&setOpts.Hold, "hold", 0, "hold the lines for the period, or until a signal if negative")
	rootCmd.AddCommand(setCmd)
}

var (
	setCmd = &cobra.Command{
		Use:                   "set [flags] <chip> <offset1>=<value1>...",
		Short:                 "Set the state of a line or lines",
		Long:                  `Set the state of a line or lines on a GPIO chip and report the level driven on the simulated chip.`,
		Args:                  cobra.MinimumNArgs(2),
		RunE:                  set,
		DisableFlagsInUseLine: true,
	}
	setOpts = struct {
		ActiveLow  bool
		OpenDrain  bool
		OpenSource bool
		Hold       time.Duration
	}{}
)

func set(cmd *cobra.Command, args []string) error {
	if setOpts.OpenDrain && setOpts.OpenSource {
		return errors.New("can't select both open-drain and open-source")
	}
	name := args[0]
	oo, vv, err := parseLineValues(args[1:])
	if err != nil {
		return err
	}
	mc, err := brd.mockChip(name)
	if err != nil {
		return err
	}
	s, err := brd.open(name)
	if err != nil {
		return err
	}
	defer s.Close()
	flags := uapi.HandleRequestOutput
	if setOpts.ActiveLow {
		flags |= uapi.HandleRequestActiveLow
	}
	if setOpts.OpenDrain {
		flags |= uapi.HandleRequestOpenDrain
	}
	if setOpts.OpenSource {
		flags |= uapi.HandleRequestOpenSource
	}
	l, err := s.GetLineHandle(handleRequest(flags, oo, vv))
	if err != nil {
		return fmt.Errorf("error requesting GPIO lines: %w", err)
	}
	defer l.Close()
	w := cmd.OutOrStdout()
	for _, o := range oo {
		v, err := mc.Value(o)
		if err != nil {
			return err
		}
		out, _ := mc.IsOutput(o)
		state := "driven"
		if !out {
			state = "floating"
		}
		fmt.Fprintf(w, "%d=%d (%s)\n", o, v, state)
	}
	hold(setOpts.Hold)
	return nil
}

func hold(period time.Duration) {
	if period == 0 {
		return
	}
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	if period < 0 {
		<-sigdone
		return
	}
	select {
	case <-time.After(period):
	case <-sigdone:
	}
}
