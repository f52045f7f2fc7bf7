// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	getCmd.Flags().BoolVarP(&getOpts.ActiveLow, "active-low", "l", false, "treat the line state as active low")
	getCmd.Flags().StringSliceVarP(&getOpts.Pulls, "pull", "p", nil, "pull a line on the simulated chip before reading, as offset=value")
	rootCmd.AddCommand(getCmd)
}

var (
	getCmd = &cobra.Command{
		Use:                   "get [flags] <chip> <offset1>...",
		Short:                 "Get the state of a line or lines",
		Long:                  `Read the state of a line or lines from a GPIO chip.`,
		Args:                  cobra.MinimumNArgs(2),
		RunE:                  get,
		DisableFlagsInUseLine: true,
	}
	getOpts = struct {
		ActiveLow bool
		Pulls     []string
	}{}
)

func get(cmd *cobra.Command, args []string) error {
	name := args[0]
	oo, err := parseOffsets(args[1:])
	if err != nil {
		return err
	}
	if len(getOpts.Pulls) > 0 {
		if err = pull(name, getOpts.Pulls); err != nil {
			return err
		}
	}
	s, err := brd.open(name)
	if err != nil {
		return err
	}
	defer s.Close()
	flags := uapi.HandleRequestInput
	if getOpts.ActiveLow {
		flags |= uapi.HandleRequestActiveLow
	}
	l, err := s.GetLineHandle(handleRequest(flags, oo, nil))
	if err != nil {
		return fmt.Errorf("error requesting GPIO lines: %w", err)
	}
	defer l.Close()
	vv, err := l.Values()
	if err != nil {
		return fmt.Errorf("error reading GPIO state: %w", err)
	}
	vstr := make([]string, len(vv))
	for i, v := range vv {
		vstr[i] = fmt.Sprintf("%d", v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(vstr, " "))
	return nil
}

// pull sets the pull of lines on the simulated chip.
func pull(name string, pulls []string) error {
	c, err := brd.mockChip(name)
	if err != nil {
		return err
	}
	oo, vv, err := parseLineValues(pulls)
	if err != nil {
		return err
	}
	for i, o := range oo {
		if err = c.SetValue(o, vv[i]); err != nil {
			return err
		}
	}
	return nil
}

func handleRequest(flags uapi.HandleFlag, oo []int, vv []int) *uapi.HandleRequest {
	hr := &uapi.HandleRequest{Flags: flags, Lines: uint32(len(oo))}
	for i, o := range oo {
		hr.Offsets[i] = uint32(o)
	}
	for i, v := range vv {
		if v != 0 {
			hr.DefaultValues[i] = 1
		}
	}
	uapi.PutString(hr.Consumer[:], consumer())
	return hr
}
