// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/cdev"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:                   "info [flags] [chip]...",
	Short:                 "Info about chip lines",
	Long:                  `Print information about all lines of the specified GPIO chip(s) (or all gpiochips if none are specified).`,
	RunE:                  info,
	DisableFlagsInUseLine: true,
}

func info(cmd *cobra.Command, args []string) error {
	var rc error
	cc := []string(nil)
	cc = append(cc, args...)
	if len(cc) == 0 {
		for _, c := range brd.reg.Chips() {
			cc = append(cc, c.Name())
		}
	}
	w := cmd.OutOrStdout()
	for _, name := range cc {
		s, err := brd.open(name)
		if err != nil {
			logErr(cmd, err)
			rc = errPartial
			continue
		}
		if err = printChipInfo(w, s); err != nil {
			logErr(cmd, err)
			rc = errPartial
		}
		s.Close()
	}
	return rc
}

func printChipInfo(w io.Writer, s *cdev.Session) error {
	ci, err := s.ChipInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s - %d lines:\n", uapi.BytesToString(ci.Name[:]), ci.Lines)
	for o := 0; o < int(ci.Lines); o++ {
		li, err := s.LineInfo(o)
		if err != nil {
			return err
		}
		printLineInfo(w, li)
	}
	return nil
}

func printLineInfo(w io.Writer, li uapi.LineInfo) {
	name := uapi.BytesToString(li.Name[:])
	if len(name) == 0 {
		name = "unnamed"
	}
	consumer := uapi.BytesToString(li.Consumer[:])
	if li.Flags.IsRequested() {
		if len(consumer) == 0 {
			consumer = "kernel"
		}
		if strings.Contains(consumer, " ") {
			consumer = "\"" + consumer + "\""
		}
	} else {
		consumer = "unused"
	}
	dirn := "input"
	if li.Flags.IsOut() {
		dirn = "output"
	}
	active := "active-high"
	if li.Flags.IsActiveLow() {
		active = "active-low"
	}
	flags := []string(nil)
	if li.Flags.IsRequested() {
		flags = append(flags, "used")
	}
	if li.Flags.IsOpenDrain() {
		flags = append(flags, "open-drain")
	}
	if li.Flags.IsOpenSource() {
		flags = append(flags, "open-source")
	}
	flstr := ""
	if len(flags) > 0 {
		flstr = "[" + strings.Join(flags, " ") + "]"
	}
	fmt.Fprintf(w, "\tline %3d:%12s%12s%8s%13s%s\n",
		li.Offset, name, consumer, dirn, active, flstr)
}
