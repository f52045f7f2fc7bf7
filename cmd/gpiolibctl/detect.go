// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:                   "detect",
	Short:                 "Detect available GPIO chips",
	Long:                  `List all GPIO chips, print their labels and number of GPIO lines.`,
	Args:                  cobra.NoArgs,
	RunE:                  detect,
	DisableFlagsInUseLine: true,
}

var errPartial = errors.New("not all chips could be read")

func detect(cmd *cobra.Command, args []string) error {
	var rc error
	for _, c := range brd.reg.Chips() {
		s, err := brd.open(c.Name())
		if err != nil {
			logErr(cmd, err)
			rc = errPartial
			continue
		}
		ci, err := s.ChipInfo()
		s.Close()
		if err != nil {
			logErr(cmd, err)
			rc = errPartial
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] (%d lines)\n",
			uapi.BytesToString(ci.Name[:]),
			uapi.BytesToString(ci.Label[:]),
			ci.Lines)
	}
	return rc
}
