// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:                   "find <line>",
	Short:                 "Find a GPIO line by name",
	Long:                  `Find a GPIO line by name. The output of this command can be used as input for get and set.`,
	Args:                  cobra.ExactArgs(1),
	RunE:                  find,
	DisableFlagsInUseLine: true,
}

func find(cmd *cobra.Command, args []string) error {
	d, err := brd.reg.FindLine(args[0])
	if err != nil {
		return fmt.Errorf("can't find line '%s': %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", d.Chip().Name(), d.Offset())
	return nil
}
