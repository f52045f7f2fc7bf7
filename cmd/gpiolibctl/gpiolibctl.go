// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// A utility to explore and control the lines of a simulated GPIO board.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
)

var rootCmd = &cobra.Command{
	Use:   "gpiolibctl",
	Short: "gpiolibctl is a utility to control the lines of a simulated GPIO board",
	Long: `gpiolibctl is a utility to control the lines of a simulated GPIO board.

The board is built from a YAML layout, or a single eight line chip if no layout
is provided, and exists only for the life of the command.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	SilenceUsage:       true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var defaultConfig = map[string]interface{}{
	"config":   "",
	"board":    "",
	"layout":   "",
	"consumer": "gpiolibctl",
	"loglevel": "warning",
	"irqs":     64,
}

var (
	cfg *config.Config
	brd *board
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "read configuration from a JSON file")
	pf.StringP("board", "b", "", "simulate a known board (rpi, bananapi, jetsonnano)")
	pf.StringP("layout", "L", "", "read the board layout from a YAML file")
	pf.StringP("consumer", "C", "gpiolibctl", "the consumer label applied to requested lines")
	pf.String("loglevel", "warning", "the log level (panic, fatal, error, warning, info, debug, trace)")
	pf.Int("irqs", 64, "the number of interrupts available to the board")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gpiolibctl: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the flags set on the command line over the environment,
// an optional JSON config file, and the defaults.
func loadConfig(flags *pflag.FlagSet) *config.Config {
	set := map[string]interface{}{}
	flags.Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	c := config.New(
		dict.New(dict.WithMap(set)),
		env.New(env.WithEnvPrefix("GPIOLIBCTL_")),
		config.WithDefault(dict.New(dict.WithMap(defaultConfig))))
	if c.MustGet("config").String() != "" {
		c.Append(blob.NewConfigFile(c, "config", "gpiolibctl.json", json.NewDecoder()))
	}
	return c
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(lvl)
	f := new(prefixed.TextFormatter)
	f.TimestampFormat = "2006-01-02 15:04:05.000"
	f.FullTimestamp = true
	log.SetFormatter(f)
	return log, nil
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}
	cfg = loadConfig(cmd.Flags())
	log, err := newLogger(cfg.MustGet("loglevel").String())
	if err != nil {
		return err
	}
	brd, err = newBoard(
		cfg.MustGet("board").String(),
		cfg.MustGet("layout").String(),
		cfg.MustGet("irqs").Int(),
		log)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if brd != nil {
		brd.Close()
		brd = nil
	}
	return nil
}

func consumer() string {
	return cfg.MustGet("consumer").String()
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "gpiolibctl %s: %s\n", cmd.Name(), err)
}

func parseOffsets(args []string) ([]int, error) {
	oo := []int(nil)
	for _, arg := range args {
		o, err := parseOffset(arg)
		if err != nil {
			return nil, err
		}
		oo = append(oo, o)
	}
	return oo, nil
}

func parseLineValues(args []string) ([]int, []int, error) {
	oo := []int(nil)
	vv := []int(nil)
	for _, arg := range args {
		aa := strings.Split(arg, "=")
		if len(aa) != 2 {
			return nil, nil, fmt.Errorf("invalid offset<->value mapping: %s", arg)
		}
		o, err := parseOffset(aa[0])
		if err != nil {
			return nil, nil, err
		}
		v, err := strconv.ParseInt(aa[1], 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("can't parse value '%s'", arg)
		}
		oo = append(oo, o)
		vv = append(vv, int(v))
	}
	return oo, vv, nil
}

// parseOffset parses a line offset, or a pin name if the board has named
// pins.
func parseOffset(arg string) (int, error) {
	o, err := strconv.ParseUint(arg, 10, 64)
	if err == nil {
		return int(o), nil
	}
	if brd != nil && brd.pin != nil {
		if p, err := brd.pin(arg); err == nil {
			return p, nil
		}
	}
	return 0, fmt.Errorf("can't parse offset '%s'", arg)
}
