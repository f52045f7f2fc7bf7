// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiolib"
)

// run executes the command line with all flags reset to their defaults.
func run(args ...string) (string, error) {
	getOpts.ActiveLow = false
	getOpts.Pulls = nil
	setOpts.ActiveLow = false
	setOpts.OpenDrain = false
	setOpts.OpenSource = false
	setOpts.Hold = 0
	monOpts.ActiveLow = false
	monOpts.Edge = "both"
	monOpts.Quiet = false
	monOpts.NumEvents = 0
	monOpts.Toggle = 0
	watchOpts.Verbose = false
	watchOpts.NumEvents = 0
	watchOpts.Toggle = 0
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			f.Changed = false
		})
	}
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestDetect(t *testing.T) {
	out, err := run("detect")
	require.Nil(t, err)
	assert.Equal(t, "gpiochip0 [gpio-mockup-A] (8 lines)\n", out)
}

func TestInfo(t *testing.T) {
	out, err := run("info")
	require.Nil(t, err)
	assert.Contains(t, out, "gpiochip0 - 8 lines:\n")
	assert.Contains(t, out, "\tline   0:        LED0      unused   input  active-high\n")
	assert.Contains(t, out, "\tline   4:     unnamed      unused   input  active-high\n")
	assert.Contains(t, out, "\tline   7:     unnamed gpio-mockup  output  active-high[used]\n")

	_, err = run("info", "nosuchchip")
	assert.Equal(t, errPartial, err)
}

func TestFind(t *testing.T) {
	out, err := run("find", "BUTTON1")
	require.Nil(t, err)
	assert.Equal(t, "gpiochip0 3\n", out)

	_, err = run("find", "nosuchline")
	assert.ErrorIs(t, err, gpiolib.ErrNotFound)
}

func TestGet(t *testing.T) {
	patterns := []struct {
		name string
		args []string
		out  string
	}{
		{"low", []string{"get", "gpiochip0", "2"}, "0\n"},
		{"pulled", []string{"get", "-p", "2=1", "gpiochip0", "2", "3"}, "1 0\n"},
		{"active low", []string{"get", "-l", "-p", "2=1", "gpio-mockup-A", "2", "3"}, "0 1\n"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			out, err := run(p.args...)
			require.Nil(t, err)
			assert.Equal(t, p.out, out)
		}
		t.Run(p.name, tf)
	}
	_, err := run("get", "gpiochip0", "x")
	assert.NotNil(t, err)
	_, err = run("get", "gpiochip0", "7")
	assert.ErrorIs(t, err, gpiolib.ErrBusy)
}

func TestSet(t *testing.T) {
	patterns := []struct {
		name string
		args []string
		out  string
	}{
		{"high", []string{"set", "gpiochip0", "0=1", "1=0"}, "0=1 (driven)\n1=0 (driven)\n"},
		{"active low", []string{"set", "-l", "gpiochip0", "0=1"}, "0=0 (driven)\n"},
		{"open drain low", []string{"set", "-D", "gpiochip0", "0=0"}, "0=0 (driven)\n"},
		{"open drain high", []string{"set", "-D", "gpiochip0", "0=1"}, "0=0 (floating)\n"},
		{"open source high", []string{"set", "-S", "gpiochip0", "0=1"}, "0=1 (driven)\n"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			out, err := run(p.args...)
			require.Nil(t, err)
			assert.Equal(t, p.out, out)
		}
		t.Run(p.name, tf)
	}
	_, err := run("set", "-D", "-S", "gpiochip0", "0=1")
	assert.NotNil(t, err)
	_, err = run("set", "gpiochip0", "0")
	assert.NotNil(t, err)
}

func TestMon(t *testing.T) {
	out, err := run("mon", "-n", "2", "-t", "5ms", "gpiochip0", "2")
	require.Nil(t, err)
	assert.Contains(t, out, "event:  2 rising ")
	assert.Contains(t, out, "event:  2 falling")

	out, err = run("mon", "-q", "-n", "1", "-e", "rising", "-t", "5ms", "gpiochip0", "3")
	require.Nil(t, err)
	assert.Equal(t, "", out)
}

func TestWatch(t *testing.T) {
	out, err := run("watch", "-n", "2", "-t", "5ms", "gpiochip0", "2")
	require.Nil(t, err)
	assert.Contains(t, out, "event:  2 requested    ")
	assert.Contains(t, out, "event:  2 released     ")

	out, err = run("watch", "-v", "-n", "1", "-t", "5ms", "gpiochip0", "3")
	require.Nil(t, err)
	assert.Contains(t, out, "\tline   3:     BUTTON1      unused   input  active-high\n")
	assert.Contains(t, out, "event:  3 requested    ")
	assert.Contains(t, out, "\tline   3:     BUTTON1  gpiolibctl   input  active-high[used]\n")

	_, err = run("watch", "gpiochip0", "8")
	assert.NotNil(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run("version")
	require.Nil(t, err)
	assert.Contains(t, out, "(gpiolib) undefined\n")
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	layout := `
banks:
  - label: left
    lines: 4
  - label: right
    lines: 2
    irq: chained
`
	require.Nil(t, os.WriteFile(path, []byte(layout), 0o644))
	out, err := run("--layout", path, "detect")
	require.Nil(t, err)
	assert.Equal(t, "gpiochip1 [right] (2 lines)\ngpiochip0 [left] (4 lines)\n", out)

	_, err = run("--layout", filepath.Join(dir, "missing.yaml"), "detect")
	assert.NotNil(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpiolibctl.json")
	require.Nil(t, os.WriteFile(path, []byte(`{"consumer":"file","irqs":8,"loglevel":"debug"}`), 0o644))

	newFlags := func(args ...string) *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("config", "", "")
		fs.String("consumer", "", "")
		fs.Int("irqs", 0, "")
		require.Nil(t, fs.Parse(args))
		return fs
	}

	cfg := loadConfig(newFlags())
	assert.Equal(t, "gpiolibctl", cfg.MustGet("consumer").String())
	assert.Equal(t, 64, cfg.MustGet("irqs").Int())
	assert.Equal(t, "warning", cfg.MustGet("loglevel").String())

	cfg = loadConfig(newFlags("--config", path))
	assert.Equal(t, "file", cfg.MustGet("consumer").String())
	assert.Equal(t, 8, cfg.MustGet("irqs").Int())
	assert.Equal(t, "debug", cfg.MustGet("loglevel").String())

	t.Setenv("GPIOLIBCTL_IRQS", "16")
	cfg = loadConfig(newFlags("--config", path))
	assert.Equal(t, 16, cfg.MustGet("irqs").Int())

	cfg = loadConfig(newFlags("--config", path, "--irqs", "32", "--consumer", "flag"))
	assert.Equal(t, 32, cfg.MustGet("irqs").Int())
	assert.Equal(t, "flag", cfg.MustGet("consumer").String())
}

func TestParse(t *testing.T) {
	oo, err := parseOffsets([]string{"1", "3"})
	assert.Nil(t, err)
	assert.Equal(t, []int{1, 3}, oo)
	_, err = parseOffsets([]string{"-1"})
	assert.NotNil(t, err)

	oo, vv, err := parseLineValues([]string{"1=1", "2=0"})
	assert.Nil(t, err)
	assert.Equal(t, []int{1, 2}, oo)
	assert.Equal(t, []int{1, 0}, vv)
	patterns := []string{"1", "x=1", "1=x", "1=2=3"}
	for _, p := range patterns {
		_, _, err = parseLineValues([]string{p})
		assert.NotNil(t, err, p)
	}
}

func TestBoardRPi(t *testing.T) {
	out, err := run("-b", "rpi", "find", "SPI_MOSI")
	require.Nil(t, err)
	assert.Equal(t, "gpiochip0 10\n", out)

	out, err = run("-b", "rpi", "get", "-p", "J8p19=1", "pinctrl-bcm2835", "SPI_MOSI", "GPIO17")
	require.Nil(t, err)
	assert.Equal(t, "1 0\n", out)

	out, err = run("--board", "rpi", "set", "pinctrl-bcm2835", "J8p11=1")
	require.Nil(t, err)
	assert.Equal(t, "17=1 (driven)\n", out)

	_, err = run("-b", "rpi", "get", "pinctrl-bcm2835", "ID_SDA")
	assert.NotNil(t, err)

	_, err = run("-b", "nope", "detect")
	assert.NotNil(t, err)
	_, err = run("-b", "rpi", "-L", "board.yaml", "detect")
	assert.NotNil(t, err)
}

func TestBoards(t *testing.T) {
	patterns := []struct {
		name   string
		detect string
		chip   string
		pin    string
		line   string
		find   string
		set    string
	}{
		{"bananapi", "gpiochip0 [1c20800.pinctrl] (288 lines)\n",
			"1c20800.pinctrl", "GPIO18", "PH2", "gpiochip0 226\n", "226=1 (driven)\n"},
		{"jetsonnano", "gpiochip0 [tegra-gpio] (256 lines)\n",
			"tegra-gpio", "J41p11", "PG.02", "gpiochip0 50\n", "50=1 (driven)\n"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			out, err := run("-b", p.name, "detect")
			require.Nil(t, err)
			assert.Equal(t, p.detect, out)

			out, err = run("-b", p.name, "set", p.chip, p.pin+"=1")
			require.Nil(t, err)
			assert.Equal(t, p.set, out)

			out, err = run("-b", p.name, "find", p.line)
			require.Nil(t, err)
			assert.Equal(t, p.find, out)

			out, err = run("-b", p.name, "mon", "-n", "1", "-e", "rising", "-t", "5ms", p.chip, p.pin)
			require.Nil(t, err)
			assert.Contains(t, out, " rising ")

			_, err = run("-b", p.name, "-L", "board.yaml", "detect")
			assert.NotNil(t, err)
		}
		t.Run(p.name, tf)
	}
}
