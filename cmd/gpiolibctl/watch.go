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
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warthog618/gpiolib/cdev"
	"github.com/warthog618/gpiolib/uapi"
)

func init() {
	watchCmd.Flags().UintVarP(&watchOpts.NumEvents, "num-events", "n", 0, "exit after n events")
	watchCmd.Flags().BoolVarP(&watchOpts.Verbose, "verbose", "v", false, "display complete line info")
	watchCmd.Flags().DurationVarP(&watchOpts.Toggle, "toggle", "t", 0, "request and release the lines from another session with this period")
	rootCmd.AddCommand(watchCmd)
}

var (
	watchCmd = &cobra.Command{
		Use:                   "watch [flags] <chip> [offset1]...",
		Short:                 "Watch lines for changes to the line info",
		Long:                  `Wait for changes to info on GPIO lines and print them to standard output.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  watch,
		DisableFlagsInUseLine: true,
	}
	watchOpts = struct {
		Verbose   bool
		NumEvents uint
		Toggle    time.Duration
	}{}
)

func watch(cmd *cobra.Command, args []string) error {
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
	if len(oo) == 0 {
		ci, err := s.ChipInfo()
		if err != nil {
			return err
		}
		for o := 0; o < int(ci.Lines); o++ {
			oo = append(oo, o)
		}
	}
	w := cmd.OutOrStdout()
	for _, o := range oo {
		info, err := s.WatchLineInfo(o)
		if err != nil {
			return fmt.Errorf("error requesting watch on line %d: %w", o, err)
		}
		if watchOpts.Verbose {
			printLineInfo(w, info)
		}
	}
	evtchan := make(chan cdev.InfoChangeEvent)
	done := make(chan struct{})
	eh := func(evt cdev.InfoChangeEvent) {
		select {
		case evtchan <- evt:
		case <-done:
		}
	}
	iw, err := cdev.NewInfoWatcher(s, eh)
	if err != nil {
		return err
	}
	defer iw.Close()
	var stopped chan struct{}
	defer func() {
		// release a handler blocked on evtchan before the watcher is closed
		close(done)
		if stopped != nil {
			<-stopped
		}
	}()
	if watchOpts.Toggle > 0 {
		ts, err := brd.open(name)
		if err != nil {
			return err
		}
		stopped = make(chan struct{})
		period, log := watchOpts.Toggle, brd.log
		go func() {
			toggleRequests(ts, oo, period, done, log)
			ts.Close()
			close(stopped)
		}()
	}
	watchWait(w, evtchan)
	return nil
}

// toggleRequests requests, and then releases, the lines until done is
// closed.
func toggleRequests(s *cdev.Session, oo []int, period time.Duration, done <-chan struct{}, log logrus.FieldLogger) {
	t := time.NewTicker(period)
	defer t.Stop()
	hh := make([]*cdev.LineHandle, 0, len(oo))
	defer func() {
		for _, h := range hh {
			h.Close()
		}
	}()
	for {
		select {
		case <-t.C:
			if len(hh) != 0 {
				for _, h := range hh {
					h.Close()
				}
				hh = hh[:0]
				continue
			}
			for _, o := range oo {
				h, err := s.GetLineHandle(handleRequest(uapi.HandleRequestInput, []int{o}, nil))
				if err != nil {
					log.WithError(err).WithField("offset", o).Debug("toggle request failed")
					continue
				}
				hh = append(hh, h)
			}
		case <-done:
			return
		}
	}
}

func watchWait(w io.Writer, evtchan <-chan cdev.InfoChangeEvent) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := uint(0)
	etypes := map[uapi.ChangeType]string{
		uapi.LineChangedRequested: "requested",
		uapi.LineChangedReleased:  "released",
		uapi.LineChangedConfig:    "reconfigured",
	}
	for {
		select {
		case evt := <-evtchan:
			t := time.Now()
			fmt.Fprintf(w, "event:%3d %-12s %s (%s)\n",
				evt.Info.Offset,
				etypes[evt.Type],
				t.Format(time.RFC3339Nano),
				evt.Timestamp)
			if watchOpts.Verbose {
				printLineInfo(w, evt.Info)
			}
			count++
			if watchOpts.NumEvents > 0 && count >= watchOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}
