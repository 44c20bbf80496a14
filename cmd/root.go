// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Other sources
	tcpAddr    string
	replayFile string
)

var rootCmd = &cobra.Command{
	Use:   "sportscope",
	Short: "FrSky S.Port Telemetry Analyzer",
	Long: `Sportscope - A CLI tool for decoding FrSky S.Port telemetry streams.

Decodes the flight controller sensor frames (battery, GPS, attitude, RSSI, ...)
from a raw S.Port byte stream and provides commands for logging, statistics,
recording and forwarding the decoded telemetry.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 57600]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp host:port
  Replay:    --file capture.bin

For WebSocket authentication, the password is read from the SPORT_PASSWORD
environment variable, or prompted interactively if not set.

Diagnostic logging uses glog: pass --logtostderr -v=1 to see discarded frames.`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// glog reads its flags from the standard flag set
		flag.CommandLine.Parse([]string{})
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 57600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "Raw TCP telemetry bridge (host:port)")
	rootCmd.PersistentFlags().StringVarP(&replayFile, "file", "f", "", "Replay a captured byte stream from file")

	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// Execute runs the root command
func Execute() error {
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
