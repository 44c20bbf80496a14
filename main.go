// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Sportscope - FrSky S.Port Telemetry Analyzer
//
// A CLI tool for decoding FrSky S.Port telemetry streams into
// human-readable sensor readings.

package main

import (
	"os"

	"github.com/Thermoquad/sportscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
