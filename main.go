// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Libra - Serial Lab Scale Controller
//
// Polls a serial balance, aggregates its readings and logs them to the
// configured event sinks. Commands arrive over HTTP and WebSocket.

package main

import (
	"os"

	"github.com/Thermoquad/libra/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
