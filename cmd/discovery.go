// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/Thermoquad/libra/pkg/scale"
)

var (
	discoveryTimeout int
	discoveryList    bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with a scale attached",
	Long: `Probe every serial port for a scale.

Each port is opened at --baud, sent one data request and read until a valid
frame arrives or the timeout passes. Ports that answer with a frame are
reported together with the reading.

Examples:
  # Probe all ports at 9600 baud
  libra discovery

  # Only list the ports without probing
  libra discovery --list

Exit codes:
  0 - At least one scale found
  1 - No scale answered
  2 - Ports could not be enumerated`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 2, "Timeout in seconds per port")
	discoveryCmd.Flags().BoolVar(&discoveryList, "list", false, "List ports without probing")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Libra - Scale Discovery\n")
	fmt.Printf("Baud: %d\n", cfg.Serial.Baud)
	fmt.Printf("Timeout: %d seconds per port\n\n", discoveryTimeout)

	if len(ports) == 0 {
		fmt.Printf("No serial ports found.\n")
		os.Exit(1)
	}

	found := 0
	for _, name := range ports {
		if discoveryList {
			fmt.Printf("  %s\n", name)
			continue
		}

		fmt.Printf("Probing %s: ", name)
		frame, err := probePort(name, cfg.Serial.Baud, time.Duration(discoveryTimeout)*time.Second)
		switch {
		case err != nil:
			fmt.Printf("%v\n", err)
		case frame == nil:
			fmt.Printf("no answer\n")
		default:
			found++
			fmt.Printf("SCALE %s %s %s\n", frame.Text(), frame.Unit(), scale.FormatByte(frame.Stability()))
		}
	}

	if discoveryList {
		return nil
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Ports probed: %d\n", len(ports))
	fmt.Printf("Scales found: %d\n", found)

	if found == 0 {
		fmt.Printf("No scale answered. Check the cable, baud rate and scale power.\n")
		os.Exit(1)
	}
	return nil
}

// probePort sends one data request and waits for a frame. A nil frame with a
// nil error means the port stayed silent.
func probePort(name string, baud int, timeout time.Duration) (*scale.Frame, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if _, err := port.Write(scale.DataRequest); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	decoder := scale.NewDecoder()
	buf := make([]byte, 128)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				decoder.Resync()
				continue
			}
			if frame != nil {
				return frame, nil
			}
		}
	}
	return nil, nil
}
