// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/scale"
)

var rawLogRequest bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded scale frames in human-readable format",
	Long: `Continuously decode and display scale frames as they arrive.

Each frame is shown with timestamp, value, unit and stability. Decode errors
are printed with the offending byte and position, then the decoder resyncs
on the next frame terminator.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogRequest, "request", false, "Send one data request before listening")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Libra - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogRequest {
		if _, err := conn.Write(scale.DataRequest); err != nil {
			return fmt.Errorf("send data request: %w", err)
		}
	}

	decoder := scale.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				log.Info("connection closed")
				return nil
			}
			log.WithError(err).Warn("read error")
			continue
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				decoder.Resync()
				continue
			}
			if frame != nil {
				fmt.Print(scale.FormatFrame(frame))
			}
		}
	}
}
