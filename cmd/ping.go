// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/scale"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the round trip of data requests to the scale",
	Long: `Send data requests to the scale and wait for each frame.

Every request is answered by exactly one frame; the time between writing the
request and decoding the frame is reported as the round trip. Frames that
arrive late are counted against the next request.

Exit codes:
  0 - All requests answered
  1 - One or more requests failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each request")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of requests to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Libra - Scale Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per request\n", pingTimeout)
	fmt.Printf("Count: %d requests\n\n", pingCount)

	frameChan := make(chan *scale.Frame, 4)
	errChan := make(chan error, 1)

	go func() {
		decoder := scale.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for j := 0; j < n; j++ {
				frame, decodeErr := decoder.DecodeByte(buf[j])
				if decodeErr != nil {
					decoder.Resync()
					continue
				}
				if frame != nil {
					frameChan <- frame
				}
			}
		}
	}()

	successCount := 0
	failCount := 0
	var total time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Request %d/%d: ", i, pingCount)

		startTime := time.Now()
		if _, err := conn.Write(scale.DataRequest); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case frame := <-frameChan:
			rtt := time.Since(startTime)
			total += rtt
			fmt.Printf("%s %s %s, rtt=%v\n", frame.Text(), frame.Unit(),
				scale.FormatByte(frame.Stability()), rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			i = pingCount

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no frame in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between requests
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d frames received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (total / time.Duration(successCount)).Round(time.Millisecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
