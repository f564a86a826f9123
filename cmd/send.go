// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/controller"
	"github.com/Thermoquad/libra/pkg/server"
)

var (
	sendServer  string
	sendTimeout time.Duration
	sendJSON    bool
)

var sendCmd = &cobra.Command{
	Use:   "send <command>...",
	Short: "Send one command to a running controller",
	Long: `Send a command to the controller's HTTP API and print the reply.

All arguments are joined with spaces, so quoting is optional:
  libra send data-log on
  libra send "log-period 30"

Exit codes:
  0 - Command succeeded
  1 - Command accepted with a warning
  2 - Command failed or the controller could not be reached`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendServer, "server", "http://localhost:8080", "Controller base URL")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "Request timeout")
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "Print the raw JSON reply")
}

func runSend(cmd *cobra.Command, args []string) error {
	raw := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	reply, body, err := postCommand(ctx, sendServer, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
		os.Exit(2)
	}

	if sendJSON {
		fmt.Println(strings.TrimSpace(string(body)))
	} else {
		fmt.Println(formatReply(reply))
	}

	if code := server.ExitCode(reply.Code); code != 0 {
		os.Exit(code)
	}
	return nil
}

// postCommand submits raw to the command endpoint of base
func postCommand(ctx context.Context, base, raw string) (controller.Reply, []byte, error) {
	var reply controller.Reply

	url := strings.TrimSuffix(base, "/") + "/api/command"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(raw))
	if err != nil {
		return reply, nil, err
	}
	req.Header.Set("Content-Type", "text/plain")

	if user := cfg.Serial.Username; user != "" {
		password, err := passwordFor(user)
		if err != nil {
			return reply, nil, err
		}
		req.SetBasicAuth(user, password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return reply, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return reply, nil, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return reply, body, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return reply, body, fmt.Errorf("decode reply: %w", err)
	}
	return reply, body, nil
}
