// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Print or write the effective configuration",
	Long: `Print the effective configuration as YAML: the config file, if any, with
explicitly set flags applied on top. With a path, the YAML is written to
that file instead, which is a convenient way to start a config file:

  libra config --port /dev/ttyUSB0 libra.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: writeConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func writeConfig(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cfg.Encode(cmd.OutOrStdout())
	}
	if err := cfg.Save(args[0]); err != nil {
		return err
	}
	log.WithField("path", args[0]).Info("configuration written")
	return nil
}
