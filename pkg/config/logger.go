// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger. An unknown level falls back to info and an
// unusable log file falls back to stdout with a warning.
func (c LogConfig) NewLogger() *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch {
	case c.Output == "stderr":
		log.SetOutput(os.Stderr)
	case c.Output == "file" && c.FilePath != "":
		file, err := os.OpenFile(c.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("failed to open log file %s: %v, using stdout", c.FilePath, err)
		}
	default:
		log.SetOutput(os.Stdout)
	}

	return log
}
