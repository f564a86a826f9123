// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the YAML configuration of the libra tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration file
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Serial  SerialConfig  `yaml:"serial"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Publish PublishConfig `yaml:"publish"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DeviceConfig identifies the device and tunes the control loop
type DeviceConfig struct {
	Name         string        `yaml:"name"`
	Slot         string        `yaml:"slot"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// SerialConfig selects the link to the scale
type SerialConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// ServerConfig is the command server
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisConfig is shared by the Redis store and publisher
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects where the configuration record is persisted
type StoreConfig struct {
	// Type is memory, file, redis or sqlite
	Type  string      `yaml:"type"`
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

// MQTTConfig enables the MQTT publisher when Broker is set
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Prefix   string        `yaml:"prefix"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisPublishConfig enables the Redis publisher when Addr is set
type RedisPublishConfig struct {
	RedisConfig `yaml:",inline"`
	Channel     string `yaml:"channel"`
	Backlog     int    `yaml:"backlog"`
}

// NATSConfig enables the NATS publisher when URL is set
type NATSConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// PublishConfig lists the event sinks
type PublishConfig struct {
	Log   bool               `yaml:"log"`
	MQTT  MQTTConfig         `yaml:"mqtt"`
	Redis RedisPublishConfig `yaml:"redis"`
	NATS  NATSConfig         `yaml:"nats"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:         "libra",
			Slot:         "libra",
			ErrorBackoff: 2 * time.Second,
			TickInterval: 100 * time.Millisecond,
		},
		Serial: SerialConfig{
			Baud: 9600,
		},
		Server: ServerConfig{
			Listen:       ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type: "file",
			Path: "state",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Publish: PublishConfig{
			Log: true,
			MQTT: MQTTConfig{
				Prefix:  "libra",
				QoS:     1,
				Timeout: 5 * time.Second,
			},
			Redis: RedisPublishConfig{
				Channel: "libra_records",
				Backlog: 1000,
			},
			NATS: NATSConfig{
				Prefix: "libra",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error
	if c.Device.Name == "" {
		errs = append(errs, errors.New("device.name is empty"))
	}
	if c.Device.Slot == "" {
		errs = append(errs, errors.New("device.slot is empty"))
	}
	if c.Device.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("device.tick_interval %v must be positive", c.Device.TickInterval))
	}
	if c.Device.ErrorBackoff < 0 {
		errs = append(errs, fmt.Errorf("device.error_backoff %v is negative", c.Device.ErrorBackoff))
	}
	switch c.Store.Type {
	case "memory", "file", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.type %q is not memory, file, redis or sqlite", c.Store.Type))
	}
	if c.Publish.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("publish.mqtt.qos %d is not 0, 1 or 2", c.Publish.MQTT.QoS))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Encode writes the configuration as YAML to w
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return enc.Close()
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
