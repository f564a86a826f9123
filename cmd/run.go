// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/config"
	"github.com/Thermoquad/libra/pkg/controller"
	"github.com/Thermoquad/libra/pkg/metrics"
	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/server"
	"github.com/Thermoquad/libra/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scale controller and its command server",
	Long: `Run the controller: restore the stored state, talk to the scale over the
serial or WebSocket link, and serve commands.

HTTP endpoints:
  POST /api/command   command text in the body, JSON reply
  GET  /api/state     current state report
  GET  /ws            commands in, replies, reports and data out
  GET  /metrics       Prometheus metrics (metrics.enabled)

Without --port or --url the controller runs without a scale, which is
enough to exercise commands and persistence.

Use --reset to ignore the stored state and start from the defaults.

On SIGHUP the config file is read again and a changed device.name renames
the device without a restart.`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runController(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := openPublishers(ctx, cfg.Publish)
	if err != nil {
		return err
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	opts := []controller.Option{controller.WithMetrics(m)}

	var conn Connection
	if cfg.Serial.Port != "" || cfg.Serial.URL != "" {
		var connInfo string
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
		log.WithField("connection", connInfo).Info("scale link open")
		opts = append(opts, controller.WithLink(conn))
	} else {
		log.Warn("no scale link configured, running without a scale")
	}

	ctrl, err := controller.New(controller.Config{
		Name:         cfg.Device.Name,
		Slot:         cfg.Device.Slot,
		ErrorBackoff: cfg.Device.ErrorBackoff,
		TickInterval: cfg.Device.TickInterval,
		Reset:        resetState,
	}, controller.NewScaleProfile(), store, pub, log, opts...)
	if err != nil {
		return err
	}
	if err := ctrl.Init(ctx); err != nil {
		return fmt.Errorf("init controller: %w", err)
	}
	if ctrl.WasReset() {
		log.WithField("slot", cfg.Device.Slot).Warn("running on default state, the stored state is replaced on the next change")
	}

	accessLog := log.WriterLevel(logrus.DebugLevel)
	defer accessLog.Close()

	srvCfg := server.Config{
		Listen:       cfg.Server.Listen,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		AccessLog:    accessLog,
	}
	if cfg.Metrics.Enabled {
		srvCfg.Gatherer = reg
	}
	srv := server.New(srvCfg, ctrl, log)
	ctrl.OnReport(srv.Hub().BroadcastReport)
	ctrl.OnData(srv.Hub().BroadcastData)
	ctrl.OnName(func(name string) {
		log.WithField("device", name).Info("device renamed")
		srv.Hub().BroadcastReport(ctrl.Report())
	})

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hangup:
				if err := reloadName(ctx, configPath, ctrl); err != nil {
					log.WithError(err).Warn("config reload failed")
				}
			}
		}
	}()

	errs := make(chan error, 3)
	go func() { errs <- ctrl.Run(ctx) }()
	go func() { errs <- srv.ListenAndServe() }()
	if conn != nil {
		go func() {
			if err := ctrl.ReadFrom(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("scale link: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errs:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("command server shutdown")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// renamer is the part of the controller a config reload drives
type renamer interface {
	Rename(ctx context.Context, name string) error
}

// reloadName reads the config file again and applies its device name
func reloadName(ctx context.Context, path string, r renamer) error {
	if path == "" {
		return errors.New("no config file to reload")
	}
	next, err := config.Load(path)
	if err != nil {
		return err
	}
	return r.Rename(ctx, next.Device.Name)
}

// openStore creates the configured state store
func openStore(ctx context.Context, sc config.StoreConfig) (state.Store, error) {
	switch sc.Type {
	case "memory":
		return state.NewMemoryStore(), nil
	case "file":
		return state.NewFileStore(sc.Path)
	case "redis":
		return state.NewRedisStore(ctx, sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB)
	case "sqlite":
		path := sc.Path
		if filepath.Ext(path) == "" {
			path += ".db"
		}
		return state.OpenSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}

// openPublishers builds the fan-out of every enabled sink
func openPublishers(ctx context.Context, pc config.PublishConfig) (publish.Multi, error) {
	var pubs publish.Multi
	fail := func(err error) (publish.Multi, error) {
		_ = pubs.Close()
		return nil, err
	}

	if pc.Log {
		pubs = append(pubs, publish.NewLogPublisher(log))
	}

	if pc.MQTT.Broker != "" {
		client, err := publish.DialMQTT(pc.MQTT.Broker, pc.MQTT.ClientID, pc.MQTT.Timeout)
		if err != nil {
			return fail(fmt.Errorf("mqtt: %w", err))
		}
		pubs = append(pubs, publish.NewMQTTPublisher(client, pc.MQTT.Prefix, pc.MQTT.QoS, log))
		log.WithField("broker", pc.MQTT.Broker).Info("publishing to MQTT")
	}

	if pc.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     pc.Redis.Addr,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("redis publisher: %w", err))
		}
		pubs = append(pubs, publish.NewRedisPublisher(client, pc.Redis.Channel, pc.Redis.Backlog, log))
		log.WithField("addr", pc.Redis.Addr).Info("publishing to Redis")
	}

	if pc.NATS.URL != "" {
		conn, err := publish.ConnectNATS(pc.NATS.URL, "libra")
		if err != nil {
			return fail(fmt.Errorf("nats: %w", err))
		}
		pubs = append(pubs, publish.NewNATSPublisher(conn, pc.NATS.Prefix))
		log.WithField("url", pc.NATS.URL).Info("publishing to NATS")
	}

	return pubs, nil
}
