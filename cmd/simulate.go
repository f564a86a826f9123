// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/scale"
)

var (
	simServe    string
	simWeight   float64
	simDrift    float64
	simNoise    float64
	simDecimals int
	simUnit     string
	simInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a scale on a serial port or WebSocket",
	Long: `Answer data requests with frames of a drifting weight.

With --port the simulator drives a serial port (for example one end of a
virtual null-modem pair). With --serve it accepts WebSocket clients on the
given address; every client gets its own weight.

Each received "P\r\n" is answered with one frame. With --interval the
simulator streams frames on its own instead.

Examples:
  libra simulate --serve :9000
  libra run --url ws://localhost:9000/`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simServe, "serve", "", "Serve the simulated scale over WebSocket on this address")
	simulateCmd.Flags().Float64Var(&simWeight, "weight", 100, "Initial weight")
	simulateCmd.Flags().Float64Var(&simDrift, "drift", 0.01, "Weight change per frame")
	simulateCmd.Flags().Float64Var(&simNoise, "noise", 0, "Noise amplitude per frame")
	simulateCmd.Flags().IntVar(&simDecimals, "decimals", 2, "Displayed decimals")
	simulateCmd.Flags().StringVar(&simUnit, "unit", scale.UnitGram, "Unit of the frames")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "Stream frames at this interval instead of answering requests")
}

func newSimulator() *scale.Simulator {
	sim := scale.NewSimulator(simWeight, simDrift, simDecimals, simUnit)
	if simNoise > 0 {
		sim.SetNoise(simNoise, time.Now().UnixNano())
	}
	return sim
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if _, ok := scale.TagForUnit(simUnit); !ok {
		return fmt.Errorf("unknown unit %q", simUnit)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if simServe != "" {
		return serveSimulator(ctx, simServe)
	}

	if cfg.Serial.Port == "" {
		return errors.New("either --port or --serve must be specified")
	}
	conn, err := OpenSerialConnection(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.WithFields(logrus.Fields{
		"port": cfg.Serial.Port,
		"baud": cfg.Serial.Baud,
	}).Info("simulating scale")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	err = simulateLink(ctx, conn, newSimulator())
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// simulateLink serves one link until it fails or ctx is done
func simulateLink(ctx context.Context, conn Connection, sim *scale.Simulator) error {
	if simInterval > 0 {
		ticker := time.NewTicker(simInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			frame, err := sim.Next()
			if err != nil {
				return err
			}
			if _, err := conn.Write(frame); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}

	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		out, err := sim.Respond(buf[:n])
		if err != nil {
			return err
		}
		if len(out) == 0 {
			continue
		}
		if _, err := conn.Write(out); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		log.WithField("weight", sim.Weight()).Debug("answered data request")
	}
}

func serveSimulator(ctx context.Context, addr string) error {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.WithError(err).Warn("websocket upgrade failed")
				return
			}
			conn := &WebSocketConnection{conn: ws}
			defer conn.Close()

			entry := log.WithField("remote", r.RemoteAddr)
			entry.Info("client connected")
			if err := simulateLink(r.Context(), conn, newSimulator()); err != nil && !errors.Is(err, ErrConnectionClosed) {
				entry.WithError(err).Warn("client session ended")
				return
			}
			entry.Info("client disconnected")
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("serving simulated scale")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
