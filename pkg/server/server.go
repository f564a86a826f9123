// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package server exposes a controller over HTTP and websocket: commands in,
// replies, state reports and data records out.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/controller"
)

// maxCommandBody bounds request bodies well above the command length limit
const maxCommandBody = 1024

// Controller is the part of the controller the server drives
type Controller interface {
	Submit(ctx context.Context, raw string) (controller.Reply, error)
	CurrentReport(ctx context.Context) (controller.Report, error)
}

// Config tunes the server
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Gatherer enables /metrics when set
	Gatherer prometheus.Gatherer
	// AccessLog receives the access log; nil disables it
	AccessLog io.Writer
}

// Server is the command server of one controller
type Server struct {
	cfg      Config
	ctrl     Controller
	hub      *Hub
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	http     *http.Server

	// ctx bounds websocket commands and requests; Shutdown cancels it
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server for ctrl
func New(cfg Config, ctrl Controller, log logrus.FieldLogger) *Server {
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		hub:  NewHub(log),
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.http = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
	}
	return s
}

// Hub returns the websocket hub, used to push reports and data
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the routed and wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	// routes stay on the root router so a method mismatch is a 405
	router.HandleFunc("/api/command", s.handleCommand).Methods(http.MethodPost)
	router.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	if s.cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	var h http.Handler = router
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(false))(h)
	if s.cfg.AccessLog != nil {
		h = handlers.LoggingHandler(s.cfg.AccessLog, h)
	}
	return h
}

// ListenAndServe serves until Shutdown
func (s *Server) ListenAndServe() error {
	s.log.WithField("listen", s.cfg.Listen).Info("command server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, cancels commands still waiting on the
// controller and disconnects websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleCommand runs the request body as one command. Command outcomes,
// errors included, are 200 responses; the return code tells them apart.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read command")
		return
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "empty command")
		return
	}

	reply, err := s.ctrl.Submit(r.Context(), raw)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	report, err := s.ctrl.CurrentReport(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleWebSocket upgrades the connection. Text frames are commands; the
// reply goes back to the sender. The current report is sent on connect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := s.hub.add(conn)
	go s.hub.writePump(c)
	defer s.hub.remove(c)

	ctx := s.ctx
	if report, err := s.ctrl.CurrentReport(ctx); err == nil {
		s.hub.reply(c, Message{Type: MessageReport, Report: &report})
	}

	conn.SetReadLimit(maxCommandBody)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}
		raw := strings.TrimSpace(string(data))
		if raw == "" {
			continue
		}

		reply, err := s.ctrl.Submit(ctx, raw)
		if err != nil {
			s.hub.reply(c, Message{Type: MessageError, Error: err.Error()})
			continue
		}
		s.log.WithFields(logrus.Fields{
			"client":      c.id,
			"command":     raw,
			"return_code": int(reply.Code),
		}).Debug("websocket command")
		s.hub.reply(c, Message{Type: MessageReply, Reply: &reply})
	}
}

// ExitCode maps a return code to a process exit status: 0 success,
// 1 warning, 2 error
func ExitCode(code command.ReturnCode) int {
	switch {
	case code.IsError():
		return 2
	case code.IsWarning():
		return 1
	default:
		return 0
	}
}
