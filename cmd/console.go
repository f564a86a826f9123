// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/server"
)

var consoleServer string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for sending commands to a running controller",
	Long: `Send commands to a running controller via an interactive terminal UI.

The console connects to the controller's /ws endpoint. Type a command and
press Enter; the reply is shown in the event log together with pushed state
reports and data records.

Features:
  - Live state panel (lock, logging, rate, timezone, readings)
  - Command history (Up/Down)
  - Automatic reconnection on connection loss

--username and --no-ssl-verify apply to the console connection. The
password is read from LIBRA_PASSWORD or prompted.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleServer, "server", "ws://localhost:8080/ws", "Controller WebSocket URL")
}

// consoleManager handles the controller connection lifecycle and reconnection
type consoleManager struct {
	url      string
	username string
	password string
	insecure bool

	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
	p       *tea.Program
	done    chan struct{}
}

func (cm *consoleManager) getConn() *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *consoleManager) setConn(conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
}

func (cm *consoleManager) dial() (*websocket.Conn, error) {
	return DialWebSocket(cm.url, cm.username, cm.password, cm.insecure)
}

// send writes one command as a text frame
func (cm *consoleManager) send(raw string) error {
	conn := cm.getConn()
	if conn == nil {
		return errors.New("not connected")
	}
	cm.writeMu.Lock()
	defer cm.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

func runConsole(cmd *cobra.Command, args []string) error {
	username := cfg.Serial.Username
	password, err := passwordFor(username)
	if err != nil {
		return err
	}

	cm := &consoleManager{
		url:      consoleServer,
		username: username,
		password: password,
		insecure: cfg.Serial.NoSSLVerify,
		done:     make(chan struct{}),
	}

	conn, err := cm.dial()
	if err != nil {
		return err
	}
	cm.setConn(conn)

	m := initialConsoleModel(cm, consoleServer)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done)
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop forwards server messages to the TUI and reconnects on loss
func (cm *consoleManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		cm.readFromConnection()

		select {
		case <-cm.done:
			return
		default:
		}

		cm.p.Send(connectionLostMsg{})
		if !cm.reconnect() {
			return
		}
	}
}

// readFromConnection reads until the connection fails
func (cm *consoleManager) readFromConnection() {
	conn := cm.getConn()
	if conn == nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg server.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		cm.p.Send(serverMsg{msg: msg})
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *consoleManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, err := cm.dial()
		if err == nil {
			cm.setConn(conn)
			cm.p.Send(reconnectedMsg{connInfo: cm.url})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
