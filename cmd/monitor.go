// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/controller"
	"github.com/Thermoquad/libra/pkg/scale"
)

var (
	showAll         bool
	statsInterval   int
	useTUI          bool
	monitorInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode the scale stream locally and track errors and readings",
	Long: `Poll the scale and validate every frame without a running controller.

The monitor tracks:
  - Decode errors (unexpected bytes, frames without a number)
  - Unstable frames and unit changes
  - Frame rate and error rate
  - Mean weight per statistics interval and the derived rate

Decode errors seen before the first valid frame are counted as skipped
bytes, not errors. By default only errors are listed; use --show-all to list
every frame.

Set --interval 0 for scales that stream on their own.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Second, "Data request interval (0 to only listen)")
}

//////////////////////////////////////////////////////////////
// Frame Monitor
//////////////////////////////////////////////////////////////

// monitorEvent is the outcome of one decoded byte that is worth showing
type monitorEvent struct {
	frame *scale.Frame
	err   error
	// sync is set on the first valid frame
	sync    bool
	skipped int
}

// frameMonitor decodes a byte stream, counting decode errors only once the
// decoder has synchronized on a valid frame
type frameMonitor struct {
	decoder *scale.Decoder
	stats   *scale.Statistics
	agg     *aggregate.Aggregator

	synchronized bool
	skipped      int
}

func newFrameMonitor(now func() time.Time, unit aggregate.RateUnit) (*frameMonitor, error) {
	profile := controller.NewScaleProfile()
	agg := aggregate.NewAggregator(unit)
	if err := profile.Setup(agg); err != nil {
		return nil, err
	}
	decoder := profile.Decoder()
	decoder.SetClock(now)
	return &frameMonitor{
		decoder: decoder,
		stats:   scale.NewStatisticsWithClock(now),
		agg:     agg,
	}, nil
}

// feed decodes data and returns the events it produced
func (m *frameMonitor) feed(data []byte) []monitorEvent {
	var events []monitorEvent
	for _, b := range data {
		frame, err := m.decoder.DecodeByte(b)
		if err != nil {
			m.decoder.Resync()
			if !m.synchronized {
				m.skipped++
				continue
			}
			m.stats.Update(nil, err)
			events = append(events, monitorEvent{err: err})
			continue
		}
		if frame == nil {
			continue
		}

		ev := monitorEvent{frame: frame}
		if !m.synchronized {
			m.synchronized = true
			ev.sync = true
			ev.skipped = m.skipped
		}
		m.stats.Update(frame, nil)
		if err := m.agg.Record(controller.ChannelWeight, frame.Value(), frame.Unit(), frame.Decimals(), frame.Timestamp()); err != nil {
			ev.err = err
		}
		events = append(events, ev)
	}
	return events
}

// snapshot closes the current statistics interval
func (m *frameMonitor) snapshot() []aggregate.ChannelSnapshot {
	return m.agg.Snapshot()
}

//////////////////////////////////////////////////////////////
// Command
//////////////////////////////////////////////////////////////

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	mon, err := newFrameMonitor(time.Now, aggregate.RatePerMinute)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chunks := make(chan []byte, 10)
	go readChunks(ctx, conn, chunks)
	if monitorInterval > 0 {
		go pollScale(ctx, conn, monitorInterval)
	}

	if useTUI {
		return runMonitorTUI(ctx, mon, connInfo, chunks)
	}
	return runMonitorText(ctx, mon, connInfo, chunks)
}

// readChunks copies link reads onto out until ctx is done or the link closes
func readChunks(ctx context.Context, conn Connection, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) || ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("read error")
			continue
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

// pollScale sends a data request every interval
func pollScale(ctx context.Context, conn Connection, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := conn.Write(scale.DataRequest); err != nil {
			log.WithError(err).Warn("data request failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runMonitorTUI(ctx context.Context, mon *frameMonitor, connInfo string, chunks <-chan []byte) error {
	m := initialMonitorModel(mon, connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for data := range chunks {
			p.Send(chunkMsg(data))
		}
		p.Send(linkClosedMsg{})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runMonitorText(ctx context.Context, mon *frameMonitor, connInfo string, chunks <-chan []byte) error {
	fmt.Printf("Libra - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case data, ok := <-chunks:
			if !ok {
				log.Info("connection closed")
				return nil
			}
			for _, ev := range mon.feed(data) {
				printMonitorEvent(ev)
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(mon.stats.String())
			for _, s := range mon.snapshot() {
				fmt.Println(formatSnapshot(s))
			}
			fmt.Println()
		}
	}
}

// printMonitorEvent prints a decode event in highlighted format
func printMonitorEvent(ev monitorEvent) {
	timestamp := time.Now().Format("15:04:05.000")
	if ev.sync {
		if ev.skipped > 0 {
			fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", ev.skipped)
		} else {
			fmt.Printf("[SYNC] Synchronized\n\n")
		}
	}
	switch {
	case ev.err != nil:
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, ev.err)
		fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
	case ev.frame != nil && !ev.frame.Stable():
		fmt.Printf("[%s] \033[1;33mUNSTABLE:\033[0m %s %s\n", timestamp, ev.frame.Text(), ev.frame.Unit())
	case ev.frame != nil && showAll:
		fmt.Print(scale.FormatFrame(ev.frame))
	}
}

// formatSnapshot renders one closed channel, e.g. "weight: 12.50 g (n=10, sd=0.01)"
func formatSnapshot(s aggregate.ChannelSnapshot) string {
	out := fmt.Sprintf("%s: %s", s.Name, s.Text)
	if s.Unit != "" {
		out += " " + s.Unit
	}
	if s.Count > 1 && s.Decimals >= 0 {
		return out + fmt.Sprintf(" (n=%d, sd=%.*f)", s.Count, s.Decimals, s.StdDev)
	}
	return out + fmt.Sprintf(" (n=%d)", s.Count)
}
