// Package main follows walk-forward progress from a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"hypothesis-lab/internal/progress"
)

var (
	styleTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleRun   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDone  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

func main() {
	// Parse flags
	endpoint := flag.String("endpoint", "ws://localhost:8080/ws", "Progress websocket endpoint")
	runID := flag.String("run-id", "", "Follow a single run (all runs when empty)")
	outputJSON := flag.Bool("json", false, "Print raw events as JSON lines")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := progress.Dial(ctx, *endpoint, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-client.Events():
			if !ok {
				fmt.Fprintln(os.Stderr, "connection closed")
				return
			}
			if *outputJSON {
				_ = enc.Encode(e)
			} else {
				fmt.Println(formatEvent(e))
			}
			// A single followed run ends with its completion event.
			if *runID != "" && e.Type == progress.TypeRunCompleted {
				return
			}
		}
	}
}

func formatEvent(e progress.Event) string {
	prefix := styleTime.Render(e.Timestamp.Format("15:04:05")) + " " + styleRun.Render(e.RunID)
	switch e.Type {
	case progress.TypePeriodStarted:
		return fmt.Sprintf("%s period %d/%d started (test %s..%s)", prefix, e.Period, e.Total, e.TestStart, e.TestEnd)
	case progress.TypePeriodCompleted:
		status := styleOK.Render("ok")
		if !e.Success {
			status = styleError.Render("FAILED: " + e.Error)
		}
		return fmt.Sprintf("%s period %d/%d %s", prefix, e.Period, e.Total, status)
	case progress.TypeRunCompleted:
		summary := fmt.Sprintf("run completed: %d/%d periods succeeded", e.SuccessfulPeriods, e.Total)
		switch {
		case e.Cancelled:
			summary = styleWarn.Render(summary + " (cancelled)")
		case !e.Success:
			summary = styleError.Render(summary)
		default:
			summary = styleDone.Render(summary)
		}
		return prefix + " " + summary
	default:
		return prefix + " " + e.Type
	}
}
