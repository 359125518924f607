// Package sinks provides progress.Sink implementations: console tally,
// structured logs, and Prometheus collectors.
package sinks

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/jmwhit/docdriver/internal/progress"
)

// ConsoleSink renders a running tally and a final summary to a terminal.
type ConsoleSink struct {
	out io.Writer

	persisted *color.Color
	skipped   *color.Color
	failed    *color.Color
}

// NewConsoleSink writes to stdout.
func NewConsoleSink() *ConsoleSink {
	return NewConsoleSinkTo(os.Stdout)
}

// NewConsoleSinkTo writes to the given writer; used by tests.
func NewConsoleSinkTo(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:       out,
		persisted: color.New(color.FgGreen),
		skipped:   color.New(color.FgCyan),
		failed:    color.New(color.FgRed),
	}
}

// Consume renders one event.
func (s *ConsoleSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		fmt.Fprintf(s.out, "Processing %d items\n", evt.Total)
	case progress.StageSessionOpen:
		fmt.Fprintf(s.out, "-- new session window --\n")
	case progress.StageItemDone:
		s.itemLine(evt)
	case progress.StageRunDone:
		s.summary(evt)
	case progress.StageRunError:
		s.failed.Fprintf(s.out, "run aborted: %s\n", evt.Note)
	}
	return nil
}

func (s *ConsoleSink) itemLine(evt progress.Event) {
	c := s.failed
	switch evt.Outcome {
	case "persisted":
		c = s.persisted
	case "skipped":
		c = s.skipped
	}
	line := fmt.Sprintf("[%d/%d] %s ... %s", evt.Ordinal+1, evt.Total, evt.ItemID, evt.Outcome)
	if evt.Strategy != "" {
		line += fmt.Sprintf(" (%s, %.1fs)", evt.Strategy, evt.Dur.Seconds())
	}
	if evt.Note != "" {
		line += " - " + evt.Note
	}
	c.Fprintln(s.out, line)
}

func (s *ConsoleSink) summary(evt progress.Event) {
	total := evt.Persisted + evt.Skipped + evt.Failed
	fmt.Fprintf(s.out, "\nRun summary (%.1fs):\n", evt.Dur.Seconds())
	fmt.Fprintf(s.out, "   Total     : %d\n", total)
	s.persisted.Fprintf(s.out, "   Persisted : %3d (%s)\n", evt.Persisted, pct(evt.Persisted, total))
	s.skipped.Fprintf(s.out, "   Skipped   : %3d (%s)\n", evt.Skipped, pct(evt.Skipped, total))
	s.failed.Fprintf(s.out, "   Failed    : %3d (%s)\n", evt.Failed, pct(evt.Failed, total))
}

func pct(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

// Close implements the Sink interface; it performs no action.
func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
