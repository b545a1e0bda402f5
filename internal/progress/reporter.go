package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Reporter drives a terminal spinner whose suffix is kept in sync with a
// Tracker's stats, auto-disabled exactly as DetectTerminalCapabilities
// governs the rest of the CLI's symbol selection. On a non-TTY writer
// (piped output, CI logs) it falls back to one plain summary line per
// change instead of repainting a spinner frame.
type Reporter struct {
	tracker *Tracker
	caps    TerminalCapabilities
	out     io.Writer
	spin    *spinner.Spinner
}

// NewReporter builds a Reporter over tracker, writing to out.
func NewReporter(tracker *Tracker, out io.Writer) *Reporter {
	caps := DetectTerminalCapabilities()
	symbols := SelectSymbols(caps)

	r := &Reporter{tracker: tracker, caps: caps, out: out}

	if caps.IsTTY {
		r.spin = spinner.New(spinner.CharSets[symbols.SpinnerSet], 120*time.Millisecond, spinner.WithWriter(out))
	}

	tracker.OnChange(r.render)
	return r
}

// Start begins live rendering. Safe to call even when the writer is not
// a terminal (it is then a no-op, since render falls back to plain lines).
func (r *Reporter) Start() {
	if r.spin != nil {
		r.spin.Suffix = "  " + r.tracker.Stats().Render()
		r.spin.Start()
	}
}

// Stop halts the spinner and prints a final detailed summary line.
func (r *Reporter) Stop() {
	if r.spin != nil {
		r.spin.Stop()
	}
	stats := r.tracker.Stats()
	fmt.Fprintln(r.out, r.colorize(stats))
}

func (r *Reporter) render(stats Stats) {
	if r.spin != nil {
		r.spin.Suffix = "  " + stats.Render()
		return
	}
	fmt.Fprintln(r.out, stats.Render())
}

func (r *Reporter) colorize(stats Stats) string {
	if !r.caps.SupportsColor {
		return stats.RenderDetailed()
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	return fmt.Sprintf("%d/%d tested (%s pass, %s fail, %s skip)",
		stats.Passed+stats.Failed+stats.Skipped, stats.Total,
		green(stats.Passed), red(stats.Failed), yellow(stats.Skipped))
}
