package collect

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type StrategyReport struct {
	Name     string
	Saved    int
	Skipped  bool
	Duration time.Duration
	Err      error
}

// Report summarizes one run.
type Report struct {
	RunID      string
	Wanted     int
	Saved      int
	Duration   time.Duration
	Strategies []StrategyReport
}

// Strategy returns the report for the named strategy.
func (r Report) Strategy(name string) (StrategyReport, bool) {
	for _, s := range r.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return StrategyReport{}, false
}

// Render writes the per-strategy summary table to w.
func (r Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("run " + r.RunID)
	t.AppendHeader(table.Row{"Strategy", "Saved", "Duration", "Status"})
	for _, s := range r.Strategies {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped"
		case s.Err != nil:
			status = s.Err.Error()
		}
		t.AppendRow(table.Row{s.Name, s.Saved, s.Duration.Round(time.Millisecond), status})
	}
	t.AppendFooter(table.Row{"total", r.Saved, r.Duration.Round(time.Millisecond), "wanted " + strconv.Itoa(r.Wanted)})
	t.Render()
}
