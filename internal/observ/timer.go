package observ

import (
	"fmt"
	"strings"
	"time"
)

// Map dispatch phases, in pipeline order.
const (
	PhaseResolve    = "resolve"
	PhasePrune      = "prune"
	PhaseSynthesize = "synthesize"
	PhaseVerify     = "verify"
	PhaseCompile    = "compile"
	PhaseLaunch     = "launch"
)

type phase struct {
	name    string
	started time.Time
	took    time.Duration
	note    string
}

// Timer measures the phases of one map call. It is not safe for
// concurrent use; a dispatcher owns one timer per call.
type Timer struct {
	callee string
	phases []phase
}

func NewTimer(callee string) *Timer {
	return &Timer{callee: callee}
}

// Begin opens a phase; the index goes back to End.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, phase{name: name, started: time.Now()})
	return len(t.phases) - 1
}

// End closes phase idx. Unknown indexes are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	ph := &t.phases[idx]
	ph.took, ph.note = time.Since(ph.started), note
}

// Track is Begin with End bound to the returned func.
func (t *Timer) Track(name string) func(note string) {
	idx := t.Begin(name)
	return func(note string) { t.End(idx, note) }
}

func (t *Timer) Summary() string { return t.Report().Summary() }

// PhaseReport is one row of a Report.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report is a finished timer in milliseconds.
type Report struct {
	Label   string        `json:"map"`
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func ms(d time.Duration) float64 { return d.Seconds() * 1e3 }

func (t *Timer) Report() Report {
	r := Report{Label: t.callee}
	var total time.Duration
	for _, ph := range t.phases {
		total += ph.took
		r.Phases = append(r.Phases, PhaseReport{Name: ph.name, DurationMS: ms(ph.took), Note: ph.note})
	}
	r.TotalMS = ms(total)
	return r
}

// Summary renders one line per phase plus a total line.
func (r Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "timings (map %s):\n", r.Label)
	row := func(name string, v float64, note string) {
		fmt.Fprintf(&sb, "  %-12s %9.3f ms", name, v)
		if note != "" {
			fmt.Fprintf(&sb, "  // %s", note)
		}
		sb.WriteByte('\n')
	}
	for _, p := range r.Phases {
		row(p.Name, p.DurationMS, p.Note)
	}
	row("total", r.TotalMS, "")
	return sb.String()
}
