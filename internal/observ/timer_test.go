package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer("square")
	end := tm.Track(PhasePrune)
	time.Sleep(time.Millisecond)
	end("3 funcs")
	idx := tm.Begin(PhaseLaunch)
	tm.End(idx, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if r.Label != "square" || len(r.Phases) != 2 {
		t.Fatalf("report = %+v", r)
	}
	if r.Phases[0].Name != PhasePrune || r.Phases[0].Note != "3 funcs" || r.Phases[0].DurationMS <= 0 {
		t.Fatalf("prune phase = %+v", r.Phases[0])
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("total %f below phase %f", r.TotalMS, r.Phases[0].DurationMS)
	}

	s := tm.Summary()
	for _, want := range []string{"timings (map square):", "prune", "// 3 funcs", "launch", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	r := NewTimer("f").Report()
	if r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("report = %+v", r)
	}
}
