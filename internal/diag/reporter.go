package diag

import "kalmap/internal/source"

// Reporter receives diagnostics from a phase as they are found.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder collects notes for one diagnostic before it is emitted.
type ReportBuilder struct {
	to      Reporter
	d       Diagnostic
	emitted bool
}

// ReportError starts an error diagnostic for r; nothing reaches r before Emit.
func ReportError(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return &ReportBuilder{to: r, d: NewError(code, primary, msg)}
}

// ReportWarning is ReportError with SevWarning.
func ReportWarning(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	b := ReportError(r, code, primary, msg)
	b.d.Severity = SevWarning
	return b
}

func (b *ReportBuilder) WithNote(sp source.Span, msg string) *ReportBuilder {
	if b != nil {
		b.d = b.d.WithNote(sp, msg)
	}
	return b
}

// Emit reports the diagnostic. Later calls do nothing.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	b.emitted = true
	if b.to != nil {
		b.to.Report(b.d)
	}
}

// BagReporter stores into Bag; a nil Bag discards.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag != nil {
		r.Bag.Add(d)
	}
}

// StreamReporter hands each diagnostic to Sink immediately and counts
// errors. With Limit > 0 only the first Limit reach Sink; the rest are
// still counted.
type StreamReporter struct {
	Sink  func(Diagnostic)
	Limit int

	errors int
	seen   int
}

func (r *StreamReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	if d.IsError() {
		r.errors++
	}
	r.seen++
	if r.Sink != nil && (r.Limit <= 0 || r.seen <= r.Limit) {
		r.Sink(d)
	}
}

func (r *StreamReporter) Errors() int {
	if r == nil {
		return 0
	}
	return r.errors
}

// Suppressed counts diagnostics held back by Limit.
func (r *StreamReporter) Suppressed() int {
	if r == nil || r.Limit <= 0 {
		return 0
	}
	return max(r.seen-r.Limit, 0)
}
