package diag

import (
	"slices"
	"testing"

	"kalmap/internal/source"
)

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{LexBadNumber, "LEX1004"},
		{SynUnexpectedToken, "SYN2001"},
		{SemArityMismatch, "SEM3003"},
		{OffCompile, "OFF4006"},
		{RunFault, "RUN5001"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
	if got := Code(4999).Title(); got != "Unknown error" {
		t.Errorf("unknown title = %q", got)
	}
}

func TestBagLimitAndSort(t *testing.T) {
	b := NewBag(2)
	r := BagReporter{Bag: b}
	r.Report(NewError(SemUnknownVariable, source.Span{Start: 10, End: 11}, "b"))
	r.Report(NewError(SynUnexpectedToken, source.Span{Start: 2, End: 3}, "a"))
	r.Report(NewError(SynUnexpectedToken, source.Span{Start: 0, End: 1}, "dropped"))

	if b.Len() != 2 || b.Dropped() != 1 {
		t.Fatalf("len=%d dropped=%d, want 2 and 1", b.Len(), b.Dropped())
	}
	b.Sort()
	if b.Items()[0].Message != "a" {
		t.Fatalf("sort order wrong: %+v", b.Items())
	}
	if !b.HasErrors() {
		t.Fatalf("HasErrors = false")
	}
	b.Reset()
	if b.Len() != 0 || b.HasErrors() {
		t.Fatalf("Reset left %d items", b.Len())
	}
}

func TestStreamReporter(t *testing.T) {
	var got []Diagnostic
	r := &StreamReporter{Sink: func(d Diagnostic) { got = append(got, d) }, Limit: 2}

	ReportError(r, SemRedefinition, source.Span{}, "first").WithNote(source.Span{Start: 1}, "previous definition").Emit()
	ReportWarning(r, SemInfo, source.Span{}, "second").Emit()
	ReportError(r, SemRedefinition, source.Span{}, "third").Emit()

	if len(got) != 2 {
		t.Fatalf("forwarded %d diagnostics, want 2", len(got))
	}
	if len(got[0].Notes) != 1 || got[0].Notes[0].Msg != "previous definition" {
		t.Fatalf("note lost: %+v", got[0])
	}
	if r.Errors() != 2 || r.Suppressed() != 1 {
		t.Fatalf("errors=%d suppressed=%d", r.Errors(), r.Suppressed())
	}
}

func TestReportBuilderEmitOnce(t *testing.T) {
	b := NewBag(10)
	rb := ReportError(BagReporter{Bag: b}, SynExpectRParen, source.Span{}, "expected ')'")
	rb.Emit()
	rb.Emit()
	if b.Len() != 1 {
		t.Fatalf("Emit twice produced %d diagnostics", b.Len())
	}
}

func TestWithNoteDoesNotAlias(t *testing.T) {
	base := NewError(SemRedefinition, source.Span{}, "x").WithNote(source.Span{Start: 1}, "one")
	base.Notes = slices.Grow(base.Notes, 4)
	a := base.WithNote(source.Span{Start: 2}, "a")
	b := base.WithNote(source.Span{Start: 3}, "b")
	if a.Notes[1].Msg != "a" || b.Notes[1].Msg != "b" || len(base.Notes) != 1 {
		t.Fatalf("notes aliased: a=%v b=%v base=%v", a.Notes, b.Notes, base.Notes)
	}
}

func TestSortPutsErrorsFirstAtSamePosition(t *testing.T) {
	b := NewBag(4)
	sp := source.Span{Start: 4, End: 5}
	b.Add(Diagnostic{Severity: SevWarning, Code: SemInfo, Primary: sp, Message: "warn"})
	b.Add(NewError(SemTypeMismatch, sp, "err"))
	b.Sort()
	if b.Items()[0].Message != "err" {
		t.Fatalf("order = %+v", b.Items())
	}
	if SevError.String() != "ERROR" || Severity(7).String() != "UNKNOWN" {
		t.Fatalf("severity names")
	}
}
