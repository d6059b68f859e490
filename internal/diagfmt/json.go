package diagfmt

import (
	"encoding/json"
	"io"

	"kalmap/internal/diag"
	"kalmap/internal/source"
)

// LocationJSON is a span in machine-readable form. Line and column
// fields are present only when positions are requested.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the document JSON writes.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Dropped     int              `json:"dropped,omitempty"`
}

type locator struct {
	fs   *source.FileSet
	opts JSONOpts
}

func (l locator) at(sp source.Span) LocationJSON {
	loc := LocationJSON{
		File:      l.opts.PathMode.display(fileOf(l.fs, sp.File), l.opts.BaseDir),
		StartByte: sp.Start,
		EndByte:   sp.End,
	}
	if !l.opts.IncludePositions {
		return loc
	}
	from, to := l.fs.Resolve(sp)
	loc.StartLine, loc.StartCol = from.Line, from.Col
	loc.EndLine, loc.EndCol = to.Line, to.Col
	return loc
}

func (l locator) diagnostic(d *diag.Diagnostic) DiagnosticJSON {
	out := DiagnosticJSON{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Title:    d.Code.Title(),
		Message:  d.Message,
		Location: l.at(d.Primary),
	}
	if l.opts.IncludeNotes {
		for _, n := range d.Notes {
			out.Notes = append(out.Notes, NoteJSON{Message: n.Msg, Location: l.at(n.Span)})
		}
	}
	return out
}

// BuildDiagnosticsOutput converts the bag without encoding it.
func BuildDiagnosticsOutput(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	items := bag.Items()
	keep := len(items)
	if opts.Max > 0 {
		keep = min(keep, opts.Max)
	}
	l := locator{fs: fs, opts: opts}
	out := DiagnosticsOutput{Diagnostics: make([]DiagnosticJSON, keep)}
	for i := range keep {
		out.Diagnostics[i] = l.diagnostic(&items[i])
	}
	out.Count = keep
	out.Dropped = bag.Dropped() + len(items) - keep
	return out
}

// JSON writes the bag as an indented DiagnosticsOutput document.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildDiagnosticsOutput(bag, fs, opts))
}
