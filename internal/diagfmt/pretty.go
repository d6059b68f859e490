package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"kalmap/internal/diag"
	"kalmap/internal/source"
)

type palette struct {
	err, warn, info, code, path, gutter, caret, note func(a ...any) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgCyan, color.Bold),
		code:   mk(color.Bold),
		path:   mk(color.Bold),
		gutter: mk(color.FgBlue),
		caret:  mk(color.FgGreen, color.Bold),
		note:   mk(color.FgCyan),
	}
}

func (p palette) severity(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return p.err(s.String())
	case diag.SevWarning:
		return p.warn(s.String())
	}
	return p.info(s.String())
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		PrettyOne(w, d, fs, opts)
	}
	if n := bag.Dropped(); n > 0 {
		fmt.Fprintf(w, "... %d more diagnostics suppressed\n", n)
	}
}

// PrettyOne renders a single diagnostic.
func PrettyOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	loc := location(d.Primary, fs, opts)
	fmt.Fprintf(w, "%s: %s %s: %s\n", p.path(loc), p.severity(d.Severity), p.code(d.Code.ID()), d.Message)
	writeSnippet(w, d.Primary, fs, opts, p)
	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		msg := strings.TrimRight(n.Msg, "\n")
		head, rest, multi := strings.Cut(msg, "\n")
		fmt.Fprintf(w, "  %s %s: %s\n", p.note("note:"), location(n.Span, fs, opts), head)
		if multi {
			for _, line := range strings.Split(rest, "\n") {
				fmt.Fprintf(w, "        %s\n", line)
			}
		}
	}
}

func location(sp source.Span, fs *source.FileSet, opts PrettyOpts) string {
	if fs == nil {
		return "<input>"
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", opts.PathMode.display(fileOf(fs, sp.File), opts.BaseDir), start.Line, start.Col)
}

func writeSnippet(w io.Writer, sp source.Span, fs *source.FileSet, opts PrettyOpts, p palette) {
	if fs == nil {
		return
	}
	f := fileOf(fs, sp.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	ctx := uint32(max(opts.Context, 0))
	first := start.Line - min(ctx, start.Line-1)
	last := start.Line + ctx
	width := len(fmt.Sprint(last))

	for line := first; line <= last; line++ {
		text := f.GetLine(line)
		if line != start.Line && text == "" {
			continue
		}
		fmt.Fprintf(w, " %s %s %s\n", p.gutter(fmt.Sprintf("%*d", width, line)), p.gutter("|"), text)
		if line != start.Line {
			continue
		}
		fmt.Fprintf(w, " %s %s %s\n", strings.Repeat(" ", width), p.gutter("|"), p.caret(underline(text, start, end)))
	}
}

// underline builds "^~~~" under the span on its first line. Tabs are
// kept so the marker lines up regardless of the terminal tab width;
// wide runes take their display width.
func underline(text string, start, end source.LineCol) string {
	col := int(start.Col) - 1
	if col > len(text) {
		col = len(text)
	}
	var b strings.Builder
	for _, r := range text[:col] {
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	stop := len(text)
	if end.Line == start.Line {
		stop = min(int(end.Col)-1, len(text))
	}
	n := 1
	if stop > col {
		n = max(runewidth.StringWidth(text[col:stop]), 1)
	}
	b.WriteByte('^')
	b.WriteString(strings.Repeat("~", n-1))
	return b.String()
}
