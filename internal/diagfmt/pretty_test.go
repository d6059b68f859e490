package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"kalmap/internal/diag"
	"kalmap/internal/source"
)

func singleDiag(t *testing.T, path, content string, start, end uint32, code diag.Code, msg string) (*diag.Bag, *source.FileSet, source.FileID) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual(path, []byte(content))
	bag := diag.NewBag(4)
	bag.Add(diag.NewError(code, source.Span{File: id, Start: start, End: end}, msg))
	return bag, fs, id
}

func TestPrettyHeaderAndCaret(t *testing.T) {
	bag, fs, _ := singleDiag(t, "test.k", "def f(x) y\n", 9, 10, diag.SemUnknownVariable, "Unknown variable name y")

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	want := "test.k:1:10: ERROR SEM3001: Unknown variable name y\n" +
		" 1 | def f(x) y\n" +
		"   |          ^\n"
	if got := buf.String(); got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestPrettyUnderlineWidth(t *testing.T) {
	tests := []struct {
		name    string
		content string
		start   uint32
		end     uint32
		caret   string
	}{
		{"multi-byte span", "1 + foo(2)\n", 4, 10, "    ^~~~~~"},
		{"wide rune prefix", "北 x\n", 4, 5, "   ^"},
		{"tab kept", "\tx\n", 1, 2, "\t^"},
		{"empty span", "abc\n", 3, 3, "   ^"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag, fs, _ := singleDiag(t, "u.k", tt.content, tt.start, tt.end, diag.SynUnexpectedToken, "m")
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{})
			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			if len(lines) != 3 {
				t.Fatalf("unexpected output:\n%s", buf.String())
			}
			if got := strings.TrimPrefix(lines[2], "   | "); got != tt.caret {
				t.Fatalf("caret line %q, want %q", got, tt.caret)
			}
		})
	}
}

func TestPrettyContextLines(t *testing.T) {
	content := "def a() 1\ndef b() c\ndef d() 2\n"
	bag, fs, _ := singleDiag(t, "ctx.k", content, 18, 19, diag.SemUnknownVariable, "Unknown variable name c")

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 1})
	out := buf.String()
	for _, want := range []string{"ctx.k:2:9:", " 1 | def a() 1", " 2 | def b() c", " 3 | def d() 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestPrettyNotes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("n.k", []byte("map(sq, v)\n"))
	d := diag.NewError(diag.OffCompile, source.Span{File: id, Start: 0, End: 10}, "device compilation of sq failed").
		WithNote(source.Span{File: id, Start: 4, End: 6}, "line one\nline two")
	bag := diag.NewBag(2)
	bag.Add(d)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})
	out := buf.String()
	if !strings.Contains(out, "note: n.k:1:5: line one\n") || !strings.Contains(out, "        line two\n") {
		t.Fatalf("notes not rendered:\n%s", out)
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{})
	if strings.Contains(buf.String(), "note:") {
		t.Fatalf("notes shown while disabled:\n%s", buf.String())
	}
}

func TestPrettyColor(t *testing.T) {
	bag, fs, _ := singleDiag(t, "c.k", "x\n", 0, 1, diag.SemUnknownVariable, "boom")

	var plain, colored bytes.Buffer
	Pretty(&plain, bag, fs, PrettyOpts{})
	Pretty(&colored, bag, fs, PrettyOpts{Color: true})
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("escape codes without color:\n%q", plain.String())
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Fatalf("no escape codes with color:\n%q", colored.String())
	}
}

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("/home/user/project/src/very/long/nested/path/test.k", []byte("x\n"))
	bag := diag.NewBag(2)
	bag.Add(diag.NewError(diag.SemUnknownVariable, source.Span{File: id, Start: 0, End: 1}, "x"))

	tests := []struct {
		name string
		mode PathMode
		want string
	}{
		{"absolute", PathModeAbsolute, "/home/user/project/src/very/long/nested/path/test.k:1:1"},
		{"relative", PathModeRelative, "src/very/long/nested/path/test.k:1:1"},
		{"basename", PathModeBasename, "test.k:1:1"},
		{"auto shortens long paths", PathModeAuto, "test.k:1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/project"})
			if !strings.HasPrefix(buf.String(), tt.want) {
				t.Fatalf("got %q, want prefix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrettyReportsDropped(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("d.k", []byte("x y\n"))
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(diag.SemUnknownVariable, source.Span{File: id, Start: 0, End: 1}, "x"))
	bag.Add(diag.NewError(diag.SemUnknownVariable, source.Span{File: id, Start: 2, End: 3}, "y"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	if !strings.Contains(buf.String(), "1 more diagnostics suppressed") {
		t.Fatalf("dropped count missing:\n%s", buf.String())
	}
}
