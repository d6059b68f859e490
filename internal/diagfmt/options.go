package diagfmt

import (
	"path/filepath"

	"kalmap/internal/source"
)

// PathMode selects how a diagnostic names its file.
type PathMode uint8

const (
	PathModeAuto PathMode = iota // long absolute paths shrink to a base name
	PathModeAbsolute
	PathModeRelative // relative to BaseDir
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Context   int8 // source lines shown around the primary line
	PathMode  PathMode
	BaseDir   string
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool
	IncludeNotes     bool
	PathMode         PathMode
	BaseDir          string
	Max              int // caps the output only, the bag keeps everything
}

// display renders the path of f; virtual files keep their given name.
func (m PathMode) display(f *source.File, baseDir string) string {
	if f == nil {
		return "<unknown>"
	}
	virtual := f.Flags&source.FileVirtual != 0
	switch {
	case m == PathModeAuto:
		return f.DisplayPath()
	case m == PathModeBasename:
		return filepath.Base(f.Path)
	case m == PathModeAbsolute && !virtual:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return abs
		}
	case m == PathModeRelative && baseDir != "":
		if rel, err := filepath.Rel(baseDir, f.Path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return f.Path
}

func fileOf(fs *source.FileSet, id source.FileID) *source.File {
	if fs == nil || int(id) >= fs.Len() {
		return nil
	}
	return fs.Get(id)
}
