package source

import (
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// FileSet owns every file of a session. IDs are indexes into it.
type FileSet struct {
	files []File
}

func NewFileSet() *FileSet {
	return &FileSet{}
}

func mustU32(n int, what string) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s overflow: %w", what, err))
	}
	return v
}

// Add registers content under path and returns a fresh ID, even when the
// path was added before.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	id := FileID(mustU32(len(fs.files), "file count"))
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    filepath.ToSlash(filepath.Clean(path)),
		Content: content,
		LineIdx: indexLines(nil, content, 0),
		Flags:   flags,
	})
	return id
}

// Load reads path from disk with CRLF line endings normalized.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return fs.Add(path, normalizeCRLF(content), 0), nil
}

func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	return fs.Add(name, content, FileVirtual)
}

// AddStreamed registers an empty file that Append grows.
func (fs *FileSet) AddStreamed(name string) FileID {
	return fs.Add(name, nil, FileStreamed|FileVirtual)
}

// Append adds data to a streamed file and returns the offset it starts at.
func (fs *FileSet) Append(id FileID, data []byte) uint32 {
	f := &fs.files[id]
	base := mustU32(len(f.Content), "content length")
	mustU32(len(f.Content)+len(data), "content length")
	f.Content = append(f.Content, data...)
	f.LineIdx = indexLines(f.LineIdx, data, base)
	return base
}

// Get panics on an unknown id.
func (fs *FileSet) Get(id FileID) *File {
	return &fs.files[id]
}

func (fs *FileSet) Len() int {
	return len(fs.files)
}

// Resolve maps both ends of span to positions. Unknown files resolve to 1:1.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	if int(span.File) >= len(fs.files) {
		return LineCol{Line: 1, Col: 1}, LineCol{Line: 1, Col: 1}
	}
	idx := fs.files[span.File].LineIdx
	return position(idx, span.Start), position(idx, span.End)
}

// GetLine returns line n (1-based) without its newline, or "" when the
// file has no such line.
func (f *File) GetLine(n uint32) string {
	if n == 0 {
		return ""
	}
	size := mustU32(len(f.Content), "content length")
	lines := mustU32(len(f.LineIdx), "line count")

	var start uint32
	if n > 1 {
		if n-2 >= lines {
			return ""
		}
		start = f.LineIdx[n-2] + 1
	}
	end := size
	if n-1 < lines {
		end = f.LineIdx[n-1]
	}
	if start >= size {
		return ""
	}
	return string(f.Content[start:min(end, size)])
}

// DisplayPath is the base name for long absolute paths, Path otherwise.
func (f *File) DisplayPath() string {
	if len(f.Path) < 40 || !filepath.IsAbs(f.Path) {
		return f.Path
	}
	return filepath.Base(f.Path)
}
