// Package source holds program text and maps byte offsets to lines and
// columns. Interactive input is registered as a streamed file that grows
// as the lexer pulls more of it.
package source

import (
	"bytes"
	"fmt"
	"slices"
)

type FileID uint32

type FileFlags uint8

const (
	// FileVirtual marks text that did not come from disk: stdin, tests.
	FileVirtual FileFlags = 1 << iota
	// FileStreamed marks a file still being appended to.
	FileStreamed
)

// File is one registered source. For a streamed file Content and LineIdx
// cover only what has been read so far.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
	Flags   FileFlags
}

// LineCol is a 1-based position.
type LineCol struct {
	Line uint32
	Col  uint32
}

// Span is the byte range [Start, End) of one file.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

func (s Span) Len() uint32 { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End) }

// Cover widens s to include other. Spans of different files are left alone.
func (s Span) Cover(other Span) Span {
	if s.File == other.File {
		s.Start = min(s.Start, other.Start)
		s.End = max(s.End, other.End)
	}
	return s
}

var crlf = []byte("\r\n")

// normalizeCRLF turns every "\r\n" into "\n"; a lone '\r' stays.
func normalizeCRLF(content []byte) []byte {
	if !bytes.Contains(content, crlf) {
		return content
	}
	return bytes.ReplaceAll(content, crlf, []byte{'\n'})
}

// indexLines appends the offsets of the newlines in data, shifted by base.
func indexLines(dst []uint32, data []byte, base uint32) []uint32 {
	for off := 0; ; {
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			return dst
		}
		off += i
		// #nosec G115 -- callers keep base+len(data) within uint32
		dst = append(dst, base+uint32(off))
		off++
	}
}

// position resolves off against a newline index. A newline belongs to the
// line it ends.
func position(lineIdx []uint32, off uint32) LineCol {
	// number of newlines strictly before off
	n, _ := slices.BinarySearch(lineIdx, off)
	if n == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	// #nosec G115 -- the line count is bounded by the uint32 offsets
	return LineCol{Line: uint32(n) + 1, Col: off - lineIdx[n-1]}
}
