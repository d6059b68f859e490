package lexer

import (
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"

	"kalmap/internal/source"
)

const readChunk = 4096

// Cursor is a position in a source file whose content may still be arriving.
// When Off reaches the end of the known content the cursor pulls more bytes
// from src. Once src reports EOF (or fails) it is never read again.
type Cursor struct {
	fs  *source.FileSet
	id  source.FileID
	src io.Reader
	buf []byte
	Off uint32

	drained bool
	readErr error
}

// NewCursor creates a cursor over a fully loaded file.
func NewCursor(fs *source.FileSet, id source.FileID) Cursor {
	return Cursor{fs: fs, id: id, drained: true}
}

// NewStreamCursor creates a cursor that appends bytes read from r to the file id.
func NewStreamCursor(fs *source.FileSet, id source.FileID, r io.Reader) Cursor {
	return Cursor{fs: fs, id: id, src: r, buf: make([]byte, readChunk)}
}

func (c *Cursor) content() []byte {
	return c.fs.Get(c.id).Content
}

func (c *Cursor) known() uint32 {
	n, err := safecast.Conv[uint32](len(c.content()))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return n
}

// fill reads the next chunk. It reports whether new bytes became available.
func (c *Cursor) fill() bool {
	for !c.drained {
		n, err := c.src.Read(c.buf)
		if n > 0 {
			c.fs.Append(c.id, c.buf[:n])
		}
		if err != nil {
			c.drained = true
			if !errors.Is(err, io.EOF) {
				c.readErr = err
			}
		}
		if n > 0 {
			return true
		}
	}
	return false
}

// EOF reports whether no byte is available at Off.
func (c *Cursor) EOF() bool {
	if c.Off < c.known() {
		return false
	}
	return !c.fill()
}

// Peek returns the current byte or 0 at EOF.
func (c *Cursor) Peek() byte {
	if c.EOF() {
		return 0
	}
	return c.content()[c.Off]
}

// Bump advances by one byte and returns it.
func (c *Cursor) Bump() byte {
	if c.EOF() {
		return 0
	}
	b := c.content()[c.Off]
	c.Off++
	return b
}

// Mark это метка, чтобы быстро получать Span читаемого фрагмента
type Mark uint32

func (c *Cursor) Mark() Mark {
	return Mark(c.Off)
}

// SpanFrom returns the span from m to the current offset.
func (c *Cursor) SpanFrom(m Mark) source.Span {
	return source.Span{
		File:  c.id,
		Start: uint32(m),
		End:   c.Off,
	}
}

// Text returns the bytes covered by sp as a string.
func (c *Cursor) Text(sp source.Span) string {
	return string(c.content()[sp.Start:sp.End])
}

// Err returns the first non-EOF read error, if any.
func (c *Cursor) Err() error {
	return c.readErr
}
