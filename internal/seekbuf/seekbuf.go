// Package seekbuf provides an in-memory io.ReadWriteSeeker, the stream Concatenate needs when images never touch disk.
package seekbuf

import (
	"errors"
	"io"
)

var errNegativeOffset = errors.New("seekbuf: negative position")

// Buffer is an io.ReadWriteSeeker over a growable byte slice. Writes past the end extend it, zero filling any gap left
// by seeking beyond the end. The zero value is an empty buffer.
type Buffer struct {
	buf []byte
	pos int64
}

// New returns a Buffer holding a copy of b, positioned at the start.
func New(b []byte) *Buffer {
	return &Buffer{buf: append([]byte(nil), b...)}
}

// Bytes returns the contents. The slice aliases the buffer until the next write.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len is the size of the contents.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = b.pos + offset
	case io.SeekEnd:
		pos = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seekbuf: invalid whence")
	}
	if pos < 0 {
		return 0, errNegativeOffset
	}
	b.pos = pos
	return pos, nil
}
