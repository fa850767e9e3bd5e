package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed size of Header in bytes.
	HeaderSize = 16
	// GlobalEntrySize is the size of one global table entry: name id then body offset.
	GlobalEntrySize = 8
	// WriterVersion is the format tag written by this package.
	WriterVersion uint32 = 1
)

// Header is the fixed record at the start of every image.
//
// The image layout following the header is:
//
//	[data/string table][global table: GlobalsTabNum × 8 bytes][main instruction area]
type Header struct {
	// WriterVersion tags the format. Two images can only be concatenated when equal.
	WriterVersion uint32
	// GlobalsTabOff is the offset from the end of the header to the global table, which is also the size of the data
	// table.
	GlobalsTabOff uint32
	// GlobalsTabNum is the count of global table entries.
	GlobalsTabNum uint32
	// Flags is reserved and carried through concatenation unchanged.
	Flags uint32
}

// DecodeHeader reads a Header from the head of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d < %d bytes", ErrShortHeader, len(b), HeaderSize)
	}
	return Header{
		WriterVersion: binary.LittleEndian.Uint32(b[0:]),
		GlobalsTabOff: binary.LittleEndian.Uint32(b[4:]),
		GlobalsTabNum: binary.LittleEndian.Uint32(b[8:]),
		Flags:         binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// Encode returns the HeaderSize bytes encoding h.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.WriterVersion)
	binary.LittleEndian.PutUint32(b[4:], h.GlobalsTabOff)
	binary.LittleEndian.PutUint32(b[8:], h.GlobalsTabNum)
	binary.LittleEndian.PutUint32(b[12:], h.Flags)
	return b
}

// WriteTo implements io.WriterTo.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.Encode())
	return int64(n), err
}

// GlobalsOffset is the absolute offset of the global table.
func (h Header) GlobalsOffset() int {
	return HeaderSize + int(h.GlobalsTabOff)
}

// MainOffset is the absolute offset of the main instruction area.
func (h Header) MainOffset() int {
	return h.GlobalsOffset() + GlobalEntrySize*int(h.GlobalsTabNum)
}
