package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/tetratelabs/bclink/bytecode/leb128"
)

// Image is a read-only view over a caller-owned buffer holding one bytecode image.
//
// Image never copies the buffer, so writes to it are visible through the views.
type Image struct {
	Header Header
	buf    []byte
}

// Global is one decoded global table entry.
type Global struct {
	// Name is copied out of the data table, so it stays valid if the buffer is later mutated.
	Name   string
	NameID uint32
	// Body is the absolute offset of the first instruction of the global.
	Body uint32
}

// NewImage decodes the header of b and checks that the tables it describes fit in b.
func NewImage(b []byte) (*Image, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	if uint64(HeaderSize)+uint64(h.GlobalsTabOff)+GlobalEntrySize*uint64(h.GlobalsTabNum) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: %d global entries at offset %d exceed image size %d",
			ErrMalformed, h.GlobalsTabNum, h.GlobalsOffset(), len(b))
	}
	return &Image{Header: h, buf: b}, nil
}

// Bytes returns the whole image.
func (i *Image) Bytes() []byte {
	return i.buf
}

// DataTable returns the data/string table.
func (i *Image) DataTable() []byte {
	return i.buf[HeaderSize:i.Header.GlobalsOffset()]
}

// GlobalsTable returns the raw global table.
func (i *Image) GlobalsTable() []byte {
	return i.buf[i.Header.GlobalsOffset():i.Header.MainOffset()]
}

// MainOpsArea returns the main instruction area, which runs to the end of the image.
func (i *Image) MainOpsArea() []byte {
	return i.buf[i.Header.MainOffset():]
}

// MainOffset is the absolute offset of the main entry.
func (i *Image) MainOffset() int {
	return i.Header.MainOffset()
}

// StringID is the data table id of s: its 32-bit FNV-1a hash.
func StringID(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// DataEntry is one decoded data table entry.
type DataEntry struct {
	ID uint32
	// Pos is the absolute offset of the entry.
	Pos  int
	Data []byte
}

// DataEntries decodes the data table in order. Data aliases the image buffer.
func (i *Image) DataEntries() ([]DataEntry, error) {
	var entries []DataEntry
	table := i.DataTable()
	for off := 0; off < len(table); {
		if len(table)-off < 4 {
			return nil, fmt.Errorf("%w: truncated data entry at %d", ErrMalformed, HeaderSize+off)
		}
		id := binary.LittleEndian.Uint32(table[off:])
		size, n, err := leb128.LoadUint32(table[off+4:])
		if err != nil {
			return nil, fmt.Errorf("%w: data entry length at %d: %v", ErrMalformed, HeaderSize+off+4, err)
		}
		start := off + 4 + int(n)
		if uint64(start)+uint64(size) > uint64(len(table)) {
			return nil, fmt.Errorf("%w: data entry at %d overruns the data table", ErrMalformed, HeaderSize+off)
		}
		entries = append(entries, DataEntry{ID: id, Pos: HeaderSize + off, Data: table[start : start+int(size)]})
		off = start + int(size)
	}
	return entries, nil
}

// Strings decodes the data table into an id to string map.
//
// Equal ids holding equal bytes are merged, as happens when two linked units both name the same symbol.
func (i *Image) Strings() (map[uint32]string, error) {
	entries, err := i.DataEntries()
	if err != nil {
		return nil, err
	}
	ret := make(map[uint32]string, len(entries))
	for _, e := range entries {
		if existing, ok := ret[e.ID]; ok {
			if !bytes.Equal([]byte(existing), e.Data) {
				return nil, fmt.Errorf("%w: %#x names both %q and %q", ErrIDCollision, e.ID, existing, e.Data)
			}
			continue
		}
		ret[e.ID] = string(e.Data)
	}
	return ret, nil
}

// String resolves a single string id by scanning the data table.
func (i *Image) String(id uint32) (string, error) {
	strs, err := i.Strings()
	if err != nil {
		return "", err
	}
	if s, ok := strs[id]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %#x", ErrStringNotFound, id)
}

// Globals decodes the global table in table order, resolving each name.
func (i *Image) Globals() ([]Global, error) {
	strs, err := i.Strings()
	if err != nil {
		return nil, err
	}
	table := i.GlobalsTable()
	ret := make([]Global, i.Header.GlobalsTabNum)
	for n := range ret {
		entry := table[n*GlobalEntrySize:]
		id := binary.LittleEndian.Uint32(entry)
		name, ok := strs[id]
		if !ok {
			return nil, fmt.Errorf("global[%d]: %w: %#x", n, ErrStringNotFound, id)
		}
		body := binary.LittleEndian.Uint32(entry[4:])
		if int(body) < i.MainOffset() || int(body) >= len(i.buf) {
			return nil, fmt.Errorf("%w: global %q body %d outside of the instruction area [%d, %d)",
				ErrMalformed, name, body, i.MainOffset(), len(i.buf))
		}
		ret[n] = Global{Name: name, NameID: id, Body: body}
	}
	return ret, nil
}

// EncodeGlobalEntry appends a global table entry to dst.
func EncodeGlobalEntry(dst []byte, nameID, body uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, nameID)
	return binary.LittleEndian.AppendUint32(dst, body)
}

// EncodeDataEntry appends a data table entry holding data to dst.
func EncodeDataEntry(dst []byte, data []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, StringID(string(data)))
	dst = leb128.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}
