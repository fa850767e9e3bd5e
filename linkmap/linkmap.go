// Package linkmap records where a link placed each symbol, the way a native linker writes a map file.
package linkmap

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tetratelabs/bclink/bytecode"
	"github.com/tetratelabs/bclink/linker"
)

// Version is the map format version.
const Version = 1

// Map describes one linked image.
type Map struct {
	Version       int      `cbor:"1,keyasint"`
	WriterVersion uint32   `cbor:"2,keyasint"`
	Size          int      `cbor:"3,keyasint"`
	MainOffset    int      `cbor:"4,keyasint"`
	Symbols       []Symbol `cbor:"5,keyasint"`
	Patches       []Patch  `cbor:"6,keyasint,omitempty"`
	Externals     []string `cbor:"7,keyasint,omitempty"`
	DeadGlobals   []string `cbor:"8,keyasint,omitempty"`
}

// Symbol is a declared global, in global table order.
type Symbol struct {
	Name string `cbor:"1,keyasint"`
	Body uint32 `cbor:"2,keyasint"`
}

// Patch is a reference the linker resolved.
type Patch struct {
	Pos    int    `cbor:"1,keyasint"`
	Symbol string `cbor:"2,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("linkmap: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// FromReport builds the map of the linked image img from the report SelfLink returned for it.
func FromReport(img *bytecode.Image, report *linker.Report) (*Map, error) {
	globals, err := img.Globals()
	if err != nil {
		return nil, err
	}
	m := &Map{
		Version:       Version,
		WriterVersion: img.Header.WriterVersion,
		Size:          len(img.Bytes()),
		MainOffset:    img.MainOffset(),
		Symbols:       make([]Symbol, len(globals)),
	}
	for i, g := range globals {
		m.Symbols[i] = Symbol{Name: g.Name, Body: g.Body}
	}
	if report != nil {
		for _, p := range report.Patches {
			m.Patches = append(m.Patches, Patch{Pos: p.Pos, Symbol: p.Symbol})
		}
		m.Externals = append(m.Externals, report.Externals...)
		m.DeadGlobals = append(m.DeadGlobals, report.DeadGlobals...)
	}
	return m, nil
}

// Marshal encodes m as canonical CBOR, so equal maps encode to equal bytes.
func Marshal(m *Map) ([]byte, error) {
	return encMode.Marshal(m)
}

// Unmarshal decodes a map produced by Marshal.
func Unmarshal(data []byte) (*Map, error) {
	var m Map
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("linkmap: unmarshal: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("linkmap: unsupported version %d", m.Version)
	}
	return &m, nil
}
