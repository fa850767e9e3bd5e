package linker

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/tetratelabs/bclink/bytecode"
)

// Concatenate appends the image input to the image already held by output, leaving output holding one image laid out
// as:
//
//	[header][output data][input data][output globals][input globals][output main][input main]
//
// Run it before SelfLink: instruction streams are moved as whole sections and never rewritten, which is only sound
// while their references are still symbolic. Global table entries carry absolute body offsets, so they are rebased to
// where the bodies land.
//
// The header is written last. On error output is left in an unspecified state.
func Concatenate(output io.ReadWriteSeeker, input []byte) error {
	in, err := bytecode.NewImage(input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}

	if _, err = output.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek output header: %w", err)
	}
	rawHeader := make([]byte, bytecode.HeaderSize)
	if _, err = io.ReadFull(output, rawHeader); err != nil {
		return fmt.Errorf("read output header: %w", err)
	}
	out, err := bytecode.DecodeHeader(rawHeader)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if out.WriterVersion != in.Header.WriterVersion {
		return fmt.Errorf("%w: output %d, input %d", ErrVersionMismatch, out.WriterVersion, in.Header.WriterVersion)
	}

	globalsOff := int64(out.GlobalsOffset())
	if _, err = output.Seek(globalsOff, io.SeekStart); err != nil {
		return fmt.Errorf("seek output globals: %w", err)
	}
	outRem, err := io.ReadAll(output)
	if err != nil {
		return fmt.Errorf("read output globals: %w", err)
	}
	outGlobalsLen := bytecode.GlobalEntrySize * int(out.GlobalsTabNum)
	if len(outRem) < outGlobalsLen {
		return fmt.Errorf("output: %w: %d global entries at offset %d exceed image size %d",
			bytecode.ErrMalformed, out.GlobalsTabNum, globalsOff, globalsOff+int64(len(outRem)))
	}
	outGlobals, outMain := outRem[:outGlobalsLen], outRem[outGlobalsLen:]

	inData, inGlobals, inMain := in.DataTable(), in.GlobalsTable(), in.MainOpsArea()
	newGlobalsOff := globalsOff + int64(len(inData))
	newMainOff := newGlobalsOff + int64(len(outGlobals)+len(inGlobals))
	if end := newMainOff + int64(len(outMain)+len(inMain)); end > math.MaxUint32 {
		return fmt.Errorf("%w: combined image of %d bytes is not addressable", bytecode.ErrMalformed, end)
	}

	// Both deltas are non-negative: sections only ever move towards the end.
	outDelta := uint32(newMainOff - int64(out.MainOffset()))
	inDelta := uint32(newMainOff + int64(len(outMain)) - int64(in.MainOffset()))

	if _, err = output.Seek(globalsOff, io.SeekStart); err != nil {
		return fmt.Errorf("seek output globals: %w", err)
	}
	for _, section := range []struct {
		name string
		b    []byte
	}{
		{"input data table", inData},
		{"output global table", rebaseGlobals(outGlobals, outDelta)},
		{"input global table", rebaseGlobals(inGlobals, inDelta)},
		{"output main area", outMain},
		{"input main area", inMain},
	} {
		if _, err = output.Write(section.b); err != nil {
			return fmt.Errorf("write %s: %w", section.name, err)
		}
	}

	if _, err = output.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek output header: %w", err)
	}
	h := bytecode.Header{
		WriterVersion: out.WriterVersion,
		GlobalsTabOff: uint32(newGlobalsOff - bytecode.HeaderSize),
		GlobalsTabNum: out.GlobalsTabNum + in.Header.GlobalsTabNum,
		Flags:         out.Flags,
	}
	if _, err = h.WriteTo(output); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	logger().Debugf("concatenated %d globals onto %d: globals at %d, main at %d",
		in.Header.GlobalsTabNum, out.GlobalsTabNum, newGlobalsOff, newMainOff)
	return nil
}

// rebaseGlobals returns a copy of the global table entries with delta added to every body offset.
func rebaseGlobals(table []byte, delta uint32) []byte {
	ret := make([]byte, len(table))
	copy(ret, table)
	for i := 0; i+bytecode.GlobalEntrySize <= len(ret); i += bytecode.GlobalEntrySize {
		body := ret[i+4:]
		binary.LittleEndian.PutUint32(body, binary.LittleEndian.Uint32(body)+delta)
	}
	return ret
}
