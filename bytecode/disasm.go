package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a human-readable listing of img to w: the header, the data table, the global table and the run
// starting at the main entry and at each global body.
func Disassemble(w io.Writer, img *Image) error {
	var sb strings.Builder
	h := img.Header
	fmt.Fprintf(&sb, "; writer version %d, flags %#x\n", h.WriterVersion, h.Flags)
	fmt.Fprintf(&sb, "; data table %d bytes, %d globals at %d, main at %d, %d bytes total\n",
		h.GlobalsTabOff, h.GlobalsTabNum, h.GlobalsOffset(), h.MainOffset(), len(img.Bytes()))

	entries, err := img.DataEntries()
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		sb.WriteString("\n; data:\n")
		for _, e := range entries {
			display := string(e.Data)
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			fmt.Fprintf(&sb, ";   %08x @%d %q\n", e.ID, e.Pos, display)
		}
	}

	strs, err := img.Strings()
	if err != nil {
		return err
	}
	globals, err := img.Globals()
	if err != nil {
		return err
	}
	bodies := make(map[uint32]string, len(globals))
	if len(globals) > 0 {
		sb.WriteString("\n; globals:\n")
		for _, g := range globals {
			fmt.Fprintf(&sb, ";   %s @%d\n", g.Name, g.Body)
			if _, ok := bodies[g.Body]; !ok {
				bodies[g.Body] = g.Name
			}
		}
	}

	writeRun := func(label string, off int) error {
		ops, err := DecodeRun(img.Bytes(), off)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		fmt.Fprintf(&sb, "\n%s:\n", label)
		for _, p := range ops {
			fmt.Fprintf(&sb, "  %6d  %s", p.Pos, p.Op)
			switch p.Op.Code {
			case OpCodeUnresolved:
				if name, ok := strs[p.Op.Arg]; ok {
					fmt.Fprintf(&sb, " ; %s", name)
				}
			case OpCodeConst:
				if name, ok := bodies[p.Op.Arg]; ok {
					fmt.Fprintf(&sb, " ; %s", name)
				}
			}
			sb.WriteByte('\n')
		}
		return nil
	}

	if err = writeRun("main", img.MainOffset()); err != nil {
		return err
	}
	for _, g := range globals {
		if err = writeRun(g.Name, int(g.Body)); err != nil {
			return err
		}
	}

	_, err = io.WriteString(w, sb.String())
	return err
}
