package linker

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/bclink/bytecode"
)

// Option configures SelfLink.
type Option func(*options)

type options struct {
	maxScans  int
	eliminate bool
	exported  []string
}

// WithMaxScans bounds the number of instruction runs SelfLink decodes. Zero, the default, is unbounded.
//
// This is the guard to use when linking untrusted images: exceeding it fails with ErrScanLimit.
func WithMaxScans(n int) Option {
	return func(o *options) {
		o.maxScans = n
	}
}

// WithDeadGlobalElimination roots the traversal at the main entry and the named exported globals only, instead of at
// every declared global. Globals not reachable from those roots are never scanned and are listed in
// Report.DeadGlobals. No bytes are removed from the image.
func WithDeadGlobalElimination(exported ...string) Option {
	return func(o *options) {
		o.eliminate = true
		o.exported = append(o.exported, exported...)
	}
}

// Patch is one symbolic reference rewritten to a resolved one.
type Patch struct {
	// Pos is the absolute offset of the patched instruction.
	Pos    int
	Symbol string
	// Target is the body offset written as the operand.
	Target uint32
}

// Report describes what SelfLink did.
type Report struct {
	// Patches are in the order they were applied.
	Patches []Patch
	// Externals are the undeclared symbols the Target allowed to stay unresolved, sorted.
	Externals []string
	// Scans is the count of instruction runs decoded.
	Scans int
	// VisitedBytes is the count of instruction bytes decoded.
	VisitedBytes int
	// DeadGlobals are the globals never reached, in table order. Only set WithDeadGlobalElimination.
	DeadGlobals []string
}

// SelfLink resolves the symbolic references of the combined image held by bin, in place.
//
// Every global declared in the image is a symbol naming its body offset. Starting from the main entry and every global
// body, SelfLink decodes each reachable instruction run once. An OpCodeUnresolved naming a declared symbol is rewritten
// to an OpCodeConst of the same width targeting the symbol's body. An undeclared symbol stays unresolved when target
// allows it and otherwise fails the link with ErrSymbolNotFound. An OpCodeConst targeting the instruction area is
// followed, so code reachable only through already resolved references is linked too.
//
// The first error aborts the link, possibly after some patches were written: link a copy if bin must survive failure.
// A nil target denies every undeclared symbol.
func SelfLink(bin []byte, target Target, opts ...Option) (*Report, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if target == nil {
		target = DenyAll
	}

	img, err := bytecode.NewImage(bin)
	if err != nil {
		return nil, err
	}
	strs, err := img.Strings()
	if err != nil {
		return nil, err
	}
	globals, err := img.Globals()
	if err != nil {
		return nil, err
	}

	// Global.Name is already an owned copy, so decls never aliases bin while it is patched.
	decls := make(map[string]uint32, len(globals))
	for _, g := range globals {
		if _, ok := decls[g.Name]; ok {
			return nil, &SymbolError{Name: g.Name, Err: ErrDuplicateSymbol}
		}
		decls[g.Name] = g.Body
	}

	// todo is a LIFO stack. Seeding main first and then globals in table order makes the traversal deterministic.
	todo := []int{img.MainOffset()}
	if o.eliminate {
		for _, name := range o.exported {
			body, ok := decls[name]
			if !ok {
				return nil, &SymbolError{Name: name, Err: ErrSymbolNotFound}
			}
			todo = append(todo, int(body))
		}
	} else {
		for _, g := range globals {
			todo = append(todo, int(g.Body))
		}
	}

	var (
		done      rangeSet
		report    = &Report{}
		externals = map[string]struct{}{}
		codeStart = img.MainOffset()
	)
	for len(todo) > 0 {
		off := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if done.Contains(off) {
			continue
		}
		if o.maxScans > 0 && report.Scans >= o.maxScans {
			return nil, fmt.Errorf("%w: %d runs", ErrScanLimit, o.maxScans)
		}
		report.Scans++

		// Patches are collected while decoding and applied after, so decoding never observes its own writes.
		var pending []Patch
		r := bytecode.NewOpReader(bin, off)
		for {
			p, ok, err := r.Next()
			if err != nil {
				return nil, fmt.Errorf("scan from %d: %w", off, err)
			} else if !ok {
				break
			}
			if p.Pos != off && done.Contains(p.Pos) {
				break // fell through into code an earlier run already linked
			}
			done.Insert(p.Pos, p.End()-1)

			switch p.Op.Code {
			case bytecode.OpCodeUnresolved:
				name, ok := strs[p.Op.Arg]
				if !ok {
					return nil, fmt.Errorf("offset %d: %w: %#x", p.Pos, bytecode.ErrStringNotFound, p.Op.Arg)
				}
				if body, ok := decls[name]; ok {
					pending = append(pending, Patch{Pos: p.Pos, Symbol: name, Target: body})
					if !done.Contains(int(body)) {
						todo = append(todo, int(body))
					}
				} else if target.AllowUndeclaredSymbol(name) {
					externals[name] = struct{}{}
				} else {
					return nil, &SymbolError{Name: name, Err: ErrSymbolNotFound}
				}
			case bytecode.OpCodeConst:
				idx := int(p.Op.Arg)
				if idx >= codeStart && idx < len(bin) && !done.Contains(idx) {
					todo = append(todo, idx)
				}
			}
		}

		for _, p := range pending {
			if err = bytecode.PatchConst(bin, p.Pos, p.Target); err != nil {
				return nil, err
			}
		}
		report.Patches = append(report.Patches, pending...)
	}

	for name := range externals {
		report.Externals = append(report.Externals, name)
	}
	sort.Strings(report.Externals)
	report.VisitedBytes = done.Size()

	if o.eliminate {
		for _, g := range globals {
			if !done.Contains(int(g.Body)) {
				report.DeadGlobals = append(report.DeadGlobals, g.Name)
			}
		}
	}

	log := logger()
	for _, name := range report.Externals {
		log.Debugf("left %q to the loader", name)
	}
	log.Debugf("linked %d globals: %d patches, %d runs, %d bytes of code visited",
		len(globals), len(report.Patches), report.Scans, report.VisitedBytes)
	return report, nil
}
