// Package text assembles a line-oriented text format into unlinked bytecode images.
//
// Each line holds one directive or instruction; ';' starts a comment:
//
//	version 1            ; optional, header writer version
//	data "hello"         ; adds a data table entry
//	main                 ; starts the main entry code
//	  ref greet          ; unresolved reference to the symbol greet
//	  call
//	  halt
//	global greet         ; declares a global and starts its body
//	  push -1
//	  const @other       ; resolved reference to the body of global other
//	  const 40           ; resolved reference to an absolute offset
//	  ret
package text

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/bclink/bytecode"
)

// FormatError reports where assembly failed.
type FormatError struct {
	// Line is the 1-based source line of the error.
	Line uint32
	// Col is the 1-based byte column of the offending field.
	Col uint32
	// Context is the block being assembled, such as "main" or "global foo". Empty before the first block.
	Context string
	cause   error
}

func (e *FormatError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.cause)
	}
	return fmt.Sprintf("%d:%d: %v in %s", e.Line, e.Col, e.cause, e.Context)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}

var errNoBlock = errors.New("instruction outside of main or global")

type field struct {
	text string
	col  uint32
}

// fields splits a line on whitespace, keeping quoted strings whole and dropping comments.
func fields(line string) ([]field, error) {
	var ret []field
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == ';':
			return ret, nil
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '"':
			end := i + 1
			for ; end < len(line) && line[end] != '"'; end++ {
				if line[end] == '\\' {
					end++
				}
			}
			if end >= len(line) {
				return nil, &FormatError{Col: uint32(i + 1), cause: errors.New("unterminated string")}
			}
			ret = append(ret, field{text: line[i : end+1], col: uint32(i + 1)})
			i = end + 1
		default:
			end := i
			for end < len(line) && !strings.ContainsRune(" \t\r;", rune(line[end])) {
				end++
			}
			ret = append(ret, field{text: line[i:end], col: uint32(i + 1)})
			i = end
		}
	}
	return ret, nil
}

// Assemble encodes source as an unlinked image.
func Assemble(source []byte) ([]byte, error) {
	b := bytecode.NewBuilder()
	var (
		code    *bytecode.CodeBuilder
		context string
		lineNo  uint32
	)
	fail := func(col uint32, cause error) error {
		return &FormatError{Line: lineNo, Col: col, Context: context, cause: cause}
	}

	s := bufio.NewScanner(bytes.NewReader(source))
	for s.Scan() {
		lineNo++
		fs, err := fields(s.Text())
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				return nil, fail(fe.Col, fe.cause)
			}
			return nil, err
		}
		if len(fs) == 0 {
			continue
		}

		head, args := fs[0], fs[1:]
		arity := 0
		switch head.text {
		case "version", "data", "global", "push", "ref", "const", "unresolved":
			arity = 1
		}
		if len(args) != arity {
			col := head.col
			if len(args) > arity {
				col = args[arity].col
			}
			return nil, fail(col, fmt.Errorf("%s takes %d operand(s), got %d", head.text, arity, len(args)))
		}

		switch head.text {
		case "version":
			v, err := strconv.ParseUint(args[0].text, 0, 32)
			if err != nil {
				return nil, fail(args[0].col, fmt.Errorf("invalid version: %w", err))
			}
			b.WithWriterVersion(uint32(v))
		case "data":
			d, err := strconv.Unquote(args[0].text)
			if err != nil {
				return nil, fail(args[0].col, fmt.Errorf("invalid string %s", args[0].text))
			}
			b.AddString(d)
		case "main":
			context = "main"
			code = b.Main()
		case "global":
			context = "global " + args[0].text
			code = b.Global(args[0].text)
		default:
			if code == nil {
				return nil, fail(head.col, errNoBlock)
			}
			if err = assembleOp(code, head, args); err != nil {
				var fe *FormatError
				if errors.As(err, &fe) {
					return nil, fail(fe.Col, fe.cause)
				}
				return nil, fail(head.col, err)
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func assembleOp(code *bytecode.CodeBuilder, head field, args []field) error {
	switch head.text {
	case "ref":
		code.Ref(args[0].text)
		return nil
	case "push":
		v, err := strconv.ParseInt(args[0].text, 0, 32)
		if err != nil {
			return &FormatError{Col: args[0].col, cause: fmt.Errorf("invalid immediate: %w", err)}
		}
		code.Push(int32(v))
		return nil
	case "const":
		if name := strings.TrimPrefix(args[0].text, "@"); name != args[0].text {
			if name == "" {
				return &FormatError{Col: args[0].col, cause: errors.New("missing global name")}
			}
			code.ConstGlobal(name)
			return nil
		}
		fallthrough
	case "unresolved":
		v, err := strconv.ParseUint(args[0].text, 0, 32)
		if err != nil {
			return &FormatError{Col: args[0].col, cause: fmt.Errorf("invalid operand: %w", err)}
		}
		c, _ := bytecode.LookupOpCode(head.text)
		code.Op(c, uint32(v))
		return nil
	}

	c, ok := bytecode.LookupOpCode(head.text)
	if !ok {
		return fmt.Errorf("unknown instruction: %s", head.text)
	}
	code.Op(c, 0)
	return nil
}
