package bytecode

import (
	"encoding/binary"
	"fmt"
)

type OpCode byte

const (
	OpCodeNop OpCode = 0x00
	// OpCodeConst is a resolved reference. Its operand is an absolute byte offset into the image.
	OpCodeConst OpCode = 0x01
	// OpCodeUnresolved is a symbolic reference. Its operand is the data table id of the symbol name.
	OpCodeUnresolved OpCode = 0x02
	OpCodePush       OpCode = 0x03

	// stack instruction
	OpCodeDrop OpCode = 0x04
	OpCodeDup  OpCode = 0x05

	// numeric instruction
	OpCodeAdd OpCode = 0x06
	OpCodeSub OpCode = 0x07
	OpCodeMul OpCode = 0x08

	// control instruction
	OpCodeCall OpCode = 0x09
	OpCodeRet  OpCode = 0x0a
	OpCodeHalt OpCode = 0x0b
)

// ConstSize is the encoded size of both OpCodeConst and OpCodeUnresolved, which lets the linker patch in place.
const ConstSize = 5

var opCodeNames = [...]string{
	OpCodeNop:        "nop",
	OpCodeConst:      "const",
	OpCodeUnresolved: "unresolved",
	OpCodePush:       "push",
	OpCodeDrop:       "drop",
	OpCodeDup:        "dup",
	OpCodeAdd:        "add",
	OpCodeSub:        "sub",
	OpCodeMul:        "mul",
	OpCodeCall:       "call",
	OpCodeRet:        "ret",
	OpCodeHalt:       "halt",
}

// OpCodeName returns the mnemonic of c, or its hex value when unknown.
func OpCodeName(c OpCode) string {
	if int(c) < len(opCodeNames) {
		return opCodeNames[c]
	}
	return fmt.Sprintf("%#x", byte(c))
}

// LookupOpCode returns the OpCode with the given mnemonic.
func LookupOpCode(name string) (OpCode, bool) {
	for c, n := range opCodeNames {
		if n == name {
			return OpCode(c), true
		}
	}
	return 0, false
}

// HasOperand is true when c is followed by a 32-bit operand.
func (c OpCode) HasOperand() bool {
	switch c {
	case OpCodeConst, OpCodeUnresolved, OpCodePush:
		return true
	}
	return false
}

// Terminates is true when c ends an instruction run.
func (c OpCode) Terminates() bool {
	return c == OpCodeRet || c == OpCodeHalt
}

func (c OpCode) valid() bool {
	return c <= OpCodeHalt
}

// Op is one decoded instruction.
type Op struct {
	Code OpCode
	// Arg is the operand: the target offset of OpCodeConst, the string id of OpCodeUnresolved or the immediate of
	// OpCodePush (as two's complement). Zero for other opcodes.
	Arg uint32
}

// Size is the encoded size of o in bytes.
func (o Op) Size() int {
	if o.Code.HasOperand() {
		return 5
	}
	return 1
}

// AppendTo appends the encoding of o to dst.
func (o Op) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(o.Code))
	if o.Code.HasOperand() {
		dst = binary.LittleEndian.AppendUint32(dst, o.Arg)
	}
	return dst
}

// Encode returns the encoding of o.
func (o Op) Encode() []byte {
	return o.AppendTo(make([]byte, 0, o.Size()))
}

func (o Op) String() string {
	switch o.Code {
	case OpCodePush:
		return fmt.Sprintf("push %d", int32(o.Arg))
	case OpCodeConst:
		return fmt.Sprintf("const %d", o.Arg)
	case OpCodeUnresolved:
		return fmt.Sprintf("unresolved %#x", o.Arg)
	}
	return OpCodeName(o.Code)
}

// DecodeOp decodes the instruction at the head of b, returning it and its size.
func DecodeOp(b []byte) (Op, int, error) {
	if len(b) == 0 {
		return Op{}, 0, ErrUnterminatedRun
	}
	c := OpCode(b[0])
	if !c.valid() {
		return Op{}, 0, fmt.Errorf("%w: %#x", ErrInvalidOpcode, b[0])
	}
	if !c.HasOperand() {
		return Op{Code: c}, 1, nil
	}
	if len(b) < 5 {
		return Op{}, 0, fmt.Errorf("%w: %s operand truncated", ErrUnterminatedRun, OpCodeName(c))
	}
	return Op{Code: c, Arg: binary.LittleEndian.Uint32(b[1:])}, 5, nil
}

// PositionedOp is an instruction with the absolute offset it was decoded at.
type PositionedOp struct {
	Pos int
	Op  Op
}

// End is the offset one past the last byte of the instruction.
func (p PositionedOp) End() int {
	return p.Pos + p.Op.Size()
}

// OpReader iterates over one instruction run: from an offset up to and including the first terminator.
type OpReader struct {
	buf  []byte
	pos  int
	done bool
}

// NewOpReader starts a run at absolute offset off of buf.
func NewOpReader(buf []byte, off int) *OpReader {
	return &OpReader{buf: buf, pos: off}
}

// Next returns the next instruction of the run. ok is false once the terminator has been returned.
func (r *OpReader) Next() (op PositionedOp, ok bool, err error) {
	if r.done {
		return PositionedOp{}, false, nil
	}
	if r.pos < 0 || r.pos >= len(r.buf) {
		return PositionedOp{}, false, fmt.Errorf("%w: reached offset %d of %d", ErrUnterminatedRun, r.pos, len(r.buf))
	}
	o, n, err := DecodeOp(r.buf[r.pos:])
	if err != nil {
		return PositionedOp{}, false, fmt.Errorf("offset %d: %w", r.pos, err)
	}
	op = PositionedOp{Pos: r.pos, Op: o}
	r.pos += n
	r.done = o.Code.Terminates()
	return op, true, nil
}

// DecodeRun decodes a whole run starting at off.
func DecodeRun(buf []byte, off int) ([]PositionedOp, error) {
	var ret []PositionedOp
	r := NewOpReader(buf, off)
	for {
		op, ok, err := r.Next()
		if err != nil {
			return nil, err
		} else if !ok {
			return ret, nil
		}
		ret = append(ret, op)
	}
}

// PatchConst overwrites the OpCodeUnresolved at pos with an OpCodeConst targeting idx. The encoding width does not
// change.
func PatchConst(buf []byte, pos int, idx uint32) error {
	if pos < 0 || pos+ConstSize > len(buf) {
		return fmt.Errorf("%w: patch at %d outside of image", ErrMalformed, pos)
	}
	if c := OpCode(buf[pos]); c != OpCodeUnresolved {
		return fmt.Errorf("%w: patch at %d targets %s, not unresolved", ErrMalformed, pos, OpCodeName(c))
	}
	copy(buf[pos:pos+ConstSize], Op{Code: OpCodeConst, Arg: idx}.Encode())
	return nil
}
