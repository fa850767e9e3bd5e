package bytecode

// Builder assembles an unlinked image. It is the in-process stand-in for a compiler back end.
//
// The resulting layout is the data table in insertion order, the global table in declaration order, the main code and
// then each global body in declaration order.
type Builder struct {
	version uint32
	flags   uint32
	data    [][]byte
	seen    map[string]uint32
	main    *CodeBuilder
	globals []*globalDef
}

type globalDef struct {
	name string
	code *CodeBuilder
}

// CodeBuilder collects the instructions of one code block.
type CodeBuilder struct {
	b   *Builder
	ops []builderOp
}

type builderOp struct {
	op Op
	// target is the name of a global whose body offset becomes the operand of an OpCodeConst.
	target string
}

// NewBuilder returns a Builder writing WriterVersion.
func NewBuilder() *Builder {
	return &Builder{version: WriterVersion, seen: map[string]uint32{}}
}

// WithWriterVersion overrides the header writer version.
func (b *Builder) WithWriterVersion(v uint32) *Builder {
	b.version = v
	return b
}

// WithFlags sets the header flags.
func (b *Builder) WithFlags(flags uint32) *Builder {
	b.flags = flags
	return b
}

// AddString adds s to the data table once and returns its id.
func (b *Builder) AddString(s string) uint32 {
	if id, ok := b.seen[s]; ok {
		return id
	}
	id := StringID(s)
	b.seen[s] = id
	b.data = append(b.data, []byte(s))
	return id
}

// AddData adds an arbitrary data entry. Data entries share the id space of strings.
func (b *Builder) AddData(data []byte) uint32 {
	return b.AddString(string(data))
}

// Main returns the builder of the main entry code.
func (b *Builder) Main() *CodeBuilder {
	if b.main == nil {
		b.main = &CodeBuilder{b: b}
	}
	return b.main
}

// Global declares a new global and returns the builder of its body. Declaring the same name twice adds two entries.
func (b *Builder) Global(name string) *CodeBuilder {
	b.AddString(name)
	code := &CodeBuilder{b: b}
	b.globals = append(b.globals, &globalDef{name: name, code: code})
	return code
}

// Op appends an instruction.
func (c *CodeBuilder) Op(code OpCode, arg uint32) *CodeBuilder {
	c.ops = append(c.ops, builderOp{op: Op{Code: code, Arg: arg}})
	return c
}

// Push appends an integer immediate.
func (c *CodeBuilder) Push(v int32) *CodeBuilder {
	return c.Op(OpCodePush, uint32(v))
}

// Ref appends a symbolic reference to name.
func (c *CodeBuilder) Ref(name string) *CodeBuilder {
	return c.Op(OpCodeUnresolved, c.b.AddString(name))
}

// Const appends a resolved reference to an absolute offset.
func (c *CodeBuilder) Const(idx uint32) *CodeBuilder {
	return c.Op(OpCodeConst, idx)
}

// ConstGlobal appends a resolved reference to the body of the first global declared as name, as if the compiler had
// already resolved it. Unknown names are left as offset zero.
func (c *CodeBuilder) ConstGlobal(name string) *CodeBuilder {
	c.ops = append(c.ops, builderOp{op: Op{Code: OpCodeConst}, target: name})
	return c
}

func (c *CodeBuilder) Nop() *CodeBuilder  { return c.Op(OpCodeNop, 0) }
func (c *CodeBuilder) Drop() *CodeBuilder { return c.Op(OpCodeDrop, 0) }
func (c *CodeBuilder) Dup() *CodeBuilder  { return c.Op(OpCodeDup, 0) }
func (c *CodeBuilder) Add() *CodeBuilder  { return c.Op(OpCodeAdd, 0) }
func (c *CodeBuilder) Sub() *CodeBuilder  { return c.Op(OpCodeSub, 0) }
func (c *CodeBuilder) Mul() *CodeBuilder  { return c.Op(OpCodeMul, 0) }
func (c *CodeBuilder) Call() *CodeBuilder { return c.Op(OpCodeCall, 0) }
func (c *CodeBuilder) Ret() *CodeBuilder  { return c.Op(OpCodeRet, 0) }
func (c *CodeBuilder) Halt() *CodeBuilder { return c.Op(OpCodeHalt, 0) }

func (c *CodeBuilder) size() int {
	n := 0
	for _, o := range c.ops {
		n += o.op.Size()
	}
	return n
}

func (c *CodeBuilder) appendTo(dst []byte, bodies map[string]uint32) []byte {
	for _, o := range c.ops {
		op := o.op
		if o.target != "" {
			op.Arg = bodies[o.target]
		}
		dst = op.AppendTo(dst)
	}
	return dst
}

// Bytes encodes the image. A missing main block is encoded as a single halt and an empty global body as a single ret.
func (b *Builder) Bytes() []byte {
	main := b.main
	if main == nil || len(main.ops) == 0 {
		main = &CodeBuilder{b: b}
		main.Halt()
	}
	for _, g := range b.globals {
		if len(g.code.ops) == 0 {
			g.code.Ret()
		}
	}

	var data []byte
	for _, d := range b.data {
		data = EncodeDataEntry(data, d)
	}

	h := Header{
		WriterVersion: b.version,
		GlobalsTabOff: uint32(len(data)),
		GlobalsTabNum: uint32(len(b.globals)),
		Flags:         b.flags,
	}

	offsets := make([]uint32, len(b.globals))
	bodies := make(map[string]uint32, len(b.globals))
	pos := h.MainOffset() + main.size()
	for i, g := range b.globals {
		offsets[i] = uint32(pos)
		if _, ok := bodies[g.name]; !ok {
			bodies[g.name] = uint32(pos)
		}
		pos += g.code.size()
	}

	ret := append(h.Encode(), data...)
	for i, g := range b.globals {
		ret = EncodeGlobalEntry(ret, StringID(g.name), offsets[i])
	}
	ret = main.appendTo(ret, bodies)
	for _, g := range b.globals {
		ret = g.code.appendTo(ret, bodies)
	}
	return ret
}
