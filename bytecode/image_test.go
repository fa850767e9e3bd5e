package bytecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// fooImage is main calling foo, which pushes one and returns.
func fooImage() []byte {
	b := NewBuilder()
	b.Main().Ref("foo").Call().Halt()
	b.Global("foo").Push(1).Ret()
	return b.Bytes()
}

func TestBuilder_layout(t *testing.T) {
	bin := fooImage()
	fooID := StringID("foo")

	expected := Header{WriterVersion: WriterVersion, GlobalsTabOff: 8, GlobalsTabNum: 1}.Encode()
	expected = binary.LittleEndian.AppendUint32(expected, fooID)
	expected = append(expected, 3, 'f', 'o', 'o') // data table
	expected = binary.LittleEndian.AppendUint32(expected, fooID)
	expected = binary.LittleEndian.AppendUint32(expected, 39) // body of foo
	expected = append(expected, byte(OpCodeUnresolved))       // main at 32
	expected = binary.LittleEndian.AppendUint32(expected, fooID)
	expected = append(expected, byte(OpCodeCall), byte(OpCodeHalt))
	expected = append(expected, byte(OpCodePush), 1, 0, 0, 0, byte(OpCodeRet)) // foo at 39

	require.Equal(t, expected, bin)
}

func TestNewImage(t *testing.T) {
	img, err := NewImage(fooImage())
	require.NoError(t, err)

	require.Equal(t, 32, img.MainOffset())
	require.Equal(t, 8, len(img.DataTable()))
	require.Equal(t, 8, len(img.GlobalsTable()))
	require.Equal(t, 13, len(img.MainOpsArea()))

	strs, err := img.Strings()
	require.NoError(t, err)
	require.Equal(t, map[uint32]string{StringID("foo"): "foo"}, strs)

	s, err := img.String(StringID("foo"))
	require.NoError(t, err)
	require.Equal(t, "foo", s)

	_, err = img.String(StringID("bar"))
	require.ErrorIs(t, err, ErrStringNotFound)

	globals, err := img.Globals()
	require.NoError(t, err)
	require.Equal(t, []Global{{Name: "foo", NameID: StringID("foo"), Body: 39}}, globals)
}

func TestNewImage_errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		exp   error
	}{
		{name: "empty", input: nil, exp: ErrShortHeader},
		{
			name:  "data table past end",
			input: Header{WriterVersion: 1, GlobalsTabOff: 4}.Encode(),
			exp:   ErrMalformed,
		},
		{
			name:  "global table past end",
			input: append(Header{WriterVersion: 1, GlobalsTabNum: 1}.Encode(), 1, 2, 3, 4),
			exp:   ErrMalformed,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewImage(tc.input)
			require.ErrorIs(t, err, tc.exp)
		})
	}
}

func TestImage_Strings_duplicates(t *testing.T) {
	data := EncodeDataEntry(nil, []byte("print"))
	data = EncodeDataEntry(data, []byte("print"))
	bin := append(Header{WriterVersion: 1, GlobalsTabOff: uint32(len(data))}.Encode(), data...)
	bin = append(bin, byte(OpCodeHalt))

	img, err := NewImage(bin)
	require.NoError(t, err)
	strs, err := img.Strings()
	require.NoError(t, err)
	require.Equal(t, map[uint32]string{StringID("print"): "print"}, strs)
}

func TestImage_Strings_errors(t *testing.T) {
	collision := binary.LittleEndian.AppendUint32(nil, StringID("a"))
	collision = append(collision, 1, 'a')
	collision = binary.LittleEndian.AppendUint32(collision, StringID("a"))
	collision = append(collision, 1, 'b')

	tests := []struct {
		name string
		data []byte
		exp  error
	}{
		{name: "id collision", data: collision, exp: ErrIDCollision},
		{name: "truncated id", data: []byte{1, 2}, exp: ErrMalformed},
		{name: "truncated length", data: []byte{1, 2, 3, 4, 0x80}, exp: ErrMalformed},
		{name: "entry overruns table", data: []byte{1, 2, 3, 4, 5, 'a'}, exp: ErrMalformed},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			bin := append(Header{WriterVersion: 1, GlobalsTabOff: uint32(len(tc.data))}.Encode(), tc.data...)
			bin = append(bin, byte(OpCodeHalt))
			img, err := NewImage(bin)
			require.NoError(t, err)
			_, err = img.Strings()
			require.ErrorIs(t, err, tc.exp)
		})
	}
}

func TestImage_Globals_errors(t *testing.T) {
	t.Run("body outside of instruction area", func(t *testing.T) {
		bin := fooImage()
		binary.LittleEndian.PutUint32(bin[28:], 4) // body of foo now points into the data table
		img, err := NewImage(bin)
		require.NoError(t, err)
		_, err = img.Globals()
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("name not in data table", func(t *testing.T) {
		bin := fooImage()
		binary.LittleEndian.PutUint32(bin[24:], StringID("bar"))
		img, err := NewImage(bin)
		require.NoError(t, err)
		_, err = img.Globals()
		require.ErrorIs(t, err, ErrStringNotFound)
	})
}

func TestBuilder_ConstGlobal(t *testing.T) {
	b := NewBuilder().WithWriterVersion(7).WithFlags(2)
	b.Main().ConstGlobal("b").Call().Halt()
	b.Global("a").ConstGlobal("b").Call().Ret()
	b.Global("b").ConstGlobal("a").Call().Ret()
	b.Global("c") // empty bodies become a ret

	img, err := NewImage(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint32(7), img.Header.WriterVersion)
	require.Equal(t, uint32(2), img.Header.Flags)

	globals, err := img.Globals()
	require.NoError(t, err)
	require.Equal(t, 3, len(globals))

	a, bb, c := globals[0].Body, globals[1].Body, globals[2].Body
	ops, err := DecodeRun(img.Bytes(), img.MainOffset())
	require.NoError(t, err)
	require.Equal(t, Op{Code: OpCodeConst, Arg: bb}, ops[0].Op)

	ops, err = DecodeRun(img.Bytes(), int(a))
	require.NoError(t, err)
	require.Equal(t, Op{Code: OpCodeConst, Arg: bb}, ops[0].Op)

	ops, err = DecodeRun(img.Bytes(), int(bb))
	require.NoError(t, err)
	require.Equal(t, Op{Code: OpCodeConst, Arg: a}, ops[0].Op)

	ops, err = DecodeRun(img.Bytes(), int(c))
	require.NoError(t, err)
	require.Equal(t, []PositionedOp{{Pos: int(c), Op: Op{Code: OpCodeRet}}}, ops)
}
