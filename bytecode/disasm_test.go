package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	img, err := NewImage(fooImage())
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, Disassemble(&sb, img))
	out := sb.String()

	require.Contains(t, out, "; writer version 1, flags 0x0\n")
	require.Contains(t, out, "; data table 8 bytes, 1 globals at 24, main at 32, 45 bytes total\n")
	require.Contains(t, out, `"foo"`)
	require.Contains(t, out, ";   foo @39\n")
	require.Contains(t, out, "\nmain:\n      32  unresolved ")
	require.Contains(t, out, " ; foo\n      37  call\n      38  halt\n")
	require.Contains(t, out, "\nfoo:\n      39  push 1\n      44  ret\n")
}

func TestDisassemble_resolved(t *testing.T) {
	bin := fooImage()
	require.NoError(t, PatchConst(bin, 32, 39))
	img, err := NewImage(bin)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, Disassemble(&sb, img))
	require.Contains(t, sb.String(), "      32  const 39 ; foo\n")
}

func TestDisassemble_error(t *testing.T) {
	bin := fooImage()
	bin[len(bin)-1] = byte(OpCodeNop) // foo is no longer terminated
	img, err := NewImage(bin)
	require.NoError(t, err)

	err = Disassemble(&strings.Builder{}, img)
	require.ErrorIs(t, err, ErrUnterminatedRun)
	require.Contains(t, err.Error(), "foo: ")
}
