package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	b := []byte{
		0x01, 0x00, 0x00, 0x00, // writer_version
		0x08, 0x00, 0x00, 0x00, // globals_tab_off
		0x02, 0x00, 0x00, 0x00, // globals_tab_num
		0x00, 0x01, 0x00, 0x00, // flags
		0xff, // trailing bytes are not part of the header
	}
	h, err := DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, Header{WriterVersion: 1, GlobalsTabOff: 8, GlobalsTabNum: 2, Flags: 0x100}, h)
	require.Equal(t, b[:HeaderSize], h.Encode())
	require.Equal(t, 24, h.GlobalsOffset())
	require.Equal(t, 40, h.MainOffset())
}

func TestDecodeHeader_short(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestHeader_WriteTo(t *testing.T) {
	h := Header{WriterVersion: 3, GlobalsTabOff: 1, GlobalsTabNum: 4}
	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(HeaderSize), n)
	require.Equal(t, h.Encode(), buf.Bytes())
}
