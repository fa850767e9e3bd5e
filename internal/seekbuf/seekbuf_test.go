package seekbuf

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	src := []byte("hello")
	b := New(src)
	src[0] = 'j'
	require.Equal(t, []byte("hello"), b.Bytes())

	n, err := b.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	rest, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, []byte("lo"), rest)

	_, err = b.Seek(1, io.SeekStart)
	require.NoError(t, err)
	_, err = b.Write([]byte("ipp"))
	require.NoError(t, err)
	require.Equal(t, []byte("hippo"), b.Bytes())

	// Writes continue from the position, overwriting what follows it.
	_, err = b.Write([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, "hippy", string(b.Bytes()))

	_, err = b.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	_, err = b.Write([]byte("o"))
	require.NoError(t, err)
	_, err = b.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = b.Write([]byte(" boat"))
	require.NoError(t, err)
	require.Equal(t, "hippo boat", string(b.Bytes()))
	require.Equal(t, 10, b.Len())

	n, err = b.Seek(-4, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
}

func TestBuffer_writePastEnd(t *testing.T) {
	var b Buffer
	_, err := b.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = b.Write([]byte{1})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 1}, b.Bytes())

	n, err := b.Read(make([]byte, 1))
	require.Equal(t, 0, n)
	require.Equal(t, io.EOF, err)
}

func TestBuffer_Seek_errors(t *testing.T) {
	b := New(nil)
	_, err := b.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, errNegativeOffset)

	_, err = b.Seek(0, 42)
	require.Error(t, err)
}
