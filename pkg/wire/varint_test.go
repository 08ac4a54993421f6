package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff} {
		b := AppendVarint(nil, n)
		assert.Len(t, b, VarintSize(n))

		got, size, err := DecodeVarint(b)
		require.NoError(t, err, "value %d", n)
		assert.Equal(t, n, got)
		assert.Equal(t, len(b), size)

		var buf bytes.Buffer
		require.NoError(t, WriteVarint(&buf, n))
		assert.Equal(t, b, buf.Bytes())
	}
}

func TestDecodeVarintRejects(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		err  error
	}{
		{"empty", nil, ErrShortRead},
		{"short u16", []byte{0xfd, 0x01}, ErrShortRead},
		{"short u32", []byte{0xfe, 0, 0, 1}, ErrShortRead},
		{"non-minimal u16", []byte{0xfd, 0xfc, 0x00}, ErrNonCanonicalVarint},
		{"non-minimal u32", []byte{0xfe, 0xff, 0xff, 0, 0}, ErrNonCanonicalVarint},
		{"u64 prefix", []byte{0xff, 1, 0, 0, 0, 0, 0, 0, 0}, ErrVarintTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeVarint(tc.b)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestCursorAllOrNothing(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 0xfd, 0x00})

	_, err := c.ReadU64(binary.LittleEndian)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.Zero(t, c.Offset())

	v, err := c.ReadU16(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v)

	b, err := c.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), b)

	_, err = c.ReadVarint()
	assert.ErrorIs(t, err, ErrShortRead)
	assert.Equal(t, 3, c.Offset())
	assert.Equal(t, []byte{0xfd, 0x00}, c.Rest())

	dst := make([]byte, 3)
	assert.ErrorIs(t, c.ReadInto(dst), ErrShortRead)
	assert.Equal(t, []byte{0, 0, 0}, dst)
}

func TestCursorReadUpTo(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2}, c.ReadUpTo(2))
	assert.Equal(t, []byte{3}, c.ReadUpTo(5))
	assert.Empty(t, c.ReadUpTo(1))
	assert.Zero(t, c.Len())
}

func TestCursorPeekVarint(t *testing.T) {
	c := NewCursor(AppendVarint([]byte(nil), 300))
	n, size, err := c.PeekVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), n)
	assert.Equal(t, 3, size)
	assert.Zero(t, c.Offset())

	got, err := c.ReadU64(binary.LittleEndian)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.Zero(t, got)
}
