package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/hns"
)

func TestCacheTail(t *testing.T) {
	c := NewCache(8)
	assert.Equal(t, 8, c.Cap())

	require.NoError(t, c.StoreTail([]byte{1, 2, 3}))
	assert.Equal(t, 3, c.Len())

	joined := c.Join([]byte{4, 5})
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, joined)
	assert.Zero(t, c.Len())

	// Without a tail the chunk passes through.
	chunk := []byte{9}
	assert.Equal(t, chunk, c.Join(chunk))
}

func TestCacheOverflow(t *testing.T) {
	c := NewCache(4)
	require.NoError(t, c.StoreTail([]byte{1, 2}))

	err := c.StoreTail([]byte{1, 2, 3, 4, 5})
	requireKind(t, err, hns.ErrProtocol, hns.CodeCacheOverflow)
	assert.Zero(t, c.Len(), "overflow leaves the cache empty")
}

func TestCacheReply(t *testing.T) {
	c := NewCache(8)

	_, ok := c.TakeReply()
	assert.False(t, ok)

	require.NoError(t, c.StoreReply([]byte{7, 7}))
	assert.Equal(t, []byte{9}, c.Join([]byte{9}), "a held reply is not a tail")

	reply, ok := c.TakeReply()
	require.True(t, ok)
	assert.Equal(t, []byte{7, 7}, reply)

	_, ok = c.TakeReply()
	assert.False(t, ok)
}

func TestCacheResetClears(t *testing.T) {
	c := NewCache(4)
	require.NoError(t, c.StoreTail([]byte{0xaa, 0xbb}))
	c.Reset()
	assert.Zero(t, c.Len())
	assert.Equal(t, []byte{0, 0, 0, 0}, c.buf)
}
