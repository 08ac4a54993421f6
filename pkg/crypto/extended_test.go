package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BIP32 test vector 1, chain m.
func TestEncodeExtendedPubKey(t *testing.T) {
	chainCode, err := hex.DecodeString("873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed37d508")
	require.NoError(t, err)
	pub, err := hex.DecodeString("0339a36013301597daef41fbe593a02cc513d0b55527ec2df1050e2e8ff49c85c2")
	require.NoError(t, err)

	got := EncodeExtendedPubKey([4]byte{0x04, 0x88, 0xb2, 0x1e}, 0, make([]byte, 4), 0, chainCode, pub)
	assert.Equal(t, "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8", got)

	assert.Equal(t, "3442193e", hex.EncodeToString(Fingerprint(pub)))
}
