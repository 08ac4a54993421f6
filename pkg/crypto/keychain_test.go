package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNet struct{}

func (testNet) HDPrivKeyVersion() [4]byte { return [4]byte{0x04, 0x88, 0xad, 0xe4} }
func (testNet) HDPubKeyVersion() [4]byte  { return [4]byte{0x04, 0x88, 0xb2, 0x1e} }

var testPath = []uint32{44 | 0x80000000, 5353 | 0x80000000, 0x80000000, 0, 3}

func TestHDKeychainDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x01}, 32)

	a, err := NewHDKeychain(seed, testNet{})
	require.NoError(t, err)
	b, err := NewHDKeychain(seed, testNet{})
	require.NoError(t, err)

	pubA, ccA, err := a.PublicKey(testPath)
	require.NoError(t, err)
	pubB, ccB, err := b.PublicKey(testPath)
	require.NoError(t, err)

	assert.Equal(t, pubA, pubB)
	assert.Equal(t, ccA, ccB)
	assert.Len(t, pubA, PubKeySize)
	assert.Len(t, ccA, 32)

	other, _, err := a.PublicKey([]uint32{44 | 0x80000000, 5353 | 0x80000000, 0x80000000, 0, 4})
	require.NoError(t, err)
	assert.NotEqual(t, pubA, other)
}

func TestHDKeychainSign(t *testing.T) {
	k, err := NewHDKeychain(bytes.Repeat([]byte{0x02}, 32), testNet{})
	require.NoError(t, err)

	pubBytes, _, err := k.PublicKey(testPath)
	require.NoError(t, err)
	pub, err := ParsePublicKey(pubBytes)
	require.NoError(t, err)

	digest := Blake2b256([]byte("input 0"))
	sig, err := k.Sign(testPath, digest)
	require.NoError(t, err)
	assert.True(t, VerifySignature(pub, digest, sig))

	// Signing must not disturb later derivations.
	again, _, err := k.PublicKey(testPath)
	require.NoError(t, err)
	assert.Equal(t, pubBytes, again)
}

// BIP32 test vector 1: chains m and m/0H.
func TestHDKeychainChainCode(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	k, err := NewHDKeychain(seed, testNet{})
	require.NoError(t, err)

	tests := []struct {
		path      []uint32
		pubKey    string
		chainCode string
	}{
		{nil,
			"0339a36013301597daef41fbe593a02cc513d0b55527ec2df1050e2e8ff49c85c2",
			"873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed37d508"},
		{[]uint32{0x80000000},
			"035a784662a4a20a65bf6aab9ae98a6c068a81c52e4b032c0fb5400c706cfccc56",
			"47fdacbd0f1097043b78c63c20c34ef4ed9a111d980047ad16282c7ae6236141"},
	}
	for _, tt := range tests {
		pub, chainCode, err := k.PublicKey(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.pubKey, hex.EncodeToString(pub), "%v", tt.path)
		assert.Equal(t, tt.chainCode, hex.EncodeToString(chainCode), "%v", tt.path)
	}
}

func TestHDKeychainShortSeed(t *testing.T) {
	_, err := NewHDKeychain([]byte{1, 2, 3}, testNet{})
	assert.Error(t, err)
}

func TestStaticKeychain(t *testing.T) {
	priv, err := PrivateKeyFromBytes(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)

	k := NewStaticKeychain()
	k.Add(testPath, priv)

	pub, chainCode, err := k.PublicKey(testPath)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey().Bytes(), pub)
	assert.Equal(t, make([]byte, 32), chainCode)

	digest := Blake2b256([]byte("static"))
	sig, err := k.Sign(testPath, digest)
	require.NoError(t, err)
	assert.True(t, VerifySignature(priv.PublicKey(), digest, sig))

	_, err = k.Sign([]uint32{1}, digest)
	assert.ErrorIs(t, err, ErrPathNotFound)
}
