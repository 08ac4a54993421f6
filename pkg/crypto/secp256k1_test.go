package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	priv, err := PrivateKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	pub := priv.PublicKey()

	digest := Blake2b256([]byte("sighash"))
	sig := priv.Sign(digest)
	require.Len(t, sig, SignatureSize)
	assert.True(t, VerifySignature(pub, digest, sig))
	assert.True(t, VerifySignature(pub, digest, append(sig, 0x01)))

	// RFC 6979 signatures are deterministic.
	assert.Equal(t, sig, priv.Sign(digest))

	other := Blake2b256([]byte("other"))
	assert.False(t, VerifySignature(pub, other, sig))

	tampered := append([]byte(nil), sig...)
	tampered[10] ^= 0x01
	assert.False(t, VerifySignature(pub, digest, tampered))
	assert.False(t, VerifySignature(pub, digest, sig[:63]))
}

func TestParsePublicKey(t *testing.T) {
	priv, err := PrivateKeyFromBytes(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	pub, err := ParsePublicKey(priv.PublicKey().Bytes())
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey().Bytes(), pub.Bytes())

	_, err = ParsePublicKey(make([]byte, 32))
	assert.Error(t, err)
}

func TestWIFRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x5c}, 32)
	for _, version := range wifVersions {
		wif, err := EncodeWIF(raw, version, true)
		require.NoError(t, err)

		priv, err := ParsePrivateKeyWIF(wif)
		require.NoError(t, err)
		assert.Equal(t, raw, priv.Bytes())
	}

	_, err := EncodeWIF(raw, 0x00, true)
	assert.Error(t, err)
	_, err = EncodeWIF(raw[:31], 0x80, true)
	assert.Error(t, err)
}

func TestWIFChecksum(t *testing.T) {
	wif, err := EncodeWIF(bytes.Repeat([]byte{0x01}, 32), 0x80, false)
	require.NoError(t, err)

	corrupt := []byte(wif)
	if corrupt[5] == 'a' {
		corrupt[5] = 'b'
	} else {
		corrupt[5] = 'a'
	}
	_, err = ParsePrivateKeyWIF(string(corrupt))
	assert.Error(t, err)
}

func TestWIFKnownVector(t *testing.T) {
	raw, err := hex.DecodeString("0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d")
	require.NoError(t, err)

	wif, err := EncodeWIF(raw, 0x80, false)
	require.NoError(t, err)
	assert.Equal(t, "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ", wif)

	priv, err := ParsePrivateKeyWIF(wif)
	require.NoError(t, err)
	assert.Equal(t, raw, priv.Bytes())
}
