package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	// PubKeySize is the size of a compressed public key.
	PubKeySize = 33

	// SignatureSize is the size of a compact r || s signature.
	SignatureSize = 64
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// ParsePrivateKeyWIF parses a WIF-encoded private key.
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	decoded, err := decodeWIF(wif)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(decoded)}, nil
}

// PrivateKeyFromBytes creates a private key from raw bytes.
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(keyBytes)}, nil
}

// Sign returns a deterministic (RFC 6979) low-S signature over hash in the
// 64-byte r || s form Handshake expects.
func (pk *PrivateKey) Sign(hash [DigestSize]byte) []byte {
	compact := ecdsa.SignCompact(pk.key, hash[:], true)
	// compact = recovery code || r || s
	return compact[1:]
}

// PublicKey derives the public key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Bytes returns the raw 32-byte private key.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// Zero clears the key material.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Bytes returns the 33-byte compressed public key.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// ParsePublicKey parses a compressed public key.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) != PubKeySize {
		return nil, fmt.Errorf("compressed public key must be %d bytes, got %d", PubKeySize, len(pubKeyBytes))
	}

	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &PublicKey{key: pubKey}, nil
}

// VerifySignature verifies a 64-byte r || s signature. A trailing sighash
// byte, if present, is ignored.
func VerifySignature(pubkey *PublicKey, hash [DigestSize]byte, signature []byte) bool {
	if len(signature) == SignatureSize+1 {
		signature = signature[:SignatureSize]
	}
	if len(signature) != SignatureSize {
		return false
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash[:], pubkey.key)
}

// decodeWIF decodes a WIF-encoded private key:
// version_byte || private_key (32 bytes) || [compression_flag] || checksum (4 bytes)
func decodeWIF(wif string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, fmt.Errorf("invalid WIF: %w", err)
	}
	if len(payload) != 32 && len(payload) != 33 {
		return nil, errors.New("invalid WIF length")
	}
	if !validWIFVersion(version) {
		return nil, fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}
	return payload[:32], nil
}

// WIF version bytes of the Handshake networks (main, testnet, regtest,
// simnet).
var wifVersions = []byte{0x80, 0xef, 0x5a, 0x64}

func validWIFVersion(v byte) bool {
	for _, w := range wifVersions {
		if v == w {
			return true
		}
	}
	return false
}

// EncodeWIF encodes a private key to WIF with the given version byte.
func EncodeWIF(privateKey []byte, version byte, compressed bool) (string, error) {
	if len(privateKey) != 32 {
		return "", errors.New("private key must be 32 bytes")
	}
	if !validWIFVersion(version) {
		return "", fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}

	payload := make([]byte, 0, 33)
	payload = append(payload, privateKey...)
	if compressed {
		payload = append(payload, 0x01)
	}
	return base58.CheckEncode(payload, version), nil
}
