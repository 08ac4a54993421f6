package crypto

import "golang.org/x/crypto/sha3"

// NameHash returns the SHA3-256 hash Handshake uses to identify a name.
func NameHash(name []byte) [DigestSize]byte {
	return sha3.Sum256(name)
}
