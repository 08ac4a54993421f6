// Package crypto provides the hash and key primitives of a Handshake signer.
//
// Handshake hashes transactions with unkeyed, unpersonalized BLAKE2b:
//   - txid, prevouts, sequences, outputs and signature digests: BLAKE2b-256
//   - address programs: BLAKE2b-160 of the compressed public key
//   - name hashes: SHA3-256 of the plaintext name
//
// Hasher wraps BLAKE2b for commitments built from data that arrives in
// pieces; the remaining helpers are one-shot.
package crypto

import (
	"errors"
	"fmt"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// DigestSize is the size of every commitment digest.
const DigestSize = 32

// ErrHasherNotInitialized is returned by Final when the hasher has not been
// initialized since it was created or last finalized.
var ErrHasherNotInitialized = errors.New("crypto: hasher not initialized")

// newBlake2b creates an unkeyed BLAKE2b hash with the given output size.
func newBlake2b(size int) (hash.Hash, error) {
	if size < 1 || size > blake2b.Size {
		return nil, fmt.Errorf("crypto: invalid blake2b output size %d", size)
	}
	config := &blake2b.Config{
		Size: uint8(size),
	}
	return blake2b.New(config)
}

// Hasher is an incremental BLAKE2b hasher that can be re-initialized and
// reused for a different commitment. The zero value is uninitialized.
type Hasher struct {
	h    hash.Hash
	size int
	err  error
}

// Init (re)starts the hasher with the given output size in bytes.
func (h *Hasher) Init(size int) error {
	inner, err := newBlake2b(size)
	if err != nil {
		h.h, h.size = nil, 0
		return err
	}
	h.h, h.size, h.err = inner, size, nil
	return nil
}

// Initialized reports whether Init has been called since the last Final.
func (h *Hasher) Initialized() bool {
	return h.h != nil
}

// Update feeds b into the running hash. Zero-length input is allowed. Data
// written to an uninitialized hasher is reported by the next Final.
func (h *Hasher) Update(b []byte) {
	if h.h == nil {
		h.err = ErrHasherNotInitialized
		return
	}
	h.h.Write(b)
}

// FinalN returns the digest and leaves the hasher uninitialized.
func (h *Hasher) FinalN() ([]byte, error) {
	if h.h == nil || h.err != nil {
		h.err = nil
		return nil, ErrHasherNotInitialized
	}
	sum := h.h.Sum(nil)
	h.h, h.size = nil, 0
	return sum, nil
}

// Final returns a 32-byte digest and leaves the hasher uninitialized.
func (h *Hasher) Final() ([DigestSize]byte, error) {
	var digest [DigestSize]byte
	if h.h != nil && h.size != DigestSize {
		size := h.size
		h.h, h.size = nil, 0
		return digest, fmt.Errorf("crypto: Final on a %d-byte hasher", size)
	}
	sum, err := h.FinalN()
	if err != nil {
		return digest, err
	}
	copy(digest[:], sum)
	return digest, nil
}

// Blake2b256 returns the one-shot BLAKE2b-256 digest of the concatenation of
// parts.
func Blake2b256(parts ...[]byte) [DigestSize]byte {
	h := blake2b.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var digest [DigestSize]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
