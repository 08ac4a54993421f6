package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/hdkeychain/v3"
)

// ErrPathNotFound is returned by a StaticKeychain asked for a path it does
// not hold.
var ErrPathNotFound = errors.New("crypto: no key for path")

// HDKeychain derives BIP32 keys from a seed. It never exposes private key
// material: callers get public keys and signatures only.
type HDKeychain struct {
	master *hdkeychain.ExtendedKey
}

// NewHDKeychain creates a keychain from a 16 to 64 byte seed.
func NewHDKeychain(seed []byte, net hdkeychain.NetworkParams) (*HDKeychain, error) {
	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("crypto: create master key: %w", err)
	}
	return &HDKeychain{master: master}, nil
}

func (k *HDKeychain) derive(path []uint32) (*hdkeychain.ExtendedKey, error) {
	key := k.master
	for depth, index := range path {
		child, err := key.Child(index)
		if key != k.master {
			key.Zero()
		}
		if err != nil {
			return nil, fmt.Errorf("crypto: derive child %d at depth %d: %w", index, depth, err)
		}
		key = child
	}
	return key, nil
}

// PublicKey returns the compressed public key and chain code at path.
func (k *HDKeychain) PublicKey(path []uint32) ([]byte, []byte, error) {
	key, err := k.derive(path)
	if err != nil {
		return nil, nil, err
	}
	pub := key.SerializedPubKey()
	chainCode, err := chainCodeOf(key)
	if key != k.master {
		key.Zero()
	}
	if err != nil {
		return nil, nil, err
	}
	return pub, chainCode, nil
}

// Offsets of the chain code in a serialized extended key:
// version(4) || depth(1) || parent fingerprint(4) || child(4) || chain code(32) || key(33).
const (
	chainCodeStart = 13
	chainCodeEnd   = chainCodeStart + 32
)

// chainCodeOf extracts the chain code from the serialized key, the only
// place hdkeychain exposes it.
func chainCodeOf(key *hdkeychain.ExtendedKey) ([]byte, error) {
	raw := base58.Decode(key.String())
	defer clear(raw)
	if len(raw) < chainCodeEnd {
		return nil, fmt.Errorf("crypto: serialized extended key of %d bytes", len(raw))
	}
	return append([]byte(nil), raw[chainCodeStart:chainCodeEnd]...), nil
}

// Sign signs digest with the key at path.
func (k *HDKeychain) Sign(path []uint32, digest [DigestSize]byte) ([]byte, error) {
	key, err := k.derive(path)
	if err != nil {
		return nil, err
	}
	if key != k.master {
		defer key.Zero()
	}

	raw, err := key.SerializedPrivKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: private key at path: %w", err)
	}
	priv, err := PrivateKeyFromBytes(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return nil, err
	}
	defer priv.Zero()

	return priv.Sign(digest), nil
}

// Zero clears the master key.
func (k *HDKeychain) Zero() {
	k.master.Zero()
}

// StaticKeychain serves a fixed set of keys registered per path. It backs
// the CLI's --wif mode and tests.
type StaticKeychain struct {
	keys map[string]*PrivateKey
}

// NewStaticKeychain returns an empty keychain.
func NewStaticKeychain() *StaticKeychain {
	return &StaticKeychain{keys: make(map[string]*PrivateKey)}
}

func pathKey(path []uint32) string {
	return fmt.Sprint(path)
}

// Add registers key for path.
func (k *StaticKeychain) Add(path []uint32, key *PrivateKey) {
	k.keys[pathKey(path)] = key
}

// PublicKey returns the public key registered for path. Static keys carry no
// chain code; a zero chain code is returned.
func (k *StaticKeychain) PublicKey(path []uint32) ([]byte, []byte, error) {
	priv, ok := k.keys[pathKey(path)]
	if !ok {
		return nil, nil, fmt.Errorf("%w %v", ErrPathNotFound, path)
	}
	return priv.PublicKey().Bytes(), make([]byte, 32), nil
}

// Sign signs digest with the key registered for path.
func (k *StaticKeychain) Sign(path []uint32, digest [DigestSize]byte) ([]byte, error) {
	priv, ok := k.keys[pathKey(path)]
	if !ok {
		return nil, fmt.Errorf("%w %v", ErrPathNotFound, path)
	}
	return priv.Sign(digest), nil
}
