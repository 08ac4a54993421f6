package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressHashSize is the size of a version 0 pubkey-hash program.
const AddressHashSize = 20

// Hash160 returns BLAKE2b-160 of data, the program of a Handshake
// pubkey-hash address.
func Hash160(data []byte) []byte {
	h, _ := newBlake2b(AddressHashSize)
	h.Write(data)
	return h.Sum(nil)
}

// EncodeAddress renders a witness program as a bech32 string. The version
// is the first 5-bit group of the data part.
func EncodeAddress(hrp string, version uint8, program []byte) (string, error) {
	if version > 31 {
		return "", fmt.Errorf("crypto: address version %d out of range", version)
	}
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("crypto: convert address program: %w", err)
	}
	return bech32.Encode(hrp, append([]byte{version}, conv...))
}

// DecodeAddress parses a bech32 address and returns its human-readable part,
// version and program.
func DecodeAddress(addr string) (string, uint8, []byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return "", 0, nil, fmt.Errorf("crypto: decode address: %w", err)
	}
	if len(data) < 1 {
		return "", 0, nil, fmt.Errorf("crypto: address %q has no data", addr)
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return "", 0, nil, fmt.Errorf("crypto: convert address program: %w", err)
	}
	return hrp, data[0], program, nil
}

// PubKeyAddress returns the bech32 version 0 address of a compressed public
// key.
func PubKeyAddress(hrp string, pubKey []byte) (string, error) {
	return EncodeAddress(hrp, 0, Hash160(pubKey))
}
