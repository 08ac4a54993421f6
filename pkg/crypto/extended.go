package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// Fingerprint returns the BIP32 key identifier prefix of a compressed
// public key: the first 4 bytes of RIPEMD160(SHA256(pubKey)).
func Fingerprint(pubKey []byte) []byte {
	sum := sha256.Sum256(pubKey)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)[:4]
}

// EncodeExtendedPubKey serializes a BIP32 extended public key in base58
// check encoding (double-SHA256 checksum).
func EncodeExtendedPubKey(version [4]byte, depth uint8, parentFP []byte, child uint32, chainCode, pubKey []byte) string {
	payload := make([]byte, 0, 4+1+4+4+32+PubKeySize+4)
	payload = append(payload, version[:]...)
	payload = append(payload, depth)
	payload = append(payload, parentFP...)
	payload = binary.BigEndian.AppendUint32(payload, child)
	payload = append(payload, chainCode...)
	payload = append(payload, pubKey...)

	return base58.CheckEncode(payload[1:], payload[0])
}
