// Package hns defines the Handshake transaction types shared by the signing
// engine and its host-side tooling.
//
// The wire layout follows hsd (lib/primitives):
//
//	tx       = version u32le || varint(n_in) || input* || varint(n_out) || output* || locktime u32le || witness*
//	input    = prevout(36) || sequence u32le
//	prevout  = hash(32) || index u32le
//	output   = value u64le || address || covenant
//	address  = version u8 || len u8 || hash
//	covenant = type u8 || varint(n_items) || (varint(len) || item)*
//
// The transaction id commits to everything except the witnesses.
package hns

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// Sizes of fixed-width fields.
const (
	HashSize     = 32
	OutpointSize = HashSize + 4
	ValueSize    = 8
	SequenceSize = 4

	// MinAddressHashSize and MaxAddressHashSize bound the address program.
	MinAddressHashSize = 2
	MaxAddressHashSize = 40

	// MaxSequence is the final sequence number.
	MaxSequence = 0xffffffff
)

// Outpoint references a previous transaction output.
type Outpoint struct {
	Hash  [HashSize]byte
	Index uint32
}

// NullOutpoint is the outpoint substituted for an input signed with
// SIGHASH_NOINPUT.
var NullOutpoint = Outpoint{Index: 0xffffffff}

// Bytes returns the 36-byte serialization.
func (o Outpoint) Bytes() [OutpointSize]byte {
	var b [OutpointSize]byte
	copy(b[:HashSize], o.Hash[:])
	binary.LittleEndian.PutUint32(b[HashSize:], o.Index)
	return b
}

// OutpointFromBytes parses a 36-byte serialization.
func OutpointFromBytes(b []byte) (Outpoint, error) {
	var o Outpoint
	if len(b) != OutpointSize {
		return o, fmt.Errorf("outpoint must be %d bytes, got %d", OutpointSize, len(b))
	}
	copy(o.Hash[:], b[:HashSize])
	o.Index = binary.LittleEndian.Uint32(b[HashSize:])
	return o, nil
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(o.Hash[:]), o.Index)
}

// Address is a Handshake witness program: a version and a hash.
type Address struct {
	Version uint8
	Hash    []byte
}

// Equal reports whether a and b are byte-for-byte identical.
func (a Address) Equal(b Address) bool {
	return a.Version == b.Version && bytes.Equal(a.Hash, b.Hash)
}

// Size returns the serialized size.
func (a Address) Size() int {
	return 2 + len(a.Hash)
}

// AppendTo appends the serialized address to dst.
func (a Address) AppendTo(dst []byte) []byte {
	dst = append(dst, a.Version, byte(len(a.Hash)))
	return append(dst, a.Hash...)
}

// Network holds the per-network parameters the signer needs.
type Network struct {
	Name          string
	HRP           string  // bech32 human-readable part
	CoinType      uint32  // BIP44 coin type
	HDPrivVersion [4]byte // extended private key version
	HDPubVersion  [4]byte // extended public key version
}

// HDPrivKeyVersion satisfies hdkeychain.NetworkParams.
func (n *Network) HDPrivKeyVersion() [4]byte { return n.HDPrivVersion }

// HDPubKeyVersion satisfies hdkeychain.NetworkParams.
func (n *Network) HDPubKeyVersion() [4]byte { return n.HDPubVersion }

var (
	MainNet = &Network{
		Name:          "main",
		HRP:           "hs",
		CoinType:      5353,
		HDPrivVersion: [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPubVersion:  [4]byte{0x04, 0x88, 0xb2, 0x1e},
	}
	TestNet = &Network{
		Name:          "testnet",
		HRP:           "ts",
		CoinType:      5354,
		HDPrivVersion: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPubVersion:  [4]byte{0x04, 0x35, 0x87, 0xcf},
	}
	RegTest = &Network{
		Name:          "regtest",
		HRP:           "rs",
		CoinType:      5355,
		HDPrivVersion: [4]byte{0xea, 0xb4, 0x04, 0xc7},
		HDPubVersion:  [4]byte{0xea, 0xb4, 0xfa, 0x05},
	}
	SimNet = &Network{
		Name:          "simnet",
		HRP:           "ss",
		CoinType:      5356,
		HDPrivVersion: [4]byte{0x04, 0x20, 0xb9, 0x00},
		HDPubVersion:  [4]byte{0x04, 0x20, 0xbd, 0x3a},
	}
)

// NetworkByID maps the protocol's network selector (0 main, 1 testnet,
// 2 regtest, 3 simnet) to its parameters.
func NetworkByID(id uint8) (*Network, error) {
	switch id {
	case 0:
		return MainNet, nil
	case 1:
		return TestNet, nil
	case 2:
		return RegTest, nil
	case 3:
		return SimNet, nil
	default:
		return nil, fmt.Errorf("unknown network id %d", id)
	}
}

// NetworkByCoinType looks a network up by its BIP44 coin type.
func NetworkByCoinType(coinType uint32) (*Network, error) {
	for _, n := range []*Network{MainNet, TestNet, RegTest, SimNet} {
		if n.CoinType == coinType {
			return n, nil
		}
	}
	return nil, fmt.Errorf("unknown coin type %d", coinType)
}

// NetworkByName looks a network up by its name.
func NetworkByName(name string) (*Network, error) {
	for _, n := range []*Network{MainNet, TestNet, RegTest, SimNet} {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// AppendVarBytes appends varint(len(b)) || b.
func AppendVarBytes(dst, b []byte) []byte {
	return append(wire.AppendVarint(dst, uint64(len(b))), b...)
}
