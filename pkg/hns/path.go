package hns

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/suffix-labs/hns-signer/pkg/wire"
)

const (
	// HardenedKeyStart is the index of the first hardened child.
	HardenedKeyStart = uint32(0x80000000)

	// MaxPathDepth bounds the number of components in a derivation path.
	MaxPathDepth = 10

	// AddressDepth is the BIP44 depth of a leaf (address) key:
	// m / purpose' / coin_type' / account' / change / address_index.
	AddressDepth = 5

	// BIP44Purpose is the first component of every BIP44 path.
	BIP44Purpose = 44 | HardenedKeyStart
)

// Path is a BIP32 derivation path.
type Path []uint32

// BIP44Path returns m/44'/coin'/account'/change/index.
func BIP44Path(coinType, account, change, index uint32) Path {
	return Path{
		BIP44Purpose,
		coinType | HardenedKeyStart,
		account | HardenedKeyStart,
		change,
		index,
	}
}

// IsAddressDepth reports whether p identifies a leaf address key.
func (p Path) IsAddressDepth() bool {
	return len(p) == AddressDepth
}

// AppendTo appends the wire form: depth u8 || depth × u32be.
func (p Path) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(len(p)))
	for _, c := range p {
		dst = binary.BigEndian.AppendUint32(dst, c)
	}
	return dst
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, c := range p {
		sb.WriteString("/")
		if c >= HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(uint64(c-HardenedKeyStart), 10))
			sb.WriteString("'")
		} else {
			sb.WriteString(strconv.FormatUint(uint64(c), 10))
		}
	}
	return sb.String()
}

// ParsePath parses the textual form "m/44'/5353'/0'/0/0". Both ' and h mark
// hardened components.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("path %q must start with m", s)
	}
	parts = parts[1:]
	if len(parts) > MaxPathDepth {
		return nil, fmt.Errorf("path %q deeper than %d", s, MaxPathDepth)
	}

	p := make(Path, 0, len(parts))
	for _, part := range parts {
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("path component %q: %w", part, err)
		}
		c := uint32(n)
		if hardened {
			if c >= HardenedKeyStart {
				return nil, fmt.Errorf("path component %q out of range", part)
			}
			c |= HardenedKeyStart
		}
		p = append(p, c)
	}
	return p, nil
}

// ReadPath reads a wire-form path from c. wire.ErrShortRead is returned
// unchanged; a depth above MaxPathDepth is a policy error.
func ReadPath(c *wire.Cursor) (Path, error) {
	rest := c.Rest()
	if len(rest) < 1 {
		return nil, wire.ErrShortRead
	}
	depth := int(rest[0])
	if depth > MaxPathDepth {
		return nil, NewError(ErrPolicy, CodeInvalidPath,
			fmt.Sprintf("path depth %d exceeds %d", depth, MaxPathDepth))
	}
	if len(rest) < 1+4*depth {
		return nil, wire.ErrShortRead
	}

	c.ReadU8()
	p := make(Path, depth)
	for i := range p {
		p[i], _ = c.ReadU32(binary.BigEndian)
	}
	return p, nil
}
