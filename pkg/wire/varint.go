// Package wire implements the byte-level field readers used by the signing
// engine.
//
// Handshake reuses Bitcoin's CompactSize encoding for variable-length
// integers. The device only accepts the canonical (minimal) form and never
// values wider than 32 bits:
//
//	value < 0xfd            1 byte
//	0xfd..0xffff            0xfd || u16le
//	0x10000..0xffffffff     0xfe || u32le
//	0xff prefix             rejected
//
// Readers operate on a Cursor and either consume a whole field or leave the
// cursor untouched and report ErrShortRead, which callers treat as "wait for
// the next chunk" rather than as a failure.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrShortRead is returned when the cursor does not hold enough bytes
	// for the requested field. The cursor is left unchanged.
	ErrShortRead = errors.New("wire: not enough data")

	// ErrNonCanonicalVarint is returned for a varint that is not encoded in
	// its minimal form.
	ErrNonCanonicalVarint = errors.New("wire: non-canonical varint")

	// ErrVarintTooLarge is returned for the 0xff (64-bit) varint prefix.
	ErrVarintTooLarge = errors.New("wire: varint wider than 32 bits")
)

// MaxVarintSize is the largest encoded varint the device accepts.
const MaxVarintSize = 5

// VarintSize returns the number of bytes needed to encode n.
func VarintSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// AppendVarint appends the canonical encoding of n to dst.
func AppendVarint(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		return binary.LittleEndian.AppendUint16(append(dst, 0xfd), uint16(n))
	case n <= 0xffffffff:
		return binary.LittleEndian.AppendUint32(append(dst, 0xfe), uint32(n))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, 0xff), n)
	}
}

// WriteVarint writes the canonical encoding of n to w.
func WriteVarint(w io.Writer, n uint64) error {
	var buf [9]byte
	_, err := w.Write(AppendVarint(buf[:0], n))
	return err
}

// DecodeVarint decodes a canonical varint from the start of b and returns the
// value and the number of bytes it occupies.
func DecodeVarint(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, ErrShortRead
	}

	switch tag := b[0]; {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(b) < 3 {
			return 0, 0, ErrShortRead
		}
		n := uint64(binary.LittleEndian.Uint16(b[1:3]))
		if n < 0xfd {
			return 0, 0, ErrNonCanonicalVarint
		}
		return n, 3, nil
	case tag == 0xfe:
		if len(b) < 5 {
			return 0, 0, ErrShortRead
		}
		n := uint64(binary.LittleEndian.Uint32(b[1:5]))
		if n <= 0xffff {
			return 0, 0, ErrNonCanonicalVarint
		}
		return n, 5, nil
	default:
		return 0, 0, ErrVarintTooLarge
	}
}
