package wire

import (
	"encoding/binary"
)

// Cursor is a read position over one chunk of the stream.
//
// Every read is all-or-nothing: on ErrShortRead (or any other error) the
// position is not advanced.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}

// Rest returns the unread bytes without consuming them.
func (c *Cursor) Rest() []byte {
	return c.buf[c.off:]
}

// ReadBytes consumes n bytes. The returned slice aliases the cursor's buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.Len() < n {
		return nil, ErrShortRead
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// ReadInto fills dst completely or not at all.
func (c *Cursor) ReadInto(dst []byte) error {
	b, err := c.ReadBytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// ReadUpTo consumes at most n bytes and returns what was available. It never
// fails; it is used for fields that are hashed as they stream.
func (c *Cursor) ReadUpTo(n int) []byte {
	if n > c.Len() {
		n = c.Len()
	}
	if n < 0 {
		n = 0
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

// ReadU8 consumes one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if c.Len() < 1 {
		return 0, ErrShortRead
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// ReadU16 consumes a 16-bit integer in the given byte order.
func (c *Cursor) ReadU16(order binary.ByteOrder) (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// ReadU32 consumes a 32-bit integer in the given byte order.
func (c *Cursor) ReadU32(order binary.ByteOrder) (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

// ReadU64 consumes a 64-bit integer in the given byte order.
func (c *Cursor) ReadU64(order binary.ByteOrder) (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// ReadVarint consumes a canonical varint.
func (c *Cursor) ReadVarint() (uint64, error) {
	n, size, err := c.PeekVarint()
	if err != nil {
		return 0, err
	}
	c.off += size
	return n, nil
}

// PeekVarint decodes the next varint and reports its encoded size without
// consuming it.
func (c *Cursor) PeekVarint() (uint64, int, error) {
	return DecodeVarint(c.Rest())
}
