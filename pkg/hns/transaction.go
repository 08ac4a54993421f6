package hns

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// ZeroHash is the all-zero sentinel substituted for excluded commitments.
var ZeroHash [HashSize]byte

// Input is a transaction input. Value is not serialized; it is the value of
// the spent output, which the signer needs for fees and signature hashes.
type Input struct {
	Prevout  Outpoint
	Sequence uint32
	Witness  [][]byte
	Value    uint64
}

// Output is a transaction output.
type Output struct {
	Value    uint64
	Address  Address
	Covenant RawCovenant
}

// Size returns the serialized size.
func (o *Output) Size() int {
	return ValueSize + o.Address.Size() + o.Covenant.Size()
}

// AppendTo appends the serialized output to dst.
func (o *Output) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, o.Value)
	dst = o.Address.AppendTo(dst)
	return o.Covenant.AppendTo(dst)
}

// Bytes returns the serialized output.
func (o *Output) Bytes() []byte {
	return o.AppendTo(make([]byte, 0, o.Size()))
}

// Transaction is a Handshake transaction.
type Transaction struct {
	Version  uint32
	Inputs   []Input
	Outputs  []Output
	Locktime uint32
}

// OutputsSize returns the size of the serialized output vector, excluding
// its count prefix.
func (tx *Transaction) OutputsSize() int {
	n := 0
	for i := range tx.Outputs {
		n += tx.Outputs[i].Size()
	}
	return n
}

// AppendBase appends the witness-free serialization that the txid commits
// to.
func (tx *Transaction) AppendBase(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, tx.Version)
	dst = wire.AppendVarint(dst, uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		op := tx.Inputs[i].Prevout.Bytes()
		dst = append(dst, op[:]...)
		dst = binary.LittleEndian.AppendUint32(dst, tx.Inputs[i].Sequence)
	}
	dst = wire.AppendVarint(dst, uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		dst = tx.Outputs[i].AppendTo(dst)
	}
	return binary.LittleEndian.AppendUint32(dst, tx.Locktime)
}

// Encode returns the full serialization including witnesses.
func (tx *Transaction) Encode() []byte {
	b := tx.AppendBase(nil)
	for i := range tx.Inputs {
		w := tx.Inputs[i].Witness
		b = wire.AppendVarint(b, uint64(len(w)))
		for _, item := range w {
			b = AppendVarBytes(b, item)
		}
	}
	return b
}

// DecodeTransaction parses a full serialization. Input values are not part
// of the encoding and are left zero.
func DecodeTransaction(b []byte) (*Transaction, error) {
	c := wire.NewCursor(b)
	tx := &Transaction{}
	var err error

	if tx.Version, err = c.ReadU32(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	nIn, err := c.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read input count: %w", err)
	}
	if nIn > uint64(c.Len()/(OutpointSize+SequenceSize)) {
		return nil, fmt.Errorf("input count %d exceeds remaining data", nIn)
	}
	tx.Inputs = make([]Input, nIn)
	for i := range tx.Inputs {
		raw, err := c.ReadBytes(OutpointSize)
		if err != nil {
			return nil, fmt.Errorf("read input %d prevout: %w", i, err)
		}
		tx.Inputs[i].Prevout, _ = OutpointFromBytes(raw)
		if tx.Inputs[i].Sequence, err = c.ReadU32(binary.LittleEndian); err != nil {
			return nil, fmt.Errorf("read input %d sequence: %w", i, err)
		}
	}

	nOut, err := c.ReadVarint()
	if err != nil {
		return nil, fmt.Errorf("read output count: %w", err)
	}
	if nOut > uint64(c.Len()) {
		return nil, fmt.Errorf("output count %d exceeds remaining data", nOut)
	}
	tx.Outputs = make([]Output, nOut)
	for i := range tx.Outputs {
		if err := decodeOutput(c, &tx.Outputs[i]); err != nil {
			return nil, fmt.Errorf("read output %d: %w", i, err)
		}
	}

	if tx.Locktime, err = c.ReadU32(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("read locktime: %w", err)
	}

	for i := range tx.Inputs {
		items, err := readItems(c)
		if err != nil {
			return nil, fmt.Errorf("read input %d witness: %w", i, err)
		}
		tx.Inputs[i].Witness = items
	}

	if c.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", c.Len())
	}
	return tx, nil
}

// DecodeOutput parses a single serialized output.
func DecodeOutput(b []byte) (*Output, error) {
	c := wire.NewCursor(b)
	o := &Output{}
	if err := decodeOutput(c, o); err != nil {
		return nil, err
	}
	if c.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", c.Len())
	}
	return o, nil
}

func decodeOutput(c *wire.Cursor, o *Output) error {
	var err error
	if o.Value, err = c.ReadU64(binary.LittleEndian); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if o.Address.Version, err = c.ReadU8(); err != nil {
		return fmt.Errorf("address version: %w", err)
	}
	size, err := c.ReadU8()
	if err != nil {
		return fmt.Errorf("address size: %w", err)
	}
	if size < MinAddressHashSize || size > MaxAddressHashSize {
		return fmt.Errorf("address size %d out of range", size)
	}
	hash, err := c.ReadBytes(int(size))
	if err != nil {
		return fmt.Errorf("address hash: %w", err)
	}
	o.Address.Hash = append([]byte(nil), hash...)

	typ, err := c.ReadU8()
	if err != nil {
		return fmt.Errorf("covenant type: %w", err)
	}
	o.Covenant.Type = CovenantType(typ)
	if o.Covenant.Items, err = readItems(c); err != nil {
		return fmt.Errorf("covenant items: %w", err)
	}
	return nil
}

func readItems(c *wire.Cursor) ([][]byte, error) {
	n, err := c.ReadVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Len()) {
		return nil, fmt.Errorf("item count %d exceeds remaining data", n)
	}
	items := make([][]byte, n)
	for i := range items {
		size, err := c.ReadVarint()
		if err != nil {
			return nil, err
		}
		item, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		items[i] = append([]byte(nil), item...)
	}
	return items, nil
}

// TxID returns the transaction hash.
func (tx *Transaction) TxID() [HashSize]byte {
	return crypto.Blake2b256(tx.AppendBase(nil))
}

// PrevoutsHash returns the commitment to all input outpoints.
func (tx *Transaction) PrevoutsHash() [HashSize]byte {
	b := make([]byte, 0, len(tx.Inputs)*OutpointSize)
	for i := range tx.Inputs {
		op := tx.Inputs[i].Prevout.Bytes()
		b = append(b, op[:]...)
	}
	return crypto.Blake2b256(b)
}

// SequencesHash returns the commitment to all input sequences.
func (tx *Transaction) SequencesHash() [HashSize]byte {
	b := make([]byte, 0, len(tx.Inputs)*SequenceSize)
	for i := range tx.Inputs {
		b = binary.LittleEndian.AppendUint32(b, tx.Inputs[i].Sequence)
	}
	return crypto.Blake2b256(b)
}

// OutputsHash returns the commitment to all outputs.
func (tx *Transaction) OutputsHash() [HashSize]byte {
	b := make([]byte, 0, tx.OutputsSize())
	for i := range tx.Outputs {
		b = tx.Outputs[i].AppendTo(b)
	}
	return crypto.Blake2b256(b)
}

// Fee returns the sum of input values minus the sum of output values, with
// wraparound.
func (tx *Transaction) Fee() uint64 {
	var fee uint64
	for i := range tx.Inputs {
		fee += tx.Inputs[i].Value
	}
	for i := range tx.Outputs {
		fee -= tx.Outputs[i].Value
	}
	return fee
}

// ErrInputIndex is returned by SignatureHash for an index outside the
// input vector.
var ErrInputIndex = errors.New("input index out of range")

// SingleOutput returns the output a SINGLE or SINGLEREVERSE signature on
// input index commits to, or nil when there is none.
func (tx *Transaction) SingleOutput(index int, typ SighashType) *Output {
	switch typ.Base() {
	case SighashSingle:
		if index < len(tx.Outputs) {
			return &tx.Outputs[index]
		}
	case SighashSingleReverse:
		if index < len(tx.Outputs) {
			return &tx.Outputs[len(tx.Outputs)-1-index]
		}
	}
	return nil
}

// SignatureHash computes the digest a signature on input index commits to,
// given the spent output's script and value. It is the non-streaming
// reference for the signing engine.
func (tx *Transaction) SignatureHash(index int, script []byte, value uint64, typ SighashType) ([HashSize]byte, error) {
	if index < 0 || index >= len(tx.Inputs) {
		return ZeroHash, ErrInputIndex
	}
	if err := typ.Validate(); err != nil {
		return ZeroHash, err
	}

	prevouts, sequences, outputs := ZeroHash, ZeroHash, ZeroHash
	base := typ.Base()
	if !typ.AnyoneCanPay() {
		prevouts = tx.PrevoutsHash()
		if base == SighashAll {
			sequences = tx.SequencesHash()
		}
	}
	switch {
	case base == SighashAll:
		outputs = tx.OutputsHash()
	case typ.CommitsSingleOutput():
		if o := tx.SingleOutput(index, typ); o != nil {
			outputs = crypto.Blake2b256(o.Bytes())
		}
	}

	in := &tx.Inputs[index]
	prevout, sequence := in.Prevout, in.Sequence
	if typ.NoInput() {
		prevout, sequence = NullOutpoint, MaxSequence
	}
	op := prevout.Bytes()

	b := make([]byte, 0, 4+3*HashSize+OutpointSize+wire.MaxVarintSize+len(script)+ValueSize+SequenceSize+HashSize+8)
	b = binary.LittleEndian.AppendUint32(b, tx.Version)
	b = append(b, prevouts[:]...)
	b = append(b, sequences[:]...)
	b = append(b, op[:]...)
	b = AppendVarBytes(b, script)
	b = binary.LittleEndian.AppendUint64(b, value)
	b = binary.LittleEndian.AppendUint32(b, sequence)
	b = append(b, outputs[:]...)
	b = binary.LittleEndian.AppendUint32(b, tx.Locktime)
	b = binary.LittleEndian.AppendUint32(b, uint32(typ))
	return crypto.Blake2b256(b), nil
}

// P2PKHScript returns the script a version 0, 20-byte address is spent
// with: OP_DUP OP_BLAKE160 <hash> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHScript(hash []byte) []byte {
	script := make([]byte, 0, 5+len(hash))
	script = append(script, 0x76, 0xc0, byte(len(hash)))
	script = append(script, hash...)
	return append(script, 0x88, 0xac)
}
