package hns

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
)

func testTransaction() *Transaction {
	var hash [HashSize]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	return &Transaction{
		Version: 0,
		Inputs: []Input{
			{Prevout: Outpoint{Hash: hash, Index: 1}, Sequence: MaxSequence, Value: 5000, Witness: [][]byte{{1, 2}, {3}}},
			{Prevout: Outpoint{Hash: hash, Index: 2}, Sequence: 10, Value: 7000, Witness: [][]byte{}},
		},
		Outputs: []Output{
			{Value: 4000, Address: Address{Hash: bytes.Repeat([]byte{0x11}, 20)}, Covenant: RawCovenant{Type: CovenantNone}},
			{Value: 7500, Address: Address{Hash: bytes.Repeat([]byte{0x22}, 20)}, Covenant: NewOpenCovenant("example")},
		},
		Locktime: 99,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := testTransaction()
	decoded, err := DecodeTransaction(tx.Encode())
	require.NoError(t, err)

	assert.Equal(t, tx.TxID(), decoded.TxID())
	assert.Equal(t, tx.Inputs[0].Witness, decoded.Inputs[0].Witness)
	assert.Equal(t, tx.Outputs[1].Covenant, decoded.Outputs[1].Covenant)
	assert.Zero(t, decoded.Inputs[0].Value, "values are not serialized")

	out, err := DecodeOutput(tx.Outputs[1].Bytes())
	require.NoError(t, err)
	assert.Equal(t, tx.Outputs[1], *out)

	_, err = DecodeTransaction(append(tx.Encode(), 0))
	assert.Error(t, err)
}

func TestTransactionCommitments(t *testing.T) {
	tx := testTransaction()
	assert.Equal(t, crypto.Blake2b256(tx.AppendBase(nil)), tx.TxID())
	assert.Equal(t, tx.OutputsSize(), len(tx.Outputs[0].Bytes())+len(tx.Outputs[1].Bytes()))
	assert.Equal(t, uint64(500), tx.Fee())

	tx.Inputs[0].Witness = [][]byte{{9, 9, 9}}
	assert.Equal(t, crypto.Blake2b256(tx.AppendBase(nil)), tx.TxID(), "witnesses are not committed")
}

func TestSingleOutput(t *testing.T) {
	tx := testTransaction()
	assert.Equal(t, &tx.Outputs[0], tx.SingleOutput(0, SighashSingle))
	assert.Equal(t, &tx.Outputs[1], tx.SingleOutput(0, SighashSingleReverse))
	assert.Nil(t, tx.SingleOutput(2, SighashSingle))
	assert.Nil(t, tx.SingleOutput(0, SighashAll))
}

func TestSignatureHashPreimage(t *testing.T) {
	tx := testTransaction()
	script := P2PKHScript(bytes.Repeat([]byte{0x33}, 20))
	typ := SighashNone | SighashAnyoneCanPay

	in := tx.Inputs[1]
	op := in.Prevout.Bytes()
	var pre []byte
	pre = binary.LittleEndian.AppendUint32(pre, tx.Version)
	pre = append(pre, ZeroHash[:]...)
	pre = append(pre, ZeroHash[:]...)
	pre = append(pre, op[:]...)
	pre = AppendVarBytes(pre, script)
	pre = binary.LittleEndian.AppendUint64(pre, in.Value)
	pre = binary.LittleEndian.AppendUint32(pre, in.Sequence)
	pre = append(pre, ZeroHash[:]...)
	pre = binary.LittleEndian.AppendUint32(pre, tx.Locktime)
	pre = binary.LittleEndian.AppendUint32(pre, uint32(typ))

	got, err := tx.SignatureHash(1, script, in.Value, typ)
	require.NoError(t, err)
	assert.Equal(t, crypto.Blake2b256(pre), got)
}

func TestSignatureHashErrors(t *testing.T) {
	tx := testTransaction()
	_, err := tx.SignatureHash(2, nil, 0, SighashAll)
	assert.ErrorIs(t, err, ErrInputIndex)

	_, err = tx.SignatureHash(0, nil, 0, 7)
	assert.ErrorIs(t, err, ErrPolicy)
}

func TestP2PKHScript(t *testing.T) {
	script := P2PKHScript(bytes.Repeat([]byte{0xab}, 20))
	assert.Len(t, script, 25)
	assert.Equal(t, []byte{0x76, 0xc0, 20}, script[:3])
	assert.Equal(t, []byte{0x88, 0xac}, script[23:])
}
