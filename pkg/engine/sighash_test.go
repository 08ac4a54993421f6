package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

var sighashTypes = []hns.SighashType{
	hns.SighashAll,
	hns.SighashNone,
	hns.SighashSingle,
	hns.SighashSingleReverse,
	hns.SighashAll | hns.SighashAnyoneCanPay,
	hns.SighashNone | hns.SighashAnyoneCanPay,
	hns.SighashSingle | hns.SighashAnyoneCanPay,
	hns.SighashSingleReverse | hns.SighashAnyoneCanPay,
	hns.SighashAll | hns.SighashNoInput,
	hns.SighashSingle | hns.SighashNoInput | hns.SighashAnyoneCanPay,
}

// digest streams a sign request for input index in chunks of size bytes
// after the header and returns the signature hash.
func digest(t *testing.T, parsed *TransactionContext, tx *hns.Transaction, index int, typ hns.SighashType, script []byte, size int) [hns.HashSize]byte {
	t.Helper()
	stream := signStream(t, tx, testPath(uint32(index)), index, typ, script)
	header := len(stream) - len(script)
	if out := tx.SingleOutput(index, typ); typ.CommitsSingleOutput() {
		n := 0
		if out != nil {
			n = out.Size()
		}
		header -= n + wire.VarintSize(uint64(n))
	}

	c := wire.NewCursor(stream[:header])
	sc, err := NewSigningContext(parsed, c, false)
	require.NoError(t, err)
	require.Zero(t, c.Len())

	var tail []byte
	rest := stream[header:]
	for {
		n := min(size, len(rest))
		c := wire.NewCursor(append(tail, rest[:n]...))
		rest = rest[n:]
		res, err := sc.Step(parsed, c)
		require.NoError(t, err)
		if res == Done {
			require.Empty(t, rest)
			return sc.Digest()
		}
		require.NotEmpty(t, rest, "stream ended before the digest")
		tail = append([]byte(nil), c.Rest()...)
	}
}

func parsedContext(t *testing.T, keys Keychain, tx *hns.Transaction, names map[int]string) *TransactionContext {
	t.Helper()
	s := newTestSession(t, keys)
	parse(t, s, parseRequest(t, tx, names))
	return s.Transaction()
}

func TestSignatureHashMatchesReference(t *testing.T) {
	keys := testKeychain(t)
	tx, names := namedTx(t, keys)
	parsed := parsedContext(t, keys, tx, names)

	script := hns.P2PKHScript(bytes.Repeat([]byte{0x77}, 20))
	long := bytes.Repeat([]byte{0x51}, 700)

	for _, typ := range sighashTypes {
		for index := range tx.Inputs {
			for _, sc := range [][]byte{script, long, nil} {
				want, err := tx.SignatureHash(index, sc, tx.Inputs[index].Value, typ)
				require.NoError(t, err)

				for _, size := range []int{1, 13, apdu.MaxDataSize} {
					got := digest(t, parsed, tx, index, typ, sc, size)
					require.Equal(t, want, got, "%s input %d script %d chunk %d", typ, index, len(sc), size)
				}
			}
		}
	}
}

func TestSignatureHashSingleWithoutOutput(t *testing.T) {
	keys := testKeychain(t)
	tx := simpleTx(t, keys)
	tx.Inputs = append(tx.Inputs, hns.Input{Prevout: testOutpoint(0x70, 1), Sequence: 5, Value: 1})
	tx.Outputs[1].Value++
	parsed := parsedContext(t, keys, tx, nil)

	for _, typ := range []hns.SighashType{hns.SighashSingle, hns.SighashSingleReverse} {
		require.Nil(t, tx.SingleOutput(2, typ))
		want, err := tx.SignatureHash(2, nil, 1, typ)
		require.NoError(t, err)
		assert.Equal(t, want, digest(t, parsed, tx, 2, typ, nil, apdu.MaxDataSize))
	}
}

func TestSignatureHashSubstitution(t *testing.T) {
	keys := testKeychain(t)
	script := hns.P2PKHScript(bytes.Repeat([]byte{0x77}, 20))

	base := simpleTx(t, keys)
	baseCtx := parsedContext(t, keys, base, nil)

	otherInput := simpleTx(t, keys)
	otherInput.Inputs[1].Prevout = testOutpoint(0x99, 9)
	otherInput.Inputs[1].Sequence = 7
	otherInputCtx := parsedContext(t, keys, otherInput, nil)

	otherOutput := simpleTx(t, keys)
	otherOutput.Outputs[0].Value -= 5
	otherOutput.Outputs[1].Value += 5
	otherOutputCtx := parsedContext(t, keys, otherOutput, nil)

	same := func(typ hns.SighashType, tx *hns.Transaction, ctx *TransactionContext) bool {
		return digest(t, baseCtx, base, 0, typ, script, apdu.MaxDataSize) ==
			digest(t, ctx, tx, 0, typ, script, apdu.MaxDataSize)
	}

	t.Run("anyone can pay ignores other inputs", func(t *testing.T) {
		assert.True(t, same(hns.SighashAll|hns.SighashAnyoneCanPay, otherInput, otherInputCtx))
		assert.False(t, same(hns.SighashAll, otherInput, otherInputCtx))
	})

	t.Run("none ignores outputs", func(t *testing.T) {
		assert.True(t, same(hns.SighashNone, otherOutput, otherOutputCtx))
		assert.False(t, same(hns.SighashAll, otherOutput, otherOutputCtx))

		otherAddress := simpleTx(t, keys)
		otherAddress.Outputs[0].Address.Hash = bytes.Repeat([]byte{0x12}, 20)
		otherAddressCtx := parsedContext(t, keys, otherAddress, nil)
		assert.True(t, same(hns.SighashNone, otherAddress, otherAddressCtx))
		assert.False(t, same(hns.SighashAll, otherAddress, otherAddressCtx))
	})

	t.Run("single ignores other sequences", func(t *testing.T) {
		seq := simpleTx(t, keys)
		seq.Inputs[1].Sequence = 1
		seqCtx := parsedContext(t, keys, seq, nil)
		assert.True(t, same(hns.SighashSingle, seq, seqCtx))
		assert.False(t, same(hns.SighashAll, seq, seqCtx))
	})

	t.Run("no input ignores the prevout", func(t *testing.T) {
		moved := simpleTx(t, keys)
		moved.Inputs[0].Prevout = testOutpoint(0x01, 1)
		moved.Inputs[0].Sequence = 3
		movedCtx := parsedContext(t, keys, moved, nil)
		assert.True(t, same(hns.SighashAll|hns.SighashNoInput|hns.SighashAnyoneCanPay, moved, movedCtx))
		assert.False(t, same(hns.SighashAll|hns.SighashAnyoneCanPay, moved, movedCtx))
	})
}

func TestSignRejections(t *testing.T) {
	keys := testKeychain(t)
	tx := simpleTx(t, keys)
	script := hns.P2PKHScript(bytes.Repeat([]byte{0x77}, 20))

	sign := func(t *testing.T, stream []byte) error {
		s := newTestSession(t, keys)
		parse(t, s, parseRequest(t, tx, nil))
		_, _, err := send(s, apdu.P2Sign, 0, stream, apdu.MaxDataSize)
		if err != nil {
			assert.Nil(t, s.Transaction(), "errors reset the session")
		}
		return err
	}

	t.Run("input index", func(t *testing.T) {
		stream := signStream(t, tx, testPath(0), 0, hns.SighashAll, script)
		stream[1+4*hns.AddressDepth] = 2
		requireKind(t, sign(t, stream), hns.ErrState, hns.CodeInputIndex)
	})

	t.Run("sighash type", func(t *testing.T) {
		for _, typ := range []hns.SighashType{0, 5, hns.SighashAll | 0x20, 0x100 | hns.SighashAll} {
			stream := signStream(t, tx, testPath(0), 0, hns.SighashAll, script)
			stream[1+4*hns.AddressDepth+1] = byte(typ)
			stream[1+4*hns.AddressDepth+2] = byte(typ >> 8)
			requireKind(t, sign(t, stream), hns.ErrPolicy, hns.CodeUnsupportedSighash)
		}
	})

	t.Run("path depth", func(t *testing.T) {
		stream := signStream(t, tx, testPath(0)[:3], 0, hns.SighashAll, script)
		requireKind(t, sign(t, stream), hns.ErrPolicy, hns.CodeInvalidPath)
	})

	t.Run("input differs", func(t *testing.T) {
		other := *tx
		other.Inputs = append([]hns.Input(nil), tx.Inputs...)
		other.Inputs[0].Value++
		stream := signStream(t, &other, testPath(0), 0, hns.SighashAll, script)
		requireKind(t, sign(t, stream), hns.ErrIntegrity, hns.CodeInputMismatch)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		stream := signStream(t, tx, testPath(0), 0, hns.SighashAll, script)
		requireKind(t, sign(t, append(stream, 0)), hns.ErrState, hns.CodeParserState)
	})

	t.Run("before parsing", func(t *testing.T) {
		s := newTestSession(t, keys)
		_, _, err := send(s, apdu.P2Sign, 0, signStream(t, tx, testPath(0), 0, hns.SighashAll, script), apdu.MaxDataSize)
		requireKind(t, err, hns.ErrState, hns.CodeNotParsed)
	})

	t.Run("continuation without begin", func(t *testing.T) {
		s := newTestSession(t, keys)
		parse(t, s, parseRequest(t, tx, nil))
		_, err := s.Handle(apdu.NewCommand(apdu.InsGetSignature, apdu.P1Continue, apdu.P2Sign, script))
		requireKind(t, err, hns.ErrState, hns.CodeParserState)
	})
}

func TestSignMultipleInputs(t *testing.T) {
	keys := testKeychain(t)
	tx := simpleTx(t, keys)
	s := newTestSession(t, keys)
	parse(t, s, parseRequest(t, tx, nil))

	for index := range tx.Inputs {
		path := testPath(uint32(index))
		pub, _, err := keys.PublicKey(path)
		require.NoError(t, err)
		script := hns.P2PKHScript(crypto.Hash160(pub))

		stream := signStream(t, tx, path, index, hns.SighashAll, script)
		reply, prompts, err := send(s, apdu.P2Sign, 0, stream, len(stream)-len(script), 3)
		require.NoError(t, err)
		assert.Empty(t, prompts)
		require.Len(t, reply, crypto.SignatureSize+1)
		assert.Equal(t, byte(hns.SighashAll), reply[crypto.SignatureSize])

		want, err := tx.SignatureHash(index, script, tx.Inputs[index].Value, hns.SighashAll)
		require.NoError(t, err)
		key, err := crypto.ParsePublicKey(pub)
		require.NoError(t, err)
		assert.True(t, crypto.VerifySignature(key, want, reply[:crypto.SignatureSize]))
	}
	assert.True(t, s.Transaction().Parsed, "signing keeps the parsed transaction")
}
