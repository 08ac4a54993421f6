package engine

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

var testSeed = bytes.Repeat([]byte{0x5a}, 32)

func testKeychain(t *testing.T) *crypto.HDKeychain {
	t.Helper()
	keys, err := crypto.NewHDKeychain(testSeed, hns.MainNet)
	require.NoError(t, err)
	return keys
}

func testPath(index uint32) hns.Path {
	return hns.BIP44Path(hns.MainNet.CoinType, 0, 0, index)
}

func changePath() hns.Path {
	return hns.BIP44Path(hns.MainNet.CoinType, 0, 1, 0)
}

func testAddress(t *testing.T, keys Keychain, path hns.Path) hns.Address {
	t.Helper()
	pub, _, err := keys.PublicKey(path)
	require.NoError(t, err)
	return hns.Address{Version: 0, Hash: crypto.Hash160(pub)}
}

func testOutpoint(seed byte, index uint32) hns.Outpoint {
	var op hns.Outpoint
	for i := range op.Hash {
		op.Hash[i] = seed + byte(i)
	}
	op.Index = index
	return op
}

func payTo(value uint64, fill byte) hns.Output {
	return hns.Output{
		Value:    value,
		Address:  hns.Address{Version: 0, Hash: bytes.Repeat([]byte{fill}, 20)},
		Covenant: hns.RawCovenant{Type: hns.CovenantNone},
	}
}

// simpleTx spends two inputs into a payment and a change output, paying a
// fee of 10000.
func simpleTx(t *testing.T, keys Keychain) *hns.Transaction {
	t.Helper()
	change := payTo(990_000, 0)
	change.Address = testAddress(t, keys, changePath())
	return &hns.Transaction{
		Version: 0,
		Inputs: []hns.Input{
			{Prevout: testOutpoint(0x10, 0), Sequence: hns.MaxSequence, Value: 1_000_000},
			{Prevout: testOutpoint(0x40, 3), Sequence: 0xfffffffe, Value: 2_000_000},
		},
		Outputs:  []hns.Output{payTo(2_000_000, 0x11), change},
		Locktime: 0,
	}
}

// namedTx adds outputs carrying name covenants, one of which streams a
// resource longer than a message.
func namedTx(t *testing.T, keys Keychain) (*hns.Transaction, map[int]string) {
	t.Helper()
	tx := simpleTx(t, keys)
	tx.Locktime = 120_000

	resource := make([]byte, 300)
	for i := range resource {
		resource[i] = byte(i)
	}
	update := payTo(0, 0x22)
	update.Covenant = hns.NewUpdateCovenant("example", 42_000, resource)
	transfer := payTo(0, 0x33)
	transfer.Covenant = hns.NewTransferCovenant("handshake", 41_000,
		hns.Address{Version: 0, Hash: bytes.Repeat([]byte{0x44}, 20)})

	tx.Outputs = append(tx.Outputs, update, transfer)
	return tx, map[int]string{2: "example", 3: "handshake"}
}

func parseRequest(t *testing.T, tx *hns.Transaction, names map[int]string) *apdu.ParseRequest {
	t.Helper()
	req := &apdu.ParseRequest{Tx: tx, Names: names}
	for i := range tx.Outputs {
		if tx.Outputs[i].Value == 990_000 {
			req.Change = &apdu.Change{Index: uint8(i), Path: changePath()}
		}
	}
	return req
}

func encodeParse(t *testing.T, req *apdu.ParseRequest) []byte {
	t.Helper()
	stream, err := apdu.EncodeParseStream(req)
	require.NoError(t, err)
	return stream
}

// parseHeaderSize returns the size of the parse stream header, which must
// arrive in the first message.
func parseHeaderSize(req *apdu.ParseRequest, stream []byte) int {
	body := len(req.Tx.Inputs)*(hns.OutpointSize+hns.SequenceSize+hns.ValueSize) + req.Tx.OutputsSize()
	for i, name := range req.Names {
		if req.Tx.Outputs[i].Covenant.Type.NeedsName() {
			body += 1 + len(name)
		}
	}
	return len(stream) - body
}

func newTestSession(t *testing.T, keys Keychain, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(keys, opts...)
	require.NoError(t, err)
	return s
}

// send streams data as an INS_GET_SIGNATURE exchange cut into the given
// chunk sizes, the last size repeating. Every prompt is accepted and
// recorded.
func send(s *Session, p2, flags byte, data []byte, sizes ...int) ([]byte, []Prompt, error) {
	var prompts []Prompt
	p1 := apdu.P1Begin | flags
	for i := 0; ; i++ {
		n := sizes[min(i, len(sizes)-1)]
		n = min(n, len(data))
		cmd := apdu.NewCommand(apdu.InsGetSignature, p1, p2, data[:n])
		data = data[n:]
		p1 = apdu.P1Continue

		reply, err := s.Handle(cmd)
		for err == nil && reply.Prompt != nil {
			prompts = append(prompts, *reply.Prompt)
			reply, err = s.Resolve(true)
		}
		if err != nil {
			return nil, prompts, err
		}
		if len(data) == 0 {
			return reply.Data, prompts, nil
		}
		if len(reply.Data) != 0 {
			return nil, prompts, fmt.Errorf("%d-byte reply with %d bytes left to send", len(reply.Data), len(data))
		}
	}
}

func parse(t *testing.T, s *Session, req *apdu.ParseRequest) []Prompt {
	t.Helper()
	_, prompts, err := send(s, apdu.P2Parse, 0, encodeParse(t, req), apdu.MaxDataSize)
	require.NoError(t, err)
	require.True(t, s.Transaction().Parsed)
	return prompts
}

func signStream(t *testing.T, tx *hns.Transaction, path hns.Path, index int, typ hns.SighashType, script []byte) []byte {
	t.Helper()
	req := &apdu.SignRequest{
		Path:   path,
		Index:  uint8(index),
		Type:   typ,
		Input:  tx.Inputs[index],
		Script: script,
	}
	if out := tx.SingleOutput(index, typ); out != nil {
		req.Output = out.Bytes()
	}
	stream, err := apdu.EncodeSignStream(req)
	require.NoError(t, err)
	return stream
}

func requireKind(t *testing.T, err error, kind hns.ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	require.Equal(t, code, hns.CodeOf(err))
}
