package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/hns-signer/pkg/engine"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

func TestNetworkID(t *testing.T) {
	assert.Equal(t, uint8(0), networkID(hns.MainNet))
	assert.Equal(t, uint8(1), networkID(hns.TestNet))
	assert.Equal(t, uint8(3), networkID(hns.SimNet))
}

func TestSplitIndex(t *testing.T) {
	index, rest, err := splitIndex("2:m/44'/5353'/0'/1/0")
	require.NoError(t, err)
	assert.Equal(t, 2, index)
	assert.Equal(t, "m/44'/5353'/0'/1/0", rest)

	for _, s := range []string{"example", "x:example", "256:example"} {
		_, _, err := splitIndex(s)
		assert.Error(t, err, s)
	}
}

func TestTxOptionsRequest(t *testing.T) {
	tx := &hns.Transaction{
		Inputs: []hns.Input{{Prevout: hns.Outpoint{Index: 1}, Sequence: hns.MaxSequence}},
		Outputs: []hns.Output{
			{Value: 1, Address: hns.Address{Hash: make([]byte, 20)}, Covenant: hns.NewRevokeCovenant("example", 3)},
			{Value: 2, Address: hns.Address{Hash: make([]byte, 20)}, Covenant: hns.RawCovenant{Type: hns.CovenantNone}},
		},
	}
	o := &txOptions{
		Tx:     hex.EncodeToString(tx.Encode()),
		Values: []uint64{10},
		Change: "1:m/44'/5353'/0'/1/0",
		Names:  []string{"0:example"},
	}

	req, err := o.request()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), req.Tx.Inputs[0].Value)
	assert.Equal(t, uint8(1), req.Change.Index)
	assert.Equal(t, hns.BIP44Path(hns.MainNet.CoinType, 0, 1, 0), req.Change.Path)
	assert.Equal(t, map[int]string{0: "example"}, req.Names)

	o.Values = nil
	_, err = o.request()
	assert.Error(t, err, "values must match the inputs")

	o.OmitValues = true
	_, err = o.request()
	assert.NoError(t, err)

	o.Tx = "zz"
	_, err = o.request()
	assert.Error(t, err)
}

func TestTerminalConfirmer(t *testing.T) {
	var out bytes.Buffer
	c := newTerminalConfirmer(strings.NewReader("y\nno\n"), &out)
	p := engine.Prompt{Kind: engine.PromptFee, Header: "Fee", Message: "0.010000 HNS"}

	assert.True(t, c.Confirm(p))
	assert.False(t, c.Confirm(p))
	assert.False(t, c.Confirm(p), "end of input rejects")
	assert.Contains(t, out.String(), "== Fee ==")
	assert.Contains(t, out.String(), "0.010000 HNS")
}

func TestTerminalConfirmerScrolls(t *testing.T) {
	var out bytes.Buffer
	msg := strings.Repeat("a", pageWidth) + "bcd"
	c := newTerminalConfirmer(strings.NewReader(">>>\n<\ny\n"), &out)

	assert.True(t, c.Confirm(engine.Prompt{Kind: engine.PromptTxID, Header: "TxID", Message: msg}))
	assert.Contains(t, out.String(), "  "+msg[:pageWidth]+" >")
	assert.Contains(t, out.String(), "< "+msg[3:]+"  ")
	assert.Contains(t, out.String(), "< "+msg[2:2+pageWidth]+" >")

	out.Reset()
	c = newTerminalConfirmer(strings.NewReader("maybe\n"), &out)
	assert.False(t, c.Confirm(engine.Prompt{Header: "Fee", Message: "1"}))
}
