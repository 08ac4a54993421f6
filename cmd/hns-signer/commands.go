package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

type versionCommand struct{}

func (c *versionCommand) Execute(args []string) error {
	s, err := openSigner(true)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	v, err := s.client.Version()
	if err != nil {
		return err
	}
	fmt.Printf("hns-signer v%d.%d.%d\n", v[0], v[1], v[2])
	return nil
}

type addressCommand struct {
	Path     string `long:"path" default:"m/44'/5353'/0'/0/0" description:"Derivation path"`
	Extended bool   `long:"extended" description:"Also show the extended public key data"`
	Confirm  bool   `long:"confirm" description:"Show the result on the signer before releasing it"`
}

func (c *addressCommand) Execute(args []string) error {
	s, err := openSigner(true)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	path, err := hns.ParsePath(c.Path)
	if err != nil {
		return err
	}
	req := &apdu.PublicKeyRequest{
		Path:     path,
		Network:  networkID(s.network),
		Confirm:  c.Confirm,
		Extended: c.Extended,
		Address:  path.IsAddressDepth(),
	}
	if opts.Debug {
		spew.Dump(req)
	}

	reply, err := s.client.PublicKey(req)
	if err != nil {
		return err
	}
	fmt.Printf("Path:        %s\n", path)
	fmt.Printf("Public key:  %x\n", reply.PubKey)
	if reply.Address != "" {
		fmt.Printf("Address:     %s\n", reply.Address)
	}
	if reply.ChainCode != nil {
		var child uint32
		if len(path) > 0 {
			child = path[len(path)-1]
		}
		xpub := crypto.EncodeExtendedPubKey(s.network.HDPubVersion, uint8(len(path)),
			reply.ParentFingerprint, child, reply.ChainCode, reply.PubKey)
		fmt.Printf("Chain code:  %x\n", reply.ChainCode)
		fmt.Printf("Parent FP:   %x\n", reply.ParentFingerprint)
		fmt.Printf("XPUB:        %s\n", xpub)
	}
	return nil
}

// txOptions describe the transaction streamed to the signer.
type txOptions struct {
	Tx         string   `long:"tx" required:"true" description:"Hex serialized transaction"`
	Values     []uint64 `long:"value" description:"Value of each spent output, in input order"`
	Change     string   `long:"change" description:"Change output as index:path"`
	Names      []string `long:"name" description:"Plaintext name of an output as index:name"`
	OmitValues bool     `long:"omit-values" description:"Do not stream input values"`
}

func (o *txOptions) request() (*apdu.ParseRequest, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(o.Tx))
	if err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}
	tx, err := hns.DecodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}
	if !o.OmitValues && len(o.Values) != len(tx.Inputs) {
		return nil, fmt.Errorf("%d values given for %d inputs", len(o.Values), len(tx.Inputs))
	}
	for i, v := range o.Values {
		if i < len(tx.Inputs) {
			tx.Inputs[i].Value = v
		}
	}

	req := &apdu.ParseRequest{Tx: tx, Names: map[int]string{}, OmitValues: o.OmitValues}
	if o.Change != "" {
		index, rest, err := splitIndex(o.Change)
		if err != nil {
			return nil, fmt.Errorf("change: %w", err)
		}
		path, err := hns.ParsePath(rest)
		if err != nil {
			return nil, fmt.Errorf("change: %w", err)
		}
		req.Change = &apdu.Change{Index: uint8(index), Path: path}
	}
	for _, n := range o.Names {
		index, name, err := splitIndex(n)
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		req.Names[index] = name
	}
	return req, nil
}

func splitIndex(s string) (int, string, error) {
	head, tail, ok := strings.Cut(s, ":")
	if !ok {
		return 0, "", fmt.Errorf("%q is not index:value", s)
	}
	index, err := strconv.ParseUint(head, 10, 8)
	if err != nil {
		return 0, "", fmt.Errorf("index %q: %w", head, err)
	}
	return int(index), tail, nil
}

type txidCommand struct {
	txOptions
}

func (c *txidCommand) Execute(args []string) error {
	s, err := openSigner(!c.OmitValues)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	req, err := c.request()
	if err != nil {
		return err
	}
	if opts.Debug {
		spew.Dump(req)
	}
	res, err := s.client.Parse(req)
	if err != nil {
		return err
	}
	fmt.Printf("TxID: %s\n", res.TxIDString())
	if !req.OmitValues {
		fmt.Printf("Fee:  %d\n", res.Fee)
	}
	return nil
}

type signCommand struct {
	txOptions
	Paths       []string `long:"path" description:"Key path of each input, in input order"`
	Sighash     string   `long:"sighash" default:"ALL" description:"Sighash type, e.g. ALL or SINGLE|ANYONECANPAY"`
	ConfirmTxID bool     `long:"confirm-txid" description:"Confirm the txid before each signature is released"`
}

func (c *signCommand) Execute(args []string) error {
	s, err := openSigner(!c.OmitValues)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	req, err := c.request()
	if err != nil {
		return err
	}
	typ, err := hns.ParseSighashType(c.Sighash)
	if err != nil {
		return err
	}
	if len(c.Paths) != len(req.Tx.Inputs) {
		return fmt.Errorf("%d paths given for %d inputs", len(c.Paths), len(req.Tx.Inputs))
	}
	if opts.Debug {
		spew.Dump(req)
	}

	// Public key requests abandon a parsed transaction, so every key is
	// fetched before parsing.
	paths := make([]hns.Path, len(c.Paths))
	pubKeys := make([][]byte, len(c.Paths))
	for i, p := range c.Paths {
		if paths[i], err = hns.ParsePath(p); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		key, err := s.client.PublicKey(&apdu.PublicKeyRequest{Path: paths[i], Network: networkID(s.network)})
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		pubKeys[i] = key.PubKey
	}

	res, err := s.client.Parse(req)
	if err != nil {
		return err
	}
	fmt.Printf("TxID: %s\n", res.TxIDString())

	tx := req.Tx
	for i, path := range paths {
		sreq := &apdu.SignRequest{
			Path:    path,
			Index:   uint8(i),
			Type:    typ,
			Input:   tx.Inputs[i],
			Script:  hns.P2PKHScript(crypto.Hash160(pubKeys[i])),
			Confirm: c.ConfirmTxID,
		}
		if out := tx.SingleOutput(i, typ); out != nil {
			sreq.Output = out.Bytes()
		}
		sig, err := s.client.SignInput(sreq)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		tx.Inputs[i].Witness = [][]byte{sig, pubKeys[i]}
		fmt.Printf("Input %d: %x\n", i, sig)
	}

	fmt.Printf("Signed: %x\n", tx.Encode())
	return nil
}
