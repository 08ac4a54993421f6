package apdu

import (
	"encoding/binary"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// Change designates an output as change paying to the key at Path.
type Change struct {
	Index uint8
	Path  hns.Path
}

// ParseRequest describes a transaction to stream to the signer.
type ParseRequest struct {
	Tx     *hns.Transaction
	Change *Change

	// Names holds the plaintext names of outputs whose covenants carry only
	// a name hash, keyed by output index.
	Names map[int]string

	// OmitValues leaves input values out of the stream, for signers
	// configured without them.
	OmitValues bool
}

// EncodeParseStream returns the byte stream of a parse request: the header
// followed by every input and output.
func EncodeParseStream(req *ParseRequest) ([]byte, error) {
	tx := req.Tx
	if len(tx.Inputs) > 0xff || len(tx.Outputs) > 0xff {
		return nil, fmt.Errorf("apdu: %d inputs and %d outputs exceed the protocol limit",
			len(tx.Inputs), len(tx.Outputs))
	}

	b := binary.LittleEndian.AppendUint32(nil, tx.Version)
	b = binary.LittleEndian.AppendUint32(b, tx.Locktime)
	b = append(b, byte(len(tx.Inputs)), byte(len(tx.Outputs)))
	b = wire.AppendVarint(b, uint64(tx.OutputsSize()))

	if req.Change != nil {
		if int(req.Change.Index) >= len(tx.Outputs) {
			return nil, fmt.Errorf("apdu: change index %d out of range", req.Change.Index)
		}
		b = append(b, 1, req.Change.Index)
		b = req.Change.Path.AppendTo(b)
	} else {
		b = append(b, 0)
	}

	for _, in := range tx.Inputs {
		op := in.Prevout.Bytes()
		b = append(b, op[:]...)
		b = binary.LittleEndian.AppendUint32(b, in.Sequence)
		if !req.OmitValues {
			b = binary.LittleEndian.AppendUint64(b, in.Value)
		}
	}

	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		b = out.AppendTo(b)
		if !out.Covenant.Type.NeedsName() {
			continue
		}
		name, ok := req.Names[i]
		if !ok {
			return nil, fmt.Errorf("apdu: output %d (%s) needs its name", i, out.Covenant.Type)
		}
		if len(name) > hns.MaxNameSize {
			return nil, fmt.Errorf("apdu: output %d name too long", i)
		}
		b = append(b, byte(len(name)))
		b = append(b, name...)
	}
	return b, nil
}

// SignRequest describes one input signature.
type SignRequest struct {
	Path  hns.Path
	Index uint8
	Type  hns.SighashType

	// Input carries the prevout, sequence and value of the input at Index.
	Input hns.Input

	// Script is the script of the spent output.
	Script []byte

	// Output is the serialized output committed to by SINGLE and
	// SINGLEREVERSE signatures. Empty selects the zero commitment.
	Output []byte

	// Confirm asks the signer to show the txid before releasing the
	// signature.
	Confirm bool
}

// EncodeSignStream returns the byte stream of a sign request.
func EncodeSignStream(req *SignRequest) ([]byte, error) {
	if len(req.Path) > hns.MaxPathDepth {
		return nil, fmt.Errorf("apdu: path depth %d exceeds %d", len(req.Path), hns.MaxPathDepth)
	}

	b := req.Path.AppendTo(nil)
	b = append(b, req.Index)
	b = binary.LittleEndian.AppendUint32(b, uint32(req.Type))
	op := req.Input.Prevout.Bytes()
	b = append(b, op[:]...)
	b = binary.LittleEndian.AppendUint64(b, req.Input.Value)
	b = binary.LittleEndian.AppendUint32(b, req.Input.Sequence)
	b = hns.AppendVarBytes(b, req.Script)

	if req.Type.CommitsSingleOutput() {
		b = hns.AppendVarBytes(b, req.Output)
	}
	return b, nil
}

// PublicKeyRequest describes a public key request.
type PublicKeyRequest struct {
	Path     hns.Path
	Network  uint8
	Confirm  bool
	Extended bool
	Address  bool
}

// Params returns the P1 and P2 bytes of the request.
func (r *PublicKeyRequest) Params() (p1, p2 byte) {
	p1 = (r.Network << 1) & P1PubKeyNetworkMask
	if r.Confirm {
		p1 |= P1PubKeyConfirm
	}
	if r.Extended {
		p2 |= P2PubKeyExtended
	}
	if r.Address {
		p2 |= P2PubKeyAddress
	}
	return p1, p2
}

// PublicKeyReply is the decoded reply to a public key request.
type PublicKeyReply struct {
	PubKey            []byte
	ChainCode         []byte
	ParentFingerprint []byte
	Address           string
}

// Encode serializes the reply:
//
//	pubkey(33) || (varbytes chaincode || varbytes fingerprint | u16 0) || (varbytes address | u8 0)
func (r *PublicKeyReply) Encode() []byte {
	b := append([]byte(nil), r.PubKey...)
	if r.ChainCode != nil {
		b = append(b, byte(len(r.ChainCode)))
		b = append(b, r.ChainCode...)
		b = append(b, byte(len(r.ParentFingerprint)))
		b = append(b, r.ParentFingerprint...)
	} else {
		b = append(b, 0, 0)
	}
	b = append(b, byte(len(r.Address)))
	return append(b, r.Address...)
}

// DecodePublicKeyReply parses a public key reply.
func DecodePublicKeyReply(b []byte) (*PublicKeyReply, error) {
	c := wire.NewCursor(b)
	pub, err := c.ReadBytes(33)
	if err != nil {
		return nil, fmt.Errorf("apdu: public key reply: %w", err)
	}
	r := &PublicKeyReply{PubKey: append([]byte(nil), pub...)}

	readVar := func() ([]byte, error) {
		n, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		return c.ReadBytes(int(n))
	}

	chainCode, err := readVar()
	if err != nil {
		return nil, fmt.Errorf("apdu: public key reply chain code: %w", err)
	}
	fingerprint, err := readVar()
	if err != nil {
		return nil, fmt.Errorf("apdu: public key reply fingerprint: %w", err)
	}
	if len(chainCode) > 0 {
		r.ChainCode = append([]byte(nil), chainCode...)
		r.ParentFingerprint = append([]byte(nil), fingerprint...)
	}

	addr, err := readVar()
	if err != nil {
		return nil, fmt.Errorf("apdu: public key reply address: %w", err)
	}
	r.Address = string(addr)

	if c.Len() != 0 {
		return nil, fmt.Errorf("apdu: public key reply has %d trailing bytes", c.Len())
	}
	return r, nil
}
