// Package engine implements the streaming transaction parser and signature
// hash engine of a Handshake signer.
//
// A transaction arrives in chunks of at most 255 bytes. The parser commits
// to it field by field without ever holding it whole: it builds the
// prevouts, sequences and outputs commitments and the txid, accumulates the
// fee and stops after every output so the user can confirm it. A signing
// request then names one input, streams that input's script (and, for
// SINGLE policies, one output) and receives a signature over the digest
// assembled from the stored commitments.
//
// All state lives in a Session owned by the caller. Every method is
// synchronous; a Step that runs out of bytes returns NeedMoreInput and the
// unconsumed tail is carried to the next message in a bounded Cache.
package engine

import (
	"github.com/google/uuid"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

// Result is the non-error outcome of a Step.
type Result uint8

const (
	// NeedMoreInput means the chunk ended mid-field; the caller caches the
	// tail and waits for the next message.
	NeedMoreInput Result = iota

	// AwaitConfirmation means the step produced something the user must
	// approve before processing continues.
	AwaitConfirmation

	// Done means the stream is complete.
	Done
)

func (r Result) String() string {
	switch r {
	case NeedMoreInput:
		return "NeedMoreInput"
	case AwaitConfirmation:
		return "AwaitConfirmation"
	case Done:
		return "Done"
	default:
		return "Result(?)"
	}
}

// CurrentInput is the scratch view of the input being parsed.
type CurrentInput struct {
	Prevout  [hns.OutpointSize]byte
	Sequence uint32
	Value    uint64
}

// CurrentOutput is the scratch view of the output being parsed.
type CurrentOutput struct {
	Index        int
	Value        uint64
	Address      hns.Address
	CovenantType hns.CovenantType
	ItemCount    uint64

	// Covenant is set once every item has been read.
	Covenant hns.Covenant

	// Change reports whether this is the verified change output.
	Change bool
}

// ChangeDescriptor designates the output paying back to the device.
type ChangeDescriptor struct {
	Index   uint8
	Path    hns.Path
	Address hns.Address
}

type inputRecord struct {
	prevout  [hns.OutpointSize]byte
	sequence uint32
	value    uint64
}

// TransactionContext holds everything known about the transaction in
// flight: the header, the commitments once finalized and the parser's
// resumable position.
type TransactionContext struct {
	ID uuid.UUID

	Version  uint32
	Locktime uint32
	InsLen   uint8
	OutsLen  uint8

	// OutsSize is the number of declared output bytes not yet consumed.
	OutsSize uint64

	Prevouts  [hns.HashSize]byte
	Sequences [hns.HashSize]byte
	Outputs   [hns.HashSize]byte
	TxID      [hns.HashSize]byte

	// Fee is the sum of input values minus the sum of output values, with
	// wraparound. It stays zero when input values are not streamed.
	Fee uint64

	Change *ChangeDescriptor

	// Parsed is set once every commitment is final.
	Parsed bool

	cfg    *Config
	field  field
	ins    int
	outs   int
	input  CurrentInput
	output CurrentOutput
	cov    covenantParser
	inputs []inputRecord

	prevoutsHash  crypto.Hasher
	sequencesHash crypto.Hasher
	outputsHash   crypto.Hasher
	txidHash      crypto.Hasher
}

// Output returns the output most recently parsed.
func (tx *TransactionContext) Output() *CurrentOutput {
	return &tx.output
}

// InputsParsed returns the number of inputs read so far.
func (tx *TransactionContext) InputsParsed() int {
	return tx.ins
}

// OutputsParsed returns the number of outputs read so far.
func (tx *TransactionContext) OutputsParsed() int {
	return tx.outs
}

// SigningContext holds one signature request.
type SigningContext struct {
	Path    hns.Path
	Index   uint8
	Type    hns.SighashType
	Confirm bool

	Prevout  [hns.OutpointSize]byte
	Value    uint64
	Sequence uint32

	// ScriptRemaining counts script bytes still to be streamed.
	ScriptRemaining uint64

	// OutputRemaining counts bytes of the single committed output still to
	// be streamed.
	OutputRemaining uint64

	field       signField
	hash        crypto.Hasher
	single      crypto.Hasher
	singleEmpty bool
	digest      [hns.HashSize]byte
}

// Digest returns the signature hash once the request is complete.
func (s *SigningContext) Digest() [hns.HashSize]byte {
	return s.digest
}
