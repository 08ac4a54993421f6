package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

type signField uint8

const (
	signScript signField = iota
	signOutputLen
	signOutput
	signDone
)

// zeroHash is the sentinel for commitments a policy excludes.
var zeroHash [hns.HashSize]byte

// NewSigningContext reads the header of a sign stream from c and seeds the
// signature digest from the parsed transaction's commitments:
//
//	version || prevouts* || sequences* || prevout* || varint(script_len)
//
// The header must be complete in c.
func NewSigningContext(tx *TransactionContext, c *wire.Cursor, confirm bool) (*SigningContext, error) {
	if tx == nil || !tx.Parsed {
		return nil, hns.NewError(hns.ErrState, hns.CodeNotParsed, "no parsed transaction to sign")
	}

	s := &SigningContext{Confirm: confirm}
	var err error

	if s.Path, err = hns.ReadPath(c); err != nil {
		return nil, malformedHeader("derivation path", err)
	}
	if !s.Path.IsAddressDepth() {
		return nil, hns.NewError(hns.ErrPolicy, hns.CodeInvalidPath,
			fmt.Sprintf("signing path %s is not at address depth", s.Path))
	}

	if s.Index, err = c.ReadU8(); err != nil {
		return nil, malformedHeader("input index", err)
	}
	if s.Index >= tx.InsLen {
		return nil, hns.NewError(hns.ErrState, hns.CodeInputIndex,
			fmt.Sprintf("input %d of %d", s.Index, tx.InsLen))
	}

	typ, err := c.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, malformedHeader("sighash type", err)
	}
	s.Type = hns.SighashType(typ)
	if err := s.Type.Validate(); err != nil {
		return nil, err
	}

	if err := c.ReadInto(s.Prevout[:]); err != nil {
		return nil, malformedHeader("prevout", err)
	}
	if s.Value, err = c.ReadU64(binary.LittleEndian); err != nil {
		return nil, malformedHeader("value", err)
	}
	if s.Sequence, err = c.ReadU32(binary.LittleEndian); err != nil {
		return nil, malformedHeader("sequence", err)
	}
	if err := s.checkInput(tx); err != nil {
		return nil, err
	}

	scriptLen, size, err := c.PeekVarint()
	if err != nil {
		return nil, malformedHeader("script length", err)
	}
	prefix, _ := c.ReadBytes(size)
	s.ScriptRemaining = scriptLen

	prevouts, sequences := tx.Prevouts, tx.Sequences
	if s.Type.AnyoneCanPay() {
		prevouts = zeroHash
	}
	if s.Type.AnyoneCanPay() || s.Type.Base() != hns.SighashAll {
		sequences = zeroHash
	}
	prevout := s.Prevout
	if s.Type.NoInput() {
		prevout = hns.NullOutpoint.Bytes()
	}

	if err := s.hash.Init(crypto.DigestSize); err != nil {
		return nil, err
	}
	s.hash.Update(binary.LittleEndian.AppendUint32(nil, tx.Version))
	s.hash.Update(prevouts[:])
	s.hash.Update(sequences[:])
	s.hash.Update(prevout[:])
	s.hash.Update(prefix)
	s.field = signScript
	return s, nil
}

// checkInput binds the request to the input parsed at the same index. Input
// values are only compared when the parse stream carried them.
func (s *SigningContext) checkInput(tx *TransactionContext) error {
	in, ok := tx.parsedInput(int(s.Index))
	if !ok {
		return hns.NewError(hns.ErrState, hns.CodeInputIndex,
			fmt.Sprintf("input %d was not parsed", s.Index))
	}
	mismatch := in.prevout != s.Prevout || in.sequence != s.Sequence ||
		(tx.cfg.InputValues && in.value != s.Value)
	if mismatch {
		return hns.NewError(hns.ErrIntegrity, hns.CodeInputMismatch,
			fmt.Sprintf("input %d differs from the parsed transaction", s.Index))
	}
	return nil
}

// Step consumes script bytes and, for SINGLE policies, the committed
// output. It returns Done with the digest available from Digest.
func (s *SigningContext) Step(tx *TransactionContext, c *wire.Cursor) (Result, error) {
	for {
		switch s.field {
		case signScript:
			chunk := c.ReadUpTo(int(min(s.ScriptRemaining, uint64(c.Len()))))
			s.hash.Update(chunk)
			s.ScriptRemaining -= uint64(len(chunk))
			if s.ScriptRemaining > 0 {
				return NeedMoreInput, nil
			}

			sequence := s.Sequence
			if s.Type.NoInput() {
				sequence = hns.MaxSequence
			}
			s.hash.Update(binary.LittleEndian.AppendUint64(nil, s.Value))
			s.hash.Update(binary.LittleEndian.AppendUint32(nil, sequence))

			if s.Type.CommitsSingleOutput() {
				s.field = signOutputLen
				continue
			}
			return s.finish(tx, c)

		case signOutputLen:
			n, err := c.ReadVarint()
			if err != nil {
				if errors.Is(err, wire.ErrShortRead) {
					return NeedMoreInput, nil
				}
				return NeedMoreInput, hns.WrapError(hns.ErrEncoding, hns.CodeInvalidVarint,
					"single output length", err)
			}
			s.OutputRemaining = n
			if n == 0 {
				s.singleEmpty = true
				return s.finish(tx, c)
			}
			if err := s.single.Init(crypto.DigestSize); err != nil {
				return NeedMoreInput, err
			}
			s.field = signOutput

		case signOutput:
			chunk := c.ReadUpTo(int(min(s.OutputRemaining, uint64(c.Len()))))
			s.single.Update(chunk)
			s.OutputRemaining -= uint64(len(chunk))
			if s.OutputRemaining > 0 {
				return NeedMoreInput, nil
			}
			return s.finish(tx, c)

		default:
			return NeedMoreInput, hns.NewError(hns.ErrState, hns.CodeParserState,
				"signature already computed")
		}
	}
}

// finish folds outputs* || locktime || type and finalizes the digest.
func (s *SigningContext) finish(tx *TransactionContext, c *wire.Cursor) (Result, error) {
	if c.Len() != 0 {
		return NeedMoreInput, hns.NewError(hns.ErrState, hns.CodeParserState,
			fmt.Sprintf("%d bytes after the signed data", c.Len()))
	}

	var outputs [hns.HashSize]byte
	switch {
	case s.Type.Base() == hns.SighashNone:
		outputs = zeroHash
	case s.Type.CommitsSingleOutput():
		if s.singleEmpty {
			outputs = zeroHash
		} else {
			var err error
			if outputs, err = s.single.Final(); err != nil {
				return NeedMoreInput, err
			}
		}
	default:
		outputs = tx.Outputs
	}

	s.hash.Update(outputs[:])
	s.hash.Update(binary.LittleEndian.AppendUint32(nil, tx.Locktime))
	s.hash.Update(binary.LittleEndian.AppendUint32(nil, uint32(s.Type)))

	digest, err := s.hash.Final()
	if err != nil {
		return NeedMoreInput, err
	}
	s.digest = digest
	s.field = signDone
	return Done, nil
}
