package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// field is the next field the parser expects.
type field uint8

const (
	fieldPrevout field = iota
	fieldSequence
	fieldValue
	fieldOutputValue
	fieldAddrVersion
	fieldAddrHashLen
	fieldAddrHash
	fieldCovenantType
	fieldCovenantItemsLen
	fieldCovenantItems
	fieldCovenantName
	fieldDone
)

var fieldNames = [...]string{
	fieldPrevout:          "PREVOUT",
	fieldSequence:         "SEQUENCE",
	fieldValue:            "VALUE",
	fieldOutputValue:      "OUTPUT_VALUE",
	fieldAddrVersion:      "ADDR_VERSION",
	fieldAddrHashLen:      "ADDR_HASH_LEN",
	fieldAddrHash:         "ADDR_HASH",
	fieldCovenantType:     "COVENANT_TYPE",
	fieldCovenantItemsLen: "COVENANT_ITEMS_LEN",
	fieldCovenantItems:    "COVENANT_ITEMS",
	fieldCovenantName:     "COVENANT_NAME",
	fieldDone:             "DONE",
}

func (f field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// AddressDeriver returns the device's address for a derivation path.
type AddressDeriver func(path hns.Path) (hns.Address, error)

func malformedHeader(what string, err error) error {
	if errors.Is(err, wire.ErrShortRead) {
		return hns.WrapError(hns.ErrProtocol, hns.CodeMalformedHeader, "cannot read "+what, err)
	}
	if errors.Is(err, wire.ErrNonCanonicalVarint) || errors.Is(err, wire.ErrVarintTooLarge) {
		return hns.WrapError(hns.ErrEncoding, hns.CodeInvalidVarint, "cannot read "+what, err)
	}
	return err
}

// NewTransactionContext reads the header of a parse stream from c and
// returns a context positioned at the first input. The header must be
// complete in c. derive resolves the change path, if any.
func NewTransactionContext(cfg *Config, c *wire.Cursor, derive AddressDeriver) (*TransactionContext, error) {
	tx := &TransactionContext{ID: uuid.New(), cfg: cfg}
	var err error

	if tx.Version, err = c.ReadU32(binary.LittleEndian); err != nil {
		return nil, malformedHeader("version", err)
	}
	if tx.Locktime, err = c.ReadU32(binary.LittleEndian); err != nil {
		return nil, malformedHeader("locktime", err)
	}
	if tx.InsLen, err = c.ReadU8(); err != nil {
		return nil, malformedHeader("input count", err)
	}
	if tx.OutsLen, err = c.ReadU8(); err != nil {
		return nil, malformedHeader("output count", err)
	}
	if tx.OutsSize, err = c.ReadVarint(); err != nil {
		return nil, malformedHeader("outputs size", err)
	}

	if tx.InsLen == 0 || int(tx.InsLen) > cfg.MaxInputs {
		return nil, hns.NewError(hns.ErrPolicy, hns.CodeTooManyInputs,
			fmt.Sprintf("%d inputs outside 1-%d", tx.InsLen, cfg.MaxInputs))
	}
	if tx.OutsLen == 0 || int(tx.OutsLen) > cfg.MaxOutputs {
		return nil, hns.NewError(hns.ErrPolicy, hns.CodeTooManyOutputs,
			fmt.Sprintf("%d outputs outside 1-%d", tx.OutsLen, cfg.MaxOutputs))
	}

	hasChange, err := c.ReadU8()
	if err != nil {
		return nil, malformedHeader("change flag", err)
	}
	switch hasChange {
	case 0:
	case 1:
		if tx.Change, err = readChange(c, tx.OutsLen, derive); err != nil {
			return nil, err
		}
	default:
		return nil, hns.NewError(hns.ErrProtocol, hns.CodeMalformedHeader,
			fmt.Sprintf("invalid change flag %d", hasChange))
	}

	if err := tx.prevoutsHash.Init(crypto.DigestSize); err != nil {
		return nil, err
	}
	if err := tx.sequencesHash.Init(crypto.DigestSize); err != nil {
		return nil, err
	}
	if err := tx.txidHash.Init(crypto.DigestSize); err != nil {
		return nil, err
	}
	tx.txidHash.Update(binary.LittleEndian.AppendUint32(nil, tx.Version))
	tx.txidHash.Update(wire.AppendVarint(nil, uint64(tx.InsLen)))

	tx.inputs = make([]inputRecord, 0, tx.InsLen)
	tx.field = fieldPrevout
	return tx, nil
}

func readChange(c *wire.Cursor, outsLen uint8, derive AddressDeriver) (*ChangeDescriptor, error) {
	index, err := c.ReadU8()
	if err != nil {
		return nil, malformedHeader("change index", err)
	}
	if index >= outsLen {
		return nil, hns.NewError(hns.ErrProtocol, hns.CodeMalformedHeader,
			fmt.Sprintf("change index %d beyond %d outputs", index, outsLen))
	}
	path, err := hns.ReadPath(c)
	if err != nil {
		return nil, malformedHeader("change path", err)
	}
	if !path.IsAddressDepth() {
		return nil, hns.NewError(hns.ErrPolicy, hns.CodeInvalidPath,
			fmt.Sprintf("change path %s is not at address depth", path))
	}
	addr, err := derive(path)
	if err != nil {
		return nil, hns.WrapError(hns.ErrPolicy, hns.CodeSignerFailure, "derive change address", err)
	}
	return &ChangeDescriptor{Index: index, Path: path, Address: addr}, nil
}

// Step consumes as much of c as the current state allows. It returns
// NeedMoreInput when c ends mid-field, AwaitConfirmation after each output
// when outputs are confirmed, and Done once the last output is parsed and
// every commitment is final. Bytes left in c on NeedMoreInput or
// AwaitConfirmation belong to the next step.
func (tx *TransactionContext) Step(c *wire.Cursor) (Result, error) {
	for {
		res, advanced, err := tx.stepField(c)
		if err != nil {
			if errors.Is(err, wire.ErrShortRead) {
				return NeedMoreInput, nil
			}
			return NeedMoreInput, tx.fieldError(err)
		}
		if !advanced {
			return res, nil
		}
	}
}

// fieldError classifies a reader failure.
func (tx *TransactionContext) fieldError(err error) error {
	var e *hns.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, wire.ErrNonCanonicalVarint) || errors.Is(err, wire.ErrVarintTooLarge) {
		return hns.WrapError(hns.ErrEncoding, hns.CodeInvalidVarint,
			fmt.Sprintf("output %d %s", tx.outs, tx.field), err)
	}
	return hns.WrapError(hns.ErrState, hns.CodeParserState, tx.field.String(), err)
}

// stepField reads one field. advanced is false when the step must return
// res to the caller.
func (tx *TransactionContext) stepField(c *wire.Cursor) (Result, bool, error) {
	switch tx.field {
	case fieldPrevout:
		b, err := c.ReadBytes(hns.OutpointSize)
		if err != nil {
			return 0, false, err
		}
		copy(tx.input.Prevout[:], b)
		tx.prevoutsHash.Update(b)
		tx.txidHash.Update(b)
		tx.field = fieldSequence

	case fieldSequence:
		b, err := c.ReadBytes(hns.SequenceSize)
		if err != nil {
			return 0, false, err
		}
		tx.input.Sequence = binary.LittleEndian.Uint32(b)
		tx.sequencesHash.Update(b)
		tx.txidHash.Update(b)
		if tx.cfg.InputValues {
			tx.field = fieldValue
		} else if err := tx.endInput(); err != nil {
			return 0, false, err
		}

	case fieldValue:
		v, err := c.ReadU64(binary.LittleEndian)
		if err != nil {
			return 0, false, err
		}
		tx.input.Value = v
		tx.Fee += v
		if err := tx.endInput(); err != nil {
			return 0, false, err
		}

	case fieldOutputValue:
		b, err := c.ReadBytes(hns.ValueSize)
		if err != nil {
			return 0, false, err
		}
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		tx.output.Value = binary.LittleEndian.Uint64(b)
		if tx.cfg.InputValues {
			tx.Fee -= tx.output.Value
		}
		tx.field = fieldAddrVersion

	case fieldAddrVersion:
		b, err := c.ReadBytes(1)
		if err != nil {
			return 0, false, err
		}
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		tx.output.Address.Version = b[0]
		tx.field = fieldAddrHashLen

	case fieldAddrHashLen:
		b, err := c.ReadBytes(1)
		if err != nil {
			return 0, false, err
		}
		size := int(b[0])
		if size < hns.MinAddressHashSize || size > tx.cfg.MaxAddressHashSize {
			return 0, false, hns.NewError(hns.ErrEncoding, hns.CodeFieldTooLarge,
				fmt.Sprintf("output %d address hash of %d bytes outside %d-%d",
					tx.outs, size, hns.MinAddressHashSize, tx.cfg.MaxAddressHashSize))
		}
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		tx.output.Address.Hash = make([]byte, size)
		tx.field = fieldAddrHash

	case fieldAddrHash:
		b, err := c.ReadBytes(len(tx.output.Address.Hash))
		if err != nil {
			return 0, false, err
		}
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		copy(tx.output.Address.Hash, b)
		if err := tx.checkChange(); err != nil {
			return 0, false, err
		}
		tx.field = fieldCovenantType

	case fieldCovenantType:
		b, err := c.ReadBytes(1)
		if err != nil {
			return 0, false, err
		}
		typ := hns.CovenantType(b[0])
		if _, ok := typ.Layout(); !ok {
			return 0, false, hns.NewError(hns.ErrPolicy, hns.CodeUnsupportedCovenant,
				fmt.Sprintf("output %d covenant %s", tx.outs, typ))
		}
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		tx.output.CovenantType = typ
		tx.field = fieldCovenantItemsLen

	case fieldCovenantItemsLen:
		n, size, err := c.PeekVarint()
		if err != nil {
			return 0, false, err
		}
		if err := tx.cov.start(tx.output.CovenantType, n); err != nil {
			return 0, false, err
		}
		b, _ := c.ReadBytes(size)
		if err := tx.commit(b); err != nil {
			return 0, false, err
		}
		tx.output.ItemCount = n
		tx.field = fieldCovenantItems

	case fieldCovenantItems:
		done, err := tx.cov.step(tx, c)
		if err != nil {
			return 0, false, err
		}
		if !done {
			return NeedMoreInput, false, nil
		}
		if tx.output.CovenantType.NeedsName() {
			tx.field = fieldCovenantName
		} else {
			return tx.endOutput(c)
		}

	case fieldCovenantName:
		if err := tx.cov.readName(c); err != nil {
			return 0, false, err
		}
		return tx.endOutput(c)

	case fieldDone:
		return 0, false, hns.NewError(hns.ErrState, hns.CodeParserState,
			"transaction already parsed")

	default:
		return 0, false, hns.NewError(hns.ErrState, hns.CodeParserState,
			fmt.Sprintf("unknown parser field %d", tx.field))
	}
	return 0, true, nil
}

// commit folds output bytes into the outputs commitment and the txid.
func (tx *TransactionContext) commit(b []byte) error {
	if uint64(len(b)) > tx.OutsSize {
		return hns.NewError(hns.ErrState, hns.CodeLengthMismatch,
			fmt.Sprintf("output %d reads past the declared outputs size", tx.outs))
	}
	tx.OutsSize -= uint64(len(b))
	tx.outputsHash.Update(b)
	tx.txidHash.Update(b)
	return nil
}

func (tx *TransactionContext) endInput() error {
	tx.inputs = append(tx.inputs, inputRecord{
		prevout:  tx.input.Prevout,
		sequence: tx.input.Sequence,
		value:    tx.input.Value,
	})
	tx.ins++
	tx.input = CurrentInput{}

	if tx.ins < int(tx.InsLen) {
		tx.field = fieldPrevout
		return nil
	}

	var err error
	if tx.Prevouts, err = tx.prevoutsHash.Final(); err != nil {
		return err
	}
	if tx.Sequences, err = tx.sequencesHash.Final(); err != nil {
		return err
	}
	if err := tx.outputsHash.Init(crypto.DigestSize); err != nil {
		return err
	}
	tx.txidHash.Update(wire.AppendVarint(nil, uint64(tx.OutsLen)))
	tx.output = CurrentOutput{Index: 0}
	tx.field = fieldOutputValue
	return nil
}

func (tx *TransactionContext) checkChange() error {
	if tx.Change == nil || int(tx.Change.Index) != tx.outs {
		return nil
	}
	if !tx.output.Address.Equal(tx.Change.Address) {
		return hns.NewError(hns.ErrIntegrity, hns.CodeChangeAddressMismatch,
			fmt.Sprintf("output %d does not pay to %s", tx.outs, tx.Change.Path))
	}
	tx.output.Change = true
	return nil
}

func (tx *TransactionContext) endOutput(c *wire.Cursor) (Result, bool, error) {
	tx.output.Covenant = tx.cov.build(tx.output.CovenantType)
	tx.outs++

	if tx.outs < int(tx.OutsLen) {
		if tx.OutsSize == 0 {
			return 0, false, hns.NewError(hns.ErrProtocol, hns.CodeLengthMismatch,
				fmt.Sprintf("declared outputs size consumed after %d of %d outputs", tx.outs, tx.OutsLen))
		}
		if tx.cfg.ConfirmOutputs {
			return AwaitConfirmation, false, nil
		}
		tx.resume()
		return 0, true, nil
	}

	if tx.OutsSize != 0 {
		return 0, false, hns.NewError(hns.ErrProtocol, hns.CodeLengthMismatch,
			fmt.Sprintf("%d declared output bytes left after the last output", tx.OutsSize))
	}
	if c.Len() != 0 {
		return 0, false, hns.NewError(hns.ErrState, hns.CodeParserState,
			fmt.Sprintf("%d bytes after the last output", c.Len()))
	}

	var err error
	if tx.Outputs, err = tx.outputsHash.Final(); err != nil {
		return 0, false, err
	}
	tx.txidHash.Update(binary.LittleEndian.AppendUint32(nil, tx.Locktime))
	if tx.TxID, err = tx.txidHash.Final(); err != nil {
		return 0, false, err
	}
	tx.Parsed = true
	tx.field = fieldDone

	if tx.cfg.ConfirmOutputs {
		return AwaitConfirmation, false, nil
	}
	return Done, false, nil
}

// resume prepares the scratch output for the next output once the previous
// one has been confirmed.
func (tx *TransactionContext) resume() {
	if tx.field == fieldDone {
		return
	}
	tx.output = CurrentOutput{Index: tx.outs}
	tx.cov = covenantParser{}
	tx.field = fieldOutputValue
}

// Done reports whether the last output has been parsed.
func (tx *TransactionContext) Done() bool {
	return tx.field == fieldDone
}

// parsedInput returns the record of input i.
func (tx *TransactionContext) parsedInput(i int) (inputRecord, bool) {
	if i < 0 || i >= len(tx.inputs) {
		return inputRecord{}, false
	}
	return tx.inputs[i], true
}
