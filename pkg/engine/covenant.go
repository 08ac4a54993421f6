package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// covenantParser reads the items of one covenant. Items are varbytes; all
// but the resource are buffered whole, the resource streams like a script.
type covenantParser struct {
	typ    hns.CovenantType
	layout []hns.ItemKind

	// item is the index of the next item. It advances only once an item
	// has been read, validated and committed.
	item int

	// streaming is set while the resource item's content is read;
	// remaining counts its bytes still to come.
	streaming bool
	remaining int

	nameHash     [hns.HashSize]byte
	height       uint32
	name         string
	blind        [hns.HashSize]byte
	nonce        [hns.HashSize]byte
	blockHash    [hns.HashSize]byte
	resourceSize int
	addrVersion  uint8
	addrHash     []byte
	flags        uint8
	claimed      uint32
	renewals     uint32
}

// start resets the parser for a covenant of type typ declaring count items.
func (p *covenantParser) start(typ hns.CovenantType, count uint64) error {
	layout, ok := typ.Layout()
	if !ok {
		return hns.NewError(hns.ErrPolicy, hns.CodeUnsupportedCovenant,
			fmt.Sprintf("covenant %s", typ))
	}
	if count != uint64(len(layout)) {
		return hns.NewError(hns.ErrEncoding, hns.CodeInvalidItem,
			fmt.Sprintf("%s covenant declares %d items, expected %d", typ, count, len(layout)))
	}
	*p = covenantParser{typ: typ, layout: layout}
	return nil
}

// step reads items until the chunk runs out or the covenant is complete.
func (p *covenantParser) step(tx *TransactionContext, c *wire.Cursor) (bool, error) {
	for p.item < len(p.layout) {
		kind := p.layout[p.item]

		if p.streaming {
			chunk := c.ReadUpTo(p.remaining)
			if err := tx.commit(chunk); err != nil {
				return false, err
			}
			p.remaining -= len(chunk)
			if p.remaining > 0 {
				return false, nil
			}
			p.streaming = false
			p.item++
			continue
		}

		size, prefixLen, err := c.PeekVarint()
		if err != nil {
			return false, err
		}
		if err := p.checkSize(tx.cfg, kind, size); err != nil {
			return false, err
		}

		if kind == hns.ItemResource {
			prefix, _ := c.ReadBytes(prefixLen)
			if err := tx.commit(prefix); err != nil {
				return false, err
			}
			p.resourceSize = int(size)
			p.remaining = int(size)
			p.streaming = true
			continue
		}

		if c.Len() < prefixLen+int(size) {
			return false, nil
		}
		raw, _ := c.ReadBytes(prefixLen + int(size))
		if err := p.decode(kind, raw[prefixLen:]); err != nil {
			return false, err
		}
		if err := tx.commit(raw); err != nil {
			return false, err
		}
		p.item++
	}
	return true, nil
}

func (p *covenantParser) checkSize(cfg *Config, kind hns.ItemKind, size uint64) error {
	if fixed := kind.FixedSize(); fixed >= 0 {
		if size != uint64(fixed) {
			return hns.NewError(hns.ErrEncoding, hns.CodeInvalidItem,
				fmt.Sprintf("%s %s of %d bytes, expected %d", p.typ, kind, size, fixed))
		}
		return nil
	}

	switch kind {
	case hns.ItemName:
		if size < hns.MinNameSize || size > hns.MaxNameSize {
			return hns.NewError(hns.ErrEncoding, hns.CodeInvalidName,
				fmt.Sprintf("%s name of %d bytes", p.typ, size))
		}
	case hns.ItemAddrHash:
		if size < hns.MinAddressHashSize || size > hns.MaxAddressHashSize {
			return hns.NewError(hns.ErrEncoding, hns.CodeInvalidItem,
				fmt.Sprintf("%s address hash of %d bytes", p.typ, size))
		}
	case hns.ItemResource:
		if size > uint64(cfg.MaxResourceSize) {
			return hns.NewError(hns.ErrEncoding, hns.CodeFieldTooLarge,
				fmt.Sprintf("%s resource of %d bytes exceeds %d", p.typ, size, cfg.MaxResourceSize))
		}
	}
	return nil
}

// decode validates and stores a whole item. It fails before the item
// counter moves.
func (p *covenantParser) decode(kind hns.ItemKind, b []byte) error {
	switch kind {
	case hns.ItemNameHash:
		copy(p.nameHash[:], b)
	case hns.ItemHeight:
		p.height = binary.LittleEndian.Uint32(b)
		if p.typ == hns.CovenantOpen && p.height != 0 {
			return hns.NewError(hns.ErrEncoding, hns.CodeInvalidItem,
				fmt.Sprintf("OPEN height %d, expected 0", p.height))
		}
	case hns.ItemName:
		if err := p.checkName(b); err != nil {
			return err
		}
		p.name = string(b)
	case hns.ItemBlind:
		copy(p.blind[:], b)
	case hns.ItemNonce:
		copy(p.nonce[:], b)
	case hns.ItemBlockHash:
		copy(p.blockHash[:], b)
	case hns.ItemAddrVersion:
		if b[0] > 31 {
			return hns.NewError(hns.ErrEncoding, hns.CodeInvalidItem,
				fmt.Sprintf("TRANSFER address version %d", b[0]))
		}
		p.addrVersion = b[0]
	case hns.ItemAddrHash:
		p.addrHash = append([]byte(nil), b...)
	case hns.ItemFlags:
		p.flags = b[0]
	case hns.ItemClaimed:
		p.claimed = binary.LittleEndian.Uint32(b)
	case hns.ItemRenewals:
		p.renewals = binary.LittleEndian.Uint32(b)
	default:
		return hns.NewError(hns.ErrState, hns.CodeParserState,
			fmt.Sprintf("unexpected %s item", kind))
	}
	return nil
}

// checkName validates a plaintext name and binds it to the name hash item.
func (p *covenantParser) checkName(name []byte) error {
	if err := hns.ValidateName(name); err != nil {
		return err
	}
	if crypto.NameHash(name) != p.nameHash {
		return hns.NewError(hns.ErrIntegrity, hns.CodeNameHashMismatch,
			fmt.Sprintf("%s name %q does not match its name hash", p.typ, name))
	}
	return nil
}

// readName reads the client-supplied plaintext name that follows a
// covenant identifying its name only by hash. The bytes are not part of
// the transaction and are not committed.
func (p *covenantParser) readName(c *wire.Cursor) error {
	rest := c.Rest()
	if len(rest) < 1 {
		return wire.ErrShortRead
	}
	n := int(rest[0])
	if n < hns.MinNameSize || n > hns.MaxNameSize {
		return hns.NewError(hns.ErrEncoding, hns.CodeInvalidName,
			fmt.Sprintf("%s name of %d bytes", p.typ, n))
	}
	if len(rest) < 1+n {
		return wire.ErrShortRead
	}
	name := rest[1 : 1+n]
	if err := p.checkName(name); err != nil {
		return err
	}
	p.name = string(name)
	c.ReadBytes(1 + n)
	return nil
}

// build returns the typed covenant.
func (p *covenantParser) build(typ hns.CovenantType) hns.Covenant {
	switch typ {
	case hns.CovenantNone:
		return hns.NoneCovenant{}
	case hns.CovenantOpen:
		return hns.OpenCovenant{NameHash: p.nameHash, Height: p.height, Name: p.name}
	case hns.CovenantBid:
		return hns.BidCovenant{NameHash: p.nameHash, Height: p.height, Name: p.name, Blind: p.blind}
	case hns.CovenantReveal:
		return hns.RevealCovenant{NameHash: p.nameHash, Height: p.height, Nonce: p.nonce, Name: p.name}
	case hns.CovenantRedeem:
		return hns.RedeemCovenant{NameHash: p.nameHash, Height: p.height, Name: p.name}
	case hns.CovenantRegister:
		return hns.RegisterCovenant{NameHash: p.nameHash, Height: p.height,
			ResourceSize: p.resourceSize, BlockHash: p.blockHash, Name: p.name}
	case hns.CovenantUpdate:
		return hns.UpdateCovenant{NameHash: p.nameHash, Height: p.height,
			ResourceSize: p.resourceSize, Name: p.name}
	case hns.CovenantRenew:
		return hns.RenewCovenant{NameHash: p.nameHash, Height: p.height, BlockHash: p.blockHash, Name: p.name}
	case hns.CovenantTransfer:
		return hns.TransferCovenant{NameHash: p.nameHash, Height: p.height,
			Destination: hns.Address{Version: p.addrVersion, Hash: p.addrHash}, Name: p.name}
	case hns.CovenantFinalize:
		return hns.FinalizeCovenant{NameHash: p.nameHash, Height: p.height, Name: p.name,
			Flags: p.flags, Claimed: p.claimed, Renewals: p.renewals, BlockHash: p.blockHash}
	case hns.CovenantRevoke:
		return hns.RevokeCovenant{NameHash: p.nameHash, Height: p.height, Name: p.name}
	default:
		return nil
	}
}
