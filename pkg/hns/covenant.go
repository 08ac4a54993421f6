package hns

import (
	"encoding/binary"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// CovenantType is the tag of an output's covenant.
type CovenantType uint8

const (
	CovenantNone     CovenantType = 0
	CovenantClaim    CovenantType = 1
	CovenantOpen     CovenantType = 2
	CovenantBid      CovenantType = 3
	CovenantReveal   CovenantType = 4
	CovenantRedeem   CovenantType = 5
	CovenantRegister CovenantType = 6
	CovenantUpdate   CovenantType = 7
	CovenantRenew    CovenantType = 8
	CovenantTransfer CovenantType = 9
	CovenantFinalize CovenantType = 10
	CovenantRevoke   CovenantType = 11
)

var covenantNames = map[CovenantType]string{
	CovenantNone:     "NONE",
	CovenantClaim:    "CLAIM",
	CovenantOpen:     "OPEN",
	CovenantBid:      "BID",
	CovenantReveal:   "REVEAL",
	CovenantRedeem:   "REDEEM",
	CovenantRegister: "REGISTER",
	CovenantUpdate:   "UPDATE",
	CovenantRenew:    "RENEW",
	CovenantTransfer: "TRANSFER",
	CovenantFinalize: "FINALIZE",
	CovenantRevoke:   "REVOKE",
}

func (t CovenantType) String() string {
	if s, ok := covenantNames[t]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// ItemKind describes one covenant item.
type ItemKind uint8

const (
	ItemNameHash    ItemKind = iota // 32-byte SHA3-256 of the name
	ItemHeight                      // u32le block height
	ItemName                        // plaintext name, 1-63 bytes
	ItemBlind                       // 32-byte bid blind
	ItemNonce                       // 32-byte reveal nonce
	ItemBlockHash                   // 32-byte block hash
	ItemResource                    // opaque resource blob, streamed
	ItemAddrVersion                 // u8 address version
	ItemAddrHash                    // address hash, 2-40 bytes
	ItemFlags                       // u8 finalize flags
	ItemClaimed                     // u32le claim height
	ItemRenewals                    // u32le renewal count
)

// MaxResourceSize is the largest resource hsd accepts.
const MaxResourceSize = 512

// FixedSize returns the exact encoded size of fixed-width items, or -1.
func (k ItemKind) FixedSize() int {
	switch k {
	case ItemNameHash, ItemBlind, ItemNonce, ItemBlockHash:
		return HashSize
	case ItemHeight, ItemClaimed, ItemRenewals:
		return 4
	case ItemAddrVersion, ItemFlags:
		return 1
	default:
		return -1
	}
}

func (k ItemKind) String() string {
	switch k {
	case ItemNameHash:
		return "name hash"
	case ItemHeight:
		return "height"
	case ItemName:
		return "name"
	case ItemBlind:
		return "blind"
	case ItemNonce:
		return "nonce"
	case ItemBlockHash:
		return "block hash"
	case ItemResource:
		return "resource"
	case ItemAddrVersion:
		return "address version"
	case ItemAddrHash:
		return "address hash"
	case ItemFlags:
		return "flags"
	case ItemClaimed:
		return "claimed"
	case ItemRenewals:
		return "renewals"
	default:
		return fmt.Sprintf("item(%d)", uint8(k))
	}
}

var covenantLayouts = map[CovenantType][]ItemKind{
	CovenantNone:     {},
	CovenantOpen:     {ItemNameHash, ItemHeight, ItemName},
	CovenantBid:      {ItemNameHash, ItemHeight, ItemName, ItemBlind},
	CovenantReveal:   {ItemNameHash, ItemHeight, ItemNonce},
	CovenantRedeem:   {ItemNameHash, ItemHeight},
	CovenantRegister: {ItemNameHash, ItemHeight, ItemResource, ItemBlockHash},
	CovenantUpdate:   {ItemNameHash, ItemHeight, ItemResource},
	CovenantRenew:    {ItemNameHash, ItemHeight, ItemBlockHash},
	CovenantTransfer: {ItemNameHash, ItemHeight, ItemAddrVersion, ItemAddrHash},
	CovenantFinalize: {ItemNameHash, ItemHeight, ItemName, ItemFlags, ItemClaimed, ItemRenewals, ItemBlockHash},
	CovenantRevoke:   {ItemNameHash, ItemHeight},
}

// Layout returns the ordered item list of a supported covenant type.
func (t CovenantType) Layout() ([]ItemKind, bool) {
	l, ok := covenantLayouts[t]
	return l, ok
}

// NeedsName reports whether the covenant refers to a name only by its hash,
// so that the client must resupply the plaintext for display.
func (t CovenantType) NeedsName() bool {
	switch t {
	case CovenantReveal, CovenantRedeem, CovenantRegister, CovenantUpdate,
		CovenantRenew, CovenantTransfer, CovenantRevoke:
		return true
	default:
		return false
	}
}

// Covenant is the parsed, typed view of an output's covenant. Exactly one of
// the concrete types below implements it per covenant type.
type Covenant interface {
	Type() CovenantType
	covenant()
}

// NameCovenant is implemented by every covenant that concerns a name.
type NameCovenant interface {
	Covenant
	NameInfo() (nameHash [HashSize]byte, height uint32, name string)
}

type (
	NoneCovenant struct{}

	OpenCovenant struct {
		NameHash [HashSize]byte
		Height   uint32
		Name     string
	}

	BidCovenant struct {
		NameHash [HashSize]byte
		Height   uint32
		Name     string
		Blind    [HashSize]byte
	}

	RevealCovenant struct {
		NameHash [HashSize]byte
		Height   uint32
		Nonce    [HashSize]byte
		Name     string
	}

	RedeemCovenant struct {
		NameHash [HashSize]byte
		Height   uint32
		Name     string
	}

	RegisterCovenant struct {
		NameHash     [HashSize]byte
		Height       uint32
		ResourceSize int
		BlockHash    [HashSize]byte
		Name         string
	}

	UpdateCovenant struct {
		NameHash     [HashSize]byte
		Height       uint32
		ResourceSize int
		Name         string
	}

	RenewCovenant struct {
		NameHash  [HashSize]byte
		Height    uint32
		BlockHash [HashSize]byte
		Name      string
	}

	TransferCovenant struct {
		NameHash    [HashSize]byte
		Height      uint32
		Destination Address
		Name        string
	}

	FinalizeCovenant struct {
		NameHash  [HashSize]byte
		Height    uint32
		Name      string
		Flags     uint8
		Claimed   uint32
		Renewals  uint32
		BlockHash [HashSize]byte
	}

	RevokeCovenant struct {
		NameHash [HashSize]byte
		Height   uint32
		Name     string
	}
)

func (NoneCovenant) Type() CovenantType     { return CovenantNone }
func (OpenCovenant) Type() CovenantType     { return CovenantOpen }
func (BidCovenant) Type() CovenantType      { return CovenantBid }
func (RevealCovenant) Type() CovenantType   { return CovenantReveal }
func (RedeemCovenant) Type() CovenantType   { return CovenantRedeem }
func (RegisterCovenant) Type() CovenantType { return CovenantRegister }
func (UpdateCovenant) Type() CovenantType   { return CovenantUpdate }
func (RenewCovenant) Type() CovenantType    { return CovenantRenew }
func (TransferCovenant) Type() CovenantType { return CovenantTransfer }
func (FinalizeCovenant) Type() CovenantType { return CovenantFinalize }
func (RevokeCovenant) Type() CovenantType   { return CovenantRevoke }

func (NoneCovenant) covenant()     {}
func (OpenCovenant) covenant()     {}
func (BidCovenant) covenant()      {}
func (RevealCovenant) covenant()   {}
func (RedeemCovenant) covenant()   {}
func (RegisterCovenant) covenant() {}
func (UpdateCovenant) covenant()   {}
func (RenewCovenant) covenant()    {}
func (TransferCovenant) covenant() {}
func (FinalizeCovenant) covenant() {}
func (RevokeCovenant) covenant()   {}

func (c OpenCovenant) NameInfo() ([HashSize]byte, uint32, string)     { return c.NameHash, c.Height, c.Name }
func (c BidCovenant) NameInfo() ([HashSize]byte, uint32, string)      { return c.NameHash, c.Height, c.Name }
func (c RevealCovenant) NameInfo() ([HashSize]byte, uint32, string)   { return c.NameHash, c.Height, c.Name }
func (c RedeemCovenant) NameInfo() ([HashSize]byte, uint32, string)   { return c.NameHash, c.Height, c.Name }
func (c RegisterCovenant) NameInfo() ([HashSize]byte, uint32, string) { return c.NameHash, c.Height, c.Name }
func (c UpdateCovenant) NameInfo() ([HashSize]byte, uint32, string)   { return c.NameHash, c.Height, c.Name }
func (c RenewCovenant) NameInfo() ([HashSize]byte, uint32, string)    { return c.NameHash, c.Height, c.Name }
func (c TransferCovenant) NameInfo() ([HashSize]byte, uint32, string) { return c.NameHash, c.Height, c.Name }
func (c FinalizeCovenant) NameInfo() ([HashSize]byte, uint32, string) { return c.NameHash, c.Height, c.Name }
func (c RevokeCovenant) NameInfo() ([HashSize]byte, uint32, string)   { return c.NameHash, c.Height, c.Name }

// RawCovenant is the serialized form of a covenant: a type and its items.
type RawCovenant struct {
	Type  CovenantType
	Items [][]byte
}

// Size returns the serialized size.
func (c RawCovenant) Size() int {
	n := 1 + wire.VarintSize(uint64(len(c.Items)))
	for _, item := range c.Items {
		n += wire.VarintSize(uint64(len(item))) + len(item)
	}
	return n
}

// AppendTo appends the serialized covenant to dst.
func (c RawCovenant) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(c.Type))
	dst = wire.AppendVarint(dst, uint64(len(c.Items)))
	for _, item := range c.Items {
		dst = AppendVarBytes(dst, item)
	}
	return dst
}

func u32Item(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func nameHashItem(name string) []byte {
	h := crypto.NameHash([]byte(name))
	return h[:]
}

// NewOpenCovenant returns the covenant opening an auction for name.
func NewOpenCovenant(name string) RawCovenant {
	return RawCovenant{Type: CovenantOpen, Items: [][]byte{
		nameHashItem(name), u32Item(0), []byte(name),
	}}
}

// NewBidCovenant returns a bid covenant.
func NewBidCovenant(name string, height uint32, blind [HashSize]byte) RawCovenant {
	return RawCovenant{Type: CovenantBid, Items: [][]byte{
		nameHashItem(name), u32Item(height), []byte(name), blind[:],
	}}
}

// NewRevealCovenant returns a reveal covenant.
func NewRevealCovenant(name string, height uint32, nonce [HashSize]byte) RawCovenant {
	return RawCovenant{Type: CovenantReveal, Items: [][]byte{
		nameHashItem(name), u32Item(height), nonce[:],
	}}
}

// NewRedeemCovenant returns a redeem covenant.
func NewRedeemCovenant(name string, height uint32) RawCovenant {
	return RawCovenant{Type: CovenantRedeem, Items: [][]byte{
		nameHashItem(name), u32Item(height),
	}}
}

// NewRegisterCovenant returns a register covenant.
func NewRegisterCovenant(name string, height uint32, resource []byte, blockHash [HashSize]byte) RawCovenant {
	return RawCovenant{Type: CovenantRegister, Items: [][]byte{
		nameHashItem(name), u32Item(height), resource, blockHash[:],
	}}
}

// NewUpdateCovenant returns an update covenant.
func NewUpdateCovenant(name string, height uint32, resource []byte) RawCovenant {
	return RawCovenant{Type: CovenantUpdate, Items: [][]byte{
		nameHashItem(name), u32Item(height), resource,
	}}
}

// NewRenewCovenant returns a renew covenant.
func NewRenewCovenant(name string, height uint32, blockHash [HashSize]byte) RawCovenant {
	return RawCovenant{Type: CovenantRenew, Items: [][]byte{
		nameHashItem(name), u32Item(height), blockHash[:],
	}}
}

// NewTransferCovenant returns a transfer covenant.
func NewTransferCovenant(name string, height uint32, to Address) RawCovenant {
	return RawCovenant{Type: CovenantTransfer, Items: [][]byte{
		nameHashItem(name), u32Item(height), {to.Version}, to.Hash,
	}}
}

// NewFinalizeCovenant returns a finalize covenant.
func NewFinalizeCovenant(name string, height uint32, flags uint8, claimed, renewals uint32, blockHash [HashSize]byte) RawCovenant {
	return RawCovenant{Type: CovenantFinalize, Items: [][]byte{
		nameHashItem(name), u32Item(height), []byte(name), {flags},
		u32Item(claimed), u32Item(renewals), blockHash[:],
	}}
}

// NewRevokeCovenant returns a revoke covenant.
func NewRevokeCovenant(name string, height uint32) RawCovenant {
	return RawCovenant{Type: CovenantRevoke, Items: [][]byte{
		nameHashItem(name), u32Item(height),
	}}
}
