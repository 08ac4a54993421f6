package hns

import (
	"fmt"
	"strings"
)

// SighashType selects the parts of a transaction a signature commits to.
// It travels and is hashed as a u32; only the low byte is meaningful.
type SighashType uint32

const (
	SighashAll           SighashType = 1
	SighashNone          SighashType = 2
	SighashSingle        SighashType = 3
	SighashSingleReverse SighashType = 4

	SighashNoInput      SighashType = 0x40
	SighashAnyoneCanPay SighashType = 0x80

	sighashBaseMask = 0x1f
	sighashFlagMask = SighashNoInput | SighashAnyoneCanPay
)

// Base returns the base type with the modifier bits cleared.
func (t SighashType) Base() SighashType {
	return t & sighashBaseMask
}

// AnyoneCanPay reports whether the ANYONECANPAY modifier is set.
func (t SighashType) AnyoneCanPay() bool {
	return t&SighashAnyoneCanPay != 0
}

// NoInput reports whether the NOINPUT modifier is set.
func (t SighashType) NoInput() bool {
	return t&SighashNoInput != 0
}

// CommitsSingleOutput reports whether the signature commits to exactly one
// output.
func (t SighashType) CommitsSingleOutput() bool {
	b := t.Base()
	return b == SighashSingle || b == SighashSingleReverse
}

// Validate rejects base types outside ALL, NONE, SINGLE and SINGLEREVERSE
// and any modifier bits other than NOINPUT and ANYONECANPAY.
func (t SighashType) Validate() error {
	if t&^(sighashBaseMask|sighashFlagMask) != 0 {
		return NewError(ErrPolicy, CodeUnsupportedSighash,
			fmt.Sprintf("sighash type 0x%08x has unsupported modifier bits", uint32(t)))
	}
	switch t.Base() {
	case SighashAll, SighashNone, SighashSingle, SighashSingleReverse:
		return nil
	default:
		return NewError(ErrPolicy, CodeUnsupportedSighash,
			fmt.Sprintf("unsupported sighash base type %d", uint32(t.Base())))
	}
}

func (t SighashType) String() string {
	var s string
	switch t.Base() {
	case SighashAll:
		s = "ALL"
	case SighashNone:
		s = "NONE"
	case SighashSingle:
		s = "SINGLE"
	case SighashSingleReverse:
		s = "SINGLEREVERSE"
	default:
		s = fmt.Sprintf("0x%02x", uint32(t.Base()))
	}
	if t.NoInput() {
		s += "|NOINPUT"
	}
	if t.AnyoneCanPay() {
		s += "|ANYONECANPAY"
	}
	return s
}

// ParseSighashType parses the form produced by String, such as
// "SINGLE|ANYONECANPAY". Names are case-insensitive.
func ParseSighashType(s string) (SighashType, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(s)), "|")
	var t SighashType
	switch parts[0] {
	case "ALL":
		t = SighashAll
	case "NONE":
		t = SighashNone
	case "SINGLE":
		t = SighashSingle
	case "SINGLEREVERSE":
		t = SighashSingleReverse
	default:
		return 0, fmt.Errorf("unknown sighash type %q", parts[0])
	}
	for _, flag := range parts[1:] {
		switch flag {
		case "NOINPUT":
			t |= SighashNoInput
		case "ANYONECANPAY", "ACP":
			t |= SighashAnyoneCanPay
		default:
			return 0, fmt.Errorf("unknown sighash flag %q", flag)
		}
	}
	return t, nil
}
