// Package apdu frames the signer's request/response messages and drives
// the signing protocol from the host side.
//
// A command is
//
//	CLA | INS | P1 | P2 | Lc | data[Lc]
//
// and a response is data followed by a two-byte status word. Payloads longer
// than MaxDataSize are split across several commands; the first carries the
// begin flag in P1 and the rest are continuations.
package apdu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/hns"
)

// Class is the CLA byte of every command.
const Class = 0xe0

// MaxDataSize is the largest payload of a single command.
const MaxDataSize = 255

const headerSize = 5

// Instruction selects the operation.
type Instruction byte

const (
	InsGetVersion   Instruction = 0x02
	InsGetPublicKey Instruction = 0x04
	InsGetSignature Instruction = 0x06
)

func (i Instruction) String() string {
	switch i {
	case InsGetVersion:
		return "GET_VERSION"
	case InsGetPublicKey:
		return "GET_PUBLIC_KEY"
	case InsGetSignature:
		return "GET_SIGNATURE"
	default:
		return fmt.Sprintf("INS(0x%02x)", byte(i))
	}
}

// P1 and P2 values of InsGetSignature.
const (
	P1Continue = 0x00
	P1Begin    = 0x01
	P1Confirm  = 0x02

	P2Parse = 0x00
	P2Sign  = 0x01
)

// P1 and P2 values of InsGetPublicKey.
const (
	P1PubKeyConfirm     = 0x01
	P1PubKeyNetworkMask = 0x06

	P2PubKeyExtended = 0x01
	P2PubKeyAddress  = 0x02
)

// PubKeyNetwork extracts the network selector from a public key P1.
func PubKeyNetwork(p1 byte) uint8 {
	return (p1 & P1PubKeyNetworkMask) >> 1
}

// Command is a single request message.
type Command struct {
	CLA  byte
	INS  Instruction
	P1   byte
	P2   byte
	Data []byte
}

// NewCommand returns a command with the signer's class byte.
func NewCommand(ins Instruction, p1, p2 byte, data []byte) Command {
	return Command{CLA: Class, INS: ins, P1: p1, P2: p2, Data: data}
}

// Encode serializes the command.
func (c Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxDataSize {
		return nil, fmt.Errorf("apdu: data of %d bytes exceeds %d", len(c.Data), MaxDataSize)
	}
	b := make([]byte, 0, headerSize+len(c.Data))
	b = append(b, c.CLA, byte(c.INS), c.P1, c.P2, byte(len(c.Data)))
	return append(b, c.Data...), nil
}

// DecodeCommand parses a serialized command. The returned data aliases b.
func DecodeCommand(b []byte) (Command, error) {
	if len(b) < headerSize {
		return Command{}, hns.NewError(hns.ErrProtocol, hns.CodeMalformedHeader,
			fmt.Sprintf("command of %d bytes is shorter than its header", len(b)))
	}
	lc := int(b[4])
	if len(b)-headerSize != lc {
		return Command{}, hns.NewError(hns.ErrProtocol, hns.CodeIncorrectLength,
			fmt.Sprintf("Lc %d but %d data bytes", lc, len(b)-headerSize))
	}
	return Command{
		CLA:  b[0],
		INS:  Instruction(b[1]),
		P1:   b[2],
		P2:   b[3],
		Data: b[headerSize:],
	}, nil
}

// StatusWord is the two-byte trailer of a response.
type StatusWord uint16

const (
	SWOK              StatusWord = 0x9000
	SWIncorrectLength StatusWord = 0x6700
	SWUserRejected    StatusWord = 0x6985
	SWIncorrectData   StatusWord = 0x6a80
	SWIncorrectP1P2   StatusWord = 0x6b00
	SWInsNotSupported StatusWord = 0x6d00
	SWClaNotSupported StatusWord = 0x6e00
	SWParserState     StatusWord = 0x6f10
	SWPolicy          StatusWord = 0x6f11
	SWIntegrity       StatusWord = 0x6f12
	SWProtocol        StatusWord = 0x6f13
	SWUnknown         StatusWord = 0x6f00
)

var statusText = map[StatusWord]string{
	SWOK:              "ok",
	SWIncorrectLength: "incorrect length",
	SWUserRejected:    "rejected by user",
	SWIncorrectData:   "incorrect data",
	SWIncorrectP1P2:   "incorrect P1/P2",
	SWInsNotSupported: "instruction not supported",
	SWClaNotSupported: "class not supported",
	SWParserState:     "incorrect parser state",
	SWPolicy:          "refused by policy",
	SWIntegrity:       "integrity check failed",
	SWProtocol:        "protocol error",
	SWUnknown:         "unknown error",
}

func (sw StatusWord) String() string {
	if s, ok := statusText[sw]; ok {
		return fmt.Sprintf("0x%04x (%s)", uint16(sw), s)
	}
	return fmt.Sprintf("0x%04x", uint16(sw))
}

// StatusError is returned by the host when the signer replies with a status
// other than SWOK.
type StatusError struct {
	SW StatusWord
}

func (e *StatusError) Error() string {
	return "apdu: device returned " + e.SW.String()
}

// StatusFromError maps an engine error to the status word reported to the
// host.
func StatusFromError(err error) StatusWord {
	if err == nil {
		return SWOK
	}

	switch hns.CodeOf(err) {
	case hns.CodeUnsupportedClass:
		return SWClaNotSupported
	case hns.CodeUnsupportedOpcode:
		return SWInsNotSupported
	case hns.CodeInvalidParameters:
		return SWIncorrectP1P2
	case hns.CodeIncorrectLength:
		return SWIncorrectLength
	}

	kind, ok := hns.KindOf(err)
	if !ok {
		return SWUnknown
	}
	switch kind {
	case hns.ErrProtocol:
		return SWProtocol
	case hns.ErrEncoding:
		return SWIncorrectData
	case hns.ErrState:
		return SWParserState
	case hns.ErrPolicy:
		return SWPolicy
	case hns.ErrIntegrity:
		return SWIntegrity
	case hns.ErrUserRejected:
		return SWUserRejected
	default:
		return SWUnknown
	}
}

// Response is a reply message.
type Response struct {
	Data []byte
	SW   StatusWord
}

// NewResponse builds the response for a handler result.
func NewResponse(data []byte, err error) Response {
	if err != nil {
		return Response{SW: StatusFromError(err)}
	}
	return Response{Data: data, SW: SWOK}
}

// Encode serializes the response.
func (r Response) Encode() []byte {
	b := make([]byte, 0, len(r.Data)+2)
	b = append(b, r.Data...)
	return binary.BigEndian.AppendUint16(b, uint16(r.SW))
}

// DecodeResponse parses a serialized response.
func DecodeResponse(b []byte) (Response, error) {
	if len(b) < 2 {
		return Response{}, errors.New("apdu: response lacks a status word")
	}
	n := len(b) - 2
	return Response{
		Data: b[:n],
		SW:   StatusWord(binary.BigEndian.Uint16(b[n:])),
	}, nil
}

// Err returns a *StatusError for a failed response.
func (r Response) Err() error {
	if r.SW == SWOK {
		return nil
	}
	return &StatusError{SW: r.SW}
}
