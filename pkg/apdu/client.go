package apdu

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

// Transport exchanges a single command with the signer.
type Transport interface {
	Exchange(cmd Command) (Response, error)
}

// ErrIncomplete is returned when the signer still expects data after the
// whole stream was sent.
var ErrIncomplete = errors.New("apdu: signer expects more data")

// Client drives the signing protocol over a Transport.
type Client struct {
	transport Transport
	log       *zap.Logger
}

// NewClient returns a client. A nil logger disables logging.
func NewClient(t Transport, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{transport: t, log: log}
}

func (c *Client) exchange(cmd Command) ([]byte, error) {
	c.log.Debug("apdu exchange",
		zap.Stringer("ins", cmd.INS),
		zap.Uint8("p1", cmd.P1),
		zap.Uint8("p2", cmd.P2),
		zap.Int("lc", len(cmd.Data)))

	resp, err := c.transport.Exchange(cmd)
	if err != nil {
		return nil, fmt.Errorf("apdu: exchange %s: %w", cmd.INS, err)
	}
	if err := resp.Err(); err != nil {
		c.log.Debug("apdu status", zap.Stringer("sw", resp.SW))
		return nil, err
	}
	return resp.Data, nil
}

// stream sends payload in MaxDataSize chunks. Every reply but the last must
// be empty.
func (c *Client) stream(ins Instruction, flags, p2 byte, payload []byte) ([]byte, error) {
	p1 := byte(P1Begin) | flags
	for {
		n := len(payload)
		if n > MaxDataSize {
			n = MaxDataSize
		}
		reply, err := c.exchange(NewCommand(ins, p1, p2, payload[:n]))
		if err != nil {
			return nil, err
		}
		payload = payload[n:]

		if len(payload) == 0 {
			if len(reply) == 0 {
				return nil, ErrIncomplete
			}
			return reply, nil
		}
		if len(reply) != 0 {
			return nil, fmt.Errorf("apdu: unexpected %d-byte reply mid-stream", len(reply))
		}
		p1 = P1Continue
	}
}

// Version returns the signer's major, minor and patch version.
func (c *Client) Version() ([3]byte, error) {
	var v [3]byte
	reply, err := c.exchange(NewCommand(InsGetVersion, 0, 0, nil))
	if err != nil {
		return v, err
	}
	if len(reply) != len(v) {
		return v, fmt.Errorf("apdu: version reply of %d bytes", len(reply))
	}
	copy(v[:], reply)
	return v, nil
}

// PublicKey requests the public key, and optionally the extended key data
// and address, at a path.
func (c *Client) PublicKey(req *PublicKeyRequest) (*PublicKeyReply, error) {
	if len(req.Path) > hns.MaxPathDepth {
		return nil, fmt.Errorf("apdu: path depth %d exceeds %d", len(req.Path), hns.MaxPathDepth)
	}
	p1, p2 := req.Params()
	reply, err := c.exchange(NewCommand(InsGetPublicKey, p1, p2, req.Path.AppendTo(nil)))
	if err != nil {
		return nil, err
	}
	return DecodePublicKeyReply(reply)
}

// ParseResult is the signer's summary of a parsed transaction.
type ParseResult struct {
	TxID [hns.HashSize]byte
	Fee  uint64
}

// TxIDString returns the txid in hex.
func (r *ParseResult) TxIDString() string {
	return hex.EncodeToString(r.TxID[:])
}

// Parse streams a transaction to the signer, which commits to it and asks
// the user to confirm every output.
func (c *Client) Parse(req *ParseRequest) (*ParseResult, error) {
	payload, err := EncodeParseStream(req)
	if err != nil {
		return nil, err
	}
	reply, err := c.stream(InsGetSignature, 0, P2Parse, payload)
	if err != nil {
		return nil, err
	}
	if len(reply) != hns.HashSize+8 {
		return nil, fmt.Errorf("apdu: parse reply of %d bytes", len(reply))
	}

	res := &ParseResult{Fee: binary.LittleEndian.Uint64(reply[hns.HashSize:])}
	copy(res.TxID[:], reply)
	return res, nil
}

// SignInput requests a signature for one input of the parsed transaction.
// The result is the 64-byte signature followed by the sighash type byte.
func (c *Client) SignInput(req *SignRequest) ([]byte, error) {
	payload, err := EncodeSignStream(req)
	if err != nil {
		return nil, err
	}
	var flags byte
	if req.Confirm {
		flags = P1Confirm
	}
	reply, err := c.stream(InsGetSignature, flags, P2Sign, payload)
	if err != nil {
		return nil, err
	}
	if len(reply) != crypto.SignatureSize+1 {
		return nil, fmt.Errorf("apdu: signature reply of %d bytes", len(reply))
	}
	return reply, nil
}
