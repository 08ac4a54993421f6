package engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
	"github.com/suffix-labs/hns-signer/pkg/wire"
)

// Keychain holds the device keys. It returns public keys and signatures,
// never private key material.
type Keychain interface {
	PublicKey(path []uint32) (pubKey, chainCode []byte, err error)
	Sign(path []uint32, digest [crypto.DigestSize]byte) ([]byte, error)
}

// Reply is the outcome of a message. Either Prompt is set and the session
// waits for Resolve, or Data holds the reply payload (possibly empty).
type Reply struct {
	Data   []byte
	Prompt *Prompt
}

type pendingAction uint8

const (
	pendingNone      pendingAction = iota
	pendingParse                   // continue the parse stream
	pendingSignature               // release the cached signature
	pendingPublicKey               // release the cached public key reply
)

// Session is the signer's state between messages: the transaction in
// flight, the signature request in flight, the inter-message cache and the
// prompts awaiting the user. A Session is not safe for concurrent use.
type Session struct {
	id      uuid.UUID
	cfg     Config
	log     *zap.Logger
	version [3]byte
	keys    Keychain

	cache *Cache
	tx    *TransactionContext
	sign  *SigningContext

	prompts []Prompt
	pending pendingAction
}

// NewSession returns an idle session signing with keys.
func NewSession(keys Keychain, opts ...Option) (*Session, error) {
	if keys == nil {
		return nil, fmt.Errorf("engine: keychain is required")
	}
	s := &Session{
		id:      uuid.New(),
		cfg:     DefaultConfig(),
		log:     zap.NewNop(),
		version: [3]byte{1, 0, 0},
		keys:    keys,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	s.cache = NewCache(s.cfg.CacheSize)
	s.log = s.log.With(zap.Stringer("session", s.id))
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Transaction returns the transaction in flight, or nil.
func (s *Session) Transaction() *TransactionContext {
	return s.tx
}

// Pending reports whether a prompt awaits Resolve.
func (s *Session) Pending() bool {
	return s.pending != pendingNone
}

// Reset drops every in-flight state and clears the cache.
func (s *Session) Reset() {
	s.tx = nil
	s.sign = nil
	s.cache.Reset()
	s.prompts = nil
	s.pending = pendingNone
}

// fail logs err, returns the session to idle and reports err.
func (s *Session) fail(err error) (Reply, error) {
	kind, _ := hns.KindOf(err)
	s.log.Warn("request failed, session reset",
		zap.String("kind", string(kind)),
		zap.String("code", hns.CodeOf(err)),
		zap.Error(err))
	s.Reset()
	return Reply{}, err
}

func (s *Session) prompt(action pendingAction, prompts ...Prompt) Reply {
	s.prompts = prompts
	s.pending = action
	return Reply{Prompt: &s.prompts[0]}
}

// Handle processes one command message.
func (s *Session) Handle(cmd apdu.Command) (Reply, error) {
	if s.pending != pendingNone {
		return s.fail(hns.NewError(hns.ErrState, hns.CodeConfirmationPending,
			"message received while a confirmation is pending"))
	}
	if cmd.CLA != apdu.Class {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeUnsupportedClass,
			fmt.Sprintf("class 0x%02x", cmd.CLA)))
	}
	if len(cmd.Data) > apdu.MaxDataSize {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeIncorrectLength,
			fmt.Sprintf("%d bytes of data", len(cmd.Data))))
	}

	switch cmd.INS {
	case apdu.InsGetVersion:
		return s.handleVersion(cmd)
	case apdu.InsGetPublicKey:
		return s.handlePublicKey(cmd)
	case apdu.InsGetSignature:
		switch cmd.P2 {
		case apdu.P2Parse:
			return s.handleParse(cmd)
		case apdu.P2Sign:
			return s.handleSign(cmd)
		}
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeInvalidParameters,
			fmt.Sprintf("P2 0x%02x", cmd.P2)))
	default:
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeUnsupportedOpcode,
			fmt.Sprintf("instruction 0x%02x", byte(cmd.INS))))
	}
}

// Resolve answers the pending prompt. Rejecting aborts whatever the prompt
// belonged to; accepting shows the next prompt or continues.
func (s *Session) Resolve(accept bool) (Reply, error) {
	if s.pending == pendingNone {
		return s.fail(hns.NewError(hns.ErrState, hns.CodeParserState, "nothing to confirm"))
	}
	if !accept {
		return s.fail(hns.NewError(hns.ErrUserRejected, hns.CodeUserRejected,
			fmt.Sprintf("user rejected %q", s.prompts[0].Header)))
	}

	s.prompts = s.prompts[1:]
	if len(s.prompts) > 0 {
		return Reply{Prompt: &s.prompts[0]}, nil
	}

	action := s.pending
	s.pending = pendingNone
	switch action {
	case pendingParse:
		if s.tx.Done() {
			return Reply{Data: s.parseResult()}, nil
		}
		s.tx.resume()
		return s.parse(wire.NewCursor(s.cache.Join(nil)))
	default:
		reply, _ := s.cache.TakeReply()
		return Reply{Data: reply}, nil
	}
}

func (s *Session) handleVersion(cmd apdu.Command) (Reply, error) {
	if cmd.P1 != 0 || cmd.P2 != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeInvalidParameters, "version takes no parameters"))
	}
	if len(cmd.Data) != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeIncorrectLength, "version takes no data"))
	}
	return Reply{Data: append([]byte(nil), s.version[:]...)}, nil
}

func (s *Session) handleParse(cmd apdu.Command) (Reply, error) {
	if cmd.P1&^apdu.P1Begin != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeInvalidParameters,
			fmt.Sprintf("parse P1 0x%02x", cmd.P1)))
	}

	if cmd.P1&apdu.P1Begin != 0 {
		s.Reset()
		c := wire.NewCursor(cmd.Data)
		tx, err := NewTransactionContext(&s.cfg, c, s.deriveAddress)
		if err != nil {
			return s.fail(err)
		}
		s.tx = tx
		s.log.Debug("parse started",
			zap.Stringer("tx", tx.ID),
			zap.Uint8("inputs", tx.InsLen),
			zap.Uint8("outputs", tx.OutsLen),
			zap.Bool("change", tx.Change != nil))
		return s.parse(c)
	}

	if s.tx == nil || s.tx.Done() {
		return s.fail(hns.NewError(hns.ErrState, hns.CodeParserState, "no transaction is being parsed"))
	}
	return s.parse(wire.NewCursor(s.cache.Join(cmd.Data)))
}

func (s *Session) parse(c *wire.Cursor) (Reply, error) {
	res, err := s.tx.Step(c)
	if err != nil {
		return s.fail(err)
	}

	switch res {
	case NeedMoreInput:
		if err := s.cache.StoreTail(c.Rest()); err != nil {
			return s.fail(err)
		}
		return Reply{}, nil

	case AwaitConfirmation:
		if err := s.cache.StoreTail(c.Rest()); err != nil {
			return s.fail(err)
		}
		out := s.tx.Output()
		s.log.Debug("output parsed",
			zap.Stringer("tx", s.tx.ID),
			zap.Int("index", out.Index),
			zap.Stringer("covenant", out.CovenantType),
			zap.Bool("change", out.Change))

		prompts := []Prompt{OutputPrompt(s.cfg.Network, out, int(s.tx.OutsLen))}
		if s.tx.Done() {
			s.logParsed()
			if s.cfg.InputValues {
				prompts = append(prompts, FeePrompt(s.tx.Fee))
			}
		}
		return s.prompt(pendingParse, prompts...), nil

	default:
		s.logParsed()
		return Reply{Data: s.parseResult()}, nil
	}
}

func (s *Session) logParsed() {
	s.log.Debug("transaction parsed",
		zap.Stringer("tx", s.tx.ID),
		zap.String("txid", hex.EncodeToString(s.tx.TxID[:])),
		zap.Uint64("fee", s.tx.Fee))
}

// parseResult is txid || fee.
func (s *Session) parseResult() []byte {
	b := make([]byte, 0, hns.HashSize+8)
	b = append(b, s.tx.TxID[:]...)
	return binary.LittleEndian.AppendUint64(b, s.tx.Fee)
}

func (s *Session) handleSign(cmd apdu.Command) (Reply, error) {
	if cmd.P1&^(apdu.P1Begin|apdu.P1Confirm) != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeInvalidParameters,
			fmt.Sprintf("sign P1 0x%02x", cmd.P1)))
	}

	if cmd.P1&apdu.P1Begin != 0 {
		s.sign = nil
		s.cache.Reset()
		c := wire.NewCursor(cmd.Data)
		sc, err := NewSigningContext(s.tx, c, cmd.P1&apdu.P1Confirm != 0)
		if err != nil {
			return s.fail(err)
		}
		s.sign = sc
		s.log.Debug("signature requested",
			zap.Stringer("tx", s.tx.ID),
			zap.Uint8("input", sc.Index),
			zap.Stringer("type", sc.Type),
			zap.Stringer("path", sc.Path))
		return s.signStep(c)
	}

	if s.sign == nil {
		return s.fail(hns.NewError(hns.ErrState, hns.CodeParserState, "no signature request in progress"))
	}
	return s.signStep(wire.NewCursor(s.cache.Join(cmd.Data)))
}

func (s *Session) signStep(c *wire.Cursor) (Reply, error) {
	res, err := s.sign.Step(s.tx, c)
	if err != nil {
		return s.fail(err)
	}
	if res == NeedMoreInput {
		if err := s.cache.StoreTail(c.Rest()); err != nil {
			return s.fail(err)
		}
		return Reply{}, nil
	}

	sc := s.sign
	s.sign = nil
	sig, err := s.keys.Sign(sc.Path, sc.Digest())
	if err != nil {
		return s.fail(hns.WrapError(hns.ErrPolicy, hns.CodeSignerFailure, "sign digest", err))
	}
	if len(sig) != crypto.SignatureSize {
		return s.fail(hns.NewError(hns.ErrPolicy, hns.CodeSignerFailure,
			fmt.Sprintf("signer returned %d bytes", len(sig))))
	}
	reply := append(sig, byte(sc.Type))

	s.log.Debug("input signed",
		zap.Stringer("tx", s.tx.ID),
		zap.Uint8("input", sc.Index),
		zap.Bool("confirm", sc.Confirm))

	if !sc.Confirm {
		return Reply{Data: reply}, nil
	}
	if err := s.cache.StoreReply(reply); err != nil {
		return s.fail(err)
	}
	return s.prompt(pendingSignature, TxIDPrompt(s.tx.TxID)), nil
}

func (s *Session) deriveAddress(path hns.Path) (hns.Address, error) {
	pub, _, err := s.keys.PublicKey(path)
	if err != nil {
		return hns.Address{}, err
	}
	return hns.Address{Version: 0, Hash: crypto.Hash160(pub)}, nil
}

func (s *Session) handlePublicKey(cmd apdu.Command) (Reply, error) {
	if cmd.P1&^(apdu.P1PubKeyConfirm|apdu.P1PubKeyNetworkMask) != 0 ||
		cmd.P2&^(apdu.P2PubKeyExtended|apdu.P2PubKeyAddress) != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeInvalidParameters,
			fmt.Sprintf("public key P1 0x%02x P2 0x%02x", cmd.P1, cmd.P2)))
	}
	if s.tx != nil || s.sign != nil {
		s.log.Debug("public key request abandons the transaction in flight")
		s.Reset()
	}
	net, err := hns.NetworkByID(apdu.PubKeyNetwork(cmd.P1))
	if err != nil {
		return s.fail(hns.WrapError(hns.ErrProtocol, hns.CodeInvalidParameters, "network", err))
	}

	c := wire.NewCursor(cmd.Data)
	path, err := hns.ReadPath(c)
	if err != nil {
		return s.fail(malformedHeader("derivation path", err))
	}
	if c.Len() != 0 {
		return s.fail(hns.NewError(hns.ErrProtocol, hns.CodeIncorrectLength,
			fmt.Sprintf("%d bytes after the derivation path", c.Len())))
	}

	pub, chainCode, err := s.keys.PublicKey(path)
	if err != nil {
		return s.fail(hns.WrapError(hns.ErrPolicy, hns.CodeSignerFailure, "derive public key", err))
	}
	reply := apdu.PublicKeyReply{PubKey: pub}

	var xpub string
	if cmd.P2&apdu.P2PubKeyExtended != 0 {
		fingerprint := make([]byte, 4)
		var child uint32
		if len(path) > 0 {
			parent, _, err := s.keys.PublicKey(path[:len(path)-1])
			if err != nil {
				return s.fail(hns.WrapError(hns.ErrPolicy, hns.CodeSignerFailure, "derive parent key", err))
			}
			fingerprint = crypto.Fingerprint(parent)
			child = path[len(path)-1]
		}
		reply.ChainCode = chainCode
		reply.ParentFingerprint = fingerprint
		xpub = crypto.EncodeExtendedPubKey(net.HDPubVersion, uint8(len(path)), fingerprint, child, chainCode, pub)
	}

	if cmd.P2&apdu.P2PubKeyAddress != 0 {
		if !path.IsAddressDepth() {
			return s.fail(hns.NewError(hns.ErrPolicy, hns.CodeInvalidPath,
				fmt.Sprintf("address path %s is not at address depth", path)))
		}
		if warning := pathWarning(path); warning != "" {
			return s.fail(hns.NewError(hns.ErrPolicy, hns.CodeInvalidPath,
				"address refused: "+warning))
		}
		addrNet, err := hns.NetworkByCoinType(path[1] &^ hns.HardenedKeyStart)
		if err != nil {
			return s.fail(hns.WrapError(hns.ErrPolicy, hns.CodeInvalidPath, "address network", err))
		}
		if reply.Address, err = crypto.PubKeyAddress(addrNet.HRP, pub); err != nil {
			return s.fail(hns.WrapError(hns.ErrEncoding, hns.CodeInvalidItem, "encode address", err))
		}
	}

	var prompts []Prompt
	if warning := pathWarning(path); warning != "" {
		prompts = append(prompts, Prompt{Kind: PromptWarning, Header: "Warning", Message: warning})
	}
	if cmd.P1&apdu.P1PubKeyConfirm != 0 || len(prompts) > 0 {
		switch {
		case reply.Address != "":
			prompts = append(prompts, Prompt{Kind: PromptPublicKey, Header: "Address", Message: reply.Address})
		case xpub != "":
			prompts = append(prompts, Prompt{Kind: PromptPublicKey, Header: "XPUB", Message: xpub})
		default:
			prompts = append(prompts, Prompt{Kind: PromptPublicKey, Header: "Public key", Message: hex.EncodeToString(pub)})
		}
	}

	encoded := reply.Encode()
	if len(prompts) == 0 {
		return Reply{Data: encoded}, nil
	}
	if err := s.cache.StoreReply(encoded); err != nil {
		return s.fail(err)
	}
	return s.prompt(pendingPublicKey, prompts...), nil
}

// pathWarning describes what is unusual about a requested path: an
// unhardened purpose, coin type or account, or a path deeper than an
// address.
func pathWarning(path hns.Path) string {
	for i := 0; i < len(path) && i < 3; i++ {
		if path[i] < hns.HardenedKeyStart {
			return fmt.Sprintf("Unhardened derivation at level %d of %s", i+1, path)
		}
	}
	if len(path) > hns.AddressDepth {
		return fmt.Sprintf("Non-standard path %s", path)
	}
	return ""
}
