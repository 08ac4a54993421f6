package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

// Config holds the policy bounds of a Session. The bounds are checked while
// parsing; none of them sizes a buffer except CacheSize.
type Config struct {
	// Network selects the address prefix used in prompts.
	Network *hns.Network

	MaxInputs          int
	MaxOutputs         int
	MaxAddressHashSize int
	MaxResourceSize    int

	// CacheSize bounds the bytes carried between messages: the tail of a
	// partially received field, or the remainder of a message suspended
	// for confirmation.
	CacheSize int

	// InputValues reports whether the parse stream carries the value of
	// every input. Without values no fee is computed.
	InputValues bool

	// ConfirmOutputs asks the user to confirm every output and the fee.
	ConfirmOutputs bool
}

// maxCount keeps declared counts within a single-byte varint, so that the
// txid commits to the same bytes the protocol's u8 counts carry.
const maxCount = 0xfc

// maxFieldTail is the largest field the parser buffers whole: a varint
// length prefix and a 63-byte name, or a resupplied name with its length.
const maxFieldTail = 64

// DefaultConfig returns the configuration of a mainnet signer.
func DefaultConfig() Config {
	return Config{
		Network:            hns.MainNet,
		MaxInputs:          64,
		MaxOutputs:         64,
		MaxAddressHashSize: 32,
		MaxResourceSize:    hns.MaxResourceSize,
		CacheSize:          apdu.MaxDataSize + maxFieldTail,
		InputValues:        true,
		ConfirmOutputs:     true,
	}
}

// Validate checks that the bounds are usable.
func (c *Config) Validate() error {
	if c.Network == nil {
		return errors.New("network is required")
	}
	if c.MaxInputs < 1 || c.MaxInputs > maxCount {
		return fmt.Errorf("max inputs %d outside 1-%d", c.MaxInputs, maxCount)
	}
	if c.MaxOutputs < 1 || c.MaxOutputs > maxCount {
		return fmt.Errorf("max outputs %d outside 1-%d", c.MaxOutputs, maxCount)
	}
	if c.MaxAddressHashSize < hns.MinAddressHashSize || c.MaxAddressHashSize > hns.MaxAddressHashSize {
		return fmt.Errorf("max address hash size %d outside %d-%d",
			c.MaxAddressHashSize, hns.MinAddressHashSize, hns.MaxAddressHashSize)
	}
	if c.MaxResourceSize < 0 || c.MaxResourceSize > hns.MaxResourceSize {
		return fmt.Errorf("max resource size %d outside 0-%d", c.MaxResourceSize, hns.MaxResourceSize)
	}
	if c.CacheSize < apdu.MaxDataSize+maxFieldTail {
		return fmt.Errorf("cache size %d below %d", c.CacheSize, apdu.MaxDataSize+maxFieldTail)
	}
	return nil
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithNetwork sets the network used for prompts.
func WithNetwork(net *hns.Network) Option {
	return func(s *Session) {
		s.cfg.Network = net
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithVersion sets the version reported to the host.
func WithVersion(major, minor, patch uint8) Option {
	return func(s *Session) {
		s.version = [3]byte{major, minor, patch}
	}
}
