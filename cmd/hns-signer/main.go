// hns-signer drives the Handshake signing engine from a terminal.
//
// The engine runs in-process behind the same message protocol a hardware
// signer speaks, with a software keychain and terminal prompts standing in
// for the device.
//
// Example usage:
//
//	# Show the address at a path
//	hns-signer --seed-file seed.hex address --path "m/44'/5353'/0'/0/0"
//
//	# Parse a transaction and print its txid and fee
//	hns-signer --seed-file seed.hex txid --tx 00000000... --value 1000000
//
//	# Sign every input
//	hns-signer --seed-file seed.hex sign --tx 00000000... --value 1000000 \
//	    --path "m/44'/5353'/0'/0/0" --change "1:m/44'/5353'/0'/1/0"
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/suffix-labs/hns-signer/pkg/apdu"
	"github.com/suffix-labs/hns-signer/pkg/engine"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

type globalOptions struct {
	Network  string `long:"network" default:"main" choice:"main" choice:"testnet" choice:"regtest" choice:"simnet" description:"Network whose prefixes are shown"`
	LogLevel string `long:"loglevel" default:"warn" description:"Log level (debug, info, warn, error)"`
	SeedFile string `long:"seed-file" description:"File holding the hex wallet seed; prompted for when omitted"`
	WIF      string `long:"wif" description:"Single WIF private key, used instead of a seed"`
	WIFPath  string `long:"wif-path" default:"m/44'/5353'/0'/0/0" description:"Path the --wif key answers for"`
	Yes      bool   `short:"y" long:"yes" description:"Approve every prompt without asking"`
	Debug    bool   `long:"debug" description:"Dump decoded requests"`
}

var opts globalOptions

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("version", "Show the signer version", "", &versionCommand{})
	parser.AddCommand("address", "Show a public key and address", "", &addressCommand{})
	parser.AddCommand("txid", "Parse a transaction and show its txid and fee", "", &txidCommand{})
	parser.AddCommand("sign", "Parse a transaction and sign its inputs", "", &signCommand{})

	// flags.Default prints every error Parse returns.
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	if lvl > zapcore.DebugLevel {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// signer is the in-process device and the client talking to it.
type signer struct {
	client  *apdu.Client
	network *hns.Network
	log     *zap.Logger
}

// openSigner builds the signer. inputValues selects whether parse streams
// carry input values.
func openSigner(inputValues bool) (*signer, error) {
	log, err := newLogger(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	net, err := hns.NetworkByName(opts.Network)
	if err != nil {
		return nil, err
	}
	keys, err := loadKeychain(net)
	if err != nil {
		return nil, err
	}

	cfg := engine.DefaultConfig()
	cfg.Network = net
	cfg.InputValues = inputValues
	session, err := engine.NewSession(keys,
		engine.WithConfig(cfg),
		engine.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var confirm engine.Confirmer = engine.AcceptAll
	if !opts.Yes {
		confirm = newTerminalConfirmer(os.Stdin, os.Stdout)
	}
	device := engine.NewDevice(session, confirm)
	return &signer{
		client:  apdu.NewClient(device, log.Named("client")),
		network: net,
		log:     log,
	}, nil
}

// networkID returns the public key request selector of net.
func networkID(net *hns.Network) uint8 {
	for id := uint8(0); ; id++ {
		n, err := hns.NetworkByID(id)
		if err != nil {
			return 0
		}
		if n == net {
			return id
		}
	}
}
