package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/engine"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

func loadKeychain(net *hns.Network) (engine.Keychain, error) {
	if opts.WIF != "" {
		key, err := crypto.ParsePrivateKeyWIF(opts.WIF)
		if err != nil {
			return nil, fmt.Errorf("wif: %w", err)
		}
		path, err := hns.ParsePath(opts.WIFPath)
		if err != nil {
			return nil, err
		}
		keys := crypto.NewStaticKeychain()
		keys.Add(path, key)
		return keys, nil
	}

	seed, err := readSeed()
	if err != nil {
		return nil, err
	}
	defer clear(seed)
	return crypto.NewHDKeychain(seed, net)
}

func readSeed() ([]byte, error) {
	var raw []byte
	if opts.SeedFile != "" {
		b, err := os.ReadFile(opts.SeedFile)
		if err != nil {
			return nil, err
		}
		raw = b
	} else {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, fmt.Errorf("no seed: pass --seed-file or --wif, or run from a terminal")
		}
		fmt.Fprint(os.Stderr, "Seed (hex): ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	defer clear(raw)

	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return seed, nil
}
