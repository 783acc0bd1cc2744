package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// loadOrCreateKey reads a 32-byte identity key from path, generating and
// persisting a fresh random one if the file does not exist yet. This
// module has no net-crypto key-exchange layer of its own (out of scope,
// see DESIGN.md), so the "public key" here is just a stable opaque
// identifier for the local transport to route connections by.
func loadOrCreateKey(path string) ([32]byte, error) {
	var key [32]byte
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != 32 {
			return key, fmt.Errorf("identity key file %s is %d bytes, want 32", path, len(b))
		}
		copy(key[:], b)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return key, fmt.Errorf("reading identity key %s: %w", path, err)
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generating identity key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return key, fmt.Errorf("creating identity key directory: %w", err)
	}
	if err := os.WriteFile(path, key[:], 0o600); err != nil {
		return key, fmt.Errorf("writing identity key %s: %w", path, err)
	}
	return key, nil
}
