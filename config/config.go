package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Identity holds the local user's self-presented defaults, written back
// into save data only on first run (later runs load these fields from the
// save file instead), per spec.md §6.4.
type Identity struct {
	Nickname      string
	StatusMessage string
	Nospam        string // 8 lowercase hex characters
}

// Runtime controls the tick-loop and where save data lives on disk.
type Runtime struct {
	TickInterval string // parsed with time.ParseDuration, e.g. "50ms"
	SavePath     string
}

// Metrics controls the optional Prometheus HTTP exposition endpoint.
type Metrics struct {
	ListenAddr string // empty disables the endpoint
}

// StatusAPI controls the optional read-only introspection HTTP endpoint.
type StatusAPI struct {
	ListenAddr string // empty disables the endpoint
}

// Relay is one operator-configured bootstrap TCP relay entry. Validate
// checks the entries; nothing else in this module reads them, and they
// are not merged into the save file's TCP_RELAY section.
type Relay struct {
	PublicKey string // 64 lowercase hex characters
	Address   string
	Port      uint16
}

// Config is the full messengerd configuration file.
type Config struct {
	Identity  Identity
	Runtime   Runtime
	Metrics   Metrics
	StatusAPI StatusAPI
	Relay     []Relay
}

// Validate checks field formats and fills in the defaults Runtime needs
// to be usable, per spec.md §5's RunInterval default.
func (c *Config) Validate() error {
	if len(c.Identity.Nickname) > 128 {
		return fmt.Errorf("config: Identity.Nickname exceeds 128 bytes")
	}
	if len(c.Identity.StatusMessage) > 1007 {
		return fmt.Errorf("config: Identity.StatusMessage exceeds 1007 bytes")
	}
	if c.Identity.Nospam != "" {
		if _, err := decodeFixedHex(c.Identity.Nospam, 4); err != nil {
			return fmt.Errorf("config: Identity.Nospam: %w", err)
		}
	}
	if c.Runtime.TickInterval == "" {
		c.Runtime.TickInterval = "50ms"
	}
	if _, err := time.ParseDuration(c.Runtime.TickInterval); err != nil {
		return fmt.Errorf("config: Runtime.TickInterval: %w", err)
	}
	if c.Runtime.SavePath == "" {
		return fmt.Errorf("config: Runtime.SavePath is not set")
	}
	for i, r := range c.Relay {
		if _, err := decodeFixedHex(r.PublicKey, 32); err != nil {
			return fmt.Errorf("config: Relay[%d].PublicKey: %w", i, err)
		}
		if r.Address == "" {
			return fmt.Errorf("config: Relay[%d].Address is not set", i)
		}
	}
	return nil
}

// TickInterval returns Runtime.TickInterval parsed as a time.Duration.
// Validate must have been called first.
func (c *Config) TickInterval() time.Duration {
	d, _ := time.ParseDuration(c.Runtime.TickInterval)
	return d
}

// Nospam decodes Identity.Nospam to its 4-byte wire form, or the zero
// value if unset.
func (c *Config) Nospam() [4]byte {
	var out [4]byte
	if c.Identity.Nospam == "" {
		return out
	}
	b, _ := decodeFixedHex(c.Identity.Nospam, 4)
	copy(out[:], b)
	return out
}

func decodeFixedHex(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// Load parses and validates a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: undecoded keys: %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Load(b)
}
