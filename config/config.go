// Package config reads the settings of fabricctl from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings that can come from the environment. Command line
// flags override them.
type Config struct {
	// AddressWidth overrides the address width of declarations that do not
	// set one. Zero keeps the built-in default.
	AddressWidth uint32  `env:"FABRIC_ADDRESS_WIDTH"`
	AllocBase    Address `env:"FABRIC_ALLOC_BASE"`

	RecordPath  string `env:"FABRIC_RECORD_PATH"`
	MonitorPort int    `env:"FABRIC_MONITOR_PORT" envDefault:"0"`
	OpenBrowser bool   `env:"FABRIC_OPEN_BROWSER"`
	Verbose     bool   `env:"FABRIC_VERBOSE"`
}

// Address is an address that can be written in decimal or with a 0x prefix.
type Address uint64

// UnmarshalText parses the address in any Go integer syntax.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q", text)
	}

	*a = Address(v)

	return nil
}

// Load reads the optional dotenv files and then parses the environment. A
// missing dotenv file is not an error. Variables that are already set are not
// overwritten by dotenv files.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}

	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return Parse()
}

// Parse reads the configuration from the environment variables only.
func Parse() (Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.AddressWidth > 64 {
		return Config{}, fmt.Errorf(
			"parse env: FABRIC_ADDRESS_WIDTH %d exceeds 64", cfg.AddressWidth)
	}

	return cfg, nil
}
