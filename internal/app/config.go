package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/shhac/nrpc/internal/errors"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "nrpc.toml"

// Config holds application-wide configuration.
type Config struct {
	// Debug enables debug logging and additional diagnostics
	Debug bool `toml:"debug"`

	// LogFile, when set, also writes JSON logs to this rotating file
	LogFile string `toml:"log_file"`

	// OutDir is where generated files are written
	OutDir string `toml:"out_dir"`

	// Files and Includes select the .proto sources
	Files    []string `toml:"files"`
	Includes []string `toml:"includes"`

	Server   bool `toml:"server"`
	Client   bool `toml:"client"`
	Messages bool `toml:"messages"`

	// ImportPrefix roots the Go import path of files without go_package
	ImportPrefix string `toml:"import_prefix"`

	// Templates are extra generators, each a text/template file
	Templates []string `toml:"templates"`

	Watch WatchConfig `toml:"watch"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutDir: ".",
		Server: true,
		Client: true,
		Watch:  WatchConfig{Debounce: Duration{200 * time.Millisecond}},
	}
}

// ConfigFromEnv creates a configuration from environment variables.
// NRPC_CONFIG names a TOML file loaded first; NRPC_DEBUG and NRPC_OUT_DIR
// override it.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("NRPC_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if debugStr := os.Getenv("NRPC_DEBUG"); debugStr != "" {
		if debug, err := strconv.ParseBool(debugStr); err == nil {
			cfg.Debug = debug
		}
	}

	if outDir := os.Getenv("NRPC_OUT_DIR"); outDir != "" {
		cfg.OutDir = outDir
	}

	return cfg, nil
}

// LoadFile merges the TOML file at path into c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return apperrors.ValidationError{
			Field:   path,
			Message: fmt.Sprintf("unknown key %q", undecoded[0].String()),
		}
	}
	return nil
}

// Validate checks that the configuration can drive a generation run.
func (c *Config) Validate() error {
	if c.OutDir == "" {
		return apperrors.ValidationError{Field: "out_dir", Message: "must not be empty"}
	}
	if !c.Server && !c.Client && len(c.Templates) == 0 {
		return apperrors.ValidationError{Message: "nothing to generate: enable server, client or a template"}
	}
	if c.Watch.Debounce.Duration < 0 {
		return apperrors.ValidationError{Field: "watch.debounce", Message: "must not be negative"}
	}
	return nil
}
