// Package config loads the server's TOML configuration file, falling back
// to a documented default when none exists, grounded on the original
// implementation's load_or_create/save pair.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// SymveaPort is the default listen port.
const SymveaPort = 24096

// MaxFrameSize is the default max_file_size: 1GiB.
const MaxFrameSize = 1024 * 1024 * 1024

// ProtocolVersion is the wire protocol version this build speaks.
const ProtocolVersion uint16 = 1

// DefaultConfigPath is used when no path is given to LoadOrCreate.
const DefaultConfigPath = "symvea.toml"

// Config is the on-disk server configuration.
type Config struct {
	DataDirectory         string   `toml:"data_directory"`
	ListenAddress         string   `toml:"listen_address"`
	ReadOnlyMounts        []string `toml:"readonly_mounts"`
	AutoCreateDirectories bool     `toml:"auto_create_directories"`
	MaxFileSize           int      `toml:"max_file_size"`
}

// Default returns the built-in configuration used when no file exists.
func Default() Config {
	return Config{
		DataDirectory:         "./data",
		ListenAddress:         "0.0.0.0:24096",
		ReadOnlyMounts:        nil,
		AutoCreateDirectories: true,
		MaxFileSize:           MaxFrameSize,
	}
}

// LoadOrCreate reads configPath (DefaultConfigPath if empty); if the file
// does not exist, it writes out Default() and returns it.
func LoadOrCreate(configPath string) (Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	if _, err := os.Stat(configPath); err == nil {
		var cfg Config
		if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", configPath, err)
		}
		return cfg, nil
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: stat %s: %w", configPath, err)
	}

	cfg := Default()
	if err := cfg.Save(configPath); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to configPath as pretty-printed TOML.
func (c Config) Save(configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", configPath, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode %s: %w", configPath, err)
	}
	return nil
}

// EnsureDirectories creates the data directory when AutoCreateDirectories
// is set. Read-only mount directories are not created.
func (c Config) EnsureDirectories() error {
	if !c.AutoCreateDirectories {
		return nil
	}
	if err := os.MkdirAll(c.DataDirectory, 0o755); err != nil {
		return fmt.Errorf("config: create data directory %s: %w", c.DataDirectory, err)
	}
	return nil
}
