package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"symvea.dev/store/internal/config"
	"symvea.dev/store/internal/coordination"
	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/symbolstore"
)

// resolvedConfig loads the config file named by --config (generating a
// default one if absent) and applies the --data-dir override: command-line
// flags override individual fields after load.
func resolvedConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.LoadOrCreate(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDirectory = dir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// stores bundles the on-disk accessors most read-only subcommands need,
// all rooted at the same resolved data directory.
type stores struct {
	dataDir string
	coord   *coordination.Manager
	symbols *symbolstore.Store
	corpus  *corpus.Store
}

func openStores(c *cli.Context) (*stores, error) {
	cfg, err := resolvedConfig(c)
	if err != nil {
		return nil, err
	}
	coord := coordination.New(cfg.DataDirectory)
	return &stores{
		dataDir: cfg.DataDirectory,
		coord:   coord,
		symbols: symbolstore.New(cfg.DataDirectory, coord),
		corpus:  corpus.New(cfg.DataDirectory),
	}, nil
}

// printResult renders v as pretty JSON when --json is set, otherwise runs
// plain, a human-readable fallback the caller supplies.
func printResult(c *cli.Context, v any, plain func()) error {
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	plain()
	return nil
}

func nowEpoch() int64 { return time.Now().Unix() }

func errExit(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
