// Package startup implements the boot-time integrity scan: ensure the
// on-disk layout exists, then recompute every stored symbol's content hash
// and refuse to continue on any mismatch.
package startup

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"symvea.dev/store/internal/symbolstore"
)

var layoutDirs = []string{
	"symbols",
	"symbol_usage",
	filepath.Join("corpus", "files"),
	"files",
	"snapshots",
}

// Validator runs the startup sequence against a data root.
type Validator struct {
	DataDir string
	Symbols *symbolstore.Store
	Logger  *zap.Logger
}

// New returns a Validator for dataDir, using symbols for the corruption
// scan and logger for structured startup logging.
func New(dataDir string, symbols *symbolstore.Store, logger *zap.Logger) *Validator {
	return &Validator{DataDir: dataDir, Symbols: symbols, Logger: logger}
}

// EnsureLayout creates the expected subdirectories and STATE marker file
// if they do not already exist.
func (v *Validator) EnsureLayout() error {
	for _, d := range layoutDirs {
		if err := os.MkdirAll(filepath.Join(v.DataDir, d), 0o755); err != nil {
			return fmt.Errorf("startup: create %s: %w", d, err)
		}
	}
	statePath := filepath.Join(v.DataDir, "STATE")
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		if err := os.WriteFile(statePath, []byte("INITIALIZED\n"), 0o644); err != nil {
			return fmt.Errorf("startup: write STATE: %w", err)
		}
	}
	return nil
}

// ValidateAndStart ensures the layout exists and performs a full symbol
// corruption scan. A mismatch is fatal: the caller must refuse to serve.
func (v *Validator) ValidateAndStart() error {
	v.Logger.Info("starting up", zap.String("data_dir", v.DataDir))
	if err := v.EnsureLayout(); err != nil {
		return err
	}
	v.Logger.Info("verifying symbol corpus integrity")
	if err := v.Symbols.VerifyAll(); err != nil {
		v.Logger.Error("FATAL: symbol corruption detected, refusing to serve", zap.Error(err))
		return fmt.Errorf("startup: symbol corruption detected: %w", err)
	}
	count, err := v.Symbols.CountSymbols()
	if err != nil {
		return fmt.Errorf("startup: count symbols: %w", err)
	}
	v.Logger.Info("symbol corpus verified", zap.Int("symbol_count", count))
	return nil
}
