// Package server wires together the storage layers and runs the accept
// loop: one goroutine per connection, each connection owning a Session
// that shares the single process-wide dictionary and stores.
package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"symvea.dev/store/internal/coordination"
	"symvea.dev/store/internal/corpus"
	"symvea.dev/store/internal/dictionary"
	"symvea.dev/store/internal/objectstore"
	"symvea.dev/store/internal/session"
	"symvea.dev/store/internal/startup"
	"symvea.dev/store/internal/symbolstore"
)

// Config is the resolved runtime configuration a Server needs. It mirrors
// the fields internal/config.Config loads from disk/flags; Server itself
// takes no dependency on the config package to keep the storage-wiring
// layer testable in isolation.
type Config struct {
	ListenAddr     string
	DataDir        string
	ReadOnlyMounts []string
	MaxFileSize    uint32
}

// Server owns every shared piece of server-side state: the single
// dictionary and its mutex, the symbol and object stores, and the
// corruption flag sessions set on a failed Verify.
type Server struct {
	cfg       Config
	listener  net.Listener
	dictMu    sync.Mutex
	dict      *dictionary.Dictionary
	symbols   session.SymbolSink
	objects   objectstore.Engine
	corpus    *corpus.Store
	coord     *coordination.Manager
	metrics   session.MetricsRecorder
	poisoned  atomic.Bool
	logger    *zap.Logger
}

// New builds a Server rooted at cfg.DataDir: ensures the on-disk layout,
// verifies every stored symbol's content hash (refusing to start on
// corruption), and loads an existing frozen dictionary if one is present.
func New(cfg Config, metrics session.MetricsRecorder, logger *zap.Logger) (*Server, error) {
	coord := coordination.New(cfg.DataDir)
	writable := symbolstore.New(cfg.DataDir, coord)

	var symbols session.SymbolSink = writable
	if len(cfg.ReadOnlyMounts) > 0 {
		mounts := make([]*symbolstore.Store, 0, len(cfg.ReadOnlyMounts))
		for _, m := range cfg.ReadOnlyMounts {
			mounts = append(mounts, symbolstore.New(m, nil))
		}
		symbols = &symbolstore.Layered{Writable: writable, ReadOnlyMounts: mounts}
	}

	v := startup.New(cfg.DataDir, writable, logger)
	if err := v.ValidateAndStart(); err != nil {
		return nil, fmt.Errorf("server: startup validation failed: %w", err)
	}

	dict, err := loadOrCreateDictionary(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("server: load dictionary: %w", err)
	}

	return &Server{
		cfg:     cfg,
		dict:    dict,
		symbols: symbols,
		objects: objectstore.NewLocal(cfg.DataDir),
		corpus:  corpus.New(cfg.DataDir),
		coord:   coord,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// loadOrCreateDictionary scans dataDir for a persisted dictionary_<id>.json
// snapshot and loads the first one found; otherwise it returns a fresh
// mutable dictionary.
func loadOrCreateDictionary(dataDir string) (*dictionary.Dictionary, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return dictionary.New("mutable", time.Now().Unix()), nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "dictionary_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		dict, err := dictionary.LoadFrozenFile(filepath.Join(dataDir, name))
		if err != nil {
			return nil, fmt.Errorf("load frozen dictionary %s: %w", name, err)
		}
		return dict, nil
	}
	return dictionary.New("mutable", time.Now().Unix()), nil
}

// ListenAndServe binds cfg.ListenAddr and accepts connections until the
// listener is closed or the server is poisoned by a detected corruption.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	s.logger.Info("server listening", zap.String("addr", s.cfg.ListenAddr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.poisoned.Load() {
				return fmt.Errorf("server: refusing further service, corruption detected")
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.logger.Info("new connection", zap.String("remote", conn.RemoteAddr().String()))

		go func() {
			defer conn.Close()
			sess := session.New(conn, &s.dictMu, s.dict, s.symbols, s.objects, s.corpus, s.coord, s.cfg.DataDir, s.cfg.MaxFileSize, s.metrics, &s.poisoned, s.logger)
			if err := sess.Run(); err != nil {
				s.logger.Error("session ended with error", zap.Error(err))
			} else {
				s.logger.Info("session completed")
			}
			if s.poisoned.Load() {
				s.logger.Error("corruption flagged during session, closing listener")
				_ = s.listener.Close()
			}
		}()
	}
}

// Addr returns the listener's bound address, or "" if ListenAndServe has
// not yet bound a listener.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
