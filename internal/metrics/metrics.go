// Package metrics tracks server-wide counters and exposes them over a
// small chi-routed HTTP server, grounded on the original metrics
// collector's atomic-counter shape and its /metrics and /health endpoints.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxRatioSamples = 1000

// Snapshot is the JSON body served at /metrics.
type Snapshot struct {
	UptimeSeconds       uint64  `json:"uptime_seconds"`
	TotalUploads        uint64  `json:"total_uploads"`
	TotalDownloads      uint64  `json:"total_downloads"`
	TotalBytesStored    uint64  `json:"total_bytes_stored"`
	TotalBytesServed    uint64  `json:"total_bytes_served"`
	ActiveConnections   int64   `json:"active_connections"`
	CompressionRatioAvg float64 `json:"compression_ratio_avg"`
	SymbolsCount        uint64  `json:"symbols_count"`
	DictionaryFrozen    bool    `json:"dictionary_frozen"`
}

// Collector accumulates counters with atomics, matching the
// MetricsCollector field set.
type Collector struct {
	startTime         time.Time
	uploads           atomic.Uint64
	downloads         atomic.Uint64
	bytesStored       atomic.Uint64
	bytesServed       atomic.Uint64
	activeConnections atomic.Int64

	ratiosMu sync.Mutex
	ratios   []float64
}

// NewCollector returns a zeroed Collector with its clock started now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordUpload accounts for one upload of bytes at compressionRatio,
// satisfying session.MetricsRecorder.
func (c *Collector) RecordUpload(bytes uint64, compressionRatio float64) {
	c.uploads.Add(1)
	c.bytesStored.Add(bytes)
	c.ratiosMu.Lock()
	c.ratios = append(c.ratios, compressionRatio)
	if len(c.ratios) > maxRatioSamples {
		c.ratios = c.ratios[1:]
	}
	c.ratiosMu.Unlock()
}

// RecordDownload accounts for one download of bytes.
func (c *Collector) RecordDownload(bytes uint64) {
	c.downloads.Add(1)
	c.bytesServed.Add(bytes)
}

// ConnectionOpened increments the active connection count.
func (c *Collector) ConnectionOpened() { c.activeConnections.Add(1) }

// ConnectionClosed decrements the active connection count.
func (c *Collector) ConnectionClosed() { c.activeConnections.Add(-1) }

// Snapshot computes the current metrics, folding in symbolsCount and
// dictionaryFrozen supplied by the caller (the storage layers own that
// state, not the collector).
func (c *Collector) Snapshot(symbolsCount uint64, dictionaryFrozen bool) Snapshot {
	c.ratiosMu.Lock()
	avg := 0.0
	if len(c.ratios) > 0 {
		var sum float64
		for _, r := range c.ratios {
			sum += r
		}
		avg = sum / float64(len(c.ratios))
	}
	c.ratiosMu.Unlock()

	return Snapshot{
		UptimeSeconds:       uint64(time.Since(c.startTime).Seconds()),
		TotalUploads:        c.uploads.Load(),
		TotalDownloads:      c.downloads.Load(),
		TotalBytesStored:    c.bytesStored.Load(),
		TotalBytesServed:    c.bytesServed.Load(),
		ActiveConnections:   c.activeConnections.Load(),
		CompressionRatioAvg: avg,
		SymbolsCount:        symbolsCount,
		DictionaryFrozen:    dictionaryFrozen,
	}
}

// Server exposes a Collector's state over HTTP, at /metrics and /health.
type Server struct {
	collector *Collector
	dataDir   string
	http      *http.Server
}

// NewServer builds a metrics HTTP server bound to addr, deriving
// symbols_count and dictionary_frozen by inspecting dataDir directly
// (mirroring the original metrics server, which never held a reference to
// the storage layer).
func NewServer(addr string, collector *Collector, dataDir string) *Server {
	s := &Server{collector: collector, dataDir: dataDir}

	r := chi.NewRouter()
	r.Get("/metrics", s.handleMetrics)
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

// ListenAndServe blocks serving metrics until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.collector.Snapshot(s.countSymbols(), s.hasFrozenDictionary())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

func (s *Server) countSymbols() uint64 {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "symbols"))
	if err != nil {
		return 0
	}
	var n uint64
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".bin") || !strings.Contains(e.Name(), ".") {
			n++
		}
	}
	return n
}

func (s *Server) hasFrozenDictionary() bool {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "dictionary_") {
			return true
		}
	}
	return false
}
