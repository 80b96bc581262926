package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"symvea.dev/store/internal/dictionary"
	"symvea.dev/store/internal/logging"
	"symvea.dev/store/internal/symbolhistory"
)

func loggerForCLI() (*zap.Logger, error) { return logging.NewCLI() }

// loadCurrentDictionary loads the first dictionary_<id>.json found in
// dataDir (directory order), or returns a fresh mutable one if none exists,
// mirroring server.loadOrCreateDictionary for CLI-side reads.
func loadCurrentDictionary(dataDir string) (*dictionary.Dictionary, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return dictionary.New("mutable", nowEpoch()), nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "dictionary_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		return dictionary.LoadFrozenFile(filepath.Join(dataDir, name))
	}
	return dictionary.New("mutable", nowEpoch()), nil
}

var listSymbolsCommand = &cli.Command{
	Name:  "list-symbols",
	Usage: "list every known symbol hash and its size",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		hashes, err := st.symbols.ListSymbols()
		if err != nil {
			return err
		}
		type row struct {
			Hash string `json:"hash"`
			Size int    `json:"size"`
		}
		rows := make([]row, 0, len(hashes))
		for _, h := range hashes {
			meta, _, err := st.symbols.LoadSymbol(h)
			if err != nil {
				continue
			}
			rows = append(rows, row{Hash: h, Size: meta.Size})
		}
		return printResult(c, rows, func() {
			for _, r := range rows {
				fmt.Printf("%s  %d bytes\n", r.Hash, r.Size)
			}
		})
	},
}

var freezeDictionaryCommand = &cli.Command{
	Name:  "freeze-dictionary",
	Usage: "freeze the mutable dictionary into a content-addressed snapshot",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		dict, err := loadCurrentDictionary(st.dataDir)
		if err != nil {
			return err
		}
		if dict.Frozen() {
			return printResult(c, map[string]any{"dict_id": dict.ID, "already_frozen": true}, func() {
				fmt.Printf("dictionary already frozen: %s\n", dict.ID)
			})
		}

		freeze := func() error {
			id := dict.Freeze(nowEpoch())
			path := filepath.Join(st.dataDir, "dictionary_"+id+".json")
			return dict.SaveFrozen(path)
		}
		if err := st.coord.WithDictionaryLock(freeze); err != nil {
			return err
		}
		return printResult(c, map[string]any{"dict_id": dict.ID, "already_frozen": false}, func() {
			fmt.Printf("dictionary frozen: %s\n", dict.ID)
		})
	},
}

// recordSymbolHistory ensures every hash in hashes has at least one
// recorded symbolhistory.Version, lazily initializing history for symbols
// first observed by this CLI invocation. Safe to call repeatedly:
// AddVersion is a no-op once content is unchanged, which it always is for
// an immutable symbol.
func recordSymbolHistory(st *stores, hashes []string) {
	hist := symbolhistory.New(st.dataDir)
	now := nowEpoch()
	for _, h := range hashes {
		_, data, err := st.symbols.LoadSymbol(h)
		if err != nil {
			continue
		}
		_ = hist.AddVersion(h, data, now)
	}
}

var symbolCommand = &cli.Command{
	Name:  "symbol",
	Usage: "inspect per-symbol state: identity, stability, dominance, version history",
	Subcommands: []*cli.Command{
		symbolInspectCommand,
		symbolStabilityCommand,
		symbolDominanceCommand,
		symbolHistoryCommand,
		symbolListStabilityCommand,
	},
}

var symbolInspectCommand = &cli.Command{
	Name:      "inspect",
	ArgsUsage: "<hash>",
	Usage:     "show a symbol's stored record and corpus usage",
	Action: func(c *cli.Context) error {
		hash := c.Args().First()
		if hash == "" {
			return errExit("symbol inspect: hash required")
		}
		st, err := openStores(c)
		if err != nil {
			return err
		}
		meta, _, err := st.symbols.LoadSymbol(hash)
		if err != nil {
			return err
		}
		usage, err := st.symbols.GetUsage(hash)
		if err != nil {
			return err
		}
		return printResult(c, map[string]any{
			"hash":                    meta.Hash,
			"size":                    meta.Size,
			"first_seen":              meta.FirstSeen,
			"content_hash":            meta.ContentHash,
			"total_occurrences":       usage.TotalOccurrences,
			"total_bytes_contributed": usage.TotalBytesContributed,
			"objects":                 usage.Objects,
		}, func() {
			fmt.Printf("hash:       %s\n", meta.Hash)
			fmt.Printf("size:       %d bytes\n", meta.Size)
			fmt.Printf("first seen: %d\n", meta.FirstSeen)
			fmt.Printf("used in %d object(s), %d total occurrences\n", len(usage.Objects), usage.TotalOccurrences)
		})
	},
}

var symbolStabilityCommand = &cli.Command{
	Name:      "stability",
	ArgsUsage: "<hash>",
	Usage:     "show how often a symbol's content has changed across recorded versions",
	Action: func(c *cli.Context) error {
		hash := c.Args().First()
		if hash == "" {
			return errExit("symbol stability: hash required")
		}
		st, err := openStores(c)
		if err != nil {
			return err
		}
		ensureSymbolHistory(st, hash)
		hist := symbolhistory.New(st.dataDir)
		h, err := hist.LoadHistory(hash)
		if err != nil {
			return err
		}
		return printResult(c, h.Stability, func() {
			fmt.Printf("total versions:    %d\n", h.Stability.TotalVersions)
			fmt.Printf("last change epoch: %d\n", h.Stability.LastChangeEpoch)
			fmt.Printf("stability score:   %.2f\n", h.Stability.StabilityScore)
		})
	},
}

var symbolHistoryCommand = &cli.Command{
	Name:      "history",
	ArgsUsage: "<hash>",
	Usage:     "list every recorded version of a symbol's content",
	Action: func(c *cli.Context) error {
		hash := c.Args().First()
		if hash == "" {
			return errExit("symbol history: hash required")
		}
		st, err := openStores(c)
		if err != nil {
			return err
		}
		ensureSymbolHistory(st, hash)
		hist := symbolhistory.New(st.dataDir)
		h, err := hist.LoadHistory(hash)
		if err != nil {
			return err
		}
		return printResult(c, h.Versions, func() {
			for _, v := range h.Versions {
				fmt.Printf("version %d: %s at %d (parent=%s)\n", v.VersionID, v.ContentSum, v.Timestamp, v.ParentSum)
			}
		})
	},
}

var symbolListStabilityCommand = &cli.Command{
	Name:  "list-stability",
	Usage: "list stability scores for every symbol with recorded history",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		hashes, err := st.symbols.ListSymbols()
		if err != nil {
			return err
		}
		recordSymbolHistory(st, hashes)

		hist := symbolhistory.New(st.dataDir)
		ids, err := hist.ListSymbolIDs()
		if err != nil {
			return err
		}
		type row struct {
			Hash  string  `json:"hash"`
			Score float64 `json:"stability_score"`
		}
		rows := make([]row, 0, len(ids))
		for _, id := range ids {
			h, err := hist.LoadHistory(id)
			if err != nil {
				continue
			}
			rows = append(rows, row{Hash: id, Score: h.Stability.StabilityScore})
		}
		return printResult(c, rows, func() {
			for _, r := range rows {
				fmt.Printf("%s  %.2f\n", r.Hash, r.Score)
			}
		})
	},
}

var symbolDominanceCommand = &cli.Command{
	Name:      "dominance",
	ArgsUsage: "<hash>",
	Usage:     "show how central a symbol is in the corpus's byte-containment graph",
	Action: func(c *cli.Context) error {
		hash := c.Args().First()
		if hash == "" {
			return errExit("symbol dominance: hash required")
		}
		st, err := openStores(c)
		if err != nil {
			return err
		}
		hashes, err := st.symbols.ListSymbols()
		if err != nil {
			return err
		}
		graph, err := containmentGraph(st, hashes)
		if err != nil {
			return err
		}
		dominance := symbolhistory.ComputeDominance(hash, graph)
		return printResult(c, dominance, func() {
			fmt.Printf("inbound:  %d\n", dominance.InboundLinks)
			fmt.Printf("outbound: %d\n", dominance.OutboundLinks)
			fmt.Printf("score:    %d\n", dominance.DominanceScore)
		})
	},
}

// containmentGraph builds a reference graph for symbolhistory.ComputeDominance:
// symbol A "references" symbol B when B's bytes occur as a proper
// substring of A's bytes, i.e. A's content subsumes B's.
func containmentGraph(st *stores, hashes []string) (map[string][]string, error) {
	blobs := make(map[string][]byte, len(hashes))
	for _, h := range hashes {
		_, data, err := st.symbols.LoadSymbol(h)
		if err != nil {
			return nil, err
		}
		blobs[h] = data
	}
	graph := make(map[string][]string, len(hashes))
	for a, aBytes := range blobs {
		for b, bBytes := range blobs {
			if a == b || len(bBytes) >= len(aBytes) {
				continue
			}
			if bytes.Contains(aBytes, bBytes) {
				graph[a] = append(graph[a], b)
			}
		}
	}
	return graph, nil
}


func ensureSymbolHistory(st *stores, hash string) {
	_, data, err := st.symbols.LoadSymbol(hash)
	if err != nil {
		return
	}
	_ = symbolhistory.New(st.dataDir).AddVersion(hash, data, nowEpoch())
}
