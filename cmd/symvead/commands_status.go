package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"symvea.dev/store/internal/explanation"
	"symvea.dev/store/internal/objectstore"
	"symvea.dev/store/internal/startup"
)

// statusReport is the status subcommand's output: a quick health snapshot
// of the data root without re-hashing every symbol blob (that's
// verify-corpus's job).
type statusReport struct {
	DataDir          string `json:"data_dir"`
	DictionaryFrozen bool   `json:"dictionary_frozen"`
	DictionaryID     string `json:"dictionary_id"`
	SymbolCount      int    `json:"symbol_count"`
	ObjectCount      int    `json:"object_count"`
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "report the dictionary state and corpus size of a data root",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}

		dict, err := loadCurrentDictionary(st.dataDir)
		if err != nil {
			return err
		}
		symCount, err := st.symbols.CountSymbols()
		if err != nil {
			return err
		}
		objCount, err := st.corpus.CountFiles()
		if err != nil {
			return err
		}

		report := statusReport{
			DataDir:          st.dataDir,
			DictionaryFrozen: dict.Frozen(),
			DictionaryID:     dict.ID,
			SymbolCount:      symCount,
			ObjectCount:      objCount,
		}
		return printResult(c, report, func() {
			fmt.Printf("data dir:          %s\n", report.DataDir)
			fmt.Printf("dictionary:        %s (frozen=%v)\n", report.DictionaryID, report.DictionaryFrozen)
			fmt.Printf("symbols:           %d\n", report.SymbolCount)
			fmt.Printf("objects:           %d\n", report.ObjectCount)
		})
	},
}

// statsReport aggregates compression effectiveness across every stored
// object, built from each object's ObjectMetadata and an
// internal/explanation.Graph computed from its recorded symbol references.
type statsReport struct {
	ObjectCount          int     `json:"object_count"`
	TotalOriginalBytes   uint64  `json:"total_original_bytes"`
	TotalCompressedBytes uint64  `json:"total_compressed_bytes"`
	AverageExplainedPct  float64 `json:"average_explained_percent"`
}

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "summarize compression effectiveness across the whole corpus",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		index, err := st.corpus.LoadIndex()
		if err != nil {
			return err
		}
		objects := objectstore.NewLocal(st.dataDir)

		var report statsReport
		var explainedPctSum float64
		now := nowEpoch()
		for _, f := range index.Files {
			_, meta, ok, err := objects.Get(f.Key)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			report.ObjectCount++
			report.TotalOriginalBytes += meta.OriginalSize
			report.TotalCompressedBytes += meta.CompressedSize

			graph := explanation.NewGraph(meta.ObjectHash, meta.OriginalSize, now)
			for _, sym := range meta.Symbols {
				usage, err := st.symbols.GetUsage(sym.Hash)
				if err != nil {
					continue
				}
				occurrences := usage.Objects[f.Key]
				if occurrences <= 0 {
					continue
				}
				contributed := uint64(occurrences) * sym.Bytes
				if contributed > graph.UnexplainedBytes {
					contributed = graph.UnexplainedBytes
				}
				_ = graph.AddContribution(sym.Hash, contributed, 0)
			}
			explainedPctSum += percentExplained(graph)
		}
		if report.ObjectCount > 0 {
			report.AverageExplainedPct = explainedPctSum / float64(report.ObjectCount)
		}

		return printResult(c, report, func() {
			fmt.Printf("objects:                 %d\n", report.ObjectCount)
			fmt.Printf("original bytes:          %d\n", report.TotalOriginalBytes)
			fmt.Printf("compressed bytes:        %d\n", report.TotalCompressedBytes)
			fmt.Printf("average explained pct:   %.2f%%\n", report.AverageExplainedPct)
		})
	},
}

func percentExplained(g *explanation.Graph) float64 {
	if g.TotalBytes == 0 {
		return 0
	}
	return float64(g.ExplainedBytes) / float64(g.TotalBytes) * 100.0
}

var verifyCorpusCommand = &cli.Command{
	Name:  "verify-corpus",
	Usage: "re-hash every stored symbol blob against its recorded content hash",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		logger, err := loggerForCLI()
		if err != nil {
			return err
		}
		defer logger.Sync()

		v := startup.New(st.dataDir, st.symbols, logger)
		if err := v.EnsureLayout(); err != nil {
			return err
		}
		verr := st.symbols.VerifyAll()

		hashes, _ := st.symbols.ListSymbols()
		recordSymbolHistory(st, hashes)

		ok := verr == nil
		return printResult(c, map[string]any{
			"ok":            ok,
			"symbol_count":  len(hashes),
			"error":         errString(verr),
		}, func() {
			if ok {
				fmt.Printf("verify-corpus: OK (%d symbols)\n", len(hashes))
			} else {
				fmt.Printf("verify-corpus: FAILED: %v\n", verr)
			}
		})
	},
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
