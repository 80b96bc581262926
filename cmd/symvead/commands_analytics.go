package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"symvea.dev/store/internal/analytics"
	"symvea.dev/store/internal/proof"
)

var analyticsCommand = &cli.Command{
	Name:  "analytics",
	Usage: "refresh and report corpus-wide pattern frequency, temporal stability, and coverage",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		db, err := analytics.Open(st.dataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Refresh(st.symbols, st.corpus, nowEpoch()); err != nil {
			return err
		}
		snap, err := db.Load()
		if err != nil {
			return err
		}
		insights := snap.Insights()

		return printResult(c, map[string]any{
			"pattern_frequency":  snap.PatternFrequency,
			"temporal_stability": snap.TemporalStability,
			"coverage_analysis":  snap.CoverageAnalysis,
			"insights":           insights,
		}, func() {
			for _, line := range insights {
				fmt.Println(line)
			}
			if len(insights) == 0 {
				fmt.Println("no insights yet: corpus is empty")
			}
		})
	},
}

var proofCommand = &cli.Command{
	Name:  "proof",
	Usage: "generate a corpus-integrity attestation digest",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		dict, err := loadCurrentDictionary(st.dataDir)
		if err != nil {
			return err
		}

		v := proof.New(st.symbols, st.corpus, dict.ID)
		report, err := v.GenerateReport()
		if err != nil {
			return err
		}
		return printResult(c, report, func() {
			fmt.Printf("total symbols:     %d\n", report.TotalSymbols)
			fmt.Printf("verified symbols:  %d\n", report.VerifiedSymbols)
			fmt.Printf("integrity score:   %.2f%%\n", report.IntegrityScore)
			fmt.Printf("attestation digest: %s\n", report.AttestationDigest)
			for _, h := range report.CorruptedSymbols {
				fmt.Printf("  corrupted: %s\n", h)
			}
		})
	},
}
