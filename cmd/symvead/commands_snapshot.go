package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"symvea.dev/store/internal/snapshot"
)

func snapshotManager(st *stores) *snapshot.Manager {
	return snapshot.New(st.dataDir, st.symbols, st.corpus)
}

var snapshotCommand = &cli.Command{
	Name:  "snapshot",
	Usage: "export the current corpus and symbol table to snapshots/snapshot_<epoch>.json",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		snap, err := snapshotManager(st).Create(nowEpoch())
		if err != nil {
			return err
		}
		return printResult(c, snap, func() {
			fmt.Printf("snapshot written: epoch=%d symbols=%d files=%d\n", snap.Epoch, len(snap.Symbols), len(snap.Files))
		})
	},
}

var listSnapshotsCommand = &cli.Command{
	Name:  "list-snapshots",
	Usage: "list every recorded snapshot epoch",
	Action: func(c *cli.Context) error {
		st, err := openStores(c)
		if err != nil {
			return err
		}
		epochs, err := snapshotManager(st).List()
		if err != nil {
			return err
		}
		return printResult(c, epochs, func() {
			for _, e := range epochs {
				fmt.Println(e)
			}
		})
	},
}

var restoreSnapshotCommand = &cli.Command{
	Name:      "restore-snapshot",
	ArgsUsage: "<epoch>",
	Usage:     "cross-check a snapshot's recorded symbols against what's currently on disk",
	Action: func(c *cli.Context) error {
		arg := c.Args().First()
		if arg == "" {
			return errExit("restore-snapshot: epoch required")
		}
		epoch, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("restore-snapshot: invalid epoch %q: %w", arg, err)
		}
		st, err := openStores(c)
		if err != nil {
			return err
		}
		report, err := snapshotManager(st).Restore(epoch)
		if err != nil {
			return err
		}
		return printResult(c, report, func() {
			fmt.Printf("epoch %d: %d symbols, %d files, %d missing\n", report.Epoch, report.SymbolCount, report.FileCount, len(report.MissingSymbols))
			for _, h := range report.MissingSymbols {
				fmt.Printf("  missing: %s\n", h)
			}
		})
	},
}
