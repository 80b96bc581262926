// Command symvead is the server daemon and operator CLI for a symvea data
// root: start the TCP server, inspect corpus/symbol state, manage
// dictionary freezes and snapshots. The network protocol and storage
// engine are implemented by the internal packages; this command is the
// external driver around them.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// sharedFlags are accepted both before and after the subcommand name
// (`symvead --json status` and `symvead status --json` alike), since
// urfave/cli/v2 only resolves a flag for a subcommand's Context if that
// subcommand also declares it.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: "",
			Usage: "path to TOML config file (created with defaults if absent)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Value: "",
			Usage: "override data_directory from the config file",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "machine-readable JSON output (read-only subcommands)",
		},
	}
}

func attachSharedFlags(cmds []*cli.Command) {
	for _, cmd := range cmds {
		cmd.Flags = append(cmd.Flags, sharedFlags()...)
		attachSharedFlags(cmd.Subcommands)
	}
}

func main() {
	commands := []*cli.Command{
		startCommand,
		generateConfigCommand,
		statusCommand,
		statsCommand,
		verifyCorpusCommand,
		snapshotCommand,
		listSnapshotsCommand,
		restoreSnapshotCommand,
		listSymbolsCommand,
		freezeDictionaryCommand,
		symbolCommand,
		analyticsCommand,
		proofCommand,
	}
	attachSharedFlags(commands)

	app := &cli.App{
		Name:     "symvead",
		Usage:    "symvea content-addressed compression store",
		Flags:    sharedFlags(),
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "symvead:", err)
		os.Exit(1)
	}
}
