/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// histcat is a utility for reviewing nemesis run artifacts: the durable
// operation log written during a run and the report archive. It can
// filter operations by kind, node, key and outcome, list archived runs,
// and print a stored report.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/zenith-project/nemesis/history"
	"github.com/zenith-project/nemesis/report"
)

type arguments struct {
	walDir     string
	archiveDir string
	runKey     string
	listRuns   bool
	kinds      []string
	nodes      []string
	keys       []string
	failedOnly bool
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("histcat", "Utility for reviewing nemesis operation logs and report archives.")
	walDir := app.Flag("wal", "Operation log directory to read.").String()
	archiveDir := app.Flag("archive", "Report archive directory.").String()
	listRuns := app.Flag("list", "List archived runs. (Requires --archive)").Default("false").Bool()
	runKey := app.Flag("run", "Print the archived report with this key. (Requires --archive)").String()
	kinds := app.Flag("kind", "Only show operations of this kind, may be repeated.").Enums("read", "write")
	nodes := app.Flag("node", "Only show operations against this node, may be repeated.").Strings()
	keys := app.Flag("key", "Only show operations on this key, may be repeated.").Strings()
	failedOnly := app.Flag("failed", "Only show failed operations.").Default("false").Bool()

	_, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	switch {
	case *walDir == "" && *archiveDir == "":
		return nil, errors.Errorf("nothing to do, set --wal and/or --archive")
	case (*listRuns || *runKey != "") && *archiveDir == "":
		return nil, errors.Errorf("--list and --run require --archive")
	}

	return &arguments{
		walDir:     *walDir,
		archiveDir: *archiveDir,
		runKey:     *runKey,
		listRuns:   *listRuns,
		kinds:      *kinds,
		nodes:      *nodes,
		keys:       *keys,
		failedOnly: *failedOnly,
	}, nil
}

func (a *arguments) matches(op history.Operation) bool {
	if a.failedOnly && op.Success {
		return false
	}
	if len(a.kinds) > 0 && !contains(a.kinds, string(op.Kind)) {
		return false
	}
	if len(a.nodes) > 0 && !contains(a.nodes, op.Node) {
		return false
	}
	if len(a.keys) > 0 && !contains(a.keys, op.Key) {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger.Logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	kingpin.Version("0.1.0")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments, %s, try --help", err)
	}

	if args.walDir != "" {
		if err := displayOperations(args); err != nil {
			kingpin.Fatalf("%s", err)
		}
	}

	if args.archiveDir != "" {
		if err := displayArchive(args); err != nil {
			kingpin.Fatalf("%s", err)
		}
	}
}

func displayOperations(args *arguments) error {
	opLog, err := history.OpenLog(args.walDir)
	if err != nil {
		return err
	}
	defer opLog.Close()

	ops, err := opLog.LoadAll()
	if err != nil {
		return err
	}

	shown := 0
	for _, op := range ops {
		if args.matches(op) {
			displayOperation(op)
			shown++
		}
	}

	logger.Info().Int("total", len(ops)).Int("shown", shown).Msg("Operation log read.")
	return nil
}

func displayArchive(args *arguments) error {
	store, err := report.OpenStore(args.archiveDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if args.listRuns {
		keys, err := store.List()
		if err != nil {
			return err
		}
		displayRunList(keys)
	}

	if args.runKey != "" {
		rep, err := store.Get(args.runKey)
		if err != nil {
			return errors.WithMessagef(err, "no archived run %q", args.runKey)
		}
		report.PrintConsole(rep, 0)
	}

	return nil
}
