/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// nemesis drives a Zenith cluster through fault injection, recovery and
// concurrent workloads, then checks the observed history for consistency
// and writes a report. Exit status is 0 only if every phase passed.
package main

import (
	"os"
	"syscall"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/zenith-project/nemesis/config"
	"github.com/zenith-project/nemesis/controller"
	"github.com/zenith-project/nemesis/harness"
	"github.com/zenith-project/nemesis/membership"
	"github.com/zenith-project/nemesis/profiling"
	"github.com/zenith-project/nemesis/report"
)

func main() {
	app := kingpin.New("nemesis", "Distributed consistency test harness for the Zenith data plane.")
	configFile := app.Flag("config", "Run configuration file.").Default("nemesis.yml").String()
	reportPath := app.Flag("report", "Override the report output path.").String()
	logLevel := app.Flag("logLevel", "Console log level.").Enum("debug", "info", "warn", "error")
	quiet := app.Flag("quiet", "Suppress the console report table.").Default("false").Bool()
	cpuProfile := app.Flag("cpuprofile", "Write a pprof CPU profile of the harness process to this file.").String()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	config.LoadFile(*configFile)

	// Configure logger
	level := config.Config.LoggingLevel
	if *logLevel != "" {
		level, _ = zerolog.ParseLevel(*logLevel)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	logger.Logger = logger.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    true,
		TimeFormat: "15:04:05.000"})

	if *cpuProfile != "" {
		profiling.StartCPUProfiler(*cpuProfile)
		profiling.StopOnSignal(syscall.SIGINT, true)
	}

	params := harness.ParamsFromConfig()
	if *reportPath != "" {
		params.ReportPath = *reportPath
	}

	topology := membership.NewTopology(config.Config.Nodes)
	if topology.NumNodes() < 2 {
		logger.Fatal().Int("nodes", topology.NumNodes()).Msg("Need at least two nodes to test consistency.")
	}

	h := harness.New(topology, controller.DockerExec{}, params)

	rep, err := h.Run()
	if err != nil {
		// Preflight failure: no phase ran, no report exists.
		logger.Fatal().Err(err).Msg("Aborting run.")
	}

	if !*quiet {
		report.PrintConsole(rep, topology.NumNodes())
	}

	exitCode := 1
	if rep.AllPassed() {
		exitCode = 0
	}

	profiling.StopCPUProfiler()
	os.Exit(exitCode)
}
