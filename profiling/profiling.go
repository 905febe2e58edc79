/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package profiling

import (
	"os"
	"os/signal"
	"runtime/pprof"

	logger "github.com/rs/zerolog/log"
)

var (
	// Open file to which pprof continuously writes data.
	cpuProfileFile *os.File

	// Channel used by StopOnSignal() for OS signal redirection.
	sigChan = make(chan os.Signal, 1)
)

// StartCPUProfiler starts profiling the harness process itself,
// writing pprof data to outFileName. StopCPUProfiler must be called
// to finish profiling.
func StartCPUProfiler(outFileName string) {
	var err error
	cpuProfileFile, err = os.Create(outFileName)
	if err != nil {
		logger.Fatal().Err(err).Str("fileName", outFileName).Msg("Could not create CPU profile.")
	}

	if err := pprof.StartCPUProfile(cpuProfileFile); err != nil {
		logger.Fatal().Err(err).Msg("Could not start CPU profile.")
	}
	logger.Info().Str("fileName", outFileName).Msg("Started CPU profiler.")
}

// StopCPUProfiler stops profiling and flushes the output file.
func StopCPUProfiler() {
	if cpuProfileFile == nil {
		return
	}

	pprof.StopCPUProfile()
	if err := cpuProfileFile.Close(); err != nil {
		logger.Error().Err(err).Msg("Could not close CPU profile output.")
	}
	cpuProfileFile = nil
	logger.Info().Msg("Profile data written.")
}

// StopOnSignal sets up a signal handler that stops the profiler when the
// specified OS signal occurs, so that profile data survives a run aborted
// from the outside. If exit is set, the process terminates afterwards.
func StopOnSignal(sig os.Signal, exit bool) {
	signal.Notify(sigChan, sig)

	go func() {
		<-sigChan
		StopCPUProfiler()
		if exit {
			os.Exit(1)
		}
	}()
}
