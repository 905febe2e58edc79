/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package profiling samples the controller machine's CPU load while a run
// is in progress. High controller load skews operation timestamps, so the
// average is attached to the final report.
package profiling

import (
	"sync"
	"time"

	linuxproc "github.com/c9s/goprocinfo/linux"
	logger "github.com/rs/zerolog/log"
)

// CPUMonitor periodically measures CPU load in the background.
type CPUMonitor struct {
	interval time.Duration
	stopC    chan struct{}
	doneC    chan struct{}

	mu      sync.Mutex
	samples []float32
}

// StartCPUMonitor launches a sampling goroutine measuring average load
// over successive windows of the given interval.
func StartCPUMonitor(interval time.Duration) *CPUMonitor {
	m := &CPUMonitor{
		interval: interval,
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
	}

	go func() {
		defer close(m.doneC)
		for {
			select {
			case <-m.stopC:
				return
			default:
			}

			usage, err := GetCPUUsage([]string{"Load"}, m.interval)
			if err != nil {
				logger.Warn().Err(err).Msg("Could not read CPU statistics.")
				return
			}

			m.mu.Lock()
			m.samples = append(m.samples, usage[0])
			m.mu.Unlock()
		}
	}()

	return m
}

// Stop terminates sampling and returns the average observed load in
// [0,1] along with the number of completed samples.
func (m *CPUMonitor) Stop() (float64, int) {
	close(m.stopC)
	<-m.doneC

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range m.samples {
		sum += float64(s)
	}
	return sum / float64(len(m.samples)), len(m.samples)
}

// GetCPUUsage measures average CPU usage in the given time window and
// returns one value in [0,1] per requested field.
// ATTENTION: Blocks for the duration of the time window!
func GetCPUUsage(fields []string, window time.Duration) ([]float32, error) {

	// Get initial CPU stats
	stat, err := linuxproc.ReadStat("/proc/stat")
	if err != nil {
		return nil, err
	}
	oldCPUStat := stat.CPUStatAll

	// Wait for given time window
	time.Sleep(window)

	// Get new CPU stats
	stat, err = linuxproc.ReadStat("/proc/stat")
	if err != nil {
		return nil, err
	}
	newCPUStat := stat.CPUStatAll

	// Compute changes that occurred in the meantime
	diff := diffCPUStat(newCPUStat, oldCPUStat)

	result := make([]float32, len(fields))
	for i, field := range fields {

		var cpuVal uint64
		switch field {
		case "User":
			cpuVal = diff.User
		case "System":
			cpuVal = diff.System
		case "Idle":
			cpuVal = diff.Idle
		case "IOWait":
			cpuVal = diff.IOWait
		case "Load":
			cpuVal = diff.User + // Sum of all except Idle
				diff.Nice +
				diff.System +
				diff.IOWait +
				diff.IRQ +
				diff.SoftIRQ +
				diff.Steal +
				diff.Guest +
				diff.GuestNice
		}

		if sumCPUStat(diff) == 0 {
			result[i] = 0
		} else {
			result[i] = float32(cpuVal) / float32(sumCPUStat(diff))
		}
	}

	return result, nil
}

func sumCPUStat(stat linuxproc.CPUStat) uint64 {
	return stat.User +
		stat.Nice +
		stat.System +
		stat.Idle +
		stat.IOWait +
		stat.IRQ +
		stat.SoftIRQ +
		stat.Steal +
		stat.Guest +
		stat.GuestNice
}

func diffCPUStat(first linuxproc.CPUStat, second linuxproc.CPUStat) linuxproc.CPUStat {
	return linuxproc.CPUStat{
		Id:        first.Id,
		User:      first.User - second.User,
		Nice:      first.Nice - second.Nice,
		System:    first.System - second.System,
		Idle:      first.Idle - second.Idle,
		IOWait:    first.IOWait - second.IOWait,
		IRQ:       first.IRQ - second.IRQ,
		SoftIRQ:   first.SoftIRQ - second.SoftIRQ,
		Steal:     first.Steal - second.Steal,
		Guest:     first.Guest - second.Guest,
		GuestNice: first.GuestNice - second.GuestNice,
	}
}
