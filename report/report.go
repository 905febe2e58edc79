/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package report aggregates phase results into the final run record,
// persists it as JSON, and optionally archives it for later inspection
// with histcat.
package report

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"

	"github.com/zenith-project/nemesis/checker"
)

type Summary struct {
	Total       int    `json:"total"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	SuccessRate string `json:"successRate"`
	Duration    string `json:"duration"`
}

// Report is the aggregated outcome of a full run: one result per executed
// phase, in execution order.
type Report struct {
	Phases    []checker.PhaseResult `json:"phases"`
	Summary   Summary               `json:"summary"`
	CPULoad   float64               `json:"controllerCpuLoad,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Aggregate computes the summary over the given phase results. The
// duration is measured from the harness start time.
func Aggregate(results []checker.PhaseResult, start time.Time) Report {
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}

	rate := "0%"
	if len(results) > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(passed)/float64(len(results))*100)
	}

	phases := make([]checker.PhaseResult, len(results))
	copy(phases, results)

	return Report{
		Phases: phases,
		Summary: Summary{
			Total:       len(results),
			Passed:      passed,
			Failed:      len(results) - passed,
			SuccessRate: rate,
			Duration:    time.Since(start).String(),
		},
		Timestamp: time.Now(),
	}
}

// AllPassed reports whether every phase passed; it decides the process
// exit status.
func (r Report) AllPassed() bool {
	return r.Summary.Failed == 0 && r.Summary.Total > 0
}

// WriteFile persists the report as indented JSON.
func (r Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.WithMessage(err, "could not encode report")
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.WithMessagef(err, "could not write report to %s", path)
	}
	return nil
}

// ReadFile loads a previously persisted report.
func ReadFile(path string) (Report, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Report{}, errors.WithMessagef(err, "could not read report from %s", path)
	}

	r := Report{}
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, errors.WithMessage(err, "could not decode report")
	}
	return r, nil
}
