/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package report_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/zenith-project/nemesis/checker"
	"github.com/zenith-project/nemesis/report"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

func phaseResults() []checker.PhaseResult {
	return []checker.PhaseResult{
		{Phase: checker.PhaseConnectivity, Passed: true, Details: "6/6 connections reachable"},
		{Phase: checker.PhasePartition, Passed: true, Details: "node n3 isolated"},
		{Phase: checker.PhaseRecovery, Passed: true, Details: "node n3 reconnected"},
		{Phase: checker.PhaseConcurrentOps, Passed: false, Details: "5/8 operations successful"},
		{Phase: checker.PhaseLinearizability, Passed: true, Details: "3 read(s): 3 consistent"},
	}
}

var _ = Describe("Aggregate", func() {
	It("summarizes phase results in execution order", func() {
		rep := report.Aggregate(phaseResults(), time.Now().Add(-2*time.Second))

		Expect(rep.Summary.Total).To(Equal(5))
		Expect(rep.Summary.Passed).To(Equal(4))
		Expect(rep.Summary.Failed).To(Equal(1))
		Expect(rep.Summary.SuccessRate).To(Equal("80.0%"))
		Expect(rep.AllPassed()).To(BeFalse())

		for i, phase := range phaseResults() {
			Expect(rep.Phases[i].Phase).To(Equal(phase.Phase))
		}

		duration, err := time.ParseDuration(rep.Summary.Duration)
		Expect(err).NotTo(HaveOccurred())
		Expect(duration).To(BeNumerically(">=", 2*time.Second))
	})

	It("passes overall only when every phase passed", func() {
		results := phaseResults()
		results[3].Passed = true

		rep := report.Aggregate(results, time.Now())
		Expect(rep.AllPassed()).To(BeTrue())
		Expect(rep.Summary.SuccessRate).To(Equal("100.0%"))
	})

	It("never passes with no phases", func() {
		rep := report.Aggregate(nil, time.Now())
		Expect(rep.AllPassed()).To(BeFalse())
		Expect(rep.Summary.SuccessRate).To(Equal("0%"))
	})
})

var _ = Describe("Persistence", func() {
	It("round-trips a report through the JSON file", func() {
		tmpDir, err := ioutil.TempDir("", "report-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tmpDir)

		rep := report.Aggregate(phaseResults(), time.Now())
		path := filepath.Join(tmpDir, "jepsen_report.json")
		Expect(rep.WriteFile(path)).To(Succeed())

		loaded, err := report.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Summary).To(Equal(rep.Summary))
		Expect(loaded.Phases).To(Equal(rep.Phases))
	})
})

var _ = Describe("Store", func() {
	var store *report.Store

	BeforeEach(func() {
		var err error
		store, err = report.OpenStore("")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
	})

	It("archives reports keyed by run timestamp", func() {
		first := report.Aggregate(phaseResults(), time.Now())
		first.Timestamp = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

		second := report.Aggregate(phaseResults(), time.Now())
		second.Timestamp = time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

		Expect(store.Put(first)).To(Succeed())
		Expect(store.Put(second)).To(Succeed())

		keys, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(HaveLen(2))
		// Timestamp keys sort chronologically.
		Expect(keys[0] < keys[1]).To(BeTrue())

		loaded, err := store.Get(keys[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Timestamp.Equal(second.Timestamp)).To(BeTrue())
	})

	It("fails to load a run that was never archived", func() {
		_, err := store.Get("2026-01-01T00:00:00.000000000Z")
		Expect(err).To(HaveOccurred())
	})
})
