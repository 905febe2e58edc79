/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package harness wires the components together and drives a run through
// its fixed phase sequence: connectivity, partition, recovery, concurrent
// operations, linearizability, report. Phases execute strictly one after
// another and all of them run regardless of earlier failures, so the
// report always reflects every phase.
package harness

import (
	"fmt"
	"time"

	logger "github.com/rs/zerolog/log"

	"github.com/zenith-project/nemesis/checker"
	"github.com/zenith-project/nemesis/config"
	"github.com/zenith-project/nemesis/controller"
	"github.com/zenith-project/nemesis/history"
	"github.com/zenith-project/nemesis/membership"
	"github.com/zenith-project/nemesis/nemesis"
	"github.com/zenith-project/nemesis/profiling"
	"github.com/zenith-project/nemesis/report"
	"github.com/zenith-project/nemesis/workload"
)

// Params collects every tunable of a run. The zero value is not usable;
// start from DefaultParams or ParamsFromConfig.
type Params struct {
	EnginePort       int
	ExecTimeout      time.Duration
	PreflightTimeout time.Duration

	IsolatedNode    string // empty selects the last node in name order
	PartitionSettle time.Duration
	HealRetries     int
	HealInterval    time.Duration

	PoolSize         int
	WriteCount       int
	ReadCount        int
	ReadSettle       time.Duration // delay between the write and read batches
	LinearWriteGap   time.Duration // gap between sequential linearizability writes
	SuccessThreshold float64

	DataLogPath   string
	ReportPath    string
	HistoryWALDir string
	ArchiveDir    string

	KillAbandoned     bool
	CPUSampleInterval time.Duration // 0 disables controller load sampling

	// EngineDial overrides the preflight engine probe; nil uses a blocking
	// gRPC dial against the node's engine port.
	EngineDial func(addr string, timeout time.Duration) error
}

func DefaultParams() Params {
	return Params{
		EnginePort:       50051,
		ExecTimeout:      10 * time.Second,
		PreflightTimeout: 5 * time.Second,
		PartitionSettle:  2 * time.Second,
		HealRetries:      5,
		HealInterval:     2 * time.Second,
		PoolSize:         6,
		WriteCount:       5,
		ReadCount:        3,
		ReadSettle:       time.Second,
		LinearWriteGap:   100 * time.Millisecond,
		SuccessThreshold: 0.8,
		DataLogPath:      "/tmp/zenith_data.log",
		ReportPath:       "/tmp/jepsen_report.json",
	}
}

// ParamsFromConfig translates the loaded configuration into run parameters.
func ParamsFromConfig() Params {
	p := DefaultParams()
	c := config.Config

	p.EnginePort = c.EnginePort
	p.ExecTimeout = time.Duration(c.ExecTimeoutMs) * time.Millisecond
	p.PreflightTimeout = time.Duration(c.PreflightTimeoutMs) * time.Millisecond
	p.PartitionSettle = time.Duration(c.PartitionSettleMs) * time.Millisecond
	p.HealRetries = c.HealRetries
	p.HealInterval = time.Duration(c.HealIntervalMs) * time.Millisecond
	p.PoolSize = c.PoolSize
	p.WriteCount = c.WriteCount
	p.ReadCount = c.ReadCount
	p.SuccessThreshold = c.SuccessThreshold
	p.DataLogPath = c.DataLogPath
	p.ReportPath = c.ReportPath
	p.HistoryWALDir = c.HistoryWALDir
	p.ArchiveDir = c.ArchiveDir
	p.KillAbandoned = c.KillAbandoned
	p.CPUSampleInterval = time.Duration(c.CPUSamplingMs) * time.Millisecond

	return p
}

// Harness owns the component graph of one run.
type Harness struct {
	params   Params
	topology *membership.Topology
	ctl      *controller.Controller
	nem      *nemesis.Nemesis
	gen      *workload.Generator
	chk      *checker.Checker
	recorder *history.Recorder
}

func New(topology *membership.Topology, transport controller.Transport, params Params) *Harness {
	ctl := controller.New(topology, transport, params.ExecTimeout)
	ctl.SetKillAbandoned(params.KillAbandoned)

	recorder := history.NewRecorder()

	return &Harness{
		params:   params,
		topology: topology,
		ctl:      ctl,
		nem:      nemesis.New(ctl, params.PartitionSettle, params.HealRetries, params.HealInterval),
		gen:      workload.NewGenerator(ctl, recorder, params.DataLogPath, params.PoolSize),
		chk:      checker.New(ctl, params.SuccessThreshold),
		recorder: recorder,
	}
}

// Recorder exposes the run's history sink.
func (h *Harness) Recorder() *history.Recorder {
	return h.recorder
}

// Run executes all phases and produces the aggregated report. The only
// error it can return is a fatal preflight failure; everything after
// preflight is folded into phase results.
func (h *Harness) Run() (report.Report, error) {
	if err := h.Preflight(); err != nil {
		return report.Report{}, err
	}

	start := time.Now()

	var monitor *profiling.CPUMonitor
	if h.params.CPUSampleInterval > 0 {
		monitor = profiling.StartCPUMonitor(h.params.CPUSampleInterval)
	}

	if h.params.HistoryWALDir != "" {
		opLog, err := history.OpenLog(h.params.HistoryWALDir)
		if err != nil {
			logger.Error().Err(err).Str("dir", h.params.HistoryWALDir).Msg("Could not open operation log; continuing without durability.")
		} else {
			h.recorder.AttachLog(opLog)
			defer opLog.Close()
		}
	}

	isolated := h.isolatedNode()
	peers := h.topology.Peers(isolated)
	results := make([]checker.PhaseResult, 0, 5)

	logPhase(1, "Connectivity")
	results = append(results, h.chk.CheckConnectivity(h.topology))

	logPhase(2, "Network Partition (Nemesis)")
	partitionConfirmed := h.nem.Partition(isolated, peers)
	results = append(results, h.chk.CheckPartitionEffect(isolated, peers, partitionConfirmed))

	logPhase(3, "Network Recovery")
	recoveryConfirmed := h.nem.Heal(isolated)
	results = append(results, h.chk.CheckRecovery(isolated, peers, recoveryConfirmed))

	logPhase(4, "Concurrent Operations")
	results = append(results, h.runConcurrentOps())

	logPhase(5, "Linearizability")
	results = append(results, h.runLinearizability())

	rep := report.Aggregate(results, start)
	if monitor != nil {
		load, samples := monitor.Stop()
		rep.CPULoad = load
		logger.Info().Float64("load", load).Int("samples", samples).Msg("Controller CPU load.")
	}

	h.persist(rep)

	return rep, nil
}

// runConcurrentOps fires the bounded-concurrency write batch, lets the
// cluster settle, then fires the read batch. Only this phase's operations
// count towards its success ratio.
func (h *Harness) runConcurrentOps() checker.PhaseResult {
	pick := workload.UniformSelector(h.topology)
	keyFn := func(i int) string { return fmt.Sprintf("key_%d", i) }
	valueFn := func(i int) string {
		return fmt.Sprintf("value_%d_%d", i, time.Now().UnixNano()/int64(time.Millisecond))
	}

	ops := h.gen.RunWrites(h.params.WriteCount, keyFn, valueFn, pick)
	time.Sleep(h.params.ReadSettle)
	ops = append(ops, h.gen.RunReads(h.params.ReadCount, keyFn, pick)...)

	return h.chk.CheckConcurrentOps(ops)
}

// runLinearizability writes a strictly sequential schedule on a fresh key,
// reads it back from every node, and checks the reads against the
// visible-write rule.
func (h *Harness) runLinearizability() checker.PhaseResult {
	key := fmt.Sprintf("linear_test_%d", time.Now().Unix())

	for i, node := range h.topology.NodeNames() {
		value := fmt.Sprintf("v%d_%d", i, time.Now().UnixNano()/int64(time.Millisecond))
		h.gen.WriteSync(node, key, value)
		time.Sleep(h.params.LinearWriteGap)
	}

	for _, node := range h.topology.NodeNames() {
		h.gen.ReadSync(node, key)
	}

	return h.chk.CheckLinearizability(h.recorder.Snapshot(), key)
}

func (h *Harness) isolatedNode() string {
	if h.params.IsolatedNode != "" {
		return h.params.IsolatedNode
	}
	names := h.topology.NodeNames()
	return names[len(names)-1]
}

// persist writes the report to its configured location and, if an archive
// is configured, stores it there as well. Persistence problems are logged
// but never turn a completed run into a failure.
func (h *Harness) persist(rep report.Report) {
	if h.params.ReportPath != "" {
		if err := rep.WriteFile(h.params.ReportPath); err != nil {
			logger.Error().Err(err).Msg("Could not persist report.")
		} else {
			logger.Info().Str("path", h.params.ReportPath).Msg("Report saved.")
		}
	}

	if h.params.ArchiveDir != "" {
		store, err := report.OpenStore(h.params.ArchiveDir)
		if err != nil {
			logger.Error().Err(err).Str("dir", h.params.ArchiveDir).Msg("Could not open report archive.")
			return
		}
		defer store.Close()

		if err := store.Put(rep); err != nil {
			logger.Error().Err(err).Msg("Could not archive report.")
		}
	}
}

func logPhase(number int, name string) {
	logger.Info().Int("phase", number).Str("name", name).Msg("Starting phase.")
}
