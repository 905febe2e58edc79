/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"io/ioutil"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

var Config configuration

type configuration struct {
	Nodes map[string]string `yaml:"nodes"` // node name -> network address

	EnginePort int `yaml:"enginePort"` // data-plane engine port probed during preflight

	ExecTimeoutMs      int `yaml:"execTimeoutMs"`      // remote command timeout
	PreflightTimeoutMs int `yaml:"preflightTimeoutMs"` // engine dial timeout per node
	PartitionSettleMs  int `yaml:"partitionSettleMs"`  // delay after installing drop rules
	HealRetries        int `yaml:"healRetries"`        // connectivity polls after a heal
	HealIntervalMs     int `yaml:"healIntervalMs"`     // delay between heal polls

	PoolSize         int     `yaml:"poolSize"`         // worker pool capacity
	WriteCount       int     `yaml:"writeCount"`       // writes in the concurrent phase
	ReadCount        int     `yaml:"readCount"`        // reads in the concurrent phase
	SuccessThreshold float64 `yaml:"successThreshold"` // pass ratio for the concurrent phase

	DataLogPath   string `yaml:"dataLogPath"`   // KV log location on the nodes
	ReportPath    string `yaml:"reportPath"`    // final JSON report location
	HistoryWALDir string `yaml:"historyWALDir"` // durable operation log; empty disables
	ArchiveDir    string `yaml:"archiveDir"`    // report archive; empty disables

	// Whether to issue a best-effort kill for remote commands abandoned
	// after a timeout. The remote side may otherwise keep running them.
	KillAbandoned bool `yaml:"killAbandoned"`

	CPUSamplingMs int `yaml:"cpuSamplingMs"` // controller CPU sampling; 0 disables

	Logging      string        `yaml:"logging"`
	LoggingLevel zerolog.Level `yaml:"-"`
}

// LoadFile reads and unmarshals the run configuration,
// filling in defaults for everything the file leaves out.
func LoadFile(configFileName string) {
	f, err := ioutil.ReadFile(configFileName)
	if err != nil {
		logger.Fatal().Err(err).Str("fileName", configFileName).Msg("Could not read config file.")
	}

	setDefaults()

	if err := yaml.Unmarshal(f, &Config); err != nil {
		logger.Fatal().Err(err).Str("fileName", configFileName).Msg("Could not unmarshal config file.")
	}

	// The default topology applies only when the file defines no nodes.
	// Unmarshaling merges into a pre-populated map, so the defaults must
	// not contain one; a file topology fully replaces the default one.
	if len(Config.Nodes) == 0 {
		Config.Nodes = defaultNodes()
	}

	if Config.Logging != "" {
		level, err := zerolog.ParseLevel(Config.Logging)
		if err != nil {
			logger.Fatal().Str("logging", Config.Logging).Msg("Unknown logging level.")
		}
		Config.LoggingLevel = level
	}

	logger.Debug().
		Int("nodes", len(Config.Nodes)).
		Int("poolSize", Config.PoolSize).
		Float64("successThreshold", Config.SuccessThreshold).
		Str("reportPath", Config.ReportPath).
		Msg("Configuration loaded.")
}

func defaultNodes() map[string]string {
	return map[string]string{
		"zenith-node-1": "172.28.0.11",
		"zenith-node-2": "172.28.0.12",
		"zenith-node-3": "172.28.0.13",
	}
}

func setDefaults() {
	Config = configuration{
		EnginePort:         50051,
		ExecTimeoutMs:      10000,
		PreflightTimeoutMs: 5000,
		PartitionSettleMs:  2000,
		HealRetries:        5,
		HealIntervalMs:     2000,
		PoolSize:           6,
		WriteCount:         5,
		ReadCount:          3,
		SuccessThreshold:   0.8,
		DataLogPath:        "/tmp/zenith_data.log",
		ReportPath:         "/tmp/jepsen_report.json",
		Logging:            "info",
		LoggingLevel:       zerolog.InfoLevel,
	}
}
