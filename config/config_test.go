/*
Copyright Zenith Project. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	tmpDir, err := ioutil.TempDir("", "config-test-*")
	if err != nil {
		t.Fatalf("could not create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	fileName := filepath.Join(tmpDir, "nemesis.yml")
	if err := ioutil.WriteFile(fileName, []byte(contents), 0644); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}
	return fileName
}

func TestLoadFileReplacesDefaultTopology(t *testing.T) {
	fileName := writeConfigFile(t, `
nodes:
  alpha: 10.0.0.1
  beta: 10.0.0.2
poolSize: 4
`)

	LoadFile(fileName)

	if len(Config.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %v", len(Config.Nodes), Config.Nodes)
	}
	if Config.Nodes["alpha"] != "10.0.0.1" || Config.Nodes["beta"] != "10.0.0.2" {
		t.Fatalf("unexpected topology: %v", Config.Nodes)
	}
	if Config.PoolSize != 4 {
		t.Fatalf("expected pool size 4, got %d", Config.PoolSize)
	}
	// Values the file leaves out keep their defaults.
	if Config.SuccessThreshold != 0.8 {
		t.Fatalf("expected default success threshold, got %f", Config.SuccessThreshold)
	}
}

func TestLoadFileDefaultTopology(t *testing.T) {
	fileName := writeConfigFile(t, `
writeCount: 7
`)

	LoadFile(fileName)

	if len(Config.Nodes) != 3 {
		t.Fatalf("expected the 3 default nodes, got %d: %v", len(Config.Nodes), Config.Nodes)
	}
	if Config.Nodes["zenith-node-1"] != "172.28.0.11" {
		t.Fatalf("unexpected default topology: %v", Config.Nodes)
	}
	if Config.WriteCount != 7 {
		t.Fatalf("expected write count 7, got %d", Config.WriteCount)
	}
}

func TestLoadFileLoggingLevel(t *testing.T) {
	fileName := writeConfigFile(t, `
logging: debug
`)

	LoadFile(fileName)

	if Config.LoggingLevel != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", Config.LoggingLevel)
	}
}
