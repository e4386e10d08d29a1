// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	if want := uint(65536); c.TotalBlocks != want {
		t.Errorf("TotalBlocks=%v, want: %v", c.TotalBlocks, want)
	}
	if want := 512; c.BlockSize != want {
		t.Errorf("BlockSize=%v, want: %v", c.BlockSize, want)
	}
	if want := 5 * time.Second; c.LockTimeout != want {
		t.Errorf("LockTimeout=%v, want: %v", c.LockTimeout, want)
	}
	if c.Debug {
		t.Errorf("Debug=true, want: false")
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--debug", "--total-blocks=4096", "--jobs=3", "--lock-timeout=1s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := uint(4096); c.TotalBlocks != want {
		t.Errorf("TotalBlocks=%v, want: %v", c.TotalBlocks, want)
	}
	if want := 3; c.Jobs != want {
		t.Errorf("Jobs=%v, want: %v", c.Jobs, want)
	}
	if want := time.Second; c.LockTimeout != want {
		t.Errorf("LockTimeout=%v, want: %v", c.LockTimeout, want)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efsctl.toml")
	const contents = `
debug = true
total-blocks = 8192
cache-blocks = 32
lock-timeout = "2s"
metrics-file = "/tmp/metrics.txt"
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	testFlags := newFlagSet()
	// Flags on the command line override the file.
	if err := testFlags.Parse([]string{"--config=" + path, "--cache-blocks=64"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Debug:             true,
		LogFormat:         "text",
		BlockSize:         512,
		TotalBlocks:       8192,
		InodeBitmapBlocks: 1,
		CacheBlocks:       64,
		Jobs:              c.Jobs,
		LockTimeout:       2 * time.Second,
		MetricsFile:       "/tmp/metrics.txt",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efsctl.yaml")
	const contents = `
total-blocks: 2048
inode-bitmap-blocks: 2
log-format: json
lock-timeout: 250ms
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config=" + path, "--debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Debug:             true,
		LogFormat:         "json",
		BlockSize:         512,
		TotalBlocks:       2048,
		InodeBitmapBlocks: 2,
		Jobs:              c.Jobs,
		LockTimeout:       250 * time.Millisecond,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efsctl.yml")
	if err := os.WriteFile(path, []byte("block-count: 12\n"), 0644); err != nil {
		t.Fatal(err)
	}
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config=" + path}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := NewFromFlags(testFlags); err == nil {
		t.Errorf("NewFromFlags() accepted an unknown key")
	}
}

func TestConfigFileMissing(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config=" + filepath.Join(t.TempDir(), "nope.toml")}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := NewFromFlags(testFlags); err == nil {
		t.Errorf("NewFromFlags() succeeded with a missing config file")
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{name: "block size", args: []string{"--block-size=4096"}},
		{name: "no blocks", args: []string{"--total-blocks=0"}},
		{name: "bitmap too large", args: []string{"--total-blocks=8", "--inode-bitmap-blocks=8"}},
		{name: "no bitmap", args: []string{"--inode-bitmap-blocks=0"}},
		{name: "jobs", args: []string{"--jobs=0"}},
		{name: "cache", args: []string{"--cache-blocks=-1"}},
		{name: "log format", args: []string{"--log-format=xml"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Parse(tc.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags(%v) succeeded, want error", tc.args)
			}
		})
	}
}

func TestClone(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	clone := c.Clone()
	if diff := cmp.Diff(c, clone); diff != "" {
		t.Errorf("Clone mismatch (-orig +clone):\n%s", diff)
	}
	clone.TotalBlocks++
	if c.TotalBlocks == clone.TotalBlocks {
		t.Errorf("Clone shares state with the original")
	}
}
