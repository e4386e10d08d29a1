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

// Package config provides basic infrastructure to set configuration settings
// for efsctl. Each setting has a flag; an optional TOML or YAML file supplies
// defaults that flags given on the command line override.
package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mohae/deepcopy"
	"gvisor.dev/easyfs/pkg/blockdev"
	"gvisor.dev/easyfs/pkg/log"
)

// Config holds configuration that is not part of a single command.
type Config struct {
	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug" yaml:"debug"`

	// LogFilename is the filename to log to, if not empty. It may contain
	// %TIMESTAMP%, %PID% and %COMMAND%.
	LogFilename string `flag:"log" toml:"log" yaml:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format" toml:"log-format" yaml:"log-format"`

	// BlockSize is the device block size in bytes.
	BlockSize int `flag:"block-size" toml:"block-size" yaml:"block-size"`

	// TotalBlocks is the size in blocks of images created by mkfs and pack.
	TotalBlocks uint `flag:"total-blocks" toml:"total-blocks" yaml:"total-blocks"`

	// InodeBitmapBlocks is the number of inode bitmap blocks of new images.
	InodeBitmapBlocks uint `flag:"inode-bitmap-blocks" toml:"inode-bitmap-blocks" yaml:"inode-bitmap-blocks"`

	// CacheBlocks is the capacity of the block cache.
	CacheBlocks int `flag:"cache-blocks" toml:"cache-blocks" yaml:"cache-blocks"`

	// Jobs bounds the number of host files pack reads concurrently.
	Jobs int `flag:"jobs" toml:"jobs" yaml:"jobs"`

	// LockTimeout is how long to wait for another process to release an
	// image.
	LockTimeout time.Duration `flag:"lock-timeout" toml:"lock-timeout" yaml:"lock-timeout"`

	// MetricsFile is where the metric snapshot is written after a command,
	// in Prometheus text format. Empty disables it.
	MetricsFile string `flag:"metrics-file" toml:"metrics-file" yaml:"metrics-file"`
}

func (c *Config) validate() error {
	if c.BlockSize != blockdev.DefaultBlockSize {
		return fmt.Errorf("block size %d is not supported, only %d is", c.BlockSize, blockdev.DefaultBlockSize)
	}
	if c.TotalBlocks == 0 || uint64(c.TotalBlocks) > 1<<32-1 {
		return fmt.Errorf("total-blocks must be in [1, 2^32), got %d", c.TotalBlocks)
	}
	if c.InodeBitmapBlocks == 0 || c.InodeBitmapBlocks >= c.TotalBlocks {
		return fmt.Errorf("inode-bitmap-blocks must be in [1, %d), got %d", c.TotalBlocks, c.InodeBitmapBlocks)
	}
	if c.CacheBlocks < 0 {
		return fmt.Errorf("cache-blocks must not be negative, got %d", c.CacheBlocks)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock-timeout must not be negative, got %v", c.LockTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

// FileOptions returns the options to open an image with.
func (c *Config) FileOptions() blockdev.FileOptions {
	return blockdev.FileOptions{
		BlockSize:   c.BlockSize,
		LockTimeout: c.LockTimeout,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Debugf("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Debugf("\t%s: %v", name, obj.Field(i).Interface())
	}
}
