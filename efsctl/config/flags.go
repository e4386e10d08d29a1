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
	"fmt"
	"reflect"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
	"gvisor.dev/easyfs/pkg/blockdev"
)

// configFlag names the flag that points at a configuration file.
const configFlag = "config"

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String(configFlag, "", "TOML or YAML (.yaml, .yml) file with default settings. Flags given on the command line take precedence.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %PID%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.String("metrics-file", "", "file path where a snapshot of all metrics is written after the command, in Prometheus text format.")

	// Image flags.
	flagSet.Int("block-size", blockdev.DefaultBlockSize, "device block size in bytes. Only 512 is supported.")
	flagSet.Uint("total-blocks", 32*2048, "size in blocks of images created by mkfs and pack.")
	flagSet.Uint("inode-bitmap-blocks", 1, "number of inode bitmap blocks of new images. Each block allows 4096 inodes.")
	flagSet.Int("cache-blocks", 0, "number of blocks held by the block cache. 0 picks the default.")
	flagSet.Duration("lock-timeout", 5*time.Second, "how long to wait for another process to release an image.")

	flagSet.Int("jobs", runtime.NumCPU(), "number of host files read concurrently by pack.")
}

// NewFromFlags creates a new Config with values coming from command line flags
// and, if --config is set, the file it names.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := conf.setFromFlags(flagSet, nil); err != nil {
		return nil, err
	}

	if path := flagSet.Lookup(configFlag).Value.String(); path != "" {
		if err := decodeFile(path, conf); err != nil {
			return nil, err
		}
		// Explicit flags win over the file.
		set := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})
		if err := conf.setFromFlags(flagSet, set); err != nil {
			return nil, err
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlags copies flag values into c. If only is not nil, only the flags
// it names are copied.
func (c *Config) setFromFlags(flagSet *flag.FlagSet, only map[string]bool) error {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		if only != nil && !only[name] {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			return fmt.Errorf("flag %q has no typed value", name)
		}
		obj.Field(i).Set(reflect.ValueOf(getter.Get()))
	}
	return nil
}

// decodeFile loads path into conf. The format follows the extension; TOML is
// assumed unless it is .yaml or .yml. Unknown keys are an error in YAML.
func decodeFile(path string, conf *Config) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("unable to open config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.SetStrict(true)
		if err := dec.Decode(conf); err != nil {
			return fmt.Errorf("unable to decode %q: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, conf); err != nil {
			return fmt.Errorf("reading config file %q: %w", path, err)
		}
	}
	return nil
}
