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

// Package cli is the main entrypoint for efsctl.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/easyfs/efsctl/cmd"
	"gvisor.dev/easyfs/efsctl/cmd/util"
	"gvisor.dev/easyfs/efsctl/config"
	"gvisor.dev/easyfs/pkg/log"
	"gvisor.dev/easyfs/pkg/metric"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	} else {
		log.SetLevel(log.Warning)
	}

	if conf.LogFilename != "" {
		// O_APPEND so that several commands can share one log file.
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.PatternOpts{
			Timestamp: time.Now(),
			Command:   subcommand,
		})
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		util.ErrorLogger = f
		log.SetTarget(newEmitter(conf.LogFormat, f))
	} else if conf.LogFormat != "text" {
		log.SetTarget(newEmitter(conf.LogFormat, os.Stderr))
	}

	const delimString = `**************** easyfs ****************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)

	if conf.MetricsFile != "" {
		if err := writeMetrics(conf.MetricsFile); err != nil {
			util.Fatalf("error writing metrics to %q: %v", conf.MetricsFile, err)
		}
	}
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by efsctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const imageGroup = "images"
	cb(new(cmd.Mkfs), imageGroup)
	cb(new(cmd.Pack), imageGroup)
	cb(new(cmd.Df), imageGroup)

	const readGroup = "reading"
	cb(new(cmd.Ls), readGroup)
	cb(new(cmd.Cat), readGroup)
	cb(new(cmd.Tree), readGroup)
	cb(new(cmd.Stat), readGroup)

	const writeGroup = "writing"
	cb(new(cmd.Mkdir), writeGroup)
	cb(new(cmd.Rm), writeGroup)
	cb(new(cmd.Link), writeGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{&log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{&log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'text' or 'json'", format)
	panic("unreachable")
}

// writeMetrics writes a snapshot of every metric to path.
func writeMetrics(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := metric.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
