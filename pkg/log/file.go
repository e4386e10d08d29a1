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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileOpts builds a concrete log file path from a pattern.
type FileOpts interface {
	// Build constructs the log file path based on the given pattern.
	Build(logPattern string) string
}

// PatternOpts substitutes the variables understood in log file patterns:
//
//	%TIMESTAMP%  the start time, formatted as 20060102-150405.000000
//	%PID%        the current process ID
//	%COMMAND%    the subcommand being run
type PatternOpts struct {
	Timestamp time.Time
	Command   string
}

// Build implements FileOpts.Build.
func (o PatternOpts) Build(logPattern string) string {
	r := strings.NewReplacer(
		"%TIMESTAMP%", o.Timestamp.Format("20060102-150405.000000"),
		"%PID%", strconv.Itoa(os.Getpid()),
		"%COMMAND%", o.Command,
	)
	return r.Replace(logPattern)
}

// OpenFile expands logPattern with opts and opens the result with flags,
// creating missing parent directories. An empty pattern yields a nil file
// and no error.
func OpenFile(logPattern string, flags int, opts FileOpts) (*os.File, error) {
	if logPattern == "" {
		return nil, nil
	}
	p := opts.Build(logPattern)
	if err := os.MkdirAll(filepath.Dir(p), 0o775); err != nil {
		return nil, fmt.Errorf("creating log directory for %q: %w", p, err)
	}
	f, err := os.OpenFile(p, flags, 0o664)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", p, err)
	}
	return f, nil
}
