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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/easyfs/efsctl/config"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
)

// Mkdir implements subcommands.Command for the "mkdir" command.
type Mkdir struct {
	parents bool
}

// Name implements subcommands.Command.Name.
func (*Mkdir) Name() string {
	return "mkdir"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Mkdir) Synopsis() string {
	return "create a directory in an image"
}

// Usage implements subcommands.Command.Usage.
func (*Mkdir) Usage() string {
	return `mkdir [-p] <image> <path> - creates a directory at path.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Mkdir) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.parents, "p", false, "create missing parent directories and accept an existing directory.")
}

// Execute implements subcommands.Command.Execute.
func (m *Mkdir) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(m, f, 2, 2, args...)
}

func (m *Mkdir) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		if !m.parents {
			parent, name, err := img.lookupParent(args[1])
			if err != nil {
				return err
			}
			_, err = parent.CreateDir(name)
			return err
		}
		cur := img.fs.RootInode()
		for _, name := range strings.Split(args[1], "/") {
			if name == "" {
				continue
			}
			next, ok := cur.Find(name)
			if !ok {
				var err error
				if next, err = cur.CreateDir(name); err != nil {
					return err
				}
			} else if !next.IsDir() {
				return fmt.Errorf("%q: %w", name, linuxerr.ENOTDIR)
			}
			cur = next
		}
		return nil
	})
}

// Rm implements subcommands.Command for the "rm" command.
type Rm struct {
	recursive bool
}

// Name implements subcommands.Command.Name.
func (*Rm) Name() string {
	return "rm"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Rm) Synopsis() string {
	return "remove a file or directory from an image"
}

// Usage implements subcommands.Command.Usage.
func (*Rm) Usage() string {
	return `rm [-r] <image> <path> - removes the entry at path. Directories need -r.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Rm) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.recursive, "r", false, "remove directories and their contents.")
}

// Execute implements subcommands.Command.Execute.
func (r *Rm) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(r, f, 2, 2, args...)
}

func (r *Rm) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		parent, name, err := img.lookupParent(args[1])
		if err != nil {
			return err
		}
		target, ok := parent.Find(name)
		if !ok {
			return fmt.Errorf("%q: %w", args[1], linuxerr.ENOENT)
		}
		if !target.IsDir() {
			return parent.Unlinkat(name)
		}
		if !r.recursive {
			return fmt.Errorf("%q: %w, use -r", args[1], linuxerr.EISDIR)
		}
		return parent.RemoveAll(name)
	})
}

// Link implements subcommands.Command for the "link" command.
type Link struct{}

// Name implements subcommands.Command.Name.
func (*Link) Name() string {
	return "link"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Link) Synopsis() string {
	return "create a hard link in an image"
}

// Usage implements subcommands.Command.Usage.
func (*Link) Usage() string {
	return `link <image> <old> <new> - makes new another name for the file at old.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Link) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (l *Link) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(l, f, 3, 3, args...)
}

func (l *Link) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		parent, name, err := img.lookupParent(args[2])
		if err != nil {
			return err
		}
		dir, err := parent.Path()
		if err != nil {
			return err
		}
		return parent.Linkat(relativeTo(dir, args[1]), name)
	})
}
