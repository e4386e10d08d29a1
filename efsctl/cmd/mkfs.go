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
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/easyfs/efsctl/cmd/util"
	"gvisor.dev/easyfs/efsctl/config"
)

// withImage mounts the image at path, calls fn and releases the image.
func withImage(conf *config.Config, path string, fn func(img *image) error) error {
	img, err := mountImage(conf, path)
	if err != nil {
		return err
	}
	err = fn(img)
	if cerr := img.Close(); err == nil {
		err = cerr
	}
	return err
}

// runner is the part of a command that does the work, split from Execute so
// tests can drive it.
type runner interface {
	subcommands.Command
	execute(conf *config.Config, w io.Writer, args []string) error
}

// execute checks the argument count and runs r on behalf of Execute.
func execute(r runner, f *flag.FlagSet, minArgs, maxArgs int, args ...any) subcommands.ExitStatus {
	if f.NArg() < minArgs || f.NArg() > maxArgs {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := r.execute(conf, os.Stdout, f.Args()); err != nil {
		return util.Errorf("%s: %v", r.Name(), err)
	}
	return subcommands.ExitSuccess
}

// Mkfs implements subcommands.Command for the "mkfs" command.
type Mkfs struct{}

// Name implements subcommands.Command.Name.
func (*Mkfs) Name() string {
	return "mkfs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Mkfs) Synopsis() string {
	return "create and format an image"
}

// Usage implements subcommands.Command.Usage.
func (*Mkfs) Usage() string {
	return `mkfs [flags] <image> - creates <image> with --total-blocks blocks and formats it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Mkfs) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (m *Mkfs) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(m, f, 1, 1, args...)
}

func (m *Mkfs) execute(conf *config.Config, w io.Writer, args []string) error {
	img, err := formatImage(conf, args[0])
	if err != nil {
		return err
	}
	sb := img.fs.SuperBlock()
	fmt.Fprintf(w, "%s: %d blocks\n", args[0], sb.TotalBlocks)
	fmt.Fprintf(w, "  inode bitmap: %d blocks at %d\n", sb.InodeBitmapBlocks, sb.InodeBitmapStart())
	fmt.Fprintf(w, "  inode area:   %d blocks at %d (%d inodes)\n", sb.InodeAreaBlocks, sb.InodeAreaStart(), img.fs.MaxInodes())
	fmt.Fprintf(w, "  data bitmap:  %d blocks at %d\n", sb.DataBitmapBlocks, sb.DataBitmapStart())
	fmt.Fprintf(w, "  data area:    %d blocks at %d\n", sb.DataAreaBlocks, sb.DataAreaStart())
	return img.Close()
}

// Df implements subcommands.Command for the "df" command.
type Df struct{}

// Name implements subcommands.Command.Name.
func (*Df) Name() string {
	return "df"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Df) Synopsis() string {
	return "report inode and block usage of an image"
}

// Usage implements subcommands.Command.Usage.
func (*Df) Usage() string {
	return `df <image> - prints how many inodes and data blocks are in use.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Df) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (d *Df) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(d, f, 1, 1, args...)
}

func (d *Df) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		u := img.fs.Usage()
		fmt.Fprintf(w, "inodes: %d/%d\n", u.InodesUsed, u.InodesTotal)
		fmt.Fprintf(w, "blocks: %d/%d\n", u.BlocksUsed, u.BlocksTotal)
		return nil
	})
}
