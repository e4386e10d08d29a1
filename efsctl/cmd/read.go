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
	"gvisor.dev/easyfs/pkg/efs"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
)

// Ls implements subcommands.Command for the "ls" command.
type Ls struct{}

// Name implements subcommands.Command.Name.
func (*Ls) Name() string {
	return "ls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Ls) Synopsis() string {
	return "list a directory of an image"
}

// Usage implements subcommands.Command.Usage.
func (*Ls) Usage() string {
	return `ls <image> [path] - lists the entries of the directory at path, the root
by default.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Ls) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (l *Ls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(l, f, 1, 2, args...)
}

func (l *Ls) execute(conf *config.Config, w io.Writer, args []string) error {
	p := "/"
	if len(args) > 1 {
		p = args[1]
	}
	return withImage(conf, args[0], func(img *image) error {
		dir, err := img.lookup(p)
		if err != nil {
			return err
		}
		if !dir.IsDir() {
			fmt.Fprintln(w, p)
			return nil
		}
		for _, name := range dir.Ls() {
			fmt.Fprintln(w, name)
		}
		return nil
	})
}

// Cat implements subcommands.Command for the "cat" command.
type Cat struct{}

// Name implements subcommands.Command.Name.
func (*Cat) Name() string {
	return "cat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Cat) Synopsis() string {
	return "print a file of an image"
}

// Usage implements subcommands.Command.Usage.
func (*Cat) Usage() string {
	return `cat <image> <path> - writes the content of the file at path to stdout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Cat) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (c *Cat) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(c, f, 2, 2, args...)
}

func (c *Cat) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		ino, err := img.lookup(args[1])
		if err != nil {
			return err
		}
		if ino.IsDir() {
			return fmt.Errorf("%q: %w", args[1], linuxerr.EISDIR)
		}
		_, err = io.Copy(w, io.NewSectionReader(ino, 0, int64(ino.Size())))
		return err
	})
}

// Tree implements subcommands.Command for the "tree" command.
type Tree struct{}

// Name implements subcommands.Command.Name.
func (*Tree) Name() string {
	return "tree"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Tree) Synopsis() string {
	return "print the directory tree of an image"
}

// Usage implements subcommands.Command.Usage.
func (*Tree) Usage() string {
	return `tree <image> [path] - prints every name below path, the root by default.
Directories end with '/'.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Tree) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (t *Tree) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(t, f, 1, 2, args...)
}

func (t *Tree) execute(conf *config.Config, w io.Writer, args []string) error {
	p := "/"
	if len(args) > 1 {
		p = args[1]
	}
	return withImage(conf, args[0], func(img *image) error {
		dir, err := img.lookup(p)
		if err != nil {
			return err
		}
		if !dir.IsDir() {
			fmt.Fprintln(w, p)
			return nil
		}
		top, err := dir.Path()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, top)
		printTree(w, dir, 1)
		return nil
	})
}

func printTree(w io.Writer, dir *efs.Inode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range dir.Ls() {
		if name == "." || name == ".." {
			continue
		}
		child, ok := dir.Find(name)
		if !ok {
			continue
		}
		if child.IsDir() {
			fmt.Fprintf(w, "%s%s/\n", indent, name)
			printTree(w, child, depth+1)
		} else {
			fmt.Fprintf(w, "%s%s\n", indent, name)
		}
	}
}

// Stat implements subcommands.Command for the "stat" command.
type Stat struct{}

// Name implements subcommands.Command.Name.
func (*Stat) Name() string {
	return "stat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stat) Synopsis() string {
	return "display the metadata of a file or directory of an image"
}

// Usage implements subcommands.Command.Usage.
func (*Stat) Usage() string {
	return `stat <image> <path> - prints inode number, type, link count and size.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Stat) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (s *Stat) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	return execute(s, f, 2, 2, args...)
}

func (s *Stat) execute(conf *config.Config, w io.Writer, args []string) error {
	return withImage(conf, args[0], func(img *image) error {
		ino, err := img.lookup(args[1])
		if err != nil {
			return err
		}
		st := ino.Stat()
		name := args[1]
		if st.Mode == efs.ModeDir {
			// Report where the directory really lives.
			if name, err = ino.Path(); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "  File: %s\n", name)
		fmt.Fprintf(w, "  Size: %d\n", st.Size)
		fmt.Fprintf(w, "  Type: %v\n", st.Mode)
		fmt.Fprintf(w, " Inode: %d\n", st.Ino)
		fmt.Fprintf(w, " Links: %d\n", st.Nlink)
		return nil
	})
}
