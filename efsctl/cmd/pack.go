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
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/easyfs/efsctl/config"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/log"
)

// Pack implements subcommands.Command for the "pack" command.
type Pack struct {
	source string
}

// Name implements subcommands.Command.Name.
func (*Pack) Name() string {
	return "pack"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Pack) Synopsis() string {
	return "create an image holding the files of a host directory"
}

// Usage implements subcommands.Command.Usage.
func (*Pack) Usage() string {
	return `pack -source <dir> <image> - formats <image> and copies every regular file of
<dir> into its root. Names lose everything from their first '.' on.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Pack) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.source, "source", "", "host directory to copy files from.")
}

// Execute implements subcommands.Command.Execute.
func (p *Pack) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if p.source == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return execute(p, f, 1, 1, args...)
}

// packName returns the name a host file is stored under.
func packName(hostName string) string {
	name, _, _ := strings.Cut(hostName, ".")
	return name
}

func (p *Pack) execute(conf *config.Config, w io.Writer, args []string) error {
	ents, err := os.ReadDir(p.source)
	if err != nil {
		return err
	}
	files := make(map[string]string)
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		name := packName(e.Name())
		if name == "" {
			log.Warningf("Skipping %q: nothing left of its name without the extension", e.Name())
			continue
		}
		if prev, ok := files[name]; ok {
			return fmt.Errorf("%q and %q are both stored as %q: %w", prev, e.Name(), name, linuxerr.EEXIST)
		}
		files[name] = e.Name()
	}

	img, err := formatImage(conf, args[0])
	if err != nil {
		return err
	}
	root := img.fs.RootInode()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(conf.Jobs)
	for name, hostName := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(p.source, hostName))
			if err != nil {
				return err
			}
			ino, err := root.CreateFile(name)
			if err != nil {
				return fmt.Errorf("creating %q: %w", name, err)
			}
			if _, err := ino.WriteAt(data, 0); err != nil {
				return fmt.Errorf("writing %q: %w", name, err)
			}
			log.Infof("Packed %q as %q, %d bytes", hostName, name, len(data))
			return nil
		})
	}
	err = g.Wait()
	if cerr := img.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: packed %d files from %s\n", args[0], len(files), p.source)
	return nil
}
