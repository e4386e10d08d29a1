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

// Package cmd holds implementations of the efsctl commands.
package cmd

import (
	"fmt"
	"strings"

	"gvisor.dev/easyfs/efsctl/config"
	"gvisor.dev/easyfs/pkg/blockcache"
	"gvisor.dev/easyfs/pkg/blockdev"
	"gvisor.dev/easyfs/pkg/cleanup"
	"gvisor.dev/easyfs/pkg/efs"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/log"
)

// image is an easyfs image opened by a command.
type image struct {
	dev *blockdev.FileDevice
	fs  *efs.FileSystem
}

// mountImage opens and mounts the image at path.
func mountImage(conf *config.Config, path string) (*image, error) {
	dev, err := blockdev.OpenFile(path, conf.FileOptions())
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { dev.Close() })
	defer cu.Clean()

	fs, err := efs.Open(blockcache.NewManager(dev, conf.CacheBlocks))
	if err != nil {
		return nil, fmt.Errorf("mounting %q: %w", path, err)
	}
	cu.Release()
	return &image{dev: dev, fs: fs}, nil
}

// formatImage creates the image at path, sized and formatted as conf says.
// An existing image is overwritten.
func formatImage(conf *config.Config, path string) (*image, error) {
	opts := conf.FileOptions()
	opts.Create = true
	opts.Blocks = uint32(conf.TotalBlocks)
	dev, err := blockdev.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { dev.Close() })
	defer cu.Clean()

	fs, err := efs.Create(blockcache.NewManager(dev, conf.CacheBlocks), uint32(conf.TotalBlocks), uint32(conf.InodeBitmapBlocks))
	if err != nil {
		return nil, fmt.Errorf("formatting %q: %w", path, err)
	}
	cu.Release()
	return &image{dev: dev, fs: fs}, nil
}

// Close flushes the filesystem and releases the image.
func (img *image) Close() error {
	img.fs.Sync()
	stats := img.fs.Cache().Stats()
	log.Debugf("Block cache: %+v", stats)
	return img.dev.Close()
}

// splitPath splits p into the directory part, with its trailing separator,
// and the last component. Paths are not cleaned: ".." is resolved by Find
// walking the ".." entries, so "f1/.." fails when f1 is a file.
func splitPath(p string) (dir, name string) {
	p = strings.TrimRight(p, "/")
	i := strings.LastIndexByte(p, '/')
	return p[:i+1], p[i+1:]
}

// lookup resolves p from the root of img.
func (img *image) lookup(p string) (*efs.Inode, error) {
	ino, ok := img.fs.RootInode().Find(p)
	if !ok {
		return nil, fmt.Errorf("%q: %w", p, linuxerr.ENOENT)
	}
	return ino, nil
}

// lookupParent resolves the directory holding p and returns it with the
// last component of p.
func (img *image) lookupParent(p string) (*efs.Inode, string, error) {
	dir, name := splitPath(p)
	switch name {
	case "":
		return nil, "", fmt.Errorf("%q has no parent: %w", p, linuxerr.EINVAL)
	case ".", "..":
		return nil, "", fmt.Errorf("%q does not name an entry: %w", p, linuxerr.EINVAL)
	}
	parent, err := img.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", fmt.Errorf("%q: %w", dir, linuxerr.ENOTDIR)
	}
	return parent, name, nil
}

// relativeTo returns target, a path from the root, as seen from the
// directory at the absolute clean path dir.
func relativeTo(dir, target string) string {
	depth := 0
	if dir != "/" {
		depth = strings.Count(dir, "/")
	}
	return strings.Repeat("../", depth) + strings.TrimLeft(target, "/")
}
