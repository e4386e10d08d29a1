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

package blockdev

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	"gvisor.dev/easyfs/pkg/errors/linuxerr"
	"gvisor.dev/easyfs/pkg/log"
)

// lockSuffix names the advisory lock file kept next to an image.
const lockSuffix = ".lock"

// FileOptions configures OpenFile.
type FileOptions struct {
	// BlockSize is the device block size. Zero means DefaultBlockSize.
	BlockSize int

	// Create creates the image if it does not exist and sets its length to
	// Blocks blocks.
	Create bool

	// Blocks is the length of a created image, in blocks.
	Blocks uint32

	// ReadOnly opens the image for reading only. Writes fail with EBADF.
	ReadOnly bool

	// LockTimeout bounds how long OpenFile waits for another process to
	// release the image. Zero tries exactly once.
	LockTimeout time.Duration
}

// FileDevice is a BlockDevice backed by a host file. The image is locked
// exclusively for as long as the device is open.
type FileDevice struct {
	blockSize int
	numBlocks uint32
	file      *os.File
	lock      *flock.Flock
}

// OpenFile opens (or creates) the image at path as a block device.
func OpenFile(path string, opts FileOptions) (*FileDevice, error) {
	bs := opts.BlockSize
	if bs == 0 {
		bs = DefaultBlockSize
	}

	lock, err := lockImage(path+lockSuffix, opts.LockTimeout)
	if err != nil {
		return nil, err
	}

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	if opts.Create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening image %q: %w", path, err)
	}

	if opts.Create {
		if err := f.Truncate(int64(opts.Blocks) * int64(bs)); err != nil {
			f.Close()
			lock.Unlock()
			return nil, fmt.Errorf("sizing image %q to %d blocks: %w", path, opts.Blocks, err)
		}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, fmt.Errorf("stat image %q: %w", path, err)
	}
	if fi.Size()%int64(bs) != 0 {
		log.Warningf("Image %q size %d is not a multiple of the block size %d, ignoring the tail", path, fi.Size(), bs)
	}
	d := &FileDevice{
		blockSize: bs,
		numBlocks: uint32(fi.Size() / int64(bs)),
		file:      f,
		lock:      lock,
	}
	log.Debugf("Opened image %q: %d blocks of %d bytes", path, d.numBlocks, bs)
	return d, nil
}

// lockImage takes the advisory lock at lockPath, retrying until timeout. A
// lock still held at the deadline is EBUSY.
func lockImage(lockPath string, timeout time.Duration) (*flock.Flock, error) {
	l := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(100*time.Millisecond), ctx)
	op := func() error {
		ok, err := l.TryLock()
		if err != nil {
			return &backoff.PermanentError{Err: err}
		}
		if !ok {
			return fmt.Errorf("image is locked by another process: %w", linuxerr.EBUSY)
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", lockPath, err)
	}
	return l, nil
}

// BlockSize implements BlockDevice.BlockSize.
func (d *FileDevice) BlockSize() int {
	return d.blockSize
}

// NumBlocks returns the number of whole blocks in the image.
func (d *FileDevice) NumBlocks() uint32 {
	return d.numBlocks
}

// ReadBlock implements BlockDevice.ReadBlock.
func (d *FileDevice) ReadBlock(id uint32, buf []byte) error {
	if err := checkTransfer(id, buf, d.blockSize, d.numBlocks); err != nil {
		return err
	}
	off := int64(id) * int64(d.blockSize)
	for done := 0; done < len(buf); {
		n, err := unix.Pread(int(d.file.Fd()), buf[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading block %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("reading block %d: short read of %d bytes", id, done)
		}
		done += n
	}
	return nil
}

// WriteBlock implements BlockDevice.WriteBlock.
func (d *FileDevice) WriteBlock(id uint32, buf []byte) error {
	if err := checkTransfer(id, buf, d.blockSize, d.numBlocks); err != nil {
		return err
	}
	off := int64(id) * int64(d.blockSize)
	for done := 0; done < len(buf); {
		n, err := unix.Pwrite(int(d.file.Fd()), buf[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("writing block %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("writing block %d: short write of %d bytes", id, done)
		}
		done += n
	}
	return nil
}

// Sync implements Syncer.Sync.
func (d *FileDevice) Sync() error {
	if err := unix.Fsync(int(d.file.Fd())); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	return nil
}

// Close releases the image file and its lock.
func (d *FileDevice) Close() error {
	err := d.file.Close()
	if uerr := d.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
