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

// Package linuxerr contains the errors returned by easyfs operations, each
// paired with the Linux errno a syscall layer should report for it.
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"gvisor.dev/easyfs/pkg/errors"
)

// The following errors are semantically identical to their Errno
// counterparts.
var (
	noError *errors.Error = nil

	ENOENT       = errors.New(unix.ENOENT, "no such file or directory")
	EIO          = errors.New(unix.EIO, "I/O error")
	EBUSY        = errors.New(unix.EBUSY, "device or resource busy")
	EEXIST       = errors.New(unix.EEXIST, "file exists")
	ENOTDIR      = errors.New(unix.ENOTDIR, "not a directory")
	EISDIR       = errors.New(unix.EISDIR, "is a directory")
	EINVAL       = errors.New(unix.EINVAL, "invalid argument")
	EFBIG        = errors.New(unix.EFBIG, "file too large")
	ENOSPC       = errors.New(unix.ENOSPC, "no space left on device")
	ENAMETOOLONG = errors.New(unix.ENAMETOOLONG, "file name too long")
	ENOTEMPTY    = errors.New(unix.ENOTEMPTY, "directory not empty")
)

// ToError converts a linuxerr to an error type.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts an error returned by easyfs to a unix.Errno, looking
// through wrapping. Errors that carry no errno map to EIO.
func ToUnix(err error) unix.Errno {
	switch e := err.(type) {
	case nil:
		return 0
	case *errors.Error:
		if e == noError {
			return 0
		}
		return e.Errno()
	case unix.Errno:
		return e
	}
	var e *errors.Error
	if goerrors.As(err, &e) && e != noError {
		return e.Errno()
	}
	var errno unix.Errno
	if goerrors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}

// Equals compares a linuxerr to a given error, which may wrap it.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == noError
	}
	if e == noError {
		return false
	}
	var le *errors.Error
	if goerrors.As(err, &le) {
		return le != noError && le.Errno() == e.Errno()
	}
	var errno unix.Errno
	return goerrors.As(err, &errno) && errno == e.Errno()
}
