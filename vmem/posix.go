// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Posix reserves address space with an inaccessible anonymous private
// mapping and commits pages by making them accessible with mprotect. Pages
// are backed lazily by the kernel on first touch and read as zero.
type Posix struct {
	pageSize int
	res      reservations
}

// NewPosix returns a backend built on mmap, mprotect and munmap.
func NewPosix() *Posix {
	return &Posix{pageSize: unix.Getpagesize()}
}

// Default returns the virtual memory backend of the running platform.
func Default() Backend { return defaultBackend }

var defaultBackend Backend = NewPosix()

func (p *Posix) PageSize() int { return p.pageSize }

func (p *Posix) Reserve(size int) (unsafe.Pointer, error) {
	if size < 0 {
		return nil, ErrInvalidRange
	}
	n := reserveSize(size, p.pageSize)
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &Error{Op: "reserve", Size: n, Err: xerrors.Errorf("mmap: %w", err)}
	}
	return p.res.add(mem), nil
}

func (p *Posix) Commit(base unsafe.Pointer, offset, length int, prot Protection) error {
	if err := checkRange(offset, length, p.pageSize); err != nil {
		return err
	}
	mem, err := p.res.span(base, offset, length)
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if err := unix.Mprotect(mem, int(prot)); err != nil {
		return &Error{Op: "commit", Size: length, Err: xerrors.Errorf("mprotect at offset %d: %w", offset, err)}
	}
	return nil
}

func (p *Posix) Protect(base unsafe.Pointer, length int, prot Protection) error {
	if err := checkRange(0, length, p.pageSize); err != nil {
		return err
	}
	mem, err := p.res.span(base, 0, length)
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if err := unix.Mprotect(mem, int(prot)); err != nil {
		return &Error{Op: "protect", Size: length, Err: xerrors.Errorf("mprotect: %w", err)}
	}
	return nil
}

func (p *Posix) Release(base unsafe.Pointer, size int) error {
	mem, err := p.res.remove(base, size, p.pageSize)
	if err != nil {
		return err
	}
	if err := unix.Munmap(mem); err != nil {
		return &Error{Op: "release", Size: len(mem), Err: xerrors.Errorf("munmap: %w", err)}
	}
	return nil
}

// Encode maps a onto PROT_READ, PROT_WRITE and PROT_EXEC.
func (p *Posix) Encode(a Access) (Protection, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	prot := unix.PROT_NONE
	if a.Read {
		prot |= unix.PROT_READ
	}
	if a.Write {
		prot |= unix.PROT_WRITE
	}
	if a.Exec {
		prot |= unix.PROT_EXEC
	}
	return Protection(prot), nil
}

var _ Backend = (*Posix)(nil)
