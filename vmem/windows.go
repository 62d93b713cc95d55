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

//go:build windows

package vmem

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/xerrors"
)

// Windows reserves address space with VirtualAlloc(MEM_RESERVE) and commits
// sub-ranges at the same base with VirtualAlloc(MEM_COMMIT). Committed pages
// read as zero.
type Windows struct {
	pageSize int
	res      reservations
}

// NewWindows returns a backend built on VirtualAlloc, VirtualProtect and
// VirtualFree.
func NewWindows() *Windows {
	return &Windows{pageSize: os.Getpagesize()}
}

// Default returns the virtual memory backend of the running platform.
func Default() Backend { return defaultBackend }

var defaultBackend Backend = NewWindows()

func (w *Windows) PageSize() int { return w.pageSize }

func (w *Windows) Reserve(size int) (unsafe.Pointer, error) {
	if size < 0 {
		return nil, ErrInvalidRange
	}
	n := reserveSize(size, w.pageSize)
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, &Error{Op: "reserve", Size: n, Err: xerrors.Errorf("VirtualAlloc(MEM_RESERVE): %w", err)}
	}
	return w.res.add(unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)), nil
}

func (w *Windows) Commit(base unsafe.Pointer, offset, length int, prot Protection) error {
	if err := checkRange(offset, length, w.pageSize); err != nil {
		return err
	}
	if _, err := w.res.span(base, offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if _, err := windows.VirtualAlloc(uintptr(unsafe.Add(base, offset)), uintptr(length), windows.MEM_COMMIT, uint32(prot)); err != nil {
		return &Error{Op: "commit", Size: length, Err: xerrors.Errorf("VirtualAlloc(MEM_COMMIT) at offset %d: %w", offset, err)}
	}
	return nil
}

func (w *Windows) Protect(base unsafe.Pointer, length int, prot Protection) error {
	if err := checkRange(0, length, w.pageSize); err != nil {
		return err
	}
	if _, err := w.res.span(base, 0, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	var old uint32
	if err := windows.VirtualProtect(uintptr(base), uintptr(length), uint32(prot), &old); err != nil {
		return &Error{Op: "protect", Size: length, Err: xerrors.Errorf("VirtualProtect: %w", err)}
	}
	return nil
}

func (w *Windows) Release(base unsafe.Pointer, size int) error {
	mem, err := w.res.remove(base, size, w.pageSize)
	if err != nil {
		return err
	}
	// MEM_RELEASE requires a zero size and frees the whole reservation.
	if err := windows.VirtualFree(uintptr(base), 0, windows.MEM_RELEASE); err != nil {
		return &Error{Op: "release", Size: len(mem), Err: xerrors.Errorf("VirtualFree: %w", err)}
	}
	return nil
}

// Encode maps a onto the PAGE_* constants. Write access always implies read
// access on Windows, so "-w-" and "-wx" are rejected.
func (w *Windows) Encode(a Access) (Protection, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	switch a {
	case ReadWriteExec:
		return windows.PAGE_EXECUTE_READWRITE, nil
	case ReadExec:
		return windows.PAGE_EXECUTE_READ, nil
	case Access{Exec: true}:
		return windows.PAGE_EXECUTE, nil
	case ReadWrite:
		return windows.PAGE_READWRITE, nil
	case ReadOnly:
		return windows.PAGE_READONLY, nil
	default:
		return windows.PAGE_NOACCESS, nil
	}
}

var _ Backend = (*Windows)(nil)
