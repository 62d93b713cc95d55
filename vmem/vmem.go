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

// Package vmem provides the operating system primitives used to reserve a
// range of address space, commit physical backing for parts of it, change
// its protection and release it.
//
// A Backend separates reservation from commitment: the base address returned
// by Reserve stays valid until Release, and growth only ever commits more of
// the already reserved range. The platform backend is selected at build time
// and returned by Default.
package vmem

import (
	"errors"
	"strconv"
	"unsafe"
)

var (
	// ErrBackendDenied is returned when the operating system refuses a
	// reserve, commit, protect or release request.
	ErrBackendDenied = errors.New("vmem: backend denied request")
	// ErrInvalidProtection is returned when an Access has no native encoding.
	ErrInvalidProtection = errors.New("vmem: invalid protection combination")
	// ErrInvalidRange is returned for negative, unaligned or out of bounds ranges.
	ErrInvalidRange = errors.New("vmem: invalid range")
)

// Protection is a backend specific protection encoding, as produced by
// Backend.Encode.
type Protection uint32

// Backend is the set of virtual memory primitives a reservation is built on.
//
// Commit is only ever called with page aligned, monotonically growing ranges.
// Release must be called exactly once per successful Reserve and must be the
// last call made for that base.
type Backend interface {
	// Reserve reserves size bytes of address space without committing it.
	Reserve(size int) (unsafe.Pointer, error)
	// Commit makes [base+offset, base+offset+length) accessible with prot.
	Commit(base unsafe.Pointer, offset, length int, prot Protection) error
	// Protect changes the protection of the committed range [base, base+length).
	Protect(base unsafe.Pointer, length int, prot Protection) error
	// Release returns the whole reservation to the operating system.
	Release(base unsafe.Pointer, size int) error
	// Encode translates a as this backend's native protection.
	Encode(a Access) (Protection, error)
	// PageSize is the commit granularity in bytes.
	PageSize() int
}

// Error describes a failed backend operation.
type Error struct {
	Op   string
	Size int
	Err  error
}

func (e *Error) Error() string {
	msg := "vmem: " + e.Op + " " + strconv.Itoa(e.Size) + " bytes"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrBackendDenied for every failed operating system call so
// callers do not need to know about platform errno values.
func (e *Error) Is(target error) bool { return target == ErrBackendDenied }

// RoundUp rounds n up to the next multiple of pageSize, which must be a
// power of two.
func RoundUp(n, pageSize int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

func checkRange(offset, length, pageSize int) error {
	if offset < 0 || length < 0 {
		return ErrInvalidRange
	}
	if offset&(pageSize-1) != 0 {
		return ErrInvalidRange
	}
	return nil
}

// reserveSize is the number of bytes actually reserved for a request of size
// bytes: at least one page, page aligned.
func reserveSize(size, pageSize int) int {
	if size <= 0 {
		return pageSize
	}
	return RoundUp(size, pageSize)
}
