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

package vmem

import (
	"os"
	"unsafe"

	"golang.org/x/xerrors"
)

// heap protection bits; the Heap backend records them but cannot enforce them.
const (
	heapRead Protection = 1 << iota
	heapWrite
	heapExec
)

// DefaultHeapLimit caps single reservations of the heap backend returned by
// Default on platforms without virtual memory primitives.
const DefaultHeapLimit = 1 << 30

// Heap satisfies Backend with ordinary Go memory. Reserve allocates the whole
// range up front, so the base never moves but nothing is committed lazily.
// It is the default on platforms without virtual memory primitives and is
// useful in tests that need a deterministic backend.
type Heap struct {
	pageSize int
	limit    int
	res      reservations
}

// NewHeapBackend returns a Heap backend. A positive limit caps the size of a
// single reservation, which makes large reservations fail like an exhausted
// address space would.
func NewHeapBackend(limit int) *Heap {
	return &Heap{pageSize: os.Getpagesize(), limit: limit}
}

func (h *Heap) PageSize() int { return h.pageSize }

// Live returns the number of reservations not yet released.
func (h *Heap) Live() int { return h.res.len() }

func (h *Heap) Reserve(size int) (unsafe.Pointer, error) {
	if size < 0 {
		return nil, ErrInvalidRange
	}
	n := reserveSize(size, h.pageSize)
	if h.limit > 0 && n > h.limit {
		return nil, &Error{Op: "reserve", Size: n, Err: xerrors.Errorf("exceeds heap backend limit of %d bytes", h.limit)}
	}
	return h.res.add(make([]byte, n)), nil
}

func (h *Heap) Commit(base unsafe.Pointer, offset, length int, _ Protection) error {
	if err := checkRange(offset, length, h.pageSize); err != nil {
		return err
	}
	_, err := h.res.span(base, offset, length)
	return err
}

func (h *Heap) Protect(base unsafe.Pointer, length int, _ Protection) error {
	if err := checkRange(0, length, h.pageSize); err != nil {
		return err
	}
	_, err := h.res.span(base, 0, length)
	return err
}

func (h *Heap) Release(base unsafe.Pointer, size int) error {
	_, err := h.res.remove(base, size, h.pageSize)
	return err
}

func (h *Heap) Encode(a Access) (Protection, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	var prot Protection
	if a.Read {
		prot |= heapRead
	}
	if a.Write {
		prot |= heapWrite
	}
	if a.Exec {
		prot |= heapExec
	}
	return prot, nil
}

var _ Backend = (*Heap)(nil)
