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

package memory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"unsafe"

	"github.com/71/virtualalloc/vmem"
	"github.com/dustin/go-humanize"
)

// DefaultMaxBytes is the per-allocation maximum used by NewVirtualAllocator
// when no positive maximum is given. It can be overridden with the
// VALLOC_DEFAULT_MAX_BYTES environment variable, which accepts sizes such as
// "64GiB" or "500 GB". On 32-bit platforms the default is a quarter of the
// address space, and on platforms served by the heap backend it is
// heapDefaultMaxBytes.
var DefaultMaxBytes = int(min(500_000_000_000, 1<<(strconv.IntSize-2)))

// heapDefaultMaxBytes bounds DefaultMaxBytes when vmem.Default is the heap
// backend, which allocates every reservation in full.
const heapDefaultMaxBytes = 64 << 20

func defaultMaxFor(b vmem.Backend, max int) int {
	if _, ok := b.(*vmem.Heap); ok {
		return min(max, heapDefaultMaxBytes)
	}
	return max
}

func init() {
	DefaultMaxBytes = defaultMaxFor(vmem.Default(), DefaultMaxBytes)
	if val, ok := os.LookupEnv("VALLOC_DEFAULT_MAX_BYTES"); ok {
		if n, err := humanize.ParseBytes(val); err == nil && n > 0 && n <= uint64(^uint(0)>>1) {
			DefaultMaxBytes = int(n)
		}
	}
	DefaultAllocator = NewVirtualAllocator(DefaultMaxBytes)
}

// VirtualAllocator is an Allocator whose allocations never move.
//
// Each allocation reserves MaxCap bytes of address space and commits only
// what has been requested so far. Reallocate grows an allocation in place and
// always returns a slice starting at the same address, so pointers into it
// stay valid. Freshly committed memory reads as zero.
//
// The Allocator methods panic when the request cannot be satisfied; the Try
// variants return the error instead. VirtualAllocator is safe to use from
// multiple goroutines, but each allocation must be grown by one goroutine at
// a time.
type VirtualAllocator struct {
	max     int
	access  vmem.Access
	backend vmem.Backend

	mu     sync.Mutex
	allocs map[uintptr]*allocation
}

type allocation struct {
	r    *region
	used int // high-water mark of the length handed out
}

// NewVirtualAllocator returns an allocator whose allocations can grow up to
// max bytes each. A max of zero or less selects DefaultMaxBytes.
// WithInitialCapacity is ignored.
func NewVirtualAllocator(max int, opts ...Option) *VirtualAllocator {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	cfg := newConfig(opts...)
	return &VirtualAllocator{
		max:     max,
		access:  cfg.access,
		backend: cfg.backend,
		allocs:  make(map[uintptr]*allocation),
	}
}

// MaxCap returns the maximum size of a single allocation.
func (a *VirtualAllocator) MaxCap() int { return a.max }

// Outstanding returns the number of allocations not yet freed.
func (a *VirtualAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocs)
}

// TryAllocate reserves MaxCap bytes and commits size of them.
func (a *VirtualAllocator) TryAllocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: allocate %d", ErrInvalidSize, size)
	}
	r, err := newRegion(a.backend, a.max, 1, a.access)
	if err != nil {
		return nil, err
	}
	if err := r.ensure(size); err != nil {
		r.release()
		return nil, err
	}

	a.mu.Lock()
	a.allocs[uintptr(r.base)] = &allocation{r: r, used: size}
	a.mu.Unlock()
	return r.bytes(size), nil
}

// Allocate is like TryAllocate but panics on failure.
func (a *VirtualAllocator) Allocate(size int) []byte {
	b, err := a.TryAllocate(size)
	if err != nil {
		panic(err)
	}
	return b
}

// AllocateZeroed is equivalent to Allocate: committed memory is always zero
// on first use, so no explicit clearing is needed.
func (a *VirtualAllocator) AllocateZeroed(size int) []byte {
	return a.Allocate(size)
}

// TryReallocate resizes b to size bytes in place. The returned slice starts
// at the same address as b. Growing past MaxCap fails with
// ErrCeilingExceeded and leaves b untouched. Bytes exposed by growing are
// zero. Shrinking keeps the memory committed. A nil b is allocated.
func (a *VirtualAllocator) TryReallocate(size int, b []byte) ([]byte, error) {
	if unsafe.SliceData(b) == nil {
		return a.TryAllocate(size)
	}
	if err := a.grow(b, size); err != nil {
		return b, err
	}
	return unsafe.Slice(unsafe.SliceData(b), size), nil
}

// Reallocate is like TryReallocate but panics on failure.
func (a *VirtualAllocator) Reallocate(size int, b []byte) []byte {
	out, err := a.TryReallocate(size, b)
	if err != nil {
		panic(err)
	}
	return out
}

// GrowInPlace commits memory so that b can be extended to size bytes. It is
// meant for callers that keep their own view of the allocation, for example
// unsafe.Slice(unsafe.SliceData(b), size).
func (a *VirtualAllocator) GrowInPlace(b []byte, size int) error {
	if unsafe.SliceData(b) == nil {
		return fmt.Errorf("%w: nil slice", ErrUnknownAllocation)
	}
	return a.grow(b, size)
}

func (a *VirtualAllocator) grow(b []byte, size int) error {
	if size < 0 {
		return fmt.Errorf("%w: reallocate to %d", ErrInvalidSize, size)
	}
	al, err := a.lookup(b)
	if err != nil {
		return err
	}
	if err := al.r.ensure(size); err != nil {
		return err
	}

	// Bytes between len(b) and the high-water mark may hold data from an
	// earlier, larger view. Anything past it has never been touched.
	if lo, hi := len(b), min(size, al.used); lo < hi && al.r.access.Write {
		Set(al.r.bytes(hi)[lo:], 0)
	}
	al.used = max(al.used, size)
	return nil
}

// Protect changes the protection of every committed byte of allocation b.
func (a *VirtualAllocator) Protect(b []byte, access vmem.Access) error {
	al, err := a.lookup(b)
	if err != nil {
		return err
	}
	return al.r.protect(access)
}

// Free releases the whole reservation backing b. Freeing a nil slice does
// nothing; freeing anything else not returned by this allocator panics.
func (a *VirtualAllocator) Free(b []byte) {
	ptr := unsafe.SliceData(b)
	if ptr == nil {
		return
	}

	a.mu.Lock()
	al, ok := a.allocs[uintptr(unsafe.Pointer(ptr))]
	delete(a.allocs, uintptr(unsafe.Pointer(ptr)))
	a.mu.Unlock()

	if !ok {
		panic(fmt.Errorf("%w: free of %p", ErrUnknownAllocation, ptr))
	}
	al.r.release()
}

func (a *VirtualAllocator) lookup(b []byte) (*allocation, error) {
	ptr := unsafe.SliceData(b)
	a.mu.Lock()
	al, ok := a.allocs[uintptr(unsafe.Pointer(ptr))]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %p", ErrUnknownAllocation, ptr)
	}
	return al, nil
}

var (
	_ Allocator = (*VirtualAllocator)(nil)
)
