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
	"unsafe"

	"github.com/71/virtualalloc/internal/debug"
	"github.com/71/virtualalloc/vmem"
	"github.com/JohnCGriffin/overflow"
)

// region is one reservation together with its growth state. It enforces
//
//	cap*elemSize <= committed <= reserved
//	cap <= max
//
// and never moves base: growth only commits more of the reserved range.
type region struct {
	backend vmem.Backend
	base    unsafe.Pointer

	reserved  int // bytes passed to Reserve, fixed
	committed int // bytes committed so far, page aligned, never decreases
	elemSize  int

	max int // elements, fixed
	cap int // elements guaranteed to be backed, never decreases

	access vmem.Access
	prot   vmem.Protection
}

func newRegion(backend vmem.Backend, max, elemSize int, access vmem.Access) (*region, error) {
	if max < 0 {
		return nil, fmt.Errorf("%w: maximum capacity %d", ErrInvalidSize, max)
	}
	size, ok := overflow.Mul(max, elemSize)
	if !ok {
		return nil, fmt.Errorf("%w: %d elements of %d bytes overflows the address space", ErrCeilingExceeded, max, elemSize)
	}
	prot, err := backend.Encode(access)
	if err != nil {
		return nil, err
	}
	base, err := backend.Reserve(size)
	if err != nil {
		return nil, err
	}

	debug.Log(func() string {
		return fmt.Sprintf("reserved %d bytes at %p (%s)", size, base, access)
	})
	return &region{
		backend:  backend,
		base:     base,
		reserved: size,
		elemSize: elemSize,
		max:      max,
		access:   access,
		prot:     prot,
	}, nil
}

// ensure guarantees that at least min elements are backed by committed
// memory. On success cap is exactly max(cap, min); on failure nothing
// changes.
func (r *region) ensure(min int) error {
	if min <= r.cap {
		if min < 0 {
			return fmt.Errorf("%w: capacity %d", ErrInvalidSize, min)
		}
		return nil
	}

	if r.base == nil {
		return ErrReleased
	}
	if min > r.max {
		return fmt.Errorf("%w: requested %d, maximum %d", ErrCeilingExceeded, min, r.max)
	}

	// cannot overflow: min <= max and max*elemSize was checked in newRegion.
	need := min * r.elemSize
	if need > r.committed {
		end := vmem.RoundUp(need, r.backend.PageSize())
		if err := r.backend.Commit(r.base, r.committed, end-r.committed, r.prot); err != nil {
			return err
		}
		debug.Log(func() string {
			return fmt.Sprintf("committed [%d, %d) at %p", r.committed, end, r.base)
		})
		r.committed = end
	}
	r.cap = min

	r.assertInvariants()
	return nil
}

// protect applies a to every committed byte, not only the ones in use, so
// that the recorded protection always describes the whole committed range.
// Memory committed later uses a as well.
func (r *region) protect(a vmem.Access) error {
	prot, err := r.backend.Encode(a)
	if err != nil {
		return err
	}
	if r.base == nil {
		return ErrReleased
	}
	if err := r.backend.Protect(r.base, r.committed, prot); err != nil {
		return err
	}

	debug.Log(func() string {
		return fmt.Sprintf("protected [0, %d) at %p as %s", r.committed, r.base, a)
	})
	r.access, r.prot = a, prot
	return nil
}

// release returns the reservation to the backend. It is safe to call more
// than once; only the first call reaches the backend. Errors are logged, not
// returned: there is nothing a caller could do about them.
func (r *region) release() {
	if r.base == nil {
		return
	}
	base := r.base
	r.base, r.cap = nil, 0

	if err := r.backend.Release(base, r.reserved); err != nil {
		debug.Log("release failed: " + err.Error())
		return
	}
	debug.Log(func() string {
		return fmt.Sprintf("released %d bytes at %p", r.reserved, base)
	})
}

func (r *region) released() bool { return r.base == nil }

// bytes returns the first n committed bytes of the region.
func (r *region) bytes(n int) []byte {
	if r.base == nil {
		return nil
	}
	return unsafe.Slice((*byte)(r.base), n)
}

func (r *region) assertInvariants() {
	debug.Assert(r.cap <= r.max, func() string {
		return fmt.Sprintf("memory: capacity %d exceeds maximum %d", r.cap, r.max)
	})
	debug.Assert(r.cap*r.elemSize <= r.committed, func() string {
		return fmt.Sprintf("memory: capacity %d not committed (%d bytes)", r.cap, r.committed)
	})
	debug.Assert(r.committed <= vmem.RoundUp(r.reserved, r.backend.PageSize()) || r.reserved == 0, "memory: committed past reservation")
}
