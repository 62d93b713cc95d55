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

	"github.com/71/virtualalloc/vmem"
	"github.com/JohnCGriffin/overflow"
)

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Vec is a vector that grows lazily without ever moving its contents.
//
// A Vec reserves address space for its maximum capacity up front and commits
// physical memory only as its capacity grows, so the maximum can be far
// larger than the memory available on the machine. The address of the first
// element never changes until Release, and slices returned by Slice remain
// valid across growth.
//
// A Vec is owned by a single goroutine. Slices returned by Slice may be read
// concurrently as long as no goroutine is growing the Vec. A Vec must not be
// copied; pass a *Vec to transfer ownership.
type Vec[T Element] struct {
	_ noCopy

	r     *region
	len   int
	dirty int // high-water mark of len; elements past it are still zero
}

// NewVec reserves address space for max elements of type T and commits the
// initial capacity given by WithInitialCapacity. If the initial capacity
// cannot be committed the reservation is released and an error is returned.
func NewVec[T Element](max int, opts ...Option) (*Vec[T], error) {
	var zero T
	r, err := newVecRegion(max, int(unsafe.Sizeof(zero)), opts)
	if err != nil {
		return nil, err
	}
	return &Vec[T]{r: r}, nil
}

func newVecRegion(max, elemSize int, opts []Option) (*region, error) {
	cfg := newConfig(opts...)
	r, err := newRegion(cfg.backend, max, elemSize, cfg.access)
	if err != nil {
		return nil, err
	}
	if err := r.ensure(cfg.initial); err != nil {
		r.release()
		return nil, fmt.Errorf("memory: initial capacity %d: %w", cfg.initial, err)
	}
	return r, nil
}

// MustNewVec is like NewVec but panics if the Vec cannot be created.
func MustNewVec[T Element](max int, opts ...Option) *Vec[T] {
	v, err := NewVec[T](max, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// WithCapacityAndProtection creates a Vec that can hold up to max elements,
// with room for cap elements committed and the given protection. It panics
// if the Vec cannot be created.
func WithCapacityAndProtection[T Element](max, cap int, read, write, exec bool) *Vec[T] {
	return MustNewVec[T](max,
		WithInitialCapacity(cap),
		WithAccess(vmem.Access{Read: read, Write: write, Exec: exec}))
}

// Len returns the number of elements in the vector.
func (v *Vec[T]) Len() int { return v.len }

// Cap returns the number of elements backed by committed memory.
func (v *Vec[T]) Cap() int { return v.r.cap }

// MaxCap returns the maximum capacity fixed at construction.
func (v *Vec[T]) MaxCap() int { return v.r.max }

// Access returns the protection currently applied to committed memory.
func (v *Vec[T]) Access() vmem.Access { return v.r.access }

// Addr returns the address of the first element. It is only meant to be
// compared; it is 0 once the Vec has been released.
func (v *Vec[T]) Addr() uintptr { return uintptr(v.r.base) }

// Reserve commits memory for at least min elements. It returns an error
// wrapping ErrCeilingExceeded if min is larger than MaxCap, and an error
// wrapping vmem.ErrBackendDenied if the operating system refused to commit
// the memory. On error the capacity is unchanged.
func (v *Vec[T]) Reserve(min int) error {
	return v.r.ensure(min)
}

// Grow makes room for n more elements, at least doubling the capacity when
// it has to grow so that repeated calls commit amortized O(1) times.
func (v *Vec[T]) Grow(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: grow by %d", ErrInvalidSize, n)
	}
	need, ok := overflow.Add(v.len, n)
	if !ok || need > v.r.max {
		return fmt.Errorf("%w: requested %d more elements, length %d, maximum %d", ErrCeilingExceeded, n, v.len, v.r.max)
	}
	if need <= v.r.cap {
		return nil
	}
	target := need
	if double, ok := overflow.Mul(v.r.cap, 2); ok && double > target {
		target = min(double, v.r.max)
	}
	return v.r.ensure(target)
}

// SetProtection changes the protection of all committed memory.
func (v *Vec[T]) SetProtection(read, write, exec bool) error {
	return v.Protect(vmem.Access{Read: read, Write: write, Exec: exec})
}

// Protect changes the protection of all committed memory, including the
// committed capacity beyond Len. Memory committed later gets a as well.
func (v *Vec[T]) Protect(a vmem.Access) error {
	return v.r.protect(a)
}

// Slice returns the elements of the vector. The slice's capacity equals its
// length, so appending to it never writes into the Vec.
//
// Reading the slice requires read access and writing it requires write
// access; violating the protection faults the process.
func (v *Vec[T]) Slice() []T {
	if v.len == 0 || v.r.released() {
		return nil
	}
	return unsafe.Slice((*T)(v.r.base), v.len)
}

// Push appends a single element.
func (v *Vec[T]) Push(e T) error {
	return v.Append(e)
}

// Append appends vals to the vector. Either all of vals are appended or, on
// error, none are.
func (v *Vec[T]) Append(vals ...T) error {
	if len(vals) == 0 {
		return nil
	}
	dst, err := v.extend(len(vals))
	if err != nil {
		return err
	}
	copy(dst, vals)
	return nil
}

// Resize sets the length of the vector to n. New elements are zero.
func (v *Vec[T]) Resize(n int) error {
	switch {
	case n < 0:
		return fmt.Errorf("%w: length %d", ErrInvalidSize, n)
	case n <= v.len:
		v.Truncate(n)
		return nil
	}
	start, dirty := v.len, v.dirty
	dst, err := v.extend(n - v.len)
	if err != nil {
		return err
	}
	if dirty > start {
		clear(dst[:min(n, dirty)-start])
	}
	return nil
}

// Truncate shortens the vector to n elements. It does nothing if n is not
// smaller than Len. The capacity is unchanged.
func (v *Vec[T]) Truncate(n int) {
	if n >= 0 && n < v.len {
		v.len = n
	}
}

// Release returns the vector's memory to the operating system. Slices
// obtained from the Vec must not be used afterwards. Calling Release more
// than once is a no-op.
func (v *Vec[T]) Release() {
	v.r.release()
	v.len, v.dirty = 0, 0
}

// extend grows the length by n and returns the new elements.
func (v *Vec[T]) extend(n int) ([]T, error) {
	if err := v.writable(); err != nil {
		return nil, err
	}
	end, ok := overflow.Add(v.len, n)
	if !ok {
		return nil, fmt.Errorf("%w: %w: length %d plus %d overflows", ErrOutOfMemory, ErrCeilingExceeded, v.len, n)
	}
	if err := v.r.ensure(end); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	all := unsafe.Slice((*T)(v.r.base), end)
	start := v.len
	v.setLen(end)
	return all[start:end], nil
}

func (v *Vec[T]) setLen(n int) {
	v.len = n
	v.dirty = max(v.dirty, n)
}

func (v *Vec[T]) writable() error {
	switch {
	case v.r.released():
		return ErrReleased
	case !v.r.access.Write:
		return fmt.Errorf("%w: protection is %s", ErrNotWritable, v.r.access)
	}
	return nil
}

// spare returns the committed but unused elements [Len, Cap).
func (v *Vec[T]) spare() []T {
	if v.r.released() {
		return nil
	}
	return unsafe.Slice((*T)(v.r.base), v.r.cap)[v.len:]
}
