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

package vmem_test

import (
	"testing"
	"unsafe"

	"github.com/71/virtualalloc/vmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapBackendLifecycle(t *testing.T) {
	h := vmem.NewHeapBackend(0)
	ps := h.PageSize()

	base, err := h.Reserve(3*ps + 1)
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, 1, h.Live())

	prot, err := h.Encode(vmem.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, h.Commit(base, 0, ps, prot))
	require.NoError(t, h.Commit(base, ps, 3*ps, prot))
	mem := unsafe.Slice((*byte)(base), 4*ps)
	mem[4*ps-1] = 0x41
	assert.Equal(t, byte(0), mem[0])

	require.NoError(t, h.Protect(base, 4*ps, prot))
	require.NoError(t, h.Release(base, 3*ps+1))
	assert.Zero(t, h.Live())
}

func TestHeapBackendRanges(t *testing.T) {
	h := vmem.NewHeapBackend(0)
	ps := h.PageSize()
	base, err := h.Reserve(2 * ps)
	require.NoError(t, err)
	defer h.Release(base, 2*ps)

	tests := []struct {
		name         string
		offset, size int
	}{
		{"negative offset", -ps, ps},
		{"negative length", 0, -1},
		{"unaligned offset", 1, ps},
		{"past the end", ps, 2 * ps},
		{"offset past the end", 3 * ps, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := h.Commit(base, test.offset, test.size, 0)
			assert.ErrorIs(t, err, vmem.ErrInvalidRange)
		})
	}

	assert.ErrorIs(t, h.Protect(base, 3*ps, 0), vmem.ErrInvalidRange)
	var other byte
	assert.ErrorIs(t, h.Commit(unsafe.Pointer(&other), 0, 0, 0), vmem.ErrInvalidRange)
}

func TestHeapBackendReleaseOnce(t *testing.T) {
	h := vmem.NewHeapBackend(0)
	base, err := h.Reserve(100)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Release(base, 100*h.PageSize()), vmem.ErrInvalidRange, "size mismatch")
	assert.NoError(t, h.Release(base, 100))
	assert.ErrorIs(t, h.Release(base, 100), vmem.ErrInvalidRange)
}

func TestHeapBackendLimit(t *testing.T) {
	h := vmem.NewHeapBackend(1 << 20)
	_, err := h.Reserve(2 << 20)
	assert.ErrorIs(t, err, vmem.ErrBackendDenied)

	_, err = h.Reserve(-1)
	assert.ErrorIs(t, err, vmem.ErrInvalidRange)

	// what a 500 GB default allocation would ask for
	h = vmem.NewHeapBackend(vmem.DefaultHeapLimit)
	_, err = h.Reserve(vmem.DefaultHeapLimit + 1)
	assert.ErrorIs(t, err, vmem.ErrBackendDenied)
	assert.Zero(t, h.Live())
}

func TestHeapBackendEncode(t *testing.T) {
	h := vmem.NewHeapBackend(0)
	seen := make(map[vmem.Protection]vmem.Access)
	for _, a := range []vmem.Access{vmem.None, vmem.ReadOnly, vmem.ReadWrite, vmem.ReadExec, vmem.ReadWriteExec, {Exec: true}} {
		p, err := h.Encode(a)
		require.NoError(t, err, a.String())
		_, dup := seen[p]
		assert.False(t, dup, "%s encodes like %s", a, seen[p])
		seen[p] = a
	}

	for _, a := range []vmem.Access{{Write: true}, {Write: true, Exec: true}} {
		_, err := h.Encode(a)
		assert.ErrorIs(t, err, vmem.ErrInvalidProtection, a.String())
	}
}
