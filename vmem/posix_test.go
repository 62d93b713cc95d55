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

package vmem_test

import (
	"strconv"
	"testing"
	"unsafe"

	"github.com/71/virtualalloc/vmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPosixEncode(t *testing.T) {
	p := vmem.NewPosix()
	tests := []struct {
		a   vmem.Access
		exp int
	}{
		{vmem.None, unix.PROT_NONE},
		{vmem.ReadOnly, unix.PROT_READ},
		{vmem.ReadWrite, unix.PROT_READ | unix.PROT_WRITE},
		{vmem.ReadExec, unix.PROT_READ | unix.PROT_EXEC},
		{vmem.ReadWriteExec, unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC},
		{vmem.Access{Exec: true}, unix.PROT_EXEC},
	}
	for _, test := range tests {
		t.Run(test.a.String(), func(t *testing.T) {
			prot, err := p.Encode(test.a)
			require.NoError(t, err)
			assert.Equal(t, vmem.Protection(test.exp), prot)
		})
	}

	_, err := p.Encode(vmem.Access{Write: true})
	assert.ErrorIs(t, err, vmem.ErrInvalidProtection)
}

func TestPosixReserveCommitRelease(t *testing.T) {
	p := vmem.NewPosix()
	ps := p.PageSize()
	rw, err := p.Encode(vmem.ReadWrite)
	require.NoError(t, err)

	base, err := p.Reserve(16 * ps)
	require.NoError(t, err)

	require.NoError(t, p.Commit(base, 0, ps, rw))
	require.NoError(t, p.Commit(base, ps, 2*ps, rw))

	mem := unsafe.Slice((*byte)(base), 3*ps)
	for i, c := range mem {
		if c != 0 {
			t.Fatalf("committed memory not zero at %d", i)
		}
	}
	mem[0], mem[3*ps-1] = 1, 2

	ro, err := p.Encode(vmem.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, p.Protect(base, 3*ps, ro))
	assert.Equal(t, byte(1), mem[0])
	assert.Equal(t, byte(2), mem[3*ps-1])

	assert.ErrorIs(t, p.Commit(base, 1, ps, rw), vmem.ErrInvalidRange)
	assert.ErrorIs(t, p.Commit(base, 16*ps, ps, rw), vmem.ErrInvalidRange)

	require.NoError(t, p.Release(base, 16*ps))
	assert.ErrorIs(t, p.Release(base, 16*ps), vmem.ErrInvalidRange)
}

func TestPosixReserveLarge(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("large reservations need a 64-bit address space")
	}

	p := vmem.NewPosix()
	size := 64
	size <<= 30
	base, err := p.Reserve(size)
	require.NoError(t, err)
	defer func() { assert.NoError(t, p.Release(base, size)) }()

	rw, err := p.Encode(vmem.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, p.Commit(base, 0, p.PageSize(), rw))

	*(*byte)(base) = 0x41
	assert.Equal(t, byte(0x41), *(*byte)(base))
}
