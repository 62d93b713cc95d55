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
	"math"
	"testing"
	"unsafe"

	"github.com/71/virtualalloc/vmem"
	"github.com/71/virtualalloc/vmem/vmemtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPage = 4096
	rwProt   = vmem.Protection(3)
	roProt   = vmem.Protection(1)
)

var backing [1]byte

func newMockRegion(t *testing.T, max, elemSize int) (*vmemtest.MockBackend, unsafe.Pointer, *region) {
	t.Helper()
	m := new(vmemtest.MockBackend)
	base := unsafe.Pointer(&backing[0])
	m.On("Encode", vmem.ReadWrite).Return(rwProt, nil)
	m.On("Reserve", max*elemSize).Return(base, nil).Once()
	m.On("PageSize").Return(testPage)

	r, err := newRegion(m, max, elemSize, vmem.ReadWrite)
	require.NoError(t, err)
	return m, base, r
}

func TestRegionEnsureCommitsPageRoundedDelta(t *testing.T) {
	m, base, r := newMockRegion(t, 1000, 8)
	m.On("Commit", base, 0, testPage, rwProt).Return(nil).Once()
	m.On("Commit", base, testPage, testPage, rwProt).Return(nil).Once()

	require.NoError(t, r.ensure(100))
	assert.Equal(t, 100, r.cap)
	assert.Equal(t, testPage, r.committed)

	// 512*8 bytes still fit in the first page
	require.NoError(t, r.ensure(512))
	assert.Equal(t, 512, r.cap)

	require.NoError(t, r.ensure(513))
	assert.Equal(t, 513, r.cap)
	assert.Equal(t, 2*testPage, r.committed)

	// smaller requests are no-ops
	require.NoError(t, r.ensure(10))
	assert.Equal(t, 513, r.cap)

	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "Commit", 2)
}

func TestRegionEnsureCeiling(t *testing.T) {
	m, _, r := newMockRegion(t, 1000, 8)

	err := r.ensure(1001)
	assert.ErrorIs(t, err, ErrCeilingExceeded)
	assert.Zero(t, r.cap)
	assert.ErrorIs(t, r.ensure(-1), ErrInvalidSize)
	m.AssertNumberOfCalls(t, "Commit", 0)
}

func TestRegionEnsureBackendFailure(t *testing.T) {
	m, base, r := newMockRegion(t, 1000, 8)
	m.On("Commit", base, 0, testPage, rwProt).Return(nil).Once()
	m.On("Commit", base, testPage, testPage, rwProt).
		Return(&vmem.Error{Op: "commit", Size: testPage, Err: vmemtest.ErrInjected}).Once()

	require.NoError(t, r.ensure(10))
	err := r.ensure(600)
	assert.ErrorIs(t, err, vmem.ErrBackendDenied)
	assert.ErrorIs(t, err, vmemtest.ErrInjected)
	assert.Equal(t, 10, r.cap)
	assert.Equal(t, testPage, r.committed)
	m.AssertExpectations(t)
}

func TestRegionProtectCoversCommittedCapacity(t *testing.T) {
	m, base, r := newMockRegion(t, 2000, 8)
	m.On("Encode", vmem.ReadOnly).Return(roProt, nil).Once()
	m.On("Commit", base, 0, 2*testPage, rwProt).Return(nil).Once()
	m.On("Protect", base, 2*testPage, roProt).Return(nil).Once()
	m.On("Commit", base, 2*testPage, testPage, roProt).Return(nil).Once()

	require.NoError(t, r.ensure(600))
	require.NoError(t, r.protect(vmem.ReadOnly))
	assert.Equal(t, vmem.ReadOnly, r.access)

	// later commits use the new protection
	require.NoError(t, r.ensure(1100))
	m.AssertExpectations(t)
}

func TestRegionProtectFailureKeepsAccess(t *testing.T) {
	m, base, r := newMockRegion(t, 1000, 8)
	m.On("Encode", vmem.ReadOnly).Return(roProt, nil).Once()
	m.On("Commit", base, 0, testPage, rwProt).Return(nil).Once()
	m.On("Protect", base, testPage, roProt).Return(&vmem.Error{Op: "protect", Err: vmemtest.ErrInjected}).Once()
	m.On("Encode", vmem.Access{Write: true}).Return(vmem.Protection(0), vmem.ErrInvalidProtection)

	require.NoError(t, r.ensure(1))
	assert.ErrorIs(t, r.protect(vmem.ReadOnly), vmem.ErrBackendDenied)
	assert.Equal(t, vmem.ReadWrite, r.access)
	assert.Equal(t, rwProt, r.prot)

	assert.ErrorIs(t, r.protect(vmem.Access{Write: true}), vmem.ErrInvalidProtection)
	m.AssertExpectations(t)
}

func TestRegionReleaseOnce(t *testing.T) {
	m, base, r := newMockRegion(t, 1000, 8)
	m.On("Commit", base, 0, testPage, rwProt).Return(nil).Once()
	m.On("Release", base, 8000).Return(nil).Once()
	m.On("Encode", vmem.ReadOnly).Return(roProt, nil).Once()

	require.NoError(t, r.ensure(1))
	r.release()
	r.release()

	assert.True(t, r.released())
	assert.Zero(t, r.cap)
	assert.ErrorIs(t, r.ensure(1), ErrReleased)
	assert.ErrorIs(t, r.protect(vmem.ReadOnly), ErrReleased)
	assert.Nil(t, r.bytes(0))
	m.AssertNumberOfCalls(t, "Release", 1)
	m.AssertExpectations(t)
}

func TestNewRegionErrors(t *testing.T) {
	m := new(vmemtest.MockBackend)

	_, err := newRegion(m, math.MaxInt, 8, vmem.ReadWrite)
	assert.ErrorIs(t, err, ErrCeilingExceeded)

	_, err = newRegion(m, -1, 8, vmem.ReadWrite)
	assert.ErrorIs(t, err, ErrInvalidSize)
	m.AssertNumberOfCalls(t, "Reserve", 0)

	m.On("Encode", vmem.ReadWrite).Return(rwProt, nil)
	m.On("Reserve", 64).Return(nil, &vmem.Error{Op: "reserve", Size: 64, Err: vmemtest.ErrInjected})
	_, err = newRegion(m, 8, 8, vmem.ReadWrite)
	assert.ErrorIs(t, err, vmem.ErrBackendDenied)
}
