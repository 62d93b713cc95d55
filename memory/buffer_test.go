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

package memory_test

import (
	"testing"
	"unsafe"

	"github.com/71/virtualalloc/memory"
	"github.com/stretchr/testify/assert"
)

func newCheckedVirtual() *memory.CheckedAllocator {
	return memory.NewCheckedAllocator(memory.NewVirtualAllocator(1 << 20))
}

func TestNewResizableBuffer(t *testing.T) {
	mem := newCheckedVirtual()
	defer mem.AssertSize(t, 0)

	buf := memory.NewResizableBuffer(mem)
	buf.Retain() // refCount == 2

	exp := 10
	buf.Resize(exp)
	assert.NotNil(t, buf.Bytes())
	assert.Equal(t, exp, len(buf.Bytes()))
	assert.Equal(t, exp, buf.Len())

	buf.Release() // refCount == 1
	assert.NotNil(t, buf.Bytes())

	buf.Release() // refCount == 0
	assert.Nil(t, buf.Bytes())
	assert.Zero(t, buf.Len())
}

func TestBufferReset(t *testing.T) {
	mem := newCheckedVirtual()
	defer mem.AssertSize(t, 0)

	buf := memory.NewResizableBuffer(mem)

	newBytes := []byte("some-new-bytes")
	buf.Reset(newBytes)
	assert.Equal(t, newBytes, buf.Bytes())
	assert.Equal(t, len(newBytes), buf.Len())
}

func TestBufferSlice(t *testing.T) {
	mem := newCheckedVirtual()
	defer mem.AssertSize(t, 0)

	buf := memory.NewResizableBuffer(mem)
	buf.Resize(1024)
	assert.Equal(t, 1024, mem.CurrentAlloc())

	slice := memory.SliceBuffer(buf, 512, 256)
	assert.Same(t, buf, slice.Parent())
	buf.Release()
	assert.Equal(t, 1024, mem.CurrentAlloc())
	slice.Release()
}

func TestBufferGrowKeepsContents(t *testing.T) {
	mem := newCheckedVirtual()
	defer mem.AssertSize(t, 0)

	buf := memory.NewResizableBuffer(mem)
	buf.Resize(100)
	copy(buf.Bytes(), "hello")
	first := unsafe.SliceData(buf.Bytes())

	buf.ResizeNoShrink(50)
	assert.Equal(t, 50, buf.Len())
	assert.Equal(t, 128, buf.Cap())

	buf.Resize(200_000)
	assert.Same(t, first, unsafe.SliceData(buf.Bytes()))
	assert.Equal(t, "hello", string(buf.Bytes()[:5]))
	assert.Zero(t, mem.Relocations())

	buf.Resize(0)
	assert.Zero(t, buf.Cap())
	assert.Zero(t, mem.CurrentAlloc())
	buf.Release()
}

func TestReleaseBuffers(t *testing.T) {
	mem := newCheckedVirtual()
	defer mem.AssertSize(t, 0)

	bufs := make([]*memory.Buffer, 3)
	for i := range bufs[:2] {
		bufs[i] = memory.NewResizableBuffer(mem)
		bufs[i].Resize(64)
		memory.AssertBuffer("test", bufs[i])
	}
	memory.AssertBuffer("nil", nil)
	memory.ReleaseBuffers(bufs)
}
