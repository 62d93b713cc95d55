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

// Package vmemtest provides vmem.Backend implementations for tests.
package vmemtest

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/71/virtualalloc/vmem"
	"github.com/stretchr/testify/mock"
)

// ErrInjected is the cause of failures injected by Faulty.
var ErrInjected = errors.New("vmemtest: injected failure")

// Backend operation names understood by Faulty.
const (
	OpReserve = "reserve"
	OpCommit  = "commit"
	OpProtect = "protect"
	OpRelease = "release"
)

// MockBackend is a testify mock of vmem.Backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Reserve(size int) (unsafe.Pointer, error) {
	args := m.Called(size)
	p, _ := args.Get(0).(unsafe.Pointer)
	return p, args.Error(1)
}

func (m *MockBackend) Commit(base unsafe.Pointer, offset, length int, prot vmem.Protection) error {
	return m.Called(base, offset, length, prot).Error(0)
}

func (m *MockBackend) Protect(base unsafe.Pointer, length int, prot vmem.Protection) error {
	return m.Called(base, length, prot).Error(0)
}

func (m *MockBackend) Release(base unsafe.Pointer, size int) error {
	return m.Called(base, size).Error(0)
}

func (m *MockBackend) Encode(a vmem.Access) (vmem.Protection, error) {
	args := m.Called(a)
	return args.Get(0).(vmem.Protection), args.Error(1)
}

func (m *MockBackend) PageSize() int {
	return m.Called().Int(0)
}

// Faulty wraps a backend, counts the calls made to it and fails calls on
// request. Failed calls are not forwarded.
type Faulty struct {
	vmem.Backend

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int
}

// NewFaulty wraps b.
func NewFaulty(b vmem.Backend) *Faulty {
	return &Faulty{Backend: b, calls: make(map[string]int), fail: make(map[string]int)}
}

// FailNext makes the next n calls of op fail with an error wrapping both
// vmem.ErrBackendDenied and ErrInjected.
func (f *Faulty) FailNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] += n
}

// Calls returns how many times op was called, including failed calls.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op string, size int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.fail[op] > 0 {
		f.fail[op]--
		return &vmem.Error{Op: op, Size: size, Err: ErrInjected}
	}
	return nil
}

func (f *Faulty) Reserve(size int) (unsafe.Pointer, error) {
	if err := f.check(OpReserve, size); err != nil {
		return nil, err
	}
	return f.Backend.Reserve(size)
}

func (f *Faulty) Commit(base unsafe.Pointer, offset, length int, prot vmem.Protection) error {
	if err := f.check(OpCommit, length); err != nil {
		return err
	}
	return f.Backend.Commit(base, offset, length, prot)
}

func (f *Faulty) Protect(base unsafe.Pointer, length int, prot vmem.Protection) error {
	if err := f.check(OpProtect, length); err != nil {
		return err
	}
	return f.Backend.Protect(base, length, prot)
}

func (f *Faulty) Release(base unsafe.Pointer, size int) error {
	if err := f.check(OpRelease, size); err != nil {
		return err
	}
	return f.Backend.Release(base, size)
}

var (
	_ vmem.Backend = (*MockBackend)(nil)
	_ vmem.Backend = (*Faulty)(nil)
)
