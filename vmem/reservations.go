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
	"sync"
	"unsafe"
)

// reservations tracks the live reservations of a backend so that ranges can
// be bounds checked and a base can only be released once.
type reservations struct {
	mu sync.Mutex
	m  map[uintptr][]byte
}

func (r *reservations) add(mem []byte) unsafe.Pointer {
	base := unsafe.Pointer(unsafe.SliceData(mem))
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[uintptr][]byte)
	}
	r.m[uintptr(base)] = mem
	return base
}

// span returns the reserved bytes [offset, offset+length) of base.
func (r *reservations) span(base unsafe.Pointer, offset, length int) ([]byte, error) {
	r.mu.Lock()
	mem, ok := r.m[uintptr(base)]
	r.mu.Unlock()
	if !ok || offset > len(mem) || length > len(mem)-offset {
		return nil, ErrInvalidRange
	}
	return mem[offset : offset+length : offset+length], nil
}

// remove forgets base and returns the full reservation. size must be the size
// originally passed to Reserve.
func (r *reservations) remove(base unsafe.Pointer, size, pageSize int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mem, ok := r.m[uintptr(base)]
	if !ok || reserveSize(size, pageSize) != len(mem) {
		return nil, ErrInvalidRange
	}
	delete(r.m, uintptr(base))
	return mem, nil
}

func (r *reservations) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
