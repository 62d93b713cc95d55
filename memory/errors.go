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

import "errors"

var (
	// ErrCeilingExceeded is returned when a request exceeds the maximum
	// capacity fixed at construction. It never goes away by retrying.
	ErrCeilingExceeded = errors.New("memory: maximum capacity exceeded")
	// ErrOutOfMemory is returned by append and write paths that could not
	// grow the buffer. It wraps the underlying cause.
	ErrOutOfMemory = errors.New("memory: unable to reserve memory for write")
	// ErrNotWritable is returned when a mutation is attempted while the
	// buffer's protection forbids writes.
	ErrNotWritable = errors.New("memory: buffer is not writable")
	// ErrReleased is returned by operations on a released buffer.
	ErrReleased = errors.New("memory: buffer already released")
	// ErrInvalidSize is returned for negative sizes and lengths.
	ErrInvalidSize = errors.New("memory: invalid size")
	// ErrUnknownAllocation is returned when a slice that was not produced by
	// a VirtualAllocator, or was already freed, is passed back to it.
	ErrUnknownAllocation = errors.New("memory: unknown allocation")
)
