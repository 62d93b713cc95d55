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

/*
Package memory provides containers and allocators backed by reserved virtual
memory, whose contents never move as they grow.

Every container reserves address space for its maximum size once and commits
physical memory only when its capacity grows, so the maximum can be set far
beyond the memory available on the machine while the address of the first
element stays fixed until the container is released.

# Vec and ByteVec

Vec[T] holds pointer-free elements. Its length, capacity and maximum capacity
always satisfy

	0 <= Len() <= Cap() <= MaxCap()

and Cap never decreases. Reserve grows the capacity to an exact number of
elements and fails with ErrCeilingExceeded past MaxCap; Append and Write grow
on demand and are all-or-nothing. ByteVec adds the io interfaces.

# VirtualAllocator

VirtualAllocator implements Allocator with one reservation per allocation.
Reallocate grows in place and always returns the original address, which lets
containers written against Allocator, such as Buffer, keep stable pointers.

# Backends

The operating system primitives live in package vmem. Containers use
vmem.Default unless WithBackend is given.
*/
package memory
