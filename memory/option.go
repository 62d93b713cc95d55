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

import "github.com/71/virtualalloc/vmem"

type config struct {
	initial int
	access  vmem.Access
	backend vmem.Backend
}

func newConfig(opts ...Option) *config {
	cfg := &config{access: vmem.ReadWrite}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.backend == nil {
		cfg.backend = vmem.Default()
	}
	return cfg
}

// Option configures a Vec, ByteVec or VirtualAllocator.
type Option func(*config)

// WithInitialCapacity commits room for n elements at construction. It is
// ignored by VirtualAllocator, whose allocations are sized per call.
func WithInitialCapacity(n int) Option {
	return func(cfg *config) {
		cfg.initial = n
	}
}

// WithAccess sets the protection applied to committed memory. The default is
// vmem.ReadWrite.
func WithAccess(a vmem.Access) Option {
	return func(cfg *config) {
		cfg.access = a
	}
}

// WithBackend replaces the platform backend returned by vmem.Default.
func WithBackend(b vmem.Backend) Option {
	return func(cfg *config) {
		cfg.backend = b
	}
}
