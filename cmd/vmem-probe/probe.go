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

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/71/virtualalloc/memory"
	"github.com/71/virtualalloc/vmem"
	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

var errMoved = errors.New("contents moved or changed during growth")

type plan struct {
	max, initial, step int
	steps, workers     int
	access             vmem.Access
	backend            vmem.Backend
}

type report struct {
	Worker   int           `json:"worker"`
	Access   string        `json:"access"`
	Base     uintptr       `json:"base"`
	Stable   bool          `json:"stable"`
	Checksum uint64        `json:"checksum"`
	Len      int           `json:"len"`
	Cap      int           `json:"cap"`
	MaxCap   int           `json:"max_cap"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Error    string        `json:"error,omitempty"`
}

func parseSize(name, s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	if n > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("--%s: %s does not fit in an int", name, s)
	}
	return int(n), nil
}

func newPlan(cfg config) (*plan, error) {
	p := &plan{backend: vmem.Default()}
	var err error
	if p.steps, err = strconv.Atoi(cfg.Steps); err != nil || p.steps < 0 {
		return nil, fmt.Errorf("--steps needs to be a non-negative integer")
	}
	if p.workers, err = strconv.Atoi(cfg.Workers); err != nil || p.workers < 1 {
		return nil, fmt.Errorf("--workers needs to be a positive integer")
	}
	if p.max, err = parseSize("max", cfg.Max); err != nil {
		return nil, err
	}
	if p.initial, err = parseSize("initial", cfg.Initial); err != nil {
		return nil, err
	}
	if p.step, err = parseSize("step", cfg.Step); err != nil {
		return nil, err
	}
	if p.access, err = vmem.ParseAccess(cfg.Access); err != nil {
		return nil, fmt.Errorf("--access: %w", err)
	}
	return p, nil
}

// run grows one vector per worker. Each vector is owned by its goroutine.
func (p *plan) run() ([]report, error) {
	reports := make([]report, p.workers)
	var g errgroup.Group
	for i := range reports {
		i := i
		g.Go(func() error {
			reports[i] = p.probe(i)
			if reports[i].Error != "" {
				return fmt.Errorf("worker %d: %s", i, reports[i].Error)
			}
			return nil
		})
	}
	return reports, g.Wait()
}

func (p *plan) probe(worker int) (rep report) {
	rep = report{Worker: worker, Access: p.access.String(), MaxCap: p.max}
	start := time.Now()
	defer func() { rep.Elapsed = time.Since(start) }()

	vec, err := memory.NewByteVec(p.max,
		memory.WithInitialCapacity(p.initial),
		memory.WithAccess(p.access),
		memory.WithBackend(p.backend))
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	defer vec.Release()

	rep.Base = vec.Addr()
	rep.Stable = true
	chunk := make([]byte, p.step)
	var first []byte
	for i := 0; i < p.steps; i++ {
		memory.Set(chunk, byte('A'+(worker+i)%26))
		if _, err := vec.Write(chunk); err != nil {
			rep.Error = err.Error()
			break
		}
		if i == 0 {
			// kept across every later growth step
			first = vec.Bytes()[:p.step:p.step]
			rep.Checksum = xxh3.Hash(chunk)
		}
		if err := checkStable(first, vec.Bytes()[:p.step], rep.Checksum); err != nil || vec.Addr() != rep.Base {
			rep.Stable = false
			rep.Error = errMoved.Error()
			break
		}
	}
	rep.Len, rep.Cap = vec.Len(), vec.Cap()
	return rep
}

// checkStable reports errMoved unless the first chunk hashes to want both
// through a view taken before growth and through the current one.
func checkStable(before, now []byte, want uint64) error {
	if xxh3.Hash(before) != want || xxh3.Hash(now) != want {
		return errMoved
	}
	return nil
}
