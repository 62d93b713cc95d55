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
	"fmt"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
)

const usage = `Virtual Memory Probe.
Reserves byte vectors, grows them step by step and checks that their base
address never moves.
Usage:
  vmem-probe -h | --help
  vmem-probe [--max=SIZE] [--initial=SIZE] [--step=SIZE] [--steps=N]
             [--workers=N] [--access=MODE] [--json]
Options:
  -h --help         Show this screen.
  --max=SIZE        Maximum size of each vector [default: 64GiB].
  --initial=SIZE    Capacity committed at construction [default: 0].
  --step=SIZE       Bytes appended per step [default: 1MiB].
  --steps=N         Number of append steps [default: 16].
  --workers=N       Number of vectors grown concurrently [default: 1].
  --access=MODE     Protection of committed memory, e.g. rw- or r-- [default: rw-].
  --json            Format output as JSON instead of text.`

type config struct {
	Max     string
	Initial string
	Step    string
	Steps   string
	Workers string
	Access  string
	JSON    bool `docopt:"--json"`
}

func main() {
	opts, _ := docopt.ParseDoc(usage)
	var cfg config
	if err := opts.Bind(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error: ", err)
		os.Exit(1)
	}

	p, err := newPlan(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: ", err)
		os.Exit(1)
	}

	reports, err := p.run()
	if cfg.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(reports); encErr != nil {
			fmt.Fprintln(os.Stderr, "error: ", encErr)
			os.Exit(1)
		}
	} else {
		for _, r := range reports {
			printReport(r)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: ", err)
		os.Exit(1)
	}
}

func printReport(r report) {
	fmt.Printf("Worker %d:\n", r.Worker)
	fmt.Println("  Access:", r.Access)
	fmt.Println("  Base:", fmt.Sprintf("%#x", r.Base))
	fmt.Println("  Stable:", r.Stable)
	fmt.Println("  Checksum:", fmt.Sprintf("%#016x", r.Checksum))
	fmt.Println("  Length:", humanize.IBytes(uint64(r.Len)))
	fmt.Println("  Capacity:", humanize.IBytes(uint64(r.Cap)))
	fmt.Println("  Maximum:", humanize.IBytes(uint64(r.MaxCap)))
	fmt.Println("  Elapsed:", r.Elapsed)
	if r.Error != "" {
		fmt.Println("  Error:", r.Error)
	}
}
