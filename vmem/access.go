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
	"fmt"
	"strings"
)

// Access is a requested (read, write, execute) permission triple. Its meaning
// is the same on every backend; Backend.Encode maps it to a Protection.
type Access struct {
	Read, Write, Exec bool
}

var (
	None          = Access{}
	ReadOnly      = Access{Read: true}
	ReadWrite     = Access{Read: true, Write: true}
	ReadExec      = Access{Read: true, Exec: true}
	ReadWriteExec = Access{Read: true, Write: true, Exec: true}
)

// String renders a in the familiar ls style, e.g. "rw-".
func (a Access) String() string {
	b := []byte("---")
	if a.Read {
		b[0] = 'r'
	}
	if a.Write {
		b[1] = 'w'
	}
	if a.Exec {
		b[2] = 'x'
	}
	return string(b)
}

// ParseAccess parses the output of Access.String. Short forms listing only
// the granted permissions ("r", "rw", "rx") are accepted as well.
func ParseAccess(s string) (Access, error) {
	var a Access
	if len(s) == 3 && strings.Contains(s, "-") {
		const pos = "rwx"
		for i := 0; i < 3; i++ {
			if s[i] != '-' && s[i] != pos[i] {
				return Access{}, fmt.Errorf("%w: %q", ErrInvalidProtection, s)
			}
		}
		return Access{Read: s[0] == 'r', Write: s[1] == 'w', Exec: s[2] == 'x'}, nil
	}

	if s == "" {
		return a, fmt.Errorf("%w: empty access", ErrInvalidProtection)
	}
	for _, c := range s {
		var flag *bool
		switch c {
		case 'r':
			flag = &a.Read
		case 'w':
			flag = &a.Write
		case 'x':
			flag = &a.Exec
		default:
			return Access{}, fmt.Errorf("%w: %q", ErrInvalidProtection, s)
		}
		if *flag {
			return Access{}, fmt.Errorf("%w: %q", ErrInvalidProtection, s)
		}
		*flag = true
	}
	return a, nil
}

// validate rejects write access without read access, which no backend
// can express.
func (a Access) validate() error {
	if a.Write && !a.Read {
		return fmt.Errorf("%w: %s", ErrInvalidProtection, a)
	}
	return nil
}
