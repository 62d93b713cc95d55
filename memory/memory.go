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

// Set assigns the value c to every element of the slice buf.
func Set(buf []byte, c byte) {
	if len(buf) == 0 {
		return
	}
	if c == 0 {
		clear(buf)
		return
	}
	// fill by doubling the initialized prefix
	buf[0] = c
	for i := 1; i < len(buf); i *= 2 {
		copy(buf[i:], buf[:i])
	}
}
