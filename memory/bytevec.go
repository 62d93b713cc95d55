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

import (
	"errors"
	"fmt"
	"io"
)

// MinRead is the minimum slice size passed to a Read call by
// ByteVec.ReadFrom.
const MinRead = 512

// ByteVec is a Vec of bytes that also implements io.Writer, io.ByteWriter,
// io.StringWriter, io.ReaderFrom and io.WriterTo.
type ByteVec struct {
	Vec[byte]
}

// NewByteVec reserves address space for max bytes. See NewVec.
func NewByteVec(max int, opts ...Option) (*ByteVec, error) {
	r, err := newVecRegion(max, 1, opts)
	if err != nil {
		return nil, err
	}
	return &ByteVec{Vec: Vec[byte]{r: r}}, nil
}

// MustNewByteVec is like NewByteVec but panics if the ByteVec cannot be
// created.
func MustNewByteVec(max int, opts ...Option) *ByteVec {
	b, err := NewByteVec(max, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Bytes returns the contents of the vector, see Vec.Slice.
func (b *ByteVec) Bytes() []byte { return b.Slice() }

// Write appends p. It either writes all of p or nothing, in which case the
// error wraps ErrOutOfMemory or ErrNotWritable.
func (b *ByteVec) Write(p []byte) (int, error) {
	if err := b.Append(p...); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteByte appends c.
func (b *ByteVec) WriteByte(c byte) error {
	return b.Append(c)
}

// WriteString appends s.
func (b *ByteVec) WriteString(s string) (int, error) {
	if len(s) == 0 {
		return 0, nil
	}
	dst, err := b.extend(len(s))
	if err != nil {
		return 0, err
	}
	return copy(dst, s), nil
}

// ReadFrom appends data read from r until EOF or an error. Reads go directly
// into committed memory; the vector grows with Grow as needed. The return
// value n is the number of bytes read. Once the maximum capacity is reached,
// ReadFrom fails with ErrOutOfMemory unless r is also exhausted.
func (b *ByteVec) ReadFrom(r io.Reader) (n int64, err error) {
	if err := b.writable(); err != nil {
		return 0, err
	}
	for {
		if err := b.Grow(MinRead); err != nil {
			if !errors.Is(err, ErrCeilingExceeded) || b.Reserve(b.MaxCap()) != nil {
				return n, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
			}
		}
		spare := b.spare()
		if len(spare) == 0 {
			return n, b.probeEOF(r)
		}
		m, e := r.Read(spare)
		if m < 0 || m > len(spare) {
			panic("memory: reader returned invalid count from Read")
		}
		b.setLen(b.len + m)
		n += int64(m)
		if e == io.EOF {
			return n, nil
		}
		if e != nil {
			return n, e
		}
	}
}

// probeEOF reports whether r has nothing left once the vector is full.
func (b *ByteVec) probeEOF(r io.Reader) error {
	var one [1]byte
	for {
		m, e := r.Read(one[:])
		switch {
		case m > 0:
			return fmt.Errorf("%w: %w: maximum %d bytes", ErrOutOfMemory, ErrCeilingExceeded, b.MaxCap())
		case e == io.EOF:
			return nil
		case e != nil:
			return e
		}
	}
}

// WriteTo writes the contents of the vector to w. Unlike bytes.Buffer, the
// vector is not drained.
func (b *ByteVec) WriteTo(w io.Writer) (int64, error) {
	data := b.Bytes()
	if len(data) == 0 {
		return 0, nil
	}
	m, err := w.Write(data)
	if err == nil && m != len(data) {
		err = io.ErrShortWrite
	}
	return int64(m), err
}

var (
	_ io.Writer       = (*ByteVec)(nil)
	_ io.ByteWriter   = (*ByteVec)(nil)
	_ io.StringWriter = (*ByteVec)(nil)
	_ io.ReaderFrom   = (*ByteVec)(nil)
	_ io.WriterTo     = (*ByteVec)(nil)
)
