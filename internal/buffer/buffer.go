// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer provides the growable byte buffers used for header and
// index construction.
package buffer

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrTooLarge is returned when growing a Buffer would exceed its ceiling.
var ErrTooLarge = errors.New("buffer: allocation exceeds ceiling")

// Buffer is an append-only byte buffer that grows geometrically from an
// initial allocation up to an optional ceiling. The zero value is an empty
// buffer with no ceiling.
type Buffer struct {
	data []byte
	max  int
	err  error
}

// New returns a Buffer with an initial allocation of size bytes. If max is
// positive, growth past max bytes fails with ErrTooLarge.
func New(size, max int) *Buffer {
	if max > 0 && size > max {
		size = max
	}
	return &Buffer{data: make([]byte, 0, size), max: max}
}

// Used returns the number of bytes held in the buffer.
func (b *Buffer) Used() int { return len(b.data) }

// Allocated returns the current capacity of the buffer.
func (b *Buffer) Allocated() int { return cap(b.data) }

// Err returns the first growth failure, if any. Once a Buffer has failed
// all subsequent writes are ignored.
func (b *Buffer) Err() error { return b.err }

// SetMax sets the growth ceiling. A non-positive max removes the ceiling.
func (b *Buffer) SetMax(max int) { b.max = max }

// Bytes returns the buffered data. The slice is only valid until the next
// write to b.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset empties the buffer, retaining its allocation and clearing any error.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.err = nil
}

// grow ensures there is room for n more bytes, returning the offset at which
// they start.
func (b *Buffer) grow(n int) (int, bool) {
	if b.err != nil {
		return 0, false
	}
	off := len(b.data)
	need := off + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		return off, true
	}
	if b.max > 0 && need > b.max {
		b.err = ErrTooLarge
		return 0, false
	}
	size := 2 * cap(b.data)
	if size < need {
		size = need
	}
	if b.max > 0 && size > b.max {
		size = b.max
	}
	data := make([]byte, need, size)
	copy(data, b.data)
	b.data = data
	return off, true
}

// Write appends p to the buffer. It implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	off, ok := b.grow(len(p))
	if !ok {
		return 0, b.err
	}
	return copy(b.data[off:], p), nil
}

// WriteString appends s to the buffer.
func (b *Buffer) WriteString(s string) (int, error) {
	off, ok := b.grow(len(s))
	if !ok {
		return 0, b.err
	}
	return copy(b.data[off:], s), nil
}

// WriteByte appends c to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	off, ok := b.grow(1)
	if !ok {
		return b.err
	}
	b.data[off] = c
	return nil
}

// PutUint32 appends v in little-endian byte order.
func (b *Buffer) PutUint32(v uint32) {
	off, ok := b.grow(4)
	if ok {
		binary.LittleEndian.PutUint32(b.data[off:], v)
	}
}

// PutInt32 appends v in little-endian byte order.
func (b *Buffer) PutInt32(v int32) { b.PutUint32(uint32(v)) }

// PutUint64 appends v in little-endian byte order.
func (b *Buffer) PutUint64(v uint64) {
	off, ok := b.grow(8)
	if ok {
		binary.LittleEndian.PutUint64(b.data[off:], v)
	}
}

// SetUint32 overwrites the four bytes at off with v. It is used to patch
// length prefixes once the length is known.
func (b *Buffer) SetUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[off:off+4], v)
}

// WriteTo writes the buffered data to w. It implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	n, err := w.Write(b.data)
	return int64(n), err
}
