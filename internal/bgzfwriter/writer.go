// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzfwriter implements a synchronous BGZF writer that reports
// the virtual offset of the next byte to be written.
package bgzfwriter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

const (
	BlockSize    = 0x0ff00 // Size of input data block.
	MaxBlockSize = 0x10000 // Maximum size of output block.
)

const (
	bgzfExtra = "BC\x02\x00\x00\x00"
	minFrame  = 20 + len(bgzfExtra) // Minimum bgzf header+footer length.

	// bsizeOffset is the position of BSIZE in a block with no name or
	// comment fields.
	bsizeOffset = 16

	// Magic EOF block.
	magicBlock = "\x1f\x8b\x08\x04\x00\x00\x00\x00\x00\xff\x06\x00\x42\x43\x02\x00\x1b\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"
)

func compressBound(srcLen int) int {
	return srcLen + srcLen>>12 + srcLen>>14 + srcLen>>25 + 13 + minFrame
}

func init() {
	if compressBound(BlockSize) > MaxBlockSize {
		panic("bgzfwriter: BlockSize too large")
	}
}

var (
	ErrClosed        = errors.New("bgzfwriter: use of closed writer")
	ErrBlockOverflow = errors.New("bgzfwriter: block overflow")
)

// Writer writes BGZF blocks to an underlying io.Writer. Blocks are
// written synchronously when full, so the offset of buffered data is
// known at all times.
type Writer struct {
	w     io.Writer
	level int

	gz    *gzip.Writer
	block bytes.Buffer
	buf   []byte

	file   int64
	err    error
	closed bool
}

// New returns a Writer writing to w at the given gzip compression level.
func New(w io.Writer, level int) (*Writer, error) {
	bw := &Writer{w: w, level: level, buf: make([]byte, 0, BlockSize)}
	var err error
	bw.gz, err = gzip.NewWriterLevel(&bw.block, level)
	if err != nil {
		return nil, err
	}
	return bw, nil
}

// Offset returns the virtual offset at which the next written byte will
// be placed.
func (bw *Writer) Offset() bgzf.Offset {
	return bgzf.Offset{File: bw.file, Block: uint16(len(bw.buf))}
}

// VOffset returns Offset in its packed 64-bit form.
func (bw *Writer) VOffset() uint64 {
	return uint64(bw.file)<<16 | uint64(len(bw.buf))
}

// Write buffers p, writing complete blocks as they fill.
func (bw *Writer) Write(p []byte) (int, error) {
	if bw.closed {
		return 0, ErrClosed
	}
	if bw.err != nil {
		return 0, bw.err
	}
	var n int
	for len(p) != 0 {
		c := copy(bw.buf[len(bw.buf):BlockSize], p)
		bw.buf = bw.buf[:len(bw.buf)+c]
		p = p[c:]
		n += c
		if len(bw.buf) == BlockSize {
			if err := bw.writeBlock(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes any buffered data as a block. Flushing an empty buffer is
// a no-op.
func (bw *Writer) Flush() error {
	if bw.closed {
		return ErrClosed
	}
	if bw.err != nil {
		return bw.err
	}
	if len(bw.buf) == 0 {
		return nil
	}
	return bw.writeBlock()
}

func (bw *Writer) writeBlock() error {
	bw.block.Reset()
	bw.gz.Reset(&bw.block)
	bw.gz.Header = gzip.Header{Extra: []byte(bgzfExtra), OS: 0xff}
	_, err := bw.gz.Write(bw.buf)
	if err == nil {
		err = bw.gz.Close()
	}
	if err != nil {
		bw.err = err
		return err
	}
	b := bw.block.Bytes()
	if len(b) > MaxBlockSize {
		bw.err = ErrBlockOverflow
		return bw.err
	}
	binary.LittleEndian.PutUint16(b[bsizeOffset:], uint16(len(b)-1))
	n, err := bw.w.Write(b)
	bw.file += int64(n)
	if err != nil {
		bw.err = err
		return err
	}
	bw.buf = bw.buf[:0]
	return nil
}

// Close flushes buffered data and writes the BGZF end-of-file marker. It
// does not close the underlying writer.
func (bw *Writer) Close() error {
	if bw.closed {
		return ErrClosed
	}
	err := bw.Flush()
	bw.closed = true
	if err != nil {
		return err
	}
	n, err := io.WriteString(bw.w, magicBlock)
	bw.file += int64(n)
	return err
}
