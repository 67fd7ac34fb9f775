// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"io"

	"github.com/biogo/hts/bgzf"

	"github.com/biogo/alignio/internal/buffer"
	"github.com/biogo/alignio/sam"
)

// BlockWriter is a BGZF stream that reports the virtual offset of the
// next byte it will write.
type BlockWriter interface {
	io.Writer
	Offset() bgzf.Offset
}

// Writer implements BAM data writing.
type Writer struct {
	h   *sam.Header
	bg  BlockWriter
	buf *buffer.Buffer
	rec []byte
}

// NewWriter returns a new Writer writing to bg, and writes the binary
// encoding of h. If maxHeader is positive, headers that encode to more
// than maxHeader bytes are rejected with buffer.ErrTooLarge.
func NewWriter(bg BlockWriter, h *sam.Header, maxHeader int) (*Writer, error) {
	bw := &Writer{
		h:   h,
		bg:  bg,
		buf: buffer.New(1<<16, maxHeader),
	}
	err := EncodeHeader(bw.buf, h)
	if err == nil {
		err = bw.buf.Err()
	}
	if err != nil {
		return nil, err
	}
	_, err = bw.buf.WriteTo(bg)
	if err != nil {
		return nil, err
	}
	return bw, nil
}

// Header returns the header the Writer was created with.
func (bw *Writer) Header() *sam.Header { return bw.h }

// Write writes r to the BAM stream, returning the virtual offsets
// spanning the encoded record.
func (bw *Writer) Write(r *sam.Record) (bgzf.Chunk, error) {
	var err error
	bw.rec, err = Marshal(bw.rec[:0], r)
	if err != nil {
		return bgzf.Chunk{}, err
	}
	c := bgzf.Chunk{Begin: bw.bg.Offset()}
	_, err = bw.bg.Write(bw.rec)
	c.End = bw.bg.Offset()
	return c, err
}
