// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/biogo/hts/bgzf"

	"github.com/biogo/alignio/internal/pool"
	"github.com/biogo/alignio/sam"
)

// Reader implements BAM data reading.
type Reader struct {
	r *bgzf.Reader
	h *sam.Header

	lastChunk bgzf.Chunk

	// buf is used to read the block size of each record.
	buf  [4]byte
	data []byte
}

// NewReader returns a new Reader using the given io.Reader
// and setting the read concurrency to rd. If rd is zero
// concurrency is set to GOMAXPROCS. The returned Reader
// should be closed after use to avoid leaking resources.
func NewReader(r io.Reader, rd int) (*Reader, error) {
	bg, err := bgzf.NewReader(r, rd)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(bg)
	if err != nil {
		bg.Close()
		return nil, err
	}
	br := &Reader{r: bg, h: h}
	br.lastChunk.End = br.r.LastChunk().End
	return br, nil
}

// Header returns the SAM Header held by the Reader.
func (br *Reader) Header() *sam.Header {
	return br.h
}

// Read returns the next sam.Record in the BAM stream. The returned
// record does not share storage with the Reader.
func (br *Reader) Read() (*sam.Record, error) {
	b, err := br.next()
	if err != nil {
		return nil, err
	}
	var rec sam.Record
	err = Unmarshal(append([]byte(nil), b...), br.h.Dict, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReadInto decodes the next record in the BAM stream into rec. Aux
// values in rec are only valid until the next read.
func (br *Reader) ReadInto(rec *sam.Record) error {
	b, err := br.next()
	if err != nil {
		return err
	}
	return Unmarshal(b, br.h.Dict, rec)
}

// next reads the next raw record and updates the Reader's lastChunk field.
func (br *Reader) next() ([]byte, error) {
	n, err := io.ReadFull(br.r, br.buf[:4])
	// br.r.Begin is only valid after the call to Read, so this
	// must come after the first read in the record.
	tx := br.r.Begin()
	defer func() {
		br.lastChunk = tx.End()
	}()
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.New("bam: invalid record: short block size")
		}
		return nil, err
	}
	if n != 4 {
		return nil, errors.New("bam: invalid record: short block size")
	}
	size := int(int32(binary.LittleEndian.Uint32(br.buf[:])))
	if size < fixedSize {
		return nil, ErrTruncated
	}
	if cap(br.data) < size {
		pool.Put(br.data)
		br.data = pool.Get(size)
	}
	br.data = br.data[:size]
	_, err = io.ReadFull(br.r, br.data)
	if err != nil {
		return nil, ErrTruncated
	}
	return br.data, nil
}

// LastChunk returns the bgzf.Chunk corresponding to the last Read operation.
// The bgzf.Chunk returned is only valid if the last Read operation returned a
// nil error.
func (br *Reader) LastChunk() bgzf.Chunk {
	return br.lastChunk
}

// Close closes the Reader. Records filled by ReadInto must not be used
// after Close.
func (br *Reader) Close() error {
	pool.Put(br.data)
	br.data = nil
	return br.r.Close()
}
