// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"

	"github.com/biogo/alignio/bam"
	"github.com/biogo/alignio/sam"
)

// sniffSize holds a complete BGZF block so the first block of a
// compressed stream can be inspected before committing to a decoder.
const sniffSize = bgzfMaxBlock + 1<<10

const bgzfMaxBlock = 1 << 16

// readState is the state of the ReadSequence state machine.
type readState int

const (
	awaitingRecord readState = iota
	recordParsed
)

// Reader reads alignment records from SAM or BAM data.
type Reader struct {
	typ Type

	closers []io.Closer

	// src buffers the raw input.
	src  *bufio.Reader
	text *bufio.Reader
	bam  *bam.Reader

	h   *sam.Header
	dec sam.Decoder

	// pending is the first alignment line, read while
	// consuming the text header.
	pending []byte
	line    []byte

	state readState
	cur   sam.Record

	logger log.Logger
	closed bool
}

// Open opens the SAM or BAM file at path, classifying it by content.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "samfile: open")
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "samfile: %s", path)
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader returns a Reader for the SAM or BAM data in r. The data is
// classified by content as plain, gzip, xz or BGZF compressed SAM, or as
// BAM, and the header is read.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	typ, err := sniff(br)
	if err != nil {
		return nil, err
	}
	sr := &Reader{typ: typ, src: br, logger: log.NewNopLogger()}
	sr.dec.Limits = sam.DefaultLimits

	var text io.Reader
	switch typ {
	case BAM:
		sr.bam, err = bam.NewReader(br, 1)
		if err != nil {
			return nil, errors.Wrap(err, "samfile: reading BAM header")
		}
		sr.closers = append(sr.closers, sr.bam)
		sr.h = sr.bam.Header()
		sr.dec.Dict = sr.h.Dict
		return sr, nil
	case SAMbgzf:
		bg, err := bgzf.NewReader(br, 1)
		if err != nil {
			return nil, errors.Wrap(err, "samfile: reading BGZF")
		}
		sr.closers = append(sr.closers, bg)
		text = bg
	case SAMgz:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "samfile: reading gzip")
		}
		sr.closers = append(sr.closers, gz)
		text = gz
	case SAMxz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "samfile: reading xz")
		}
		text = xr
	default:
		sr.text = br
	}
	if sr.text == nil {
		sr.text = bufio.NewReaderSize(text, 1<<16)
	}
	err = sr.readHeader()
	if err != nil {
		sr.Close()
		return nil, err
	}
	return sr, nil
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	bamMagic  = []byte("BAM\x01")
)

// sniff classifies the data buffered in br without consuming it.
func sniff(br *bufio.Reader) (Type, error) {
	head, err := br.Peek(18)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return Unknown, errors.Wrap(err, "samfile: reading input")
	}
	switch {
	case bytes.HasPrefix(head, xzMagic):
		return SAMxz, nil
	case !bytes.HasPrefix(head, gzipMagic):
		return SAM, nil
	case len(head) < 18 || head[3]&0x4 == 0 || head[12] != 'B' || head[13] != 'C':
		return SAMgz, nil
	}

	// BGZF: inspect the decompressed start of the first block.
	bsize := int(binary.LittleEndian.Uint16(head[16:])) + 1
	block, err := br.Peek(bsize)
	if err != nil {
		return Unknown, errors.Wrap(err, "samfile: truncated BGZF block")
	}
	gz, err := gzip.NewReader(bytes.NewReader(block))
	if err != nil {
		return Unknown, errors.Wrap(err, "samfile: reading BGZF block")
	}
	gz.Multistream(false)
	var m [4]byte
	n, _ := io.ReadFull(gz, m[:])
	if n == 4 && bytes.Equal(m[:], bamMagic) {
		return BAM, nil
	}
	return SAMbgzf, nil
}

// readHeader consumes the SAM text header, retaining the first alignment
// line.
func (r *Reader) readHeader() error {
	h := sam.NewHeader(nil)
	for {
		l, err := r.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(l) == 0 {
			continue
		}
		if l[0] != '@' {
			r.pending = l
			break
		}
		err = h.ParseLine(l)
		if err != nil {
			return err
		}
	}
	r.h = h
	r.dec.Dict = h.Dict
	// Without @SQ lines references are registered as they are seen.
	r.dec.Register = h.Dict.Len() == 0
	return nil
}

// readLine returns the next line without its terminator. The returned
// slice is valid until the next call.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		l, err := r.text.ReadSlice('\n')
		r.line = append(r.line, l...)
		switch err {
		case nil:
			return bytes.TrimRight(r.line, "\r\n"), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(r.line) == 0 {
				return nil, io.EOF
			}
			return bytes.TrimRight(r.line, "\r\n"), nil
		default:
			return nil, errors.Wrap(err, "samfile: reading line")
		}
	}
}

// Type returns the classified type of the input.
func (r *Reader) Type() Type { return r.typ }

// Header returns the header read from the input.
func (r *Reader) Header() *sam.Header { return r.h }

// Dictionary returns the reference dictionary of the input.
func (r *Reader) Dictionary() *sam.Dictionary { return r.h.Dict }

// HeaderText returns the SAM text form of the header.
func (r *Reader) HeaderText() ([]byte, error) { return r.h.MarshalText() }

// SetLimits sets the capacities enforced when decoding SAM records.
func (r *Reader) SetLimits(l sam.Limits) { r.dec.Limits = l }

// SetRemapper sets a remapper applied to SAM alignment loci before
// reference resolution. BAM records are not remapped.
func (r *Reader) SetRemapper(rm sam.Remapper) { r.dec.Remap = rm }

// SetLogger sets the logger used for diagnostics by the reader and its
// dictionary.
func (r *Reader) SetLogger(l log.Logger) {
	if l == nil {
		l = log.NewNopLogger()
	}
	r.logger = l
	r.h.Dict.SetLogger(l)
}

// nextText returns the next alignment line of a text input. Header lines
// in the alignment section are logged and skipped.
func (r *Reader) nextText() ([]byte, error) {
	if r.pending != nil {
		l := r.pending
		r.pending = nil
		return l, nil
	}
	for {
		l, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if len(l) == 0 {
			continue
		}
		if l[0] == '@' {
			level.Warn(r.logger).Log("msg", "skipping header line in alignment section", "line", string(l))
			continue
		}
		return l, nil
	}
}

// NextLine returns the next alignment as a SAM text line without its
// terminator. For text input the line is returned as read; BAM records
// are rendered as text. The returned slice is valid until the next read.
func (r *Reader) NextLine() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	r.state = awaitingRecord
	if r.bam == nil {
		return r.nextText()
	}
	err := r.bam.ReadInto(&r.cur)
	if err != nil {
		return nil, err
	}
	r.line, err = r.cur.AppendSAM(r.line[:0])
	return r.line, err
}

// Read returns the next alignment record. The record is owned by the
// caller.
func (r *Reader) Read() (*sam.Record, error) {
	if r.closed {
		return nil, ErrClosed
	}
	r.state = awaitingRecord
	if r.bam != nil {
		return r.bam.Read()
	}
	var rec sam.Record
	err := r.decodeNext(&rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Reader) decodeNext(rec *sam.Record) error {
	if r.bam != nil {
		return r.bam.ReadInto(rec)
	}
	l, err := r.nextText()
	if err != nil {
		return err
	}
	return r.dec.Decode(l, rec)
}

// ReadSequence steps through the input one record at a time. When no
// record is pending it parses the next record and returns
// ErrEndOfRecord; the record's Descriptor is then available. The next
// call copies the record's bases into dst and returns the number of
// bases delivered. A nil dst returns the sequence length without
// consuming it. At the end of input ReadSequence returns io.EOF.
func (r *Reader) ReadSequence(dst []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	switch r.state {
	case awaitingRecord:
		err := r.decodeNext(&r.cur)
		if err != nil {
			return 0, err
		}
		r.state = recordParsed
		return 0, ErrEndOfRecord
	case recordParsed:
		seq := r.cur.Seq
		if dst == nil {
			return seq.Length, nil
		}
		n := seq.Length
		if n > len(dst) {
			n = len(dst)
		}
		for i := 0; i < n; i++ {
			dst[i] = seq.At(i)
		}
		r.state = awaitingRecord
		return n, nil
	}
	panic("samfile: invalid read state")
}

// Descriptor returns the identifying fields of the record most recently
// parsed by ReadSequence or NextLine on BAM input.
func (r *Reader) Descriptor() Descriptor {
	return Descriptor{
		Name:    r.cur.Name,
		Flags:   r.cur.Flags,
		RefName: r.cur.RefName,
		Start:   r.cur.Pos,
	}
}

// Close releases the resources held by the Reader.
func (r *Reader) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if cerr := r.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.closers = nil
	return err
}
