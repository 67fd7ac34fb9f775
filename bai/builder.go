// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bai builds BAI indexes for coordinate sorted BAM streams.
package bai

import (
	"errors"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/willf/bitset"

	"github.com/biogo/alignio/internal/binning"
	"github.com/biogo/alignio/internal/buffer"
	"github.com/biogo/alignio/sam"
)

var (
	ErrUnsorted = errors.New("bai: record out of coordinate sort order")
	ErrRefID    = errors.New("bai: reference id out of range")
	ErrFinished = errors.New("bai: index already written")
	ErrBin      = errors.New("bai: bin out of range")
)

var magic = [4]byte{'B', 'A', 'I', 0x1}

const (
	initialChunks = 1 << 10
	initialBuffer = 1 << 16
)

// Chunk is a run of records in one bin, with the reference loci it spans.
type Chunk struct {
	Bin         uint16
	Start, Stop int
	bgzf.Chunk

	next int32
}

// binEntry summarises the chunk list of one populated bin.
type binEntry struct {
	n           int
	first, last int32
}

type refStats struct {
	chunk    bgzf.Chunk
	mapped   uint64
	unmapped uint64
}

// Builder accumulates BAI index data for one write session. Chunks for
// the current reference are held in a single table with each populated
// bin linking its chunks in emission order. When a reference is complete
// it is serialized into an internal buffer and its state is reset.
type Builder struct {
	refs  []*sam.Reference
	merge index.MergeStrategy

	cur     int
	lastPos int

	chunks []Chunk
	bins   []binEntry
	seen   *bitset.BitSet
	linear []bgzf.Offset
	stats  refStats

	done   int
	noCoor uint64
	out    *buffer.Buffer
	err    error
	closed bool
}

// NewBuilder returns a Builder for the given references, which must be in
// dictionary order. It fails if any reference is too long to be indexed.
func NewBuilder(refs []*sam.Reference) (*Builder, error) {
	for _, r := range refs {
		if err := CheckLength(r.Len); err != nil {
			return nil, fmt.Errorf("bai: reference %q: %w", r.Name, err)
		}
	}
	return &Builder{
		refs:   refs,
		merge:  index.Adjacent,
		cur:    -1,
		chunks: make([]Chunk, 0, initialChunks),
		bins:   make([]binEntry, binning.Count),
		seen:   bitset.New(binning.Count),
		out:    buffer.New(initialBuffer, 0),
	}, nil
}

// SetMergeStrategy sets the strategy used to coalesce each bin's chunks
// when a reference is finalized. A nil strategy leaves chunks unmerged.
func (b *Builder) SetMergeStrategy(s index.MergeStrategy) {
	if s == nil {
		s = index.Identity
	}
	b.merge = s
}

// SetMaxBuffer bounds the memory used to hold the serialized index.
func (b *Builder) SetMaxBuffer(n int) { b.out.SetMax(n) }

// Err returns the error that stopped the builder, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return b.err
}

// Add records a BAM record at chunk c. Records must be added in
// coordinate order; records without a reference are counted and must
// follow all placed records.
func (b *Builder) Add(refID, pos, end int, bin uint16, c bgzf.Chunk, mapped bool) error {
	if b.err != nil {
		return b.err
	}
	if b.closed {
		return ErrFinished
	}
	if refID < 0 || pos < 0 {
		b.noCoor++
		return nil
	}
	if refID >= len(b.refs) {
		return b.fail(fmt.Errorf("%w: %d", ErrRefID, refID))
	}
	if b.noCoor != 0 || refID < b.cur {
		return b.fail(fmt.Errorf("%w: reference %d after %d", ErrUnsorted, refID, b.cur))
	}
	for b.cur < refID {
		if err := b.FinalizeReference(); err != nil {
			return err
		}
	}
	if pos < b.lastPos {
		return b.fail(fmt.Errorf("%w: position %d after %d", ErrUnsorted, pos, b.lastPos))
	}
	b.lastPos = pos
	if end <= pos {
		end = pos + 1
	}
	if end > MaxReferenceLen {
		return b.fail(&sam.CapacityError{Field: "alignment end", Len: end, Max: MaxReferenceLen, Err: ErrCeiling})
	}
	if int(bin) >= binning.Count {
		return b.fail(fmt.Errorf("%w: bin %d", ErrBin, bin))
	}

	if len(b.chunks) == 0 {
		b.stats.chunk = c
	} else {
		b.stats.chunk.End = c.End
	}
	if mapped {
		b.stats.mapped++
	} else {
		b.stats.unmapped++
	}
	return b.AddChunk(bin, c.Begin, pos, c.End, end)
}

// AddChunk appends a chunk for the current reference to the given bin and
// updates the linear index for the loci [start,stop). A bin outside the
// binning scheme, including the statistics pseudo-bin, fails the builder.
func (b *Builder) AddChunk(bin uint16, begin bgzf.Offset, start int, end bgzf.Offset, stop int) error {
	if b.err != nil {
		return b.err
	}
	if int(bin) >= binning.Count {
		return b.fail(fmt.Errorf("%w: bin %d", ErrBin, bin))
	}
	i := int32(len(b.chunks))
	b.chunks = append(b.chunks, Chunk{
		Bin:   bin,
		Start: start,
		Stop:  stop,
		Chunk: bgzf.Chunk{Begin: begin, End: end},
		next:  -1,
	})
	if !b.seen.Test(uint(bin)) {
		b.seen.Set(uint(bin))
		b.bins[bin] = binEntry{n: 1, first: i, last: i}
	} else {
		e := &b.bins[bin]
		b.chunks[e.last].next = i
		e.last = i
		e.n++
	}

	if stop <= start {
		stop = start + 1
	}
	last := (stop - 1) / TileWidth
	for len(b.linear) <= last {
		b.linear = append(b.linear, bgzf.Offset{})
	}
	for t := start / TileWidth; t <= last; t++ {
		if isZero(b.linear[t]) {
			b.linear[t] = begin
		}
	}
	return nil
}

// BinChunks returns the chunks recorded so far in bin for the current
// reference, in emission order.
func (b *Builder) BinChunks(bin uint16) []Chunk {
	if !b.seen.Test(uint(bin)) {
		return nil
	}
	var cs []Chunk
	for i := b.bins[bin].first; i >= 0; i = b.chunks[i].next {
		cs = append(cs, b.chunks[i])
	}
	return cs
}

// FinalizeReference serializes the index data for the current reference
// and advances to the next. References with no records are written with
// no bins and no linear index.
func (b *Builder) FinalizeReference() error {
	if b.err != nil {
		return b.err
	}
	if b.closed {
		return ErrFinished
	}
	if b.cur >= 0 && b.done <= b.cur {
		b.writeReference()
		b.done = b.cur + 1
		b.reset()
	}
	b.cur++
	if err := b.out.Err(); err != nil {
		return b.fail(err)
	}
	return nil
}

func (b *Builder) reset() {
	for i, ok := b.seen.NextSet(0); ok; i, ok = b.seen.NextSet(i + 1) {
		b.bins[i] = binEntry{}
	}
	b.seen.ClearAll()
	b.chunks = b.chunks[:0]
	b.linear = b.linear[:0]
	b.stats = refStats{}
	b.lastPos = 0
}

func (b *Builder) writeReference() {
	if len(b.chunks) == 0 {
		b.out.PutInt32(0)
		b.out.PutInt32(0)
		return
	}

	b.out.PutInt32(int32(b.seen.Count()) + 1)
	var cs []bgzf.Chunk
	for i, ok := b.seen.NextSet(0); ok; i, ok = b.seen.NextSet(i + 1) {
		cs = cs[:0]
		for j := b.bins[i].first; j >= 0; j = b.chunks[j].next {
			cs = append(cs, b.chunks[j].Chunk)
		}
		cs = b.merge(cs)
		b.out.PutUint32(uint32(i))
		b.out.PutInt32(int32(len(cs)))
		for _, c := range cs {
			b.out.PutUint64(vOffset(c.Begin))
			b.out.PutUint64(vOffset(c.End))
		}
	}
	b.out.PutUint32(StatsBin)
	b.out.PutInt32(2)
	b.out.PutUint64(vOffset(b.stats.chunk.Begin))
	b.out.PutUint64(vOffset(b.stats.chunk.End))
	b.out.PutUint64(b.stats.mapped)
	b.out.PutUint64(b.stats.unmapped)

	// Leading empty tiles take the first record's offset and gaps take
	// the offset of the preceding tile. A reference of known length is
	// tiled to its end.
	n := len(b.linear)
	if l := b.refs[b.cur].Len; l > 0 {
		if t := (l-1)/TileWidth + 1; t > n {
			n = t
		}
	}
	b.out.PutInt32(int32(n))
	prev := b.stats.chunk.Begin
	for t := 0; t < n; t++ {
		if t < len(b.linear) && !isZero(b.linear[t]) {
			prev = b.linear[t]
		}
		b.out.PutUint64(vOffset(prev))
	}
}

// FinalizeAll serializes the current and all remaining references. Only
// unplaced records may be added after FinalizeAll.
func (b *Builder) FinalizeAll() error {
	for b.done < len(b.refs) {
		if err := b.FinalizeReference(); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo finalizes all remaining references and writes the complete
// index to w. The Builder cannot be used after WriteTo.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.closed {
		return 0, ErrFinished
	}
	if err := b.FinalizeAll(); err != nil {
		return 0, err
	}
	b.closed = true

	var head [8]byte
	copy(head[:4], magic[:])
	putUint32(head[4:], uint32(len(b.refs)))
	n, err := w.Write(head[:])
	total := int64(n)
	if err != nil {
		return total, b.fail(fmt.Errorf("bai: failed to write index header: %w", err))
	}
	m, err := b.out.WriteTo(w)
	total += m
	if err != nil {
		return total, b.fail(fmt.Errorf("bai: failed to write reference indexes: %w", err))
	}
	var tail [8]byte
	putUint64(tail[:], b.noCoor)
	n, err = w.Write(tail[:])
	total += int64(n)
	if err != nil {
		return total, b.fail(fmt.Errorf("bai: failed to write unplaced count: %w", err))
	}
	return total, nil
}

func isZero(o bgzf.Offset) bool { return o == bgzf.Offset{} }

func vOffset(o bgzf.Offset) uint64 { return uint64(o.File)<<16 | uint64(o.Block) }

func makeOffset(v uint64) bgzf.Offset { return bgzf.Offset{File: int64(v >> 16), Block: uint16(v)} }

func putUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func putUint64(b []byte, v uint64) {
	putUint32(b, uint32(v))
	putUint32(b[4:], uint32(v>>32))
}
