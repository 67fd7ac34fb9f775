// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"
)

// Index is the decoded content of a BAI file.
type Index struct {
	Refs []RefIndex

	// NoCoordinate is the count of unplaced records, nil if the
	// optional trailing count was absent.
	NoCoordinate *uint64
}

// RefIndex is the index of a single reference.
type RefIndex struct {
	Bins      []Bin
	Stats     *ReferenceStats
	Intervals []bgzf.Offset
}

// Bin is an index bin and its chunks.
type Bin struct {
	Bin    uint32
	Chunks []bgzf.Chunk
}

// ReferenceStats holds the mapping statistics held in the pseudo-bin.
type ReferenceStats struct {
	Chunk    bgzf.Chunk
	Mapped   uint64
	Unmapped uint64
}

// ReadIndex reads a BAI index from r.
func ReadIndex(r io.Reader) (*Index, error) {
	var m [4]byte
	err := binary.Read(r, binary.LittleEndian, &m)
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, errors.New("bai: magic number mismatch")
	}
	var n int32
	err = binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.New("bai: negative reference count")
	}
	idx := &Index{Refs: make([]RefIndex, n)}
	for i := range idx.Refs {
		idx.Refs[i].Bins, idx.Refs[i].Stats, err = readBins(r)
		if err != nil {
			return nil, fmt.Errorf("bai: reference %d: %w", i, err)
		}
		idx.Refs[i].Intervals, err = readIntervals(r)
		if err != nil {
			return nil, fmt.Errorf("bai: reference %d: %w", i, err)
		}
	}
	var noCoor uint64
	err = binary.Read(r, binary.LittleEndian, &noCoor)
	switch err {
	case nil:
		idx.NoCoordinate = &noCoor
	case io.EOF:
	default:
		return nil, err
	}
	return idx, nil
}

func readBins(r io.Reader) ([]Bin, *ReferenceStats, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, nil, err
	}
	var (
		bins  []Bin
		stats *ReferenceStats
	)
	for ; n > 0; n-- {
		var head struct {
			Bin    uint32
			Chunks int32
		}
		err = binary.Read(r, binary.LittleEndian, &head)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read bin header: %w", err)
		}
		if head.Bin == StatsBin {
			if head.Chunks != 2 {
				return nil, nil, errors.New("malformed stats bin header")
			}
			var s struct {
				Begin, End       uint64
				Mapped, Unmapped uint64
			}
			err = binary.Read(r, binary.LittleEndian, &s)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read stats: %w", err)
			}
			stats = &ReferenceStats{
				Chunk:    bgzf.Chunk{Begin: makeOffset(s.Begin), End: makeOffset(s.End)},
				Mapped:   s.Mapped,
				Unmapped: s.Unmapped,
			}
			continue
		}
		if head.Chunks < 0 {
			return nil, nil, fmt.Errorf("negative chunk count for bin %d", head.Bin)
		}
		vs := make([]uint64, 2*int(head.Chunks))
		err = binary.Read(r, binary.LittleEndian, vs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read chunks of bin %d: %w", head.Bin, err)
		}
		b := Bin{Bin: head.Bin, Chunks: make([]bgzf.Chunk, head.Chunks)}
		for i := range b.Chunks {
			b.Chunks[i] = bgzf.Chunk{Begin: makeOffset(vs[2*i]), End: makeOffset(vs[2*i+1])}
		}
		bins = append(bins, b)
	}
	return bins, stats, nil
}

func readIntervals(r io.Reader) ([]bgzf.Offset, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	vs := make([]uint64, n)
	err = binary.Read(r, binary.LittleEndian, vs)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile intervals: %w", err)
	}
	offsets := make([]bgzf.Offset, n)
	for i, v := range vs {
		offsets[i] = makeOffset(v)
	}
	return offsets, nil
}
