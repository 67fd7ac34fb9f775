// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package remap translates alignment loci on contigs onto target
// sequences using contig placements described in BED files.
//
// Each BED feature places the contig named in its name column onto the
// target sequence named in its chrom column. Features on the '-' strand
// place the contig reverse complemented, and BED12 features place the
// contig as the concatenation of their blocks.
package remap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/biogo/store/interval"
	"github.com/brentp/xopen"
)

var ErrBED = errors.New("remap: malformed BED line")

// segment is a contiguous part of a contig placed on a target. Contig
// coordinates [start,end) map onto target coordinates [tstart,tend).
type segment struct {
	start, end   int
	target       string
	tstart, tend int
	reverse      bool

	uid uintptr
}

func (s segment) Overlap(b interval.IntRange) bool {
	return s.end > b.Start && s.start < b.End
}
func (s segment) ID() uintptr              { return s.uid }
func (s segment) Range() interval.IntRange { return interval.IntRange{Start: s.start, End: s.end} }

type query struct{ start, end int }

func (q query) Overlap(b interval.IntRange) bool {
	return q.end > b.Start && q.start < b.End
}

// Map holds contig placements keyed by contig name.
type Map struct {
	trees map[string]*interval.IntTree
	n     int
}

// ReadBED returns a Map read from the BED file at path, which may be
// compressed.
func ReadBED(path string) (*Map, error) {
	r, err := xopen.Ropen(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	m, err := NewMap(r)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	return m, nil
}

// NewMap returns a Map read from the BED data in r.
func NewMap(r io.Reader) (*Map, error) {
	m := &Map{trees: make(map[string]*interval.IntTree)}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)
	for line := 1; sc.Scan(); line++ {
		l := bytes.TrimSpace(sc.Bytes())
		if len(l) == 0 || l[0] == '#' || bytes.HasPrefix(l, []byte("track")) || bytes.HasPrefix(l, []byte("browser")) {
			continue
		}
		err := m.addFeature(bytes.Fields(l))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d", err, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of placed contig segments.
func (m *Map) Len() int { return m.n }

func (m *Map) addFeature(f [][]byte) error {
	if len(f) < 4 {
		return fmt.Errorf("%w: %d fields", ErrBED, len(f))
	}
	target, contig := string(f[0]), string(f[3])
	start, err := strconv.Atoi(string(f[1]))
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrBED, f[1])
	}
	end, err := strconv.Atoi(string(f[2]))
	if err != nil || end <= start || start < 0 {
		return fmt.Errorf("%w: end %q", ErrBED, f[2])
	}
	reverse := len(f) > 5 && string(f[5]) == "-"

	blocks := [][2]int{{start, end}}
	if len(f) >= 12 {
		blocks, err = bedBlocks(start, end, f[9], f[10], f[11])
		if err != nil {
			return err
		}
	}

	var total int
	for _, b := range blocks {
		total += b[1] - b[0]
	}
	tree, ok := m.trees[contig]
	if !ok {
		tree = &interval.IntTree{}
		m.trees[contig] = tree
	}
	var off int
	for _, b := range blocks {
		size := b[1] - b[0]
		s := segment{
			target:  target,
			tstart:  b[0],
			tend:    b[1],
			reverse: reverse,
			uid:     uintptr(m.n),
		}
		if reverse {
			s.start = total - off - size
		} else {
			s.start = off
		}
		s.end = s.start + size
		off += size
		err = tree.Insert(s, false)
		if err != nil {
			return err
		}
		m.n++
	}
	return nil
}

func bedBlocks(start, end int, count, sizes, starts []byte) ([][2]int, error) {
	n, err := strconv.Atoi(string(count))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: block count %q", ErrBED, count)
	}
	sz := bytes.Split(bytes.TrimRight(sizes, ","), []byte{','})
	st := bytes.Split(bytes.TrimRight(starts, ","), []byte{','})
	if len(sz) != n || len(st) != n {
		return nil, fmt.Errorf("%w: block lists do not match count %d", ErrBED, n)
	}
	blocks := make([][2]int, n)
	last := start
	for i := range blocks {
		s, err := strconv.Atoi(string(st[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: block start %q", ErrBED, st[i])
		}
		l, err := strconv.Atoi(string(sz[i]))
		if err != nil || l < 1 {
			return nil, fmt.Errorf("%w: block size %q", ErrBED, sz[i])
		}
		b := [2]int{start + s, start + s + l}
		if b[0] < last || b[1] > end {
			return nil, fmt.Errorf("%w: block %d out of order or bounds", ErrBED, i)
		}
		blocks[i] = b
		last = b[1]
	}
	return blocks, nil
}

// Remap returns the target placement of the contig interval [start,end)
// on the named contig. It returns false if the contig is unknown or the
// interval is not wholly within a single placed segment.
func (m *Map) Remap(name string, start, end int) (target string, tstart, tend int, ok bool) {
	tree := m.trees[name]
	if tree == nil {
		return "", 0, 0, false
	}
	q := query{start: start, end: end}
	if q.end <= q.start {
		q.end = q.start + 1
	}
	hits := tree.Get(q)
	if len(hits) != 1 {
		return "", 0, 0, false
	}
	s := hits[0].(segment)
	if q.start < s.start || q.end > s.end {
		return "", 0, 0, false
	}
	if s.reverse {
		return s.target, s.tend - (end - s.start), s.tend - (start - s.start), true
	}
	return s.target, s.tstart + (start - s.start), s.tstart + (end - s.start), true
}
