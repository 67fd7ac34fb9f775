// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samfile

import (
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/pkg/errors"

	"github.com/biogo/alignio/bai"
	"github.com/biogo/alignio/bam"
	"github.com/biogo/alignio/sam"
)

// IndexBAM writes a BAI index for the coordinate sorted BAM data in r to
// out. Adjacent chunks are coalesced unless merge strategies are given,
// in which case they are applied in order.
func IndexBAM(r io.Reader, out io.Writer, merge ...index.MergeStrategy) error {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return errors.Wrap(err, "samfile: reading BAM header")
	}
	defer br.Close()

	idx, err := bai.NewBuilder(br.Header().Dict.Refs())
	if err != nil {
		return errors.Wrap(err, "samfile")
	}
	if len(merge) != 0 {
		idx.SetMergeStrategy(chain(merge))
	}
	var (
		rec     sam.Record
		pending entry
		have    bool
	)
	for n := 0; ; n++ {
		err = br.ReadInto(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "samfile: record %d", n)
		}
		// The file's bin field is not trusted.
		rec.SetBin()
		c := br.LastChunk()
		if have {
			// A record ending on a block boundary is reported at the end
			// of its block; place it at the start of the next so chunks
			// agree with those recorded while writing.
			if pending.chunk.End != c.Begin && c.Begin.Block == 0 && c.Begin.File > pending.chunk.End.File {
				pending.chunk.End = c.Begin
			}
			err = pending.add(idx)
			if err != nil {
				return errors.Wrapf(err, "samfile: record %d %s", n-1, pending.name)
			}
		}
		pending = entry{
			refID: rec.RefID, pos: rec.Pos, end: rec.End, bin: rec.Bin,
			chunk: c, mapped: rec.Flags.IsMapped(), name: rec.Name,
		}
		have = true
	}
	if have {
		err = pending.add(idx)
		if err != nil {
			return errors.Wrapf(err, "samfile: %s", pending.name)
		}
	}
	_, err = idx.WriteTo(out)
	return errors.Wrap(err, "samfile: writing index")
}

type entry struct {
	refID, pos, end int
	bin             uint16
	chunk           bgzf.Chunk
	mapped          bool
	name            string
}

func (e entry) add(idx *bai.Builder) error {
	return idx.Add(e.refID, e.pos, e.end, e.bin, e.chunk, e.mapped)
}

func chain(ms []index.MergeStrategy) index.MergeStrategy {
	return func(c []bgzf.Chunk) []bgzf.Chunk {
		for _, m := range ms {
			if m != nil {
				c = m(c)
			}
		}
		return c
	}
}
