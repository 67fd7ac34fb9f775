// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/klauspost/compress/gzip"
	"gopkg.in/check.v1"

	"github.com/biogo/alignio/samfile"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

// input lists its references out of name order.
const input = "@HD\tVN:1.6\n" +
	"@SQ\tSN:chr2\tLN:500\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"r1\t0\tchr2\t6\t60\t4M\t*\t0\t0\tGGCC\t####\n" +
	"r2\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*\n" +
	"r3\t0\tchr1\t101\t60\t4M\t*\t0\t0\tACGT\tIIII\n" +
	"r4\t0\tchr1\t11\t60\t4M\t*\t0\t0\tTTGA\t*\n"

const sorted = "@HD\tVN:1.6\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@SQ\tSN:chr2\tLN:500\n" +
	"@PG\tID:alignio\tPN:alignio\tVN:1.0.0\n" +
	"r4\t0\tchr1\t11\t60\t4M\t*\t0\t0\tTTGA\t*\n" +
	"r3\t0\tchr1\t101\t60\t4M\t*\t0\t0\tACGT\tIIII\n" +
	"r1\t0\tchr2\t6\t60\t4M\t*\t0\t0\tGGCC\t####\n" +
	"r2\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*\n"

func writeInput(c *check.C, dir string) string {
	path := filepath.Join(dir, "in.sam")
	c.Assert(os.WriteFile(path, []byte(input), 0o644), check.Equals, nil)
	return path
}

func (s *S) TestConvertIndexed(c *check.C) {
	dir := c.MkDir()
	in := writeInput(c, dir)
	out := filepath.Join(dir, "out.bam")

	err := convert(convertArgs{Type: "bam+bai", Level: gzip.DefaultCompression, Input: in, Output: out}, log.NewNopLogger())
	c.Assert(err, check.Equals, nil)

	var buf bytes.Buffer
	c.Assert(view(&buf, viewArgs{Input: out}), check.Equals, nil)
	c.Check(buf.String(), check.Equals, sorted)

	buf.Reset()
	c.Assert(view(&buf, viewArgs{Input: out, NoHeader: true}), check.Equals, nil)
	c.Check(strings.HasPrefix(buf.String(), "r4\t"), check.Equals, true)

	// Indexing the written BAM reproduces the index written with it.
	want, err := os.ReadFile(out + ".bai")
	c.Assert(err, check.Equals, nil)
	idx := filepath.Join(dir, "again.bai")
	c.Assert(indexFile(indexArgs{Input: out, Output: idx}), check.Equals, nil)
	got, err := os.ReadFile(idx)
	c.Assert(err, check.Equals, nil)
	c.Check(got, check.DeepEquals, want)
}

func (s *S) TestConvertStream(c *check.C) {
	dir := c.MkDir()
	in := writeInput(c, dir)
	out := filepath.Join(dir, "out.sam.gz")

	err := convert(convertArgs{Type: "sam.gz", Level: gzip.BestSpeed, Input: in, Output: out}, log.NewNopLogger())
	c.Assert(err, check.Equals, nil)

	r, err := samfile.Open(out)
	c.Assert(err, check.Equals, nil)
	defer r.Close()
	c.Check(r.Type(), check.Equals, samfile.SAMgz)
	rec, err := r.Read()
	c.Assert(err, check.Equals, nil)
	c.Check(rec.Name, check.Equals, "r1")
}

func (s *S) TestConvertBadType(c *check.C) {
	dir := c.MkDir()
	in := writeInput(c, dir)
	err := convert(convertArgs{Type: "cram", Input: in, Output: filepath.Join(dir, "out")}, log.NewNopLogger())
	c.Check(err, check.NotNil)
}

func (s *S) TestViewRemapped(c *check.C) {
	dir := c.MkDir()
	sam := filepath.Join(dir, "in.sam")
	c.Assert(os.WriteFile(sam, []byte("@SQ\tSN:chr1\tLN:1000\n@SQ\tSN:ctg\tLN:100\n"+
		"r1\t0\tctg\t11\t60\t4M\t*\t0\t0\tACGT\t*\n"), 0o644), check.Equals, nil)
	bed := filepath.Join(dir, "ctg.bed")
	c.Assert(os.WriteFile(bed, []byte("chr1\t200\t300\tctg\t0\t+\n"), 0o644), check.Equals, nil)

	var buf bytes.Buffer
	c.Assert(view(&buf, viewArgs{Input: sam, Remap: bed, NoHeader: true}), check.Equals, nil)
	c.Check(buf.String(), check.Equals, "r1\t0\tchr1\t211\t60\t4M\t*\t0\t0\tACGT\t*\n")
}

func (s *S) TestEstimate(c *check.C) {
	dir := c.MkDir()
	in := writeInput(c, dir)
	e, err := samfile.EstimateSizes(in)
	c.Assert(err, check.Equals, nil)
	var buf bytes.Buffer
	printEstimate(&buf, in, e)
	c.Check(strings.Contains(buf.String(), "records\t4 (exact)\n"), check.Equals, true)
	c.Check(strings.Contains(buf.String(), "sequence length\tmax=4 mean=4\n"), check.Equals, true)
}

func (s *S) TestConvertHeaderless(c *check.C) {
	dir := c.MkDir()
	in := filepath.Join(dir, "in.sam")
	c.Assert(os.WriteFile(in, []byte(
		"r1\t0\tchr2\t6\t60\t4M\t*\t0\t0\tGGCC\t####\n"+
			"r2\t0\tchr1\t11\t60\t4M\tchr2\t21\t0\tACGT\t*\n"), 0o644), check.Equals, nil)

	for _, typ := range []string{"bam+bai", "sam"} {
		out := filepath.Join(dir, "out."+typ)
		err := convert(convertArgs{Type: typ, Level: gzip.DefaultCompression, Input: in, Output: out}, log.NewNopLogger())
		c.Assert(err, check.Equals, nil, check.Commentf("%s", typ))

		r, err := samfile.Open(out)
		c.Assert(err, check.Equals, nil)
		refs := r.Dictionary().Refs()
		c.Assert(refs, check.HasLen, 2)
		c.Check(refs[0].Name, check.Equals, "chr1")
		c.Check(refs[0].Len, check.Equals, 14)
		c.Check(refs[1].Name, check.Equals, "chr2")
		c.Check(refs[1].Len, check.Equals, 21)
		c.Check(r.Close(), check.Equals, nil)
	}

	var buf bytes.Buffer
	c.Assert(view(&buf, viewArgs{Input: filepath.Join(dir, "out.bam+bai"), NoHeader: true}), check.Equals, nil)
	c.Check(buf.String(), check.Equals,
		"r2\t0\tchr1\t11\t60\t4M\tchr2\t21\t0\tACGT\t*\n"+
			"r1\t0\tchr2\t6\t60\t4M\t*\t0\t0\tGGCC\t####\n")
}
