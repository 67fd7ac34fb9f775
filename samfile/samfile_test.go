// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/kortschak/utter"
	"github.com/ulikunitz/xz"
	"gopkg.in/check.v1"

	"github.com/biogo/alignio/bai"
	"github.com/biogo/alignio/internal/bgzfwriter"
	"github.com/biogo/alignio/sam"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

var refs = []struct {
	name   string
	length int
}{
	{"chr1", 1000},
	{"chr2", 500},
}

const samHeader = "@HD\tVN:1.6\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@SQ\tSN:chr2\tLN:500\n" +
	"@PG\tID:alignio\tPN:alignio\tVN:1.0.0\n"

var alignments = []string{
	"r1\t0\tchr1\t11\t60\t10M\t*\t0\t0\tACGTACGTAC\t**********",
	"r2\t16\tchr1\t101\t30\t5M1D5M\t*\t0\t0\tACGTAACGTA\t*\tNM:i:1",
	"r3\t0\tchr2\t6\t60\t4M\t*\t0\t0\tGGCC\t####",
	"r4\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*",
}

func records(c *check.C) []*sam.Record {
	d := sam.NewDictionary(true)
	for _, r := range refs {
		_, err := d.Add("", r.name, r.length)
		c.Assert(err, check.Equals, nil)
	}
	var recs []*sam.Record
	for _, l := range alignments {
		r, err := sam.ParseLine([]byte(l), d, nil, nil)
		c.Assert(err, check.Equals, nil, check.Commentf("%q", l))
		recs = append(recs, r)
	}
	return recs
}

func writeAll(c *check.C, w *Writer) {
	for _, r := range refs {
		c.Assert(w.AddReference("", r.name, r.length), check.Equals, nil)
	}
	c.Assert(w.StartAlignments(), check.Equals, nil)
	recs := records(c)
	for i, r := range recs {
		c.Assert(w.AddAlignment(r, i == 2), check.Equals, nil)
	}
	c.Assert(w.Close(), check.Equals, nil)
}

func readLines(c *check.C, r *Reader) []string {
	var lines []string
	for {
		l, err := r.NextLine()
		if err == io.EOF {
			break
		}
		c.Assert(err, check.Equals, nil)
		lines = append(lines, string(l))
	}
	return lines
}

func (s *S) TestSAMWriteRead(c *check.C) {
	for _, typ := range []Type{SAM, SAMgz} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, typ, gzip.BestSpeed, nil, "")
		c.Assert(err, check.Equals, nil)
		writeAll(c, w)

		if typ == SAM {
			c.Check(buf.String(), check.Equals, samHeader+strings.Join(alignments, "\n")+"\n")
		}

		r, err := NewReader(&buf)
		c.Assert(err, check.Equals, nil)
		c.Check(r.Type(), check.Equals, typ)
		text, err := r.HeaderText()
		c.Assert(err, check.Equals, nil)
		c.Check(string(text), check.Equals, samHeader)
		c.Check(r.Dictionary().Len(), check.Equals, 2)
		c.Check(readLines(c, r), check.DeepEquals, alignments)
		c.Check(r.Close(), check.Equals, nil)
		c.Check(r.Close(), check.Equals, ErrClosed)
	}
}

func (s *S) TestBAMWriteRead(c *check.C) {
	var bamBuf, idxBuf bytes.Buffer
	w, err := NewWriter(&bamBuf, BAMIndexed, gzip.DefaultCompression, &idxBuf, "")
	c.Assert(err, check.Equals, nil)
	writeAll(c, w)

	r, err := NewReader(bytes.NewReader(bamBuf.Bytes()))
	c.Assert(err, check.Equals, nil)
	c.Check(r.Type(), check.Equals, BAM)
	text, err := r.HeaderText()
	c.Assert(err, check.Equals, nil)
	c.Check(string(text), check.Equals, samHeader)

	want := records(c)
	for i := range want {
		got, err := r.Read()
		c.Assert(err, check.Equals, nil)
		c.Check(got, check.DeepEquals, want[i], check.Commentf("got:\n%s", utter.Sdump(got)))
	}
	_, err = r.Read()
	c.Check(err, check.Equals, io.EOF)
	c.Check(r.Close(), check.Equals, nil)

	idx, err := bai.ReadIndex(&idxBuf)
	c.Assert(err, check.Equals, nil)
	checkIndex(c, idx)

	var rebuilt bytes.Buffer
	err = IndexBAM(bytes.NewReader(bamBuf.Bytes()), &rebuilt)
	c.Assert(err, check.Equals, nil)
	idx, err = bai.ReadIndex(&rebuilt)
	c.Assert(err, check.Equals, nil)
	checkIndex(c, idx)
}

func (s *S) TestIndexBlockBoundary(c *check.C) {
	// Each record encodes to 80 bytes, so every 816th record ends
	// exactly at the end of a 0xff00 byte block.
	const n = 2000
	d := sam.NewDictionary(true)
	_, err := d.Add("", "chr1", 100000)
	c.Assert(err, check.Equals, nil)

	var bamBuf, idxBuf bytes.Buffer
	w, err := NewWriter(&bamBuf, BAMIndexed, gzip.BestSpeed, &idxBuf, "")
	c.Assert(err, check.Equals, nil)
	c.Assert(w.AddReference("", "chr1", 100000), check.Equals, nil)
	c.Assert(w.StartAlignments(), check.Equals, nil)
	seq, qual := strings.Repeat("ACGTTGCA", 3)[:22], strings.Repeat("I", 22)
	for i := 0; i < n; i++ {
		line := fmt.Sprintf("r%05d\t0\tchr1\t%d\t60\t22M\t*\t0\t0\t%s\t%s", i, 1+i*10, seq, qual)
		rec, err := sam.ParseLine([]byte(line), d, nil, nil)
		c.Assert(err, check.Equals, nil)
		c.Assert(w.AddAlignment(rec, i == n-1), check.Equals, nil)
	}
	c.Assert(w.Close(), check.Equals, nil)

	var rebuilt bytes.Buffer
	err = IndexBAM(bytes.NewReader(bamBuf.Bytes()), &rebuilt)
	c.Assert(err, check.Equals, nil)
	c.Check(rebuilt.Bytes(), check.DeepEquals, idxBuf.Bytes())

	idx, err := bai.ReadIndex(&rebuilt)
	c.Assert(err, check.Equals, nil)
	c.Assert(idx.Refs[0].Stats, check.NotNil)
	c.Check(idx.Refs[0].Stats.Mapped, check.Equals, uint64(n))
}

func checkIndex(c *check.C, idx *bai.Index) {
	c.Assert(idx.Refs, check.HasLen, 2)
	c.Assert(idx.NoCoordinate, check.NotNil)
	c.Check(*idx.NoCoordinate, check.Equals, uint64(1))

	ref0 := idx.Refs[0]
	c.Assert(ref0.Bins, check.HasLen, 1)
	c.Check(ref0.Bins[0].Bin, check.Equals, uint32(4681))
	c.Check(ref0.Bins[0].Chunks, check.HasLen, 1)
	c.Assert(ref0.Stats, check.NotNil)
	c.Check(ref0.Stats.Mapped, check.Equals, uint64(2))
	c.Check(ref0.Intervals, check.HasLen, 1)

	ref1 := idx.Refs[1]
	c.Assert(ref1.Bins, check.HasLen, 1)
	c.Check(ref1.Bins[0].Bin, check.Equals, uint32(4681))
	c.Assert(ref1.Stats, check.NotNil)
	c.Check(ref1.Stats.Mapped, check.Equals, uint64(1))
}

func (s *S) TestCreateIndexFile(c *check.C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "out.bam")
	w, err := Create(BAMIndexed, path, gzip.DefaultCompression, "", "")
	c.Assert(err, check.Equals, nil)
	writeAll(c, w)

	names, err := filepath.Glob(filepath.Join(dir, "*"))
	c.Assert(err, check.Equals, nil)
	c.Check(names, check.DeepEquals, []string{path, path + ".bai"})

	f, err := os.Open(path + ".bai")
	c.Assert(err, check.Equals, nil)
	defer f.Close()
	idx, err := bai.ReadIndex(f)
	c.Assert(err, check.Equals, nil)
	checkIndex(c, idx)

	r, err := Open(path)
	c.Assert(err, check.Equals, nil)
	c.Check(readLines(c, r), check.DeepEquals, alignments)
	c.Check(r.Close(), check.Equals, nil)
}

func (s *S) TestReferenceCeiling(c *check.C) {
	dir := c.MkDir()

	w, err := Create(BAMIndexed, filepath.Join(dir, "ok.bam"), gzip.DefaultCompression, "", "")
	c.Assert(err, check.Equals, nil)
	c.Check(w.AddReference("", "chr1", 536870912), check.Equals, nil)
	c.Check(w.StartAlignments(), check.Equals, nil)
	c.Check(w.Close(), check.Equals, nil)

	path := filepath.Join(dir, "big.bam")
	w, err = Create(BAMIndexed, path, gzip.DefaultCompression, "", "")
	c.Assert(err, check.Equals, nil)
	err = w.AddReference("", "chr1", 536870913)
	c.Check(errors.Is(err, sam.ErrCapacity), check.Equals, true)
	c.Check(errors.Is(err, bai.ErrCeiling), check.Equals, true)
	c.Check(w.StartAlignments(), check.Equals, err)
	c.Check(w.Close(), check.Equals, err)
	_, statErr := os.Stat(path + ".bai")
	c.Check(os.IsNotExist(statErr), check.Equals, true)
	c.Check(w.Close(), check.Equals, ErrClosed)

	// Unindexed BAM does not apply the binning ceiling.
	var buf bytes.Buffer
	w, err = NewWriter(&buf, BAM, gzip.DefaultCompression, nil, "")
	c.Assert(err, check.Equals, nil)
	c.Check(w.AddReference("", "chr1", 536870913), check.Equals, nil)
	c.Check(w.Close(), check.Equals, nil)
}

func (s *S) TestWriterSession(c *check.C) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, SAM, 0, nil, "2.0")
	c.Assert(err, check.Equals, nil)

	rec := records(c)[0]
	c.Check(errors.Is(w.AddAlignment(rec, false), ErrState), check.Equals, true)
	c.Check(w.AddReference("", "chr1", 1000), check.Equals, nil)
	c.Check(w.StartAlignments(), check.Equals, nil)
	c.Check(errors.Is(w.AddReference("", "chr2", 10), ErrState), check.Equals, true)
	c.Check(errors.Is(w.StartAlignments(), ErrState), check.Equals, true)

	other := records(c)[2]
	c.Check(errors.Is(w.AddAlignment(other, false), sam.ErrUnknownReference), check.Equals, true)
	c.Check(w.Err(), check.Equals, nil)
	c.Check(w.AddAlignment(rec, false), check.Equals, nil)
	c.Check(w.Close(), check.Equals, nil)
	c.Check(w.AddAlignment(rec, false), check.Equals, ErrClosed)
	c.Check(strings.Contains(buf.String(), "@PG\tID:alignio\tPN:alignio\tVN:2.0\n"), check.Equals, true)

	_, err = NewWriter(&buf, BAMIndexed, 0, nil, "")
	c.Check(err, check.Equals, ErrNoIndex)
	_, err = NewWriter(&buf, SAMxz, 0, nil, "")
	c.Check(errors.Is(err, ErrType), check.Equals, true)
	_, err = NewWriter(&buf, BAM, 12, nil, "")
	c.Check(err, check.NotNil)
}

func (s *S) TestUnsortedReferences(c *check.C) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, BAM, 0, nil, "")
	c.Assert(err, check.Equals, nil)
	c.Check(w.AddReference("", "chr2", 10), check.Equals, nil)
	err = w.AddReference("", "chr1", 10)
	c.Check(errors.Is(err, sam.ErrUnsorted), check.Equals, true)
	c.Check(w.AddReference("", "chr3", 10), check.Equals, err)
	c.Check(w.Close(), check.Equals, err)
}

func (s *S) TestUnsortedAlignments(c *check.C) {
	var bamBuf, idxBuf bytes.Buffer
	w, err := NewWriter(&bamBuf, BAMIndexed, 0, &idxBuf, "")
	c.Assert(err, check.Equals, nil)
	for _, r := range refs {
		c.Assert(w.AddReference("", r.name, r.length), check.Equals, nil)
	}
	c.Assert(w.StartAlignments(), check.Equals, nil)
	recs := records(c)
	c.Check(w.AddAlignment(recs[1], false), check.Equals, nil)
	err = w.AddAlignment(recs[0], false)
	c.Check(errors.Is(err, bai.ErrUnsorted), check.Equals, true)
	c.Check(w.AddAlignment(recs[2], false), check.Equals, err)
	c.Check(w.Close(), check.Equals, err)
	c.Check(idxBuf.Len(), check.Equals, 0)
}

func (s *S) TestReadSequence(c *check.C) {
	in := samHeader + strings.Join(alignments, "\n") + "\n"
	r, err := NewReader(strings.NewReader(in))
	c.Assert(err, check.Equals, nil)

	buf := make([]byte, 16)
	for _, want := range records(c) {
		n, err := r.ReadSequence(buf)
		c.Assert(err, check.Equals, ErrEndOfRecord)
		c.Check(n, check.Equals, 0)
		c.Check(r.Descriptor(), check.Equals, Descriptor{
			Name:    want.Name,
			Flags:   want.Flags,
			RefName: want.RefName,
			Start:   want.Pos,
		})

		n, err = r.ReadSequence(nil)
		c.Assert(err, check.Equals, nil)
		c.Check(n, check.Equals, want.Seq.Length)

		n, err = r.ReadSequence(buf)
		c.Assert(err, check.Equals, nil)
		c.Check(string(buf[:n]), check.Equals, string(want.Seq.Expand()))
	}
	_, err = r.ReadSequence(buf)
	c.Check(err, check.Equals, io.EOF)

	r, err = NewReader(strings.NewReader(in))
	c.Assert(err, check.Equals, nil)
	_, err = r.ReadSequence(nil)
	c.Assert(err, check.Equals, ErrEndOfRecord)
	short := make([]byte, 4)
	n, err := r.ReadSequence(short)
	c.Check(err, check.Equals, nil)
	c.Check(n, check.Equals, 4)
	c.Check(string(short), check.Equals, "ACGT")
	_, err = r.ReadSequence(nil)
	c.Check(err, check.Equals, ErrEndOfRecord)
	c.Check(r.Descriptor().Name, check.Equals, "r2")
}

func (s *S) TestHeaderlessSAM(c *check.C) {
	in := "a\t0\tctgB\t5\t60\t3M\t*\t0\t0\tACG\t*\n" +
		"b\t0\tctgA\t5\t60\t3M\tctgB\t9\t0\tACG\t*\n"
	r, err := NewReader(strings.NewReader(in))
	c.Assert(err, check.Equals, nil)
	c.Check(r.Type(), check.Equals, SAM)
	for _, want := range []struct {
		ref, mate int
	}{{0, -1}, {1, 0}} {
		rec, err := r.Read()
		c.Assert(err, check.Equals, nil)
		c.Check(rec.RefID, check.Equals, want.ref)
		c.Check(rec.MateRefID, check.Equals, want.mate)
	}
	c.Check(r.Dictionary().Len(), check.Equals, 2)
	c.Check(r.Dictionary().Ref(1).Name, check.Equals, "ctgB")
}

func (s *S) TestCompressedInput(c *check.C) {
	in := samHeader + strings.Join(alignments, "\n") + "\n"

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	c.Assert(err, check.Equals, nil)
	_, err = io.WriteString(xw, in)
	c.Assert(err, check.Equals, nil)
	c.Assert(xw.Close(), check.Equals, nil)

	var bgBuf bytes.Buffer
	bw, err := bgzfwriter.New(&bgBuf, gzip.DefaultCompression)
	c.Assert(err, check.Equals, nil)
	_, err = io.WriteString(bw, in)
	c.Assert(err, check.Equals, nil)
	c.Assert(bw.Close(), check.Equals, nil)

	for _, t := range []struct {
		data []byte
		typ  Type
	}{
		{xzBuf.Bytes(), SAMxz},
		{bgBuf.Bytes(), SAMbgzf},
	} {
		r, err := NewReader(bytes.NewReader(t.data))
		c.Assert(err, check.Equals, nil)
		c.Check(r.Type(), check.Equals, t.typ)
		c.Check(readLines(c, r), check.DeepEquals, alignments)
		c.Check(r.Close(), check.Equals, nil)
	}
}

func (s *S) TestEstimateSizes(c *check.C) {
	dir := c.MkDir()
	samPath := filepath.Join(dir, "in.sam")
	err := os.WriteFile(samPath, []byte(samHeader+strings.Join(alignments, "\n")+"\n"), 0o644)
	c.Assert(err, check.Equals, nil)
	bamPath := filepath.Join(dir, "in.bam")
	w, err := Create(BAM, bamPath, gzip.DefaultCompression, "", "")
	c.Assert(err, check.Equals, nil)
	writeAll(c, w)

	for _, t := range []struct {
		path string
		typ  Type
	}{
		{samPath, SAM},
		{bamPath, BAM},
	} {
		e, err := EstimateSizes(t.path)
		c.Assert(err, check.Equals, nil)
		fi, err := os.Stat(t.path)
		c.Assert(err, check.Equals, nil)
		c.Check(e, check.DeepEquals, &Estimate{
			Type:        t.typ,
			FileSize:    fi.Size(),
			Records:     4,
			Exact:       true,
			MaxNameLen:  2,
			MeanNameLen: 2,
			MaxSeqLen:   10,
			MeanSeqLen:  7,
		})
		c.Check(e.Limits().MaxSeqLen, check.Equals, 10)
	}
}

func (s *S) TestParseType(c *check.C) {
	for _, typ := range []Type{SAM, SAMgz, SAMxz, SAMbgzf, BAM, BAMIndexed} {
		got, err := ParseType(typ.String())
		c.Check(err, check.Equals, nil)
		c.Check(got, check.Equals, typ)
	}
	_, err := ParseType("cram")
	c.Check(errors.Is(err, ErrType), check.Equals, true)
}
