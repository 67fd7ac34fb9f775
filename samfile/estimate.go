// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samfile

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/biogo/alignio/sam"
)

// estimateSample is the number of records sampled by EstimateSizes.
const estimateSample = 10000

// Estimate holds size estimates for a SAM or BAM file.
type Estimate struct {
	Type     Type
	FileSize int64

	// Records is the estimated number of alignment records. It is
	// exact if Exact is true.
	Records int
	Exact   bool

	MaxNameLen  int
	MeanNameLen int
	MaxSeqLen   int
	MeanSeqLen  int

	// ScoreSchema is reserved and always zero.
	ScoreSchema int
}

// EstimateSizes samples the leading records of the SAM or BAM file at
// path and extrapolates record count and field lengths to the whole file.
func EstimateSizes(path string) (*Estimate, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "samfile: estimate")
	}
	defer ra.Close()

	cr := &countReader{r: io.NewSectionReader(ra, 0, int64(ra.Len()))}
	r, err := NewReader(cr)
	if err != nil {
		return nil, errors.Wrapf(err, "samfile: estimate %s", path)
	}
	defer r.Close()
	r.dec.Register = true
	r.dec.Limits = sam.Limits{}

	e := &Estimate{Type: r.Type(), FileSize: int64(ra.Len())}
	var (
		rec             sam.Record
		nameSum, seqSum int
	)
	for e.Records < estimateSample {
		err = r.decodeNext(&rec)
		if err == io.EOF {
			e.Exact = true
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "samfile: estimate %s", path)
		}
		e.Records++
		nameSum += len(rec.Name)
		seqSum += rec.Seq.Length
		if len(rec.Name) > e.MaxNameLen {
			e.MaxNameLen = len(rec.Name)
		}
		if rec.Seq.Length > e.MaxSeqLen {
			e.MaxSeqLen = rec.Seq.Length
		}
	}
	if e.Records == 0 {
		return e, nil
	}
	e.MeanNameLen = nameSum / e.Records
	e.MeanSeqLen = seqSum / e.Records
	if !e.Exact {
		var consumed int64
		if r.bam != nil {
			consumed = r.bam.LastChunk().End.File
		} else {
			consumed = cr.n - int64(r.src.Buffered())
		}
		if consumed > 0 {
			e.Records = int(float64(e.Records) * float64(e.FileSize) / float64(consumed))
		}
	}
	return e, nil
}

// Limits returns decoding limits derived from the estimate. Sampled
// sequence lengths are given headroom unless the sample was exhaustive.
func (e *Estimate) Limits() sam.Limits {
	l := sam.DefaultLimits
	switch {
	case e.MaxSeqLen == 0:
	case e.Exact:
		l.MaxSeqLen = e.MaxSeqLen
	default:
		l.MaxSeqLen = 2 * e.MaxSeqLen
	}
	return l
}

type countReader struct {
	r io.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
