// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"gopkg.in/check.v1"
)

func (s *S) TestDictionaryAdd(c *check.C) {
	d := NewDictionary(true)
	id, err := d.Add("human", "chr1", 100)
	c.Check(err, check.Equals, nil)
	c.Check(id, check.Equals, 1)
	id, err = d.Add("human", "chr2", 200)
	c.Check(err, check.Equals, nil)
	c.Check(id, check.Equals, 2)

	_, err = d.Add("human", "chr10", 10)
	c.Check(errors.Is(err, ErrUnsorted), check.Equals, true)
	_, err = d.Add("human", "chr2", 10)
	c.Check(errors.Is(err, ErrDupReference), check.Equals, true)
	_, err = d.Add("human", "chr3", 0)
	c.Check(err, check.Not(check.Equals), nil)
	_, err = d.Add("human", "", 10)
	c.Check(err, check.Not(check.Equals), nil)

	c.Check(d.Len(), check.Equals, 2)
	c.Check(d.Ref(2).Species, check.Equals, "human")
	c.Check(d.ByRefID(0).Name, check.Equals, "chr1")
	c.Check(d.Ref(3), check.Equals, (*Reference)(nil))

	u := NewDictionary(false)
	for _, n := range []string{"chrM", "chr2", "chr1"} {
		_, err = u.Add("", n, 10)
		c.Check(err, check.Equals, nil)
	}
	_, err = u.Add("", "chr2", 10)
	c.Check(errors.Is(err, ErrDupReference), check.Equals, true)
}

func (s *S) TestDictionaryHistory(c *check.C) {
	d := NewDictionary(false)
	for i := 0; i < 20; i++ {
		_, err := d.Add("", fmt.Sprintf("ctg%02d", i), 1000)
		c.Assert(err, check.Equals, nil)
	}

	id, ok := d.Resolve("ctg05")
	c.Check(ok, check.Equals, true)
	c.Check(id, check.Equals, 6)
	c.Check(d.Scans(), check.Equals, 1)

	id, ok = d.Resolve("ctg05")
	c.Check(ok, check.Equals, true)
	c.Check(id, check.Equals, 6)
	c.Check(d.Scans(), check.Equals, 1, check.Commentf("repeated lookup should hit the history"))

	// Fill the history with other names, evicting ctg05.
	for i := 10; i < 20; i++ {
		d.Resolve(fmt.Sprintf("ctg%02d", i))
	}
	c.Check(d.Scans(), check.Equals, 11)
	for i := 10; i < 20; i++ {
		d.Resolve(fmt.Sprintf("ctg%02d", i))
	}
	c.Check(d.Scans(), check.Equals, 11)

	id, ok = d.Resolve("ctg05")
	c.Check(ok, check.Equals, true)
	c.Check(id, check.Equals, 6)
	c.Check(d.Scans(), check.Equals, 12)
}

func (s *S) TestDictionaryMissLogging(c *check.C) {
	var buf bytes.Buffer
	d := NewDictionary(false)
	d.SetLogger(log.NewLogfmtLogger(&buf))
	_, err := d.Add("", "chr1", 10)
	c.Assert(err, check.Equals, nil)

	for i := 0; i < 3; i++ {
		_, ok := d.Resolve("chrUn")
		c.Check(ok, check.Equals, false)
	}
	c.Check(bytes.Count(buf.Bytes(), []byte("chrUn")), check.Equals, 1)

	d.Resolve("chrZ")
	d.Resolve("chrUn")
	c.Check(bytes.Count(buf.Bytes(), []byte("chrUn")), check.Equals, 2)
	c.Check(bytes.Count(buf.Bytes(), []byte("level=warn")), check.Equals, 3)
}

func (s *S) TestHeaderText(c *check.C) {
	d := NewDictionary(true)
	_, err := d.Add("hg38", "chr1", 248956422)
	c.Assert(err, check.Equals, nil)
	_, err = d.Add("", "chr2", 242193529)
	c.Assert(err, check.Equals, nil)
	h := NewHeader(d)
	h.Version = "1.6"
	h.SortOrder = Coordinate
	h.Programs = []Program{{ID: "alignio", Name: "alignio", Version: "1.0.0"}}

	text, err := h.MarshalText()
	c.Assert(err, check.Equals, nil)
	c.Check(string(text), check.Equals, "@HD\tVN:1.6\tSO:coordinate\n"+
		"@SQ\tAS:hg38\tSN:chr1\tLN:248956422\n"+
		"@SQ\tSN:chr2\tLN:242193529\n"+
		"@PG\tID:alignio\tPN:alignio\tVN:1.0.0\n")

	var got Header
	err = got.UnmarshalText(append(text, "@CO\tfree text\n"...))
	c.Assert(err, check.Equals, nil)
	c.Check(got.Version, check.Equals, "1.6")
	c.Check(got.SortOrder, check.Equals, Coordinate)
	c.Check(got.Dict.Refs(), check.DeepEquals, d.Refs())
	c.Check(got.Programs, check.DeepEquals, h.Programs)
	c.Check(got.Other, check.DeepEquals, [][]byte{[]byte("@CO\tfree text")})
}

func (s *S) TestDictionaryLargeUnsorted(c *check.C) {
	const n = 100000
	d := NewDictionary(false)
	start := time.Now()
	for _, i := range rand.New(rand.NewSource(1)).Perm(n) {
		_, err := d.Add("", fmt.Sprintf("contig_%06d", i), 1000+i)
		c.Assert(err, check.Equals, nil)
	}
	// A linear duplicate check per insert takes tens of seconds here.
	c.Check(time.Since(start) < 5*time.Second, check.Equals, true, check.Commentf("took %v", time.Since(start)))
	c.Check(d.Len(), check.Equals, n)
	c.Check(d.Scans(), check.Equals, 0)

	_, err := d.Add("", "contig_050000", 10)
	c.Check(errors.Is(err, ErrDupReference), check.Equals, true)
	c.Check(d.Len(), check.Equals, n)

	id, ok := d.Resolve("contig_050000")
	c.Check(ok, check.Equals, true)
	c.Check(d.Ref(id).Len, check.Equals, 51000)
	c.Check(d.Scans(), check.Equals, 1)
}
