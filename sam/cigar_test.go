// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"errors"

	"gopkg.in/check.v1"
)

func (s *S) TestParseCigar(c *check.C) {
	for _, t := range []struct {
		in      string
		want    Cigar
		aligned int
		ref     int
		read    int
		err     error
	}{
		{in: "*"},
		{
			in:      "3S10M2D1N4=1X2I5H",
			want:    Cigar{NewCigarOp(CigarSoftClipped, 3), NewCigarOp(CigarMatch, 10), NewCigarOp(CigarDeletion, 2), NewCigarOp(CigarSkipped, 1), NewCigarOp(CigarEqual, 4), NewCigarOp(CigarMismatch, 1), NewCigarOp(CigarInsertion, 2), NewCigarOp(CigarHardClipped, 5)},
			aligned: 15,
			ref:     18,
			read:    20,
		},
		{in: "1P268435455M", want: Cigar{NewCigarOp(CigarPadded, 1), NewCigarOp(CigarMatch, 268435455)}, aligned: 268435455, ref: 268435455, read: 268435455},
		{in: "268435456M", err: ErrMalformed},
		{in: "M", err: ErrMalformed},
		{in: "10", err: ErrMalformed},
		{in: "", err: ErrMalformed},
		{in: "4Z", err: ErrCigarOp},
	} {
		got, err := ParseCigar([]byte(t.in))
		if t.err != nil {
			c.Check(errors.Is(err, t.err), check.Equals, true, check.Commentf("cigar %q: %v", t.in, err))
			continue
		}
		c.Assert(err, check.Equals, nil)
		c.Check(got, check.DeepEquals, t.want)
		c.Check(got.String(), check.Equals, t.in)
		c.Check(got.AlignedLen(), check.Equals, t.aligned)
		ref, read := got.Lengths()
		c.Check(ref, check.Equals, t.ref)
		c.Check(read, check.Equals, t.read)
	}
}

func (s *S) TestSeqPacking(c *check.C) {
	seq := NewSeq([]byte("acgtN=RY"))
	c.Check(seq.Length, check.Equals, 8)
	c.Check(seq.Bytes(), check.DeepEquals, []byte{0x12, 0x48, 0xf0, 0xff})
	c.Check(string(seq.Expand()), check.Equals, "ACGTN=NN")

	odd := NewSeq([]byte("ACG"))
	c.Check(odd.Bytes(), check.DeepEquals, []byte{0x12, 0x40})
	c.Check(string(odd.Expand()), check.Equals, "ACG")
}

func (s *S) TestAuxBinary(c *check.C) {
	for _, text := range []string{
		"NM:i:5",
		"XS:i:-200",
		"XL:i:70000",
		"XA:A:q",
		"XF:f:0.25",
		"MD:Z:10A5",
		"XH:H:0AFF",
		"XB:B:C,1,2,255",
		"XI:B:i,-7,100000",
		"XE:B:f",
	} {
		a, err := ParseAux([]byte(text))
		c.Assert(err, check.Equals, nil, check.Commentf("%q", text))
		c.Check(a.String(), check.Equals, text)

		b := a.AppendBinary(nil)
		c.Check(len(b), check.Equals, a.Len())
		got, n, err := DecodeAux(append(b, 'x'))
		c.Assert(err, check.Equals, nil)
		c.Check(n, check.Equals, len(b))
		c.Check(got.String(), check.Equals, text)
	}

	a, err := ParseAux([]byte("XB:B:c,200"))
	c.Check(errors.Is(err, ErrMalformed), check.Equals, true)
	c.Check(a.Value, check.IsNil)
}
