// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"
	"strconv"
)

// Cigar is a set of CIGAR operations.
type Cigar []CigarOp

// String returns the CIGAR string for c.
func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	return string(c.append(nil))
}

func (c Cigar) append(dst []byte) []byte {
	if len(c) == 0 {
		return append(dst, '*')
	}
	for _, co := range c {
		dst = strconv.AppendInt(dst, int64(co.Len()), 10)
		dst = append(dst, cigarOps[co.Type()])
	}
	return dst
}

// AlignedLen returns the number of reference bases covered by the
// M, = and X operations of c. It is the distance from the start of an
// alignment to its end.
func (c Cigar) AlignedLen() int {
	var n int
	for _, co := range c {
		switch co.Type() {
		case CigarMatch, CigarEqual, CigarMismatch:
			n += co.Len()
		}
	}
	return n
}

// Lengths returns the number of reference and read bases described by
// the Cigar.
func (c Cigar) Lengths() (ref, read int) {
	for _, co := range c {
		con := co.Type().Consumes()
		ref += co.Len() * con.Reference
		read += co.Len() * con.Query
	}
	return ref, read
}

// CigarOp is a single CIGAR operation, the length shifted left four bits
// over the operation code.
type CigarOp uint32

// NewCigarOp returns a CIGAR operation of the specified type with length n.
func NewCigarOp(t CigarOpType, n int) CigarOp {
	return CigarOp(t) | (CigarOp(n) << 4)
}

// Type returns the type of the CIGAR operation for the CigarOp.
func (co CigarOp) Type() CigarOpType { return CigarOpType(co & 0xf) }

// Len returns the number of positions affected by the CigarOp.
func (co CigarOp) Len() int { return int(co >> 4) }

func (co CigarOp) String() string { return fmt.Sprintf("%d%s", co.Len(), co.Type()) }

// A CigarOpType represents the type of operation described by a CigarOp.
type CigarOpType byte

const (
	CigarMatch       CigarOpType = iota // Alignment match (can be a sequence match or mismatch).
	CigarInsertion                      // Insertion to the reference.
	CigarDeletion                       // Deletion from the reference.
	CigarSkipped                        // Skipped region from the reference.
	CigarSoftClipped                    // Soft clipping (clipped sequences present in SEQ).
	CigarHardClipped                    // Hard clipping (clipped sequences NOT present in SEQ).
	CigarPadded                         // Padding (silent deletion from padded reference).
	CigarEqual                          // Sequence match.
	CigarMismatch                       // Sequence mismatch.
	lastCigar
)

var cigarOps = [...]byte{'M', 'I', 'D', 'N', 'S', 'H', 'P', '=', 'X', '?'}

// String returns the string representation of a CigarOpType.
func (ct CigarOpType) String() string {
	if ct > lastCigar {
		ct = lastCigar
	}
	return string(cigarOps[ct])
}

// Consume describes how CIGAR operations consume alignment bases.
type Consume struct {
	Query, Reference int
}

// Consumes returns the alignment consumption characteristics of ct:
//
//                    Query  Reference
//  CigarMatch          1        1
//  CigarInsertion      1        0
//  CigarDeletion       0        1
//  CigarSkipped        0        1
//  CigarSoftClipped    1        0
//  CigarHardClipped    0        0
//  CigarPadded         0        0
//  CigarEqual          1        1
//  CigarMismatch       1        1
//
func (ct CigarOpType) Consumes() Consume {
	if ct > lastCigar {
		ct = lastCigar
	}
	return consume[ct]
}

var consume = [...]Consume{
	CigarMatch:       {Query: 1, Reference: 1},
	CigarInsertion:   {Query: 1, Reference: 0},
	CigarDeletion:    {Query: 0, Reference: 1},
	CigarSkipped:     {Query: 0, Reference: 1},
	CigarSoftClipped: {Query: 1, Reference: 0},
	CigarHardClipped: {Query: 0, Reference: 0},
	CigarPadded:      {Query: 0, Reference: 0},
	CigarEqual:       {Query: 1, Reference: 1},
	CigarMismatch:    {Query: 1, Reference: 1},
	lastCigar:        {},
}

var cigarOpTypeLookup [256]CigarOpType

func init() {
	for i := range cigarOpTypeLookup {
		cigarOpTypeLookup[i] = lastCigar
	}
	for op, c := range cigarOps[:lastCigar] {
		cigarOpTypeLookup[c] = CigarOpType(op)
	}
}

// maxOpLen is the largest run length that fits above the 4 bit op code.
const maxOpLen = 1<<28 - 1

// ParseCigar returns a Cigar parsed from the provided byte slice. An
// operation outside MIDNSHP=X is reported as ErrCigarOp.
func ParseCigar(b []byte) (Cigar, error) {
	if len(b) == 1 && b[0] == '*' {
		return nil, nil
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty cigar string", ErrMalformed)
	}
	var c Cigar
	n := 0
	digits := 0
	for _, v := range b {
		if '0' <= v && v <= '9' {
			n = n*10 + int(v-'0')
			digits++
			if n > maxOpLen {
				return nil, fmt.Errorf("%w: cigar operation length overflow in %q", ErrMalformed, b)
			}
			continue
		}
		op := cigarOpTypeLookup[v]
		if op == lastCigar {
			return nil, fmt.Errorf("%w: %q in %q", ErrCigarOp, v, b)
		}
		if digits == 0 {
			return nil, fmt.Errorf("%w: missing cigar operation length in %q", ErrMalformed, b)
		}
		c = append(c, NewCigarOp(op, n))
		n, digits = 0, 0
	}
	if digits != 0 {
		return nil, fmt.Errorf("%w: trailing length in cigar string %q", ErrMalformed, b)
	}
	return c, nil
}
