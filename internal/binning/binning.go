// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package binning implements the UCSC hierarchical binning scheme shared by
// the record codec and the BAI index builder.
package binning

const (
	wordBits = 29
	tierStep = 3

	// MaxLen is the span of bin 0, the largest reference length
	// that can be binned.
	MaxLen = 1 << wordBits

	// TileWidth is the width of a linear index tile.
	TileWidth = 1 << (wordBits - 5*tierStep)

	// Unmapped is the bin given to records without a position.
	Unmapped = 4680

	// Count is the number of real bins in the scheme.
	Count = 37450
)

// tier holds the first bin number and coordinate shift for one level of
// the hierarchy, coarsest first.
type tier struct {
	base  int
	shift uint
}

var tiers = [6]tier{
	{base: 0, shift: wordBits},
	{base: 1, shift: wordBits - tierStep},
	{base: 9, shift: wordBits - 2*tierStep},
	{base: 73, shift: wordBits - 3*tierStep},
	{base: 585, shift: wordBits - 4*tierStep},
	{base: 4681, shift: wordBits - 5*tierStep},
}

// ValidPos returns whether the 0-based position p can be binned.
func ValidPos(p int) bool { return -1 <= p && p <= MaxLen-1 }

// For returns the bin for the half-open interval [beg,end).
func For(beg, end int) uint16 {
	end--
	for i := len(tiers) - 1; i > 0; i-- {
		t := tiers[i]
		if beg>>t.shift == end>>t.shift {
			return uint16(t.base + beg>>t.shift)
		}
	}
	return 0
}

// Tier returns the tier of bin b, 0 for the root and 5 for the
// finest 16kbp bins. It returns -1 for bins outside the scheme.
func Tier(b uint16) int {
	if int(b) >= Count {
		return -1
	}
	for i := len(tiers) - 1; i >= 0; i-- {
		if int(b) >= tiers[i].base {
			return i
		}
	}
	return -1
}

// Overlapping returns every bin that may hold records overlapping
// [beg,end), in ascending order.
func Overlapping(beg, end int) []uint16 {
	end--
	list := []uint16{0}
	for _, t := range tiers[1:] {
		for k := t.base + beg>>t.shift; k <= t.base+end>>t.shift; k++ {
			list = append(list, uint16(k))
		}
	}
	return list
}
