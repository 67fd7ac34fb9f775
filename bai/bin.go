// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"errors"

	"github.com/biogo/alignio/internal/binning"
	"github.com/biogo/alignio/sam"
)

const (
	// MaxReferenceLen is the span of the root bin. References longer
	// than this cannot be indexed.
	MaxReferenceLen = binning.MaxLen

	// TileWidth is the coordinate step of the linear index.
	TileWidth = binning.TileWidth

	// StatsBin is the pseudo-bin holding per-reference statistics.
	StatsBin = binning.Count

	// UnmappedBin is the bin assigned to records without a position.
	UnmappedBin = binning.Unmapped
)

// ErrCeiling is the cause of capacity errors for references longer than
// MaxReferenceLen.
var ErrCeiling = errors.New("bai: reference exceeds binning ceiling")

// CheckLength returns a capacity error if a reference of length n cannot
// be indexed.
func CheckLength(n int) error {
	if n > MaxReferenceLen {
		return &sam.CapacityError{Field: "reference", Len: n, Max: MaxReferenceLen, Err: ErrCeiling}
	}
	return nil
}

// BinFor returns the bin number for an interval covering [beg,end)
// (zero-based, half-closed-half-open). The bin is the smallest that
// wholly contains the interval.
func BinFor(beg, end int) uint16 { return binning.For(beg, end) }

// OverlappingBinsFor returns the bin numbers for all bins that may hold
// records overlapping [beg,end), in ascending order.
func OverlappingBinsFor(beg, end int) []uint16 { return binning.Overlapping(beg, end) }

// Tier returns the resolution tier of bin b, 0 for the root bin through
// 5 for the finest bins, or -1 if b is not a valid bin.
func Tier(b uint16) int { return binning.Tier(b) }
