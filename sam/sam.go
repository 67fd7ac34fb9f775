// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sam implements the in-memory alignment record shared by the SAM
// and BAM codecs, SAM text line decoding and encoding, and the reference
// name dictionary. The SAM format is described in the SAM specification.
//
// http://samtools.github.io/hts-specs/SAMv1.pdf
package sam

import (
	"errors"
	"fmt"
)

// Parse errors. Each is reported for the offending line only; the caller
// decides whether to skip the line or abort.
var (
	ErrFieldCount       = errors.New("sam: missing SAM fields")
	ErrCigarOp          = errors.New("sam: unknown cigar operation")
	ErrMalformed        = errors.New("sam: malformed field")
	ErrHeaderLine       = errors.New("sam: header line in alignment section")
	ErrUnknownReference = errors.New("sam: unknown reference name")
	ErrNotRemapped      = errors.New("sam: alignment outside remapped intervals")
)

// ErrCapacity is matched by every *CapacityError.
var ErrCapacity = errors.New("sam: capacity exceeded")

// CapacityError reports a field whose length exceeds a fixed maximum.
// Values are never truncated to fit.
type CapacityError struct {
	Field string
	Len   int
	Max   int

	// Err optionally holds a more specific cause.
	Err error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("sam: %s length %d exceeds maximum %d", e.Field, e.Len, e.Max)
}

// Is allows errors.Is(err, ErrCapacity) to match any CapacityError.
func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// Unwrap returns the specific cause, if any.
func (e *CapacityError) Unwrap() error { return e.Err }

const (
	// MaxNameLen is the longest read name representable in BAM,
	// l_read_name being a byte that includes the terminator.
	MaxNameLen = 254

	// MaxCigarOps is the largest CIGAR operation count that fits
	// the n_cigar_op half of the flag_nc word.
	MaxCigarOps = 1<<16 - 1
)

// Limits holds the capacities enforced while decoding records. Zero
// values for MaxSeqLen, MaxAuxTags and MaxAuxLen mean no limit.
type Limits struct {
	MaxNameLen  int
	MaxCigarOps int
	MaxSeqLen   int
	MaxAuxTags  int
	MaxAuxLen   int
}

// DefaultLimits holds only the limits imposed by the binary format.
var DefaultLimits = Limits{
	MaxNameLen:  MaxNameLen,
	MaxCigarOps: MaxCigarOps,
}

func (l *Limits) check(field string, n, max int) error {
	if max > 0 && n > max {
		return &CapacityError{Field: field, Len: n, Max: max}
	}
	return nil
}

const (
	maxInt32 = int(int32(^uint32(0) >> 1))
	minInt32 = -int(maxInt32) - 1
)

func validInt32(i int) bool { return minInt32 <= i && i <= maxInt32 }
