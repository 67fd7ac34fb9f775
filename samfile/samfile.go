// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package samfile provides streaming readers and writers for SAM and BAM
// files, with BAI index generation for coordinate sorted BAM output.
package samfile

import (
	"errors"
	"fmt"

	"github.com/biogo/alignio/sam"
)

// Type is the format of a SAM or BAM file.
type Type int

const (
	Unknown    Type = iota
	SAM             // Plain text SAM.
	SAMgz           // Gzip compressed SAM.
	SAMxz           // Xz compressed SAM; read only.
	SAMbgzf         // BGZF compressed SAM; read only.
	BAM             // BAM.
	BAMIndexed      // BAM with a BAI index; write only.
)

var typeNames = [...]string{
	Unknown:    "unknown",
	SAM:        "sam",
	SAMgz:      "sam.gz",
	SAMxz:      "sam.xz",
	SAMbgzf:    "sam.bgzf",
	BAM:        "bam",
	BAMIndexed: "bam+bai",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType returns the Type named by s, one of the names returned by
// Type.String.
func ParseType(s string) (Type, error) {
	for t, n := range typeNames {
		if n == s && Type(t) != Unknown {
			return Type(t), nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrType, s)
}

// Version is used in the @PG header line of created files when no version
// is given.
const Version = "1.0.0"

// FormatVersion is the SAM format version written in @HD header lines.
const FormatVersion = "1.6"

var (
	ErrClosed      = errors.New("samfile: use of closed file")
	ErrEndOfRecord = errors.New("samfile: end of record")
	ErrState       = errors.New("samfile: operation out of sequence")
	ErrType        = errors.New("samfile: unsupported file type")
	ErrNoIndex     = errors.New("samfile: no index destination")
)

// Descriptor holds the identifying fields of the current record. Start
// is 0-based.
type Descriptor struct {
	Name    string
	Flags   sam.Flags
	RefName string
	Start   int
}
