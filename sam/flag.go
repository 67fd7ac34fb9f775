// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

// A Flags represents an alignment record's FLAG field.
type Flags uint16

const (
	Paired        Flags = 1 << iota // Paired in sequencing.
	ProperPair                      // Mapped in a proper pair.
	Unmapped                        // The read is unmapped.
	MateUnmapped                    // The mate is unmapped.
	Reverse                         // Mapped to the reverse strand.
	MateReverse                     // Mate mapped to the reverse strand.
	Read1                           // First read of the template.
	Read2                           // Last read of the template.
	Secondary                       // Secondary alignment.
	QCFail                          // Failed quality checks.
	Duplicate                       // PCR or optical duplicate.
	Supplementary                   // Supplementary alignment.
)

const flagLetters = "pPuUrR12sfdS"

// String returns the flags as a fixed width string with one letter per
// set bit, lowest bit first, and '-' for unset bits:
//  p P u U r R 1 2 s f d S
func (f Flags) String() string {
	b := []byte(flagLetters)
	for i := range b {
		if f&(1<<uint(i)) == 0 {
			b[i] = '-'
		}
	}
	return string(b)
}

// IsMapped returns whether the Unmapped bit is clear.
func (f Flags) IsMapped() bool { return f&Unmapped == 0 }
