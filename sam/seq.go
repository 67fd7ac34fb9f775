// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

// Doublet is a nybble-encoded pair of nucleotide bases, the first base in
// the high nybble.
type Doublet byte

// Seq is a nybble-encoded nucleotide sequence.
type Seq struct {
	Length int
	Seq    []Doublet
}

// nybbleBases is the 16 symbol alphabet of packed sequence.
const nybbleBases = "=ACMGRSVTWYHKDBN"

const unknownBase = 0xf

var nybbleOf [256]Doublet

func init() {
	for i := range nybbleOf {
		nybbleOf[i] = unknownBase
	}
	// Only the reference match symbol and the four bases are kept;
	// every other letter, including ambiguity codes, packs as N.
	nybbleOf['='] = 0x0
	for _, c := range []byte("ACGT") {
		var v Doublet
		for i := range nybbleBases {
			if nybbleBases[i] == c {
				v = Doublet(i)
			}
		}
		nybbleOf[c] = v
		nybbleOf[c+'a'-'A'] = v
	}
}

// NewSeq returns a packed Seq for the given bases.
func NewSeq(s []byte) Seq {
	return Seq{Length: len(s), Seq: pack(make([]Doublet, (len(s)+1)>>1), s)}
}

func pack(dst []Doublet, s []byte) []Doublet {
	for i, b := range s {
		if i&1 == 0 {
			dst[i>>1] = nybbleOf[b] << 4
		} else {
			dst[i>>1] |= nybbleOf[b]
		}
	}
	return dst
}

// Expand returns the byte encoded form of the receiver.
func (ns Seq) Expand() []byte { return ns.AppendTo(nil) }

// AppendTo appends the byte encoded form of the receiver to dst.
func (ns Seq) AppendTo(dst []byte) []byte {
	for i := 0; i < ns.Length; i++ {
		dst = append(dst, ns.At(i))
	}
	return dst
}

// At returns the base at position i.
func (ns Seq) At(i int) byte {
	d := ns.Seq[i>>1]
	if i&1 == 0 {
		return nybbleBases[d>>4]
	}
	return nybbleBases[d&0xf]
}

// Bytes returns the packed representation of the sequence.
func (ns Seq) Bytes() []byte {
	b := make([]byte, len(ns.Seq))
	for i, d := range ns.Seq {
		b[i] = byte(d)
	}
	return b
}
