// Copyright ©2012-2013 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/biogo/alignio/internal/binning"
)

// Record represents a SAM/BAM alignment record.
type Record struct {
	// RefID is the 0-based BAM reference ID, -1 when unplaced.
	RefID   int
	RefName string

	// Pos and End are the 0-based half-open span of the alignment.
	Pos int
	End int

	Bin   uint16
	MapQ  byte
	Flags Flags

	MateRefID   int
	MateRefName string
	MatePos     int
	TempLen     int

	Name      string
	Cigar     Cigar
	Seq       Seq
	Qual      []byte
	AuxFields AuxFields
}

// PackBinMQNL returns the BAM bin_mq_nl word.
func PackBinMQNL(bin uint16, mapQ, nameLen uint8) uint32 {
	return uint32(bin)<<16 | uint32(mapQ)<<8 | uint32(nameLen)
}

// UnpackBinMQNL splits a BAM bin_mq_nl word into its components.
func UnpackBinMQNL(w uint32) (bin uint16, mapQ, nameLen uint8) {
	return uint16(w >> 16), uint8(w >> 8), uint8(w)
}

// PackFlagNC returns the BAM flag_nc word.
func PackFlagNC(f Flags, nCigar uint16) uint32 {
	return uint32(f)<<16 | uint32(nCigar)
}

// UnpackFlagNC splits a BAM flag_nc word into its components.
func UnpackFlagNC(w uint32) (Flags, uint16) {
	return Flags(w >> 16), uint16(w)
}

// BinMQNL returns the bin_mq_nl word for r. The name length includes
// the terminating NUL.
func (r *Record) BinMQNL() uint32 {
	return PackBinMQNL(r.Bin, r.MapQ, uint8(len(r.Name)+1))
}

// FlagNC returns the flag_nc word for r.
func (r *Record) FlagNC() uint32 {
	return PackFlagNC(r.Flags, uint16(len(r.Cigar)))
}

// IsPlaced returns whether r has a reference and position.
func (r *Record) IsPlaced() bool { return r.RefID >= 0 && r.Pos >= 0 }

// SetBin sets r.Bin from the record's span. Unplaced records get the
// unmapped bin and zero length alignments are treated as covering one
// base.
func (r *Record) SetBin() {
	if !r.IsPlaced() {
		r.Bin = binning.Unmapped
		return
	}
	end := r.End
	if end <= r.Pos {
		end = r.Pos + 1
	}
	if end > binning.MaxLen {
		r.Bin = 0
		return
	}
	r.Bin = binning.For(r.Pos, end)
}

// Strand returns -1 for reverse strand alignments and 1 otherwise.
func (r *Record) Strand() int8 {
	if r.Flags&Reverse != 0 {
		return -1
	}
	return 1
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %v %v %d %s:%d..%d (%d) %s:%d %d %s",
		r.Name, r.Flags, r.Cigar, r.MapQ,
		r.RefName, r.Pos, r.End, r.Bin,
		r.MateRefName, r.MatePos, r.TempLen,
		r.Seq.Expand(),
	)
}

// Remapper translates an interval on a named sequence onto another
// coordinate space. Remap returns false when the interval cannot be
// projected.
type Remapper interface {
	Remap(name string, start, end int) (target string, tstart, tend int, ok bool)
}

// Decoder decodes SAM text lines into Records.
type Decoder struct {
	// Dict resolves reference names to IDs.
	Dict *Dictionary

	// Remap, if not nil, translates alignment intervals before
	// reference name resolution.
	Remap Remapper

	// Limits holds the capacities enforced during decoding.
	Limits Limits

	// Register causes unknown reference names to be added to Dict
	// instead of failing. It is used for SAM data without @SQ lines.
	Register bool
}

// UnmarshalSAM parses a SAM alignment line using d to resolve reference
// names and the format's default limits.
func (r *Record) UnmarshalSAM(d *Dictionary, b []byte) error {
	dec := Decoder{Dict: d, Limits: DefaultLimits}
	return dec.Decode(b, r)
}

// ParseLine parses a SAM alignment line resolving names with d. The
// remapper rm and limits lim may be nil.
func ParseLine(line []byte, d *Dictionary, rm Remapper, lim *Limits) (*Record, error) {
	dec := Decoder{Dict: d, Remap: rm, Limits: DefaultLimits}
	if lim != nil {
		dec.Limits = *lim
	}
	var r Record
	err := dec.Decode(line, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Decode parses the SAM alignment line b into r.
func (dec *Decoder) Decode(b []byte, r *Record) error {
	b = bytes.TrimRight(b, "\r\n")
	if len(b) != 0 && b[0] == '@' {
		return ErrHeaderLine
	}
	f := bytes.Split(b, []byte{'\t'})
	if len(f) < 11 {
		return fmt.Errorf("%w: have %d", ErrFieldCount, len(f))
	}
	lim := &dec.Limits

	*r = Record{Name: string(f[0])}
	if err := lim.check("read name", len(r.Name), lim.MaxNameLen); err != nil {
		return err
	}
	flags, err := strconv.ParseUint(string(f[1]), 10, 16)
	if err != nil {
		return fmt.Errorf("%w: flags %q", ErrMalformed, f[1])
	}
	r.Flags = Flags(flags)
	r.RefName = string(f[2])
	r.Pos, err = atoi(f[3], "position")
	if err != nil {
		return err
	}
	r.Pos--
	mapQ, err := strconv.ParseUint(string(f[4]), 10, 8)
	if err != nil {
		return fmt.Errorf("%w: mapping quality %q", ErrMalformed, f[4])
	}
	r.MapQ = byte(mapQ)
	r.Cigar, err = ParseCigar(f[5])
	if err != nil {
		return err
	}
	if err := lim.check("cigar", len(r.Cigar), lim.MaxCigarOps); err != nil {
		return err
	}
	r.MateRefName = string(f[6])
	if r.MateRefName == "=" {
		r.MateRefName = r.RefName
	}
	r.MatePos, err = atoi(f[7], "mate position")
	if err != nil {
		return err
	}
	r.MatePos--
	r.TempLen, err = atoi(f[8], "template length")
	if err != nil {
		return err
	}

	if !bytes.Equal(f[9], []byte{'*'}) {
		if err := lim.check("sequence", len(f[9]), lim.MaxSeqLen); err != nil {
			return err
		}
		r.Seq = NewSeq(f[9])
		if _, read := r.Cigar.Lengths(); len(r.Cigar) != 0 && read != r.Seq.Length {
			return fmt.Errorf("%w: sequence/CIGAR length mismatch", ErrMalformed)
		}
	}
	if !bytes.Equal(f[10], []byte{'*'}) {
		if len(f[10]) != r.Seq.Length {
			return fmt.Errorf("%w: sequence/quality length mismatch", ErrMalformed)
		}
		r.Qual = make([]byte, len(f[10]))
		for i, q := range f[10] {
			r.Qual[i] = q - 33
		}
	} else if r.Seq.Length != 0 {
		r.Qual = bytes.Repeat([]byte{0xff}, r.Seq.Length)
	}

	aux := f[11:]
	if err := lim.check("aux tags", len(aux), lim.MaxAuxTags); err != nil {
		return err
	}
	for _, t := range aux {
		a, err := ParseAux(t)
		if err != nil {
			return err
		}
		if err := lim.check("aux value", len(a.Value), lim.MaxAuxLen); err != nil {
			return err
		}
		r.AuxFields = append(r.AuxFields, a)
	}

	r.End = r.Pos
	if r.Pos >= 0 {
		r.End += r.Cigar.AlignedLen()
	}
	if err := dec.place(r); err != nil {
		return err
	}
	r.SetBin()
	return nil
}

func atoi(b []byte, field string) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil || !validInt32(n) {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformed, field, b)
	}
	return n, nil
}

// place remaps and resolves the reference and mate reference of r.
func (dec *Decoder) place(r *Record) error {
	sameMate := r.MateRefName == r.RefName
	if dec.Remap != nil {
		if r.RefName != "*" && r.Pos >= 0 {
			name, beg, end, ok := dec.Remap.Remap(r.RefName, r.Pos, r.End)
			if !ok {
				return fmt.Errorf("%w: %s:%d-%d", ErrNotRemapped, r.RefName, r.Pos, r.End)
			}
			r.RefName, r.Pos, r.End = name, beg, end
		}
		if r.MateRefName != "*" && r.MatePos >= 0 {
			name, beg, _, ok := dec.Remap.Remap(r.MateRefName, r.MatePos, r.MatePos+1)
			if ok {
				r.MateRefName, r.MatePos = name, beg
			} else {
				r.MateRefName, r.MatePos = "*", -1
			}
		}
	}

	var err error
	r.RefID, err = dec.resolve(r.RefName)
	if err != nil {
		return err
	}
	if sameMate && dec.Remap == nil {
		r.MateRefID = r.RefID
		return nil
	}
	r.MateRefID, err = dec.resolve(r.MateRefName)
	return err
}

func (dec *Decoder) resolve(name string) (int, error) {
	if name == "*" || dec.Dict == nil {
		return -1, nil
	}
	id, ok := dec.Dict.Resolve(name)
	if ok {
		return id - 1, nil
	}
	if !dec.Register {
		return -1, fmt.Errorf("%w: %q", ErrUnknownReference, name)
	}
	return dec.Dict.register(name).RefID(), nil
}

// register adds a reference of unknown length seen in headerless data.
func (d *Dictionary) register(name string) *Reference {
	if d.names == nil {
		d.names = make(map[string]struct{})
	}
	d.names[name] = struct{}{}
	r := &Reference{ID: len(d.refs) + 1, Name: name}
	d.refs = append(d.refs, r)
	return r
}

// MarshalText implements encoding.TextMarshaler.
func (r *Record) MarshalText() ([]byte, error) { return r.MarshalSAM() }

// MarshalSAM formats r as a SAM alignment line without the line terminator.
func (r *Record) MarshalSAM() ([]byte, error) {
	return r.AppendSAM(nil)
}

// AppendSAM appends the SAM alignment line for r to dst.
func (r *Record) AppendSAM(dst []byte) ([]byte, error) {
	if len(r.Qual) != 0 && len(r.Qual) != r.Seq.Length {
		return dst, fmt.Errorf("%w: sequence/quality length mismatch", ErrMalformed)
	}
	dst = append(dst, r.Name...)
	dst = append(dst, '\t')
	dst = strconv.AppendUint(dst, uint64(r.Flags), 10)
	dst = append(dst, '\t')
	dst = appendName(dst, r.RefName)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(r.Pos+1), 10)
	dst = append(dst, '\t')
	dst = strconv.AppendUint(dst, uint64(r.MapQ), 10)
	dst = append(dst, '\t')
	dst = r.Cigar.append(dst)
	dst = append(dst, '\t')
	if r.MateRefName != "" && r.MateRefName != "*" && r.MateRefName == r.RefName {
		dst = append(dst, '=')
	} else {
		dst = appendName(dst, r.MateRefName)
	}
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(r.MatePos+1), 10)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(r.TempLen), 10)
	dst = append(dst, '\t')
	if r.Seq.Length == 0 {
		dst = append(dst, '*')
	} else {
		dst = r.Seq.AppendTo(dst)
	}
	dst = append(dst, '\t')
	dst = appendQual(dst, r.Qual)
	for _, a := range r.AuxFields {
		dst = append(dst, '\t')
		dst = a.AppendSAM(dst)
	}
	return dst, nil
}

func appendName(dst []byte, name string) []byte {
	if name == "" {
		return append(dst, '*')
	}
	return append(dst, name...)
}

func appendQual(dst, q []byte) []byte {
	absent := true
	for _, v := range q {
		if v != 0xff {
			absent = false
			break
		}
	}
	if absent {
		return append(dst, '*')
	}
	for _, v := range q {
		dst = append(dst, v+33)
	}
	return dst
}
