// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bam implements the binary record and header encodings of the
// BAM format.
package bam

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/biogo/alignio/sam"
)

var (
	ErrTruncated = errors.New("bam: truncated record")
	ErrRefID     = errors.New("bam: reference id out of range")
)

// BAM record layout following block_size.
type recordFixed struct {
	RefID     int32
	Pos       int32
	BinMQNL   uint32
	FlagNC    uint32
	LSeq      int32
	NextRefID int32
	NextPos   int32
	TLen      int32
}

var fixedSize = binary.Size(recordFixed{})

// Marshal appends the BAM encoding of r, including its leading block_size,
// to dst. The record's Bin is written as held; callers that have changed
// the alignment span should call r.SetBin first.
func Marshal(dst []byte, r *sam.Record) ([]byte, error) {
	if len(r.Name) == 0 {
		return dst, fmt.Errorf("%w: empty read name", sam.ErrMalformed)
	}
	if len(r.Name) > sam.MaxNameLen {
		return dst, &sam.CapacityError{Field: "read name", Len: len(r.Name), Max: sam.MaxNameLen}
	}
	if len(r.Cigar) > sam.MaxCigarOps {
		return dst, &sam.CapacityError{Field: "cigar", Len: len(r.Cigar), Max: sam.MaxCigarOps}
	}
	if r.Qual != nil && len(r.Qual) != r.Seq.Length {
		return dst, fmt.Errorf("%w: sequence/quality length mismatch", sam.ErrMalformed)
	}
	if len(r.Seq.Seq) != (r.Seq.Length+1)>>1 {
		return dst, fmt.Errorf("%w: packed sequence length mismatch", sam.ErrMalformed)
	}

	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, uint32(int32(r.RefID)))
	dst = le.AppendUint32(dst, uint32(int32(r.Pos)))
	dst = le.AppendUint32(dst, r.BinMQNL())
	dst = le.AppendUint32(dst, r.FlagNC())
	dst = le.AppendUint32(dst, uint32(int32(r.Seq.Length)))
	dst = le.AppendUint32(dst, uint32(int32(r.MateRefID)))
	dst = le.AppendUint32(dst, uint32(int32(r.MatePos)))
	dst = le.AppendUint32(dst, uint32(int32(r.TempLen)))

	dst = append(dst, r.Name...)
	dst = append(dst, 0)
	for _, co := range r.Cigar {
		dst = le.AppendUint32(dst, uint32(co))
	}
	for _, d := range r.Seq.Seq {
		dst = append(dst, byte(d))
	}
	if r.Qual != nil {
		dst = append(dst, r.Qual...)
	} else {
		for i := 0; i < r.Seq.Length; i++ {
			dst = append(dst, 0xff)
		}
	}
	for _, a := range r.AuxFields {
		dst = a.AppendBinary(dst)
	}

	size := len(dst) - start - 4
	if int64(size) > 1<<31-1 {
		return dst[:start], &sam.CapacityError{Field: "record", Len: size, Max: 1<<31 - 1}
	}
	le.PutUint32(dst[start:], uint32(size))
	return dst, nil
}

// Unmarshal decodes the BAM record b, which must not include the leading
// block_size, into r. Reference names are resolved through d. Aux values
// in r alias b.
func Unmarshal(b []byte, d *sam.Dictionary, r *sam.Record) error {
	if len(b) < fixedSize {
		return ErrTruncated
	}
	le := binary.LittleEndian
	f := recordFixed{
		RefID:     int32(le.Uint32(b[0:])),
		Pos:       int32(le.Uint32(b[4:])),
		BinMQNL:   le.Uint32(b[8:]),
		FlagNC:    le.Uint32(b[12:]),
		LSeq:      int32(le.Uint32(b[16:])),
		NextRefID: int32(le.Uint32(b[20:])),
		NextPos:   int32(le.Uint32(b[24:])),
		TLen:      int32(le.Uint32(b[28:])),
	}
	b = b[fixedSize:]

	bin, mapQ, nameLen := sam.UnpackBinMQNL(f.BinMQNL)
	flags, nCigar := sam.UnpackFlagNC(f.FlagNC)
	if nameLen == 0 || f.LSeq < 0 {
		return fmt.Errorf("%w: invalid field length", sam.ErrMalformed)
	}
	lSeq := int(f.LSeq)
	need := int(nameLen) + 4*int(nCigar) + (lSeq+1)>>1 + lSeq
	if len(b) < need {
		return ErrTruncated
	}

	*r = sam.Record{
		RefID:     int(f.RefID),
		Pos:       int(f.Pos),
		Bin:       bin,
		MapQ:      mapQ,
		Flags:     flags,
		MateRefID: int(f.NextRefID),
		MatePos:   int(f.NextPos),
		TempLen:   int(f.TLen),
	}
	if b[nameLen-1] != 0 {
		return fmt.Errorf("%w: unterminated read name", sam.ErrMalformed)
	}
	r.Name = string(b[:nameLen-1])
	b = b[nameLen:]

	if nCigar != 0 {
		r.Cigar = make(sam.Cigar, nCigar)
		for i := range r.Cigar {
			r.Cigar[i] = sam.CigarOp(le.Uint32(b[4*i:]))
		}
		b = b[4*int(nCigar):]
	}

	if lSeq != 0 {
		packed := (lSeq + 1) >> 1
		r.Seq = sam.Seq{Length: lSeq, Seq: make([]sam.Doublet, packed)}
		for i, v := range b[:packed] {
			r.Seq.Seq[i] = sam.Doublet(v)
		}
		b = b[packed:]
		r.Qual = append([]byte(nil), b[:lSeq]...)
		b = b[lSeq:]
	}

	for len(b) != 0 {
		a, n, err := sam.DecodeAux(b)
		if err != nil {
			return err
		}
		r.AuxFields = append(r.AuxFields, a)
		b = b[n:]
	}

	var err error
	r.RefName, err = refName(d, r.RefID)
	if err != nil {
		return err
	}
	r.MateRefName, err = refName(d, r.MateRefID)
	if err != nil {
		return fmt.Errorf("mate: %w", err)
	}
	r.End = r.Pos
	if r.Pos >= 0 {
		r.End += r.Cigar.AlignedLen()
	}
	return nil
}

func refName(d *sam.Dictionary, id int) (string, error) {
	if id == -1 {
		return "*", nil
	}
	if id < -1 || d == nil {
		return "", fmt.Errorf("%w: %d", ErrRefID, id)
	}
	ref := d.ByRefID(id)
	if ref == nil {
		return "", fmt.Errorf("%w: %d", ErrRefID, id)
	}
	return ref.Name, nil
}
