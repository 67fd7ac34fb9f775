// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/biogo/alignio/sam"
)

var magic = [4]byte{'B', 'A', 'M', 0x1}

var ErrMagic = errors.New("bam: magic number mismatch")

// EncodeHeader writes the BAM binary header for h to w: the magic, the
// SAM header text and the reference list of h.Dict.
func EncodeHeader(w io.Writer, h *sam.Header) error {
	text, err := h.MarshalText()
	if err != nil {
		return err
	}
	var b []byte
	b = append(b, magic[:]...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(text)))
	b = append(b, text...)
	refs := h.Dict.Refs()
	b = binary.LittleEndian.AppendUint32(b, uint32(len(refs)))
	for _, r := range refs {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(r.Name)+1))
		b = append(b, r.Name...)
		b = append(b, 0)
		b = binary.LittleEndian.AppendUint32(b, uint32(int32(r.Len)))
	}
	_, err = w.Write(b)
	return err
}

// DecodeHeader reads a BAM binary header from r. The reference list held
// in the binary section defines the returned header's Dictionary; species
// given in the text @SQ lines are carried over by name.
func DecodeHeader(r io.Reader) (*sam.Header, error) {
	var m [4]byte
	err := binary.Read(r, binary.LittleEndian, &m)
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, ErrMagic
	}
	var lText int32
	err = binary.Read(r, binary.LittleEndian, &lText)
	if err != nil {
		return nil, err
	}
	if lText < 0 {
		return nil, errors.New("bam: invalid header text length")
	}
	text := make([]byte, lText)
	_, err = io.ReadFull(r, text)
	if err != nil {
		return nil, fmt.Errorf("bam: truncated header text: %w", err)
	}
	// Text is NUL padded by some writers.
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}

	h := sam.NewHeader(nil)
	err = h.UnmarshalText(text)
	if err != nil {
		return nil, err
	}
	species := make(map[string]string)
	for _, ref := range h.Dict.Refs() {
		if ref.Species != "" {
			species[ref.Name] = ref.Species
		}
	}

	var nRef int32
	err = binary.Read(r, binary.LittleEndian, &nRef)
	if err != nil {
		return nil, err
	}
	if nRef < 0 {
		return nil, errors.New("bam: invalid reference count")
	}
	d := sam.NewDictionary(false)
	for i := 0; i < int(nRef); i++ {
		var lName int32
		err = binary.Read(r, binary.LittleEndian, &lName)
		if err != nil {
			return nil, err
		}
		if lName < 1 {
			return nil, errors.New("bam: invalid reference name length")
		}
		name := make([]byte, lName)
		_, err = io.ReadFull(r, name)
		if err != nil {
			return nil, err
		}
		if name[lName-1] != 0 {
			return nil, errors.New("bam: truncated reference name")
		}
		var lRef int32
		err = binary.Read(r, binary.LittleEndian, &lRef)
		if err != nil {
			return nil, err
		}
		n := string(name[:lName-1])
		_, err = d.Add(species[n], n, int(lRef))
		if err != nil {
			return nil, fmt.Errorf("bam: reference %d: %w", i, err)
		}
	}
	h.Dict = d
	return h, nil
}
