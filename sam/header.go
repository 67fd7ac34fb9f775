// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var errBadHeader = errors.New("sam: malformed header line")

// SortOrder indicates the sort order of a SAM or BAM file.
type SortOrder int

const (
	UnknownOrder SortOrder = iota
	Unsorted
	QueryName
	Coordinate
)

var sortOrder = [...]string{
	UnknownOrder: "unknown",
	Unsorted:     "unsorted",
	QueryName:    "queryname",
	Coordinate:   "coordinate",
}

// String returns the string representation of a SortOrder.
func (so SortOrder) String() string {
	if so < Unsorted || so > Coordinate {
		return sortOrder[UnknownOrder]
	}
	return sortOrder[so]
}

func parseSortOrder(s []byte) SortOrder {
	for i, v := range sortOrder {
		if string(s) == v {
			return SortOrder(i)
		}
	}
	return UnknownOrder
}

// Program describes the program that wrote a file.
type Program struct {
	ID      string
	Name    string
	Version string
}

// Header is the header of a SAM or BAM file. References are held in the
// header's Dictionary; lines other than @HD, @SQ and @PG are retained
// verbatim in Other.
type Header struct {
	Version   string
	SortOrder SortOrder
	Dict      *Dictionary
	Programs  []Program
	Other     [][]byte
}

// NewHeader returns a Header using d for its references.
func NewHeader(d *Dictionary) *Header {
	if d == nil {
		d = NewDictionary(false)
	}
	return &Header{Dict: d}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h *Header) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	return buf.Bytes(), err
}

// WriteTo writes the SAM text form of the header to w.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	var b []byte
	if h.Version != "" {
		b = append(b, "@HD\tVN:"...)
		b = append(b, h.Version...)
		b = append(b, "\tSO:"...)
		b = append(b, h.SortOrder.String()...)
		b = append(b, '\n')
	}
	for _, r := range h.Dict.Refs() {
		b = append(b, "@SQ"...)
		if r.Species != "" {
			b = append(b, "\tAS:"...)
			b = append(b, r.Species...)
		}
		b = append(b, "\tSN:"...)
		b = append(b, r.Name...)
		b = append(b, "\tLN:"...)
		b = strconv.AppendInt(b, int64(r.Len), 10)
		b = append(b, '\n')
	}
	for _, p := range h.Programs {
		b = append(b, "@PG\tID:"...)
		b = append(b, p.ID...)
		if p.Name != "" {
			b = append(b, "\tPN:"...)
			b = append(b, p.Name...)
		}
		if p.Version != "" {
			b = append(b, "\tVN:"...)
			b = append(b, p.Version...)
		}
		b = append(b, '\n')
	}
	for _, l := range h.Other {
		b = append(b, l...)
		b = append(b, '\n')
	}
	n, err := w.Write(b)
	return int64(n), err
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// References named in @SQ lines are added to the header's Dictionary.
func (h *Header) UnmarshalText(text []byte) error {
	if h.Dict == nil {
		h.Dict = NewDictionary(false)
	}
	for _, l := range bytes.Split(text, []byte{'\n'}) {
		l = bytes.TrimRight(l, "\r")
		if len(l) == 0 {
			continue
		}
		if err := h.parseLine(l); err != nil {
			return err
		}
	}
	return nil
}

// ParseLine adds a single header line to h.
func (h *Header) ParseLine(l []byte) error {
	if h.Dict == nil {
		h.Dict = NewDictionary(false)
	}
	return h.parseLine(bytes.TrimRight(l, "\r\n"))
}

func (h *Header) parseLine(l []byte) error {
	if len(l) < 3 || l[0] != '@' {
		return fmt.Errorf("%w: %q", errBadHeader, l)
	}
	fields := bytes.Split(l, []byte{'\t'})
	switch string(l[1:3]) {
	case "HD":
		for _, f := range fields[1:] {
			t, v, ok := headerTag(f)
			if !ok {
				return fmt.Errorf("%w: %q", errBadHeader, l)
			}
			switch t {
			case "VN":
				h.Version = string(v)
			case "SO":
				h.SortOrder = parseSortOrder(v)
			}
		}
	case "SQ":
		var (
			name, species string
			length        = -1
		)
		for _, f := range fields[1:] {
			t, v, ok := headerTag(f)
			if !ok {
				return fmt.Errorf("%w: %q", errBadHeader, l)
			}
			switch t {
			case "SN":
				name = string(v)
			case "LN":
				n, err := strconv.Atoi(string(v))
				if err != nil {
					return fmt.Errorf("%w: bad reference length %q", errBadHeader, v)
				}
				length = n
			case "AS":
				species = string(v)
			}
		}
		if _, err := h.Dict.Add(species, name, length); err != nil {
			return err
		}
	case "PG":
		var p Program
		for _, f := range fields[1:] {
			t, v, ok := headerTag(f)
			if !ok {
				continue
			}
			switch t {
			case "ID":
				p.ID = string(v)
			case "PN":
				p.Name = string(v)
			case "VN":
				p.Version = string(v)
			}
		}
		h.Programs = append(h.Programs, p)
	default:
		h.Other = append(h.Other, append([]byte(nil), l...))
	}
	return nil
}

func headerTag(f []byte) (tag string, value []byte, ok bool) {
	if len(f) < 3 || f[2] != ':' {
		return "", nil, false
	}
	return string(f[:2]), f[3:], true
}
