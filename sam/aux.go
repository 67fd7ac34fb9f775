// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// A Tag represents an auxiliary tag label.
type Tag [2]byte

// NewTag returns a Tag from the tag string. It panics if len(tag) != 2.
func NewTag(tag string) Tag {
	var t Tag
	if len(tag) != 2 {
		panic("sam: illegal tag length")
	}
	copy(t[:], tag)
	return t
}

func (t Tag) String() string { return string(t[:]) }

// Aux is an auxiliary field of an alignment record. Value holds the
// little-endian binary payload without the array header or the string
// terminator. For scalar types Count is 1; for Z and H it is the number of
// bytes; for B arrays it is the element count and ArrayType holds the
// element type.
type Aux struct {
	Tag       Tag
	Type      byte
	ArrayType byte
	Count     int
	Value     []byte
}

// sizeOf holds the width in bytes of each fixed-width aux type.
var sizeOf = [256]int{
	'A': 1,
	'c': 1, 'C': 1,
	's': 2, 'S': 2,
	'i': 4, 'I': 4,
	'f': 4,
}

// Len returns the encoded length of a in a BAM record.
func (a Aux) Len() int {
	switch a.Type {
	case 'Z', 'H':
		return 3 + len(a.Value) + 1
	case 'B':
		return 3 + 1 + 4 + len(a.Value)
	}
	return 3 + len(a.Value)
}

// Int returns the value of an integer typed field.
func (a Aux) Int() (int, bool) {
	switch a.Type {
	case 'c':
		return int(int8(a.Value[0])), true
	case 'C':
		return int(a.Value[0]), true
	case 's':
		return int(int16(binary.LittleEndian.Uint16(a.Value))), true
	case 'S':
		return int(binary.LittleEndian.Uint16(a.Value)), true
	case 'i':
		return int(int32(binary.LittleEndian.Uint32(a.Value))), true
	case 'I':
		return int(binary.LittleEndian.Uint32(a.Value)), true
	}
	return 0, false
}

// Float returns the value of an f typed field.
func (a Aux) Float() (float32, bool) {
	if a.Type != 'f' {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(a.Value)), true
}

func (a Aux) String() string { return string(a.AppendSAM(nil)) }

// NewIntAux returns an integer field using the smallest type that holds v.
func NewIntAux(t Tag, v int) (Aux, error) {
	a := Aux{Tag: t, Count: 1}
	switch {
	case v < math.MinInt32 || v > math.MaxUint32:
		return Aux{}, fmt.Errorf("%w: integer aux value %d out of range", ErrMalformed, v)
	case v < math.MinInt16:
		a.Type = 'i'
	case v < math.MinInt8:
		a.Type = 's'
	case v < 0:
		a.Type = 'c'
	case v <= math.MaxUint8:
		a.Type = 'C'
	case v <= math.MaxUint16:
		a.Type = 'S'
	default:
		a.Type = 'I'
	}
	a.Value = putInt(make([]byte, 0, 4), a.Type, v)
	return a, nil
}

func putInt(dst []byte, typ byte, v int) []byte {
	switch sizeOf[typ] {
	case 1:
		return append(dst, byte(v))
	case 2:
		return append(dst, byte(v), byte(v>>8))
	}
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// ParseAux returns an Aux parsed from a SAM TAG:TYPE:VALUE field.
func ParseAux(text []byte) (Aux, error) {
	tf := bytes.SplitN(text, []byte{':'}, 3)
	if len(tf) != 3 || len(tf[0]) != 2 || len(tf[1]) != 1 {
		return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
	}
	t := Tag{tf[0][0], tf[0][1]}
	val := tf[2]
	a := Aux{Tag: t, Type: tf[1][0], Count: 1}
	switch a.Type {
	case 'A':
		if len(val) != 1 {
			return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
		}
		a.Value = []byte{val[0]}
	case 'i':
		v, err := strconv.Atoi(string(val))
		if err != nil {
			return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
		}
		return NewIntAux(t, v)
	case 'f':
		f, err := strconv.ParseFloat(string(val), 32)
		if err != nil {
			return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
		}
		a.Value = make([]byte, 4)
		binary.LittleEndian.PutUint32(a.Value, math.Float32bits(float32(f)))
	case 'Z':
		a.Value = append([]byte(nil), val...)
		a.Count = len(val)
	case 'H':
		if len(val)%2 != 0 {
			return Aux{}, fmt.Errorf("%w: odd length hex aux field %q", ErrMalformed, text)
		}
		if _, err := hex.DecodeString(string(val)); err != nil {
			return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
		}
		a.Value = append([]byte(nil), val...)
		a.Count = len(val)
	case 'B':
		return parseArray(t, val, text)
	default:
		return Aux{}, fmt.Errorf("%w: unknown aux type in %q", ErrMalformed, text)
	}
	return a, nil
}

func parseArray(t Tag, val, text []byte) (Aux, error) {
	if len(val) == 0 {
		return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
	}
	a := Aux{Tag: t, Type: 'B', ArrayType: val[0]}
	if sizeOf[a.ArrayType] == 0 || a.ArrayType == 'A' {
		return Aux{}, fmt.Errorf("%w: invalid aux array type in %q", ErrMalformed, text)
	}
	if len(val) == 1 {
		return a, nil
	}
	if val[1] != ',' {
		return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
	}
	nf := bytes.Split(val[2:], []byte{','})
	a.Value = make([]byte, 0, len(nf)*sizeOf[a.ArrayType])
	for _, n := range nf {
		if a.ArrayType == 'f' {
			f, err := strconv.ParseFloat(string(n), 32)
			if err != nil {
				return Aux{}, fmt.Errorf("%w: invalid aux field %q", ErrMalformed, text)
			}
			a.Value = binary.LittleEndian.AppendUint32(a.Value, math.Float32bits(float32(f)))
			continue
		}
		v, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil || !intFits(a.ArrayType, v) {
			return Aux{}, fmt.Errorf("%w: invalid aux array element %q", ErrMalformed, n)
		}
		a.Value = putInt(a.Value, a.ArrayType, int(v))
	}
	a.Count = len(nf)
	return a, nil
}

func intFits(typ byte, v int64) bool {
	switch typ {
	case 'c':
		return math.MinInt8 <= v && v <= math.MaxInt8
	case 'C':
		return 0 <= v && v <= math.MaxUint8
	case 's':
		return math.MinInt16 <= v && v <= math.MaxInt16
	case 'S':
		return 0 <= v && v <= math.MaxUint16
	case 'i':
		return math.MinInt32 <= v && v <= math.MaxInt32
	case 'I':
		return 0 <= v && v <= math.MaxUint32
	}
	return false
}

// AppendSAM appends the SAM text form of a to dst. All integer widths
// are rendered with the i type.
func (a Aux) AppendSAM(dst []byte) []byte {
	dst = append(dst, a.Tag[0], a.Tag[1], ':')
	switch a.Type {
	case 'c', 'C', 's', 'S', 'i', 'I':
		v, _ := a.Int()
		dst = append(dst, 'i', ':')
		return strconv.AppendInt(dst, int64(v), 10)
	case 'f':
		f, _ := a.Float()
		dst = append(dst, 'f', ':')
		return strconv.AppendFloat(dst, float64(f), 'g', -1, 32)
	case 'B':
		dst = append(dst, 'B', ':', a.ArrayType)
		w := sizeOf[a.ArrayType]
		for i := 0; i < a.Count; i++ {
			e := Aux{Type: a.ArrayType, Value: a.Value[i*w : (i+1)*w]}
			dst = append(dst, ',')
			if a.ArrayType == 'f' {
				f, _ := e.Float()
				dst = strconv.AppendFloat(dst, float64(f), 'g', -1, 32)
			} else {
				v, _ := e.Int()
				dst = strconv.AppendInt(dst, int64(v), 10)
			}
		}
		return dst
	}
	dst = append(dst, a.Type, ':')
	return append(dst, a.Value...)
}

// AppendBinary appends the BAM encoding of a to dst.
func (a Aux) AppendBinary(dst []byte) []byte {
	dst = append(dst, a.Tag[0], a.Tag[1], a.Type)
	switch a.Type {
	case 'Z', 'H':
		dst = append(dst, a.Value...)
		return append(dst, 0)
	case 'B':
		dst = append(dst, a.ArrayType)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(a.Count))
	}
	return append(dst, a.Value...)
}

// DecodeAux decodes the first BAM encoded aux field in b, returning it
// and the number of bytes consumed. The returned Value aliases b.
func DecodeAux(b []byte) (Aux, int, error) {
	if len(b) < 4 {
		return Aux{}, 0, fmt.Errorf("%w: truncated aux field", ErrMalformed)
	}
	a := Aux{Tag: Tag{b[0], b[1]}, Type: b[2], Count: 1}
	switch a.Type {
	case 'Z', 'H':
		end := bytes.IndexByte(b[3:], 0)
		if end < 0 {
			return Aux{}, 0, fmt.Errorf("%w: unterminated aux string", ErrMalformed)
		}
		a.Value = b[3 : 3+end : 3+end]
		a.Count = end
		return a, 3 + end + 1, nil
	case 'B':
		if len(b) < 8 {
			return Aux{}, 0, fmt.Errorf("%w: truncated aux array", ErrMalformed)
		}
		a.ArrayType = b[3]
		w := sizeOf[a.ArrayType]
		if w == 0 || a.ArrayType == 'A' {
			return Aux{}, 0, fmt.Errorf("%w: unknown aux array type %q", ErrMalformed, a.ArrayType)
		}
		a.Count = int(binary.LittleEndian.Uint32(b[4:8]))
		n := 8 + a.Count*w
		if a.Count < 0 || n > len(b) {
			return Aux{}, 0, fmt.Errorf("%w: truncated aux array", ErrMalformed)
		}
		a.Value = b[8:n:n]
		return a, n, nil
	}
	w := sizeOf[a.Type]
	if w == 0 {
		return Aux{}, 0, fmt.Errorf("%w: unknown aux type %q", ErrMalformed, a.Type)
	}
	if len(b) < 3+w {
		return Aux{}, 0, fmt.Errorf("%w: truncated aux field", ErrMalformed)
	}
	a.Value = b[3 : 3+w : 3+w]
	return a, 3 + w, nil
}

// AuxFields is a set of auxiliary fields.
type AuxFields []Aux

// Get returns the auxiliary field identified by the given tag.
func (f AuxFields) Get(tag Tag) (Aux, bool) {
	for _, a := range f {
		if a.Tag == tag {
			return a, true
		}
	}
	return Aux{}, false
}
