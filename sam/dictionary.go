// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"errors"
	"fmt"

	"github.com/dgryski/go-farm"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	ErrDupReference = errors.New("sam: duplicate reference name")
	ErrUnsorted     = errors.New("sam: reference name out of ascending order")
	errBadLen       = errors.New("sam: reference length out of range")
	errNoName       = errors.New("sam: no reference name provided")
)

// Reference is a named reference sequence.
type Reference struct {
	// ID is the dense 1-based dictionary identifier.
	ID      int
	Name    string
	Len     int
	Species string
}

// RefID returns the 0-based BAM reference ID, -1 for a nil Reference.
func (r *Reference) RefID() int {
	if r == nil {
		return -1
	}
	return r.ID - 1
}

func (r *Reference) String() string {
	if r == nil {
		return "*"
	}
	return fmt.Sprintf("@SQ\tSN:%s\tLN:%d", r.Name, r.Len)
}

// historyDepth is the number of recently resolved names checked before
// a full scan of the dictionary.
const historyDepth = 10

type recent struct {
	hash uint64
	ref  *Reference
}

// Dictionary is an ordered registry of reference names and lengths.
// Resolution consults a short most-recently-used history keyed by name
// hash before falling back to a linear scan.
type Dictionary struct {
	refs   []*Reference
	sorted bool

	// names holds every added name for duplicate detection.
	names map[string]struct{}

	hist  [historyDepth]recent
	nHist int

	scans    int
	lastMiss string

	logger log.Logger
}

// NewDictionary returns an empty Dictionary. If sorted is true, names
// added to the dictionary must be in strictly ascending lexical order.
func NewDictionary(sorted bool) *Dictionary {
	return &Dictionary{sorted: sorted, logger: log.NewNopLogger()}
}

// SetLogger sets the logger used to report unresolved names.
func (d *Dictionary) SetLogger(l log.Logger) {
	if l == nil {
		l = log.NewNopLogger()
	}
	d.logger = l
}

// Add appends a reference to the dictionary and returns its ID.
func (d *Dictionary) Add(species, name string, length int) (int, error) {
	if name == "" {
		return 0, errNoName
	}
	if length < 1 || !validInt32(length) {
		return 0, fmt.Errorf("%w: %s %d", errBadLen, name, length)
	}
	if d.sorted && len(d.refs) != 0 {
		last := d.refs[len(d.refs)-1].Name
		switch {
		case name == last:
			return 0, fmt.Errorf("%w: %q", ErrDupReference, name)
		case name < last:
			return 0, fmt.Errorf("%w: %q after %q", ErrUnsorted, name, last)
		}
	} else if _, dup := d.names[name]; dup {
		return 0, fmt.Errorf("%w: %q", ErrDupReference, name)
	}
	if d.names == nil {
		d.names = make(map[string]struct{})
	}
	d.names[name] = struct{}{}
	r := &Reference{ID: len(d.refs) + 1, Name: name, Len: length, Species: species}
	d.refs = append(d.refs, r)
	return r.ID, nil
}

func (d *Dictionary) find(name string) *Reference {
	for _, r := range d.refs {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Resolve returns the ID of the named reference. If the name is not
// present ok is false.
func (d *Dictionary) Resolve(name string) (id int, ok bool) {
	h := farm.Hash64([]byte(name))
	for i := 0; i < d.nHist; i++ {
		if e := d.hist[i]; e.hash == h && e.ref.Name == name {
			d.promote(i, e)
			return e.ref.ID, true
		}
	}

	d.scans++
	r := d.find(name)
	if r == nil {
		if name != d.lastMiss {
			level.Warn(d.logger).Log("msg", "unresolved reference name", "name", name)
			d.lastMiss = name
		}
		return 0, false
	}
	n := d.nHist
	if n == historyDepth {
		n--
	} else {
		d.nHist++
	}
	d.promote(n, recent{hash: h, ref: r})
	return r.ID, true
}

// promote moves e to the front of the history, shifting entries
// before position i down by one.
func (d *Dictionary) promote(i int, e recent) {
	copy(d.hist[1:i+1], d.hist[:i])
	d.hist[0] = e
}

// Scans returns the number of linear scans performed by Resolve.
func (d *Dictionary) Scans() int { return d.scans }

// Len returns the number of references in the dictionary.
func (d *Dictionary) Len() int { return len(d.refs) }

// Ref returns the reference with the given 1-based ID, or nil.
func (d *Dictionary) Ref(id int) *Reference {
	if id < 1 || id > len(d.refs) {
		return nil
	}
	return d.refs[id-1]
}

// ByRefID returns the reference with the given 0-based BAM ID, or nil.
func (d *Dictionary) ByRefID(refID int) *Reference { return d.Ref(refID + 1) }

// Refs returns the references in ID order.
func (d *Dictionary) Refs() []*Reference { return d.refs }
