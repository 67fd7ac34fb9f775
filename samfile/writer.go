// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samfile

import (
	"io"
	"os"

	"github.com/biogo/hts/bgzf/index"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/biogo/alignio/bai"
	"github.com/biogo/alignio/bam"
	"github.com/biogo/alignio/internal/bgzfwriter"
	"github.com/biogo/alignio/internal/buffer"
	"github.com/biogo/alignio/sam"
)

const initialHeaderBuffer = 1 << 14

// Writer writes a SAM or BAM file in two phases: references are added
// first, then alignments after StartAlignments. Capacity, indexing and
// resource errors are fatal to the session; later calls return the same
// error.
type Writer struct {
	typ     Type
	level   int
	version string

	out     io.Writer
	file    *os.File
	idxOut  io.Writer
	idxPath string

	dict   *sam.Dictionary
	header *buffer.Buffer
	maxBuf int
	merge  index.MergeStrategy

	gz   *gzip.Writer
	bg   *bgzfwriter.Writer
	bam  *bam.Writer
	idx  *bai.Builder
	line []byte

	started  bool
	finished bool
	closed   bool
	err      error

	logger log.Logger
}

// Create creates the file at path for writing alignments of the given
// type. For BAMIndexed an index is written to indexPath, or path+".bai"
// if indexPath is empty. The compression level applies to SAMgz and BAM
// output. If version is empty Version is used.
func Create(typ Type, path string, level int, indexPath, version string) (*Writer, error) {
	if typ == BAMIndexed && indexPath == "" {
		indexPath = path + ".bai"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "samfile: create")
	}
	w, err := newWriter(f, typ, level, nil, version)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.file = f
	w.idxPath = indexPath
	return w, nil
}

// NewWriter returns a Writer writing alignments of the given type to w.
// For BAMIndexed the index is written to idx on Close.
func NewWriter(w io.Writer, typ Type, level int, idx io.Writer, version string) (*Writer, error) {
	if typ == BAMIndexed && idx == nil {
		return nil, ErrNoIndex
	}
	return newWriter(w, typ, level, idx, version)
}

func newWriter(w io.Writer, typ Type, lev int, idx io.Writer, version string) (*Writer, error) {
	switch typ {
	case SAM, SAMgz, BAM, BAMIndexed:
	default:
		return nil, errors.Wrapf(ErrType, "samfile: cannot write %v", typ)
	}
	if lev < gzip.DefaultCompression || lev > gzip.BestCompression {
		return nil, errors.Errorf("samfile: invalid compression level %d", lev)
	}
	if version == "" {
		version = Version
	}
	return &Writer{
		typ:     typ,
		level:   lev,
		version: version,
		out:     w,
		idxOut:  idx,
		dict:    sam.NewDictionary(true),
		header:  buffer.New(initialHeaderBuffer, 0),
		merge:   index.Adjacent,
		logger:  log.NewNopLogger(),
	}, nil
}

// SetLogger sets the logger used for diagnostics.
func (w *Writer) SetLogger(l log.Logger) {
	if l == nil {
		l = log.NewNopLogger()
	}
	w.logger = l
	w.dict.SetLogger(l)
}

// SetMaxBuffer bounds the memory used for header and index construction.
// A non-positive n removes the bound.
func (w *Writer) SetMaxBuffer(n int) {
	w.maxBuf = n
	w.header.SetMax(n)
	if w.idx != nil {
		w.idx.SetMaxBuffer(n)
	}
}

// SetMergeStrategy sets the strategy used to coalesce index chunks.
func (w *Writer) SetMergeStrategy(s index.MergeStrategy) {
	w.merge = s
	if w.idx != nil {
		w.idx.SetMergeStrategy(s)
	}
}

// Type returns the output type.
func (w *Writer) Type() Type { return w.typ }

// Dictionary returns the reference dictionary being written.
func (w *Writer) Dictionary() *sam.Dictionary { return w.dict }

// Err returns the error that stopped the session, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

func (w *Writer) check() error {
	if w.closed {
		return ErrClosed
	}
	return w.err
}

// AddReference adds a reference sequence. References must be added in
// ascending name order before StartAlignments is called. For indexed
// output references longer than bai.MaxReferenceLen fail the session.
func (w *Writer) AddReference(species, name string, length int) error {
	if err := w.check(); err != nil {
		return err
	}
	if w.started {
		return errors.Wrap(ErrState, "samfile: reference added after alignments started")
	}
	if w.typ == BAMIndexed {
		if err := bai.CheckLength(length); err != nil {
			return w.fail(errors.Wrapf(err, "samfile: reference %q", name))
		}
	}
	_, err := w.dict.Add(species, name, length)
	if err != nil {
		return w.fail(errors.Wrap(err, "samfile"))
	}
	return nil
}

// StartAlignments writes the header. No references may be added after
// StartAlignments.
func (w *Writer) StartAlignments() error {
	if err := w.check(); err != nil {
		return err
	}
	if w.started {
		return errors.Wrap(ErrState, "samfile: alignments already started")
	}
	w.started = true

	h := sam.NewHeader(w.dict)
	h.Version = FormatVersion
	h.SortOrder = sam.Coordinate
	h.Programs = []sam.Program{{ID: "alignio", Name: "alignio", Version: w.version}}

	var err error
	switch w.typ {
	case SAM, SAMgz:
		if w.typ == SAMgz {
			w.gz, err = gzip.NewWriterLevel(w.out, w.level)
			if err != nil {
				return w.fail(errors.Wrap(err, "samfile"))
			}
		}
		w.header.Reset()
		_, err = h.WriteTo(w.header)
		if err == nil {
			err = w.header.Err()
		}
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile: building header"))
		}
		_, err = w.header.WriteTo(w.text())
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile: writing header"))
		}

	case BAM, BAMIndexed:
		w.bg, err = bgzfwriter.New(w.out, w.level)
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile"))
		}
		w.bam, err = bam.NewWriter(w.bg, h, w.maxBuf)
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile: writing header"))
		}
		// Alignments start on a block boundary.
		err = w.bg.Flush()
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile: writing header"))
		}
		if w.typ == BAMIndexed {
			w.idx, err = bai.NewBuilder(w.dict.Refs())
			if err != nil {
				return w.fail(errors.Wrap(err, "samfile"))
			}
			w.idx.SetMaxBuffer(w.maxBuf)
			w.idx.SetMergeStrategy(w.merge)
		}
	}
	level.Debug(w.logger).Log("msg", "started alignments", "type", w.typ, "references", w.dict.Len())
	return nil
}

func (w *Writer) text() io.Writer {
	if w.gz != nil {
		return w.gz
	}
	return w.out
}

// resolve sets the reference IDs of rec from its reference names using the
// dictionary of the file being written.
func (w *Writer) resolve(rec *sam.Record) error {
	id, err := w.refID(rec.RefName)
	if err != nil {
		return err
	}
	mid, err := w.refID(rec.MateRefName)
	if err != nil {
		return err
	}
	rec.RefID, rec.MateRefID = id, mid
	return nil
}

func (w *Writer) refID(name string) (int, error) {
	if name == "" || name == "*" {
		return -1, nil
	}
	id, ok := w.dict.Resolve(name)
	if !ok {
		return -1, errors.Wrapf(sam.ErrUnknownReference, "%q", name)
	}
	return id - 1, nil
}

// AddAlignment writes rec. Reference IDs are resolved from the record's
// reference names and the record's bin is recomputed from its span.
// For indexed output records must be in coordinate order with unplaced
// records last; lastAligned marks the final placed record, after which
// only unplaced records may be added.
func (w *Writer) AddAlignment(rec *sam.Record, lastAligned bool) error {
	if err := w.check(); err != nil {
		return err
	}
	if !w.started {
		return errors.Wrap(ErrState, "samfile: alignment added before StartAlignments")
	}
	err := w.resolve(rec)
	if err != nil {
		return errors.Wrapf(err, "samfile: %s", rec.Name)
	}
	if w.finished && rec.IsPlaced() {
		return w.fail(errors.Wrap(bai.ErrUnsorted, "samfile: placed alignment after last aligned"))
	}
	rec.SetBin()

	switch w.typ {
	case SAM, SAMgz:
		w.line, err = rec.AppendSAM(w.line[:0])
		if err != nil {
			return errors.Wrapf(err, "samfile: %s", rec.Name)
		}
		w.line = append(w.line, '\n')
		_, err = w.text().Write(w.line)
		if err != nil {
			return w.fail(errors.Wrap(err, "samfile: writing alignment"))
		}

	case BAM, BAMIndexed:
		if w.idx != nil && rec.IsPlaced() && rec.End > bai.MaxReferenceLen {
			return w.fail(errors.Wrapf(bai.CheckLength(rec.End), "samfile: %s", rec.Name))
		}
		c, err := w.bam.Write(rec)
		if err != nil {
			if errors.Is(err, sam.ErrMalformed) {
				return errors.Wrapf(err, "samfile: %s", rec.Name)
			}
			return w.fail(errors.Wrapf(err, "samfile: %s", rec.Name))
		}
		if w.idx != nil {
			err = w.idx.Add(rec.RefID, rec.Pos, rec.End, rec.Bin, c, rec.Flags.IsMapped())
			if err != nil {
				return w.fail(errors.Wrapf(err, "samfile: %s", rec.Name))
			}
		}
	}

	if lastAligned && !w.finished {
		w.finished = true
		if w.idx != nil {
			err = w.idx.FinalizeAll()
			if err != nil {
				return w.fail(errors.Wrap(err, "samfile"))
			}
		}
	}
	return nil
}

// Close flushes buffered output, writes the index for indexed output and
// releases resources. Resources are released even if the session has
// failed, in which case the session error is returned.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	if w.err == nil && !w.started {
		w.StartAlignments()
	}
	w.closed = true

	err := w.err
	keep := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}
	if w.gz != nil {
		keep(errors.Wrap(w.gz.Close(), "samfile: closing gzip stream"))
	}
	if w.bg != nil {
		keep(errors.Wrap(w.bg.Close(), "samfile: closing BGZF stream"))
	}
	if w.file != nil {
		keep(errors.Wrap(w.file.Close(), "samfile: closing output"))
	}
	if err == nil && w.idx != nil {
		keep(w.writeIndex())
	}
	w.header.Reset()
	w.line = nil
	w.idx, w.bam = nil, nil
	return err
}

func (w *Writer) writeIndex() error {
	if w.idxOut != nil {
		_, err := w.idx.WriteTo(w.idxOut)
		return errors.Wrap(err, "samfile: writing index")
	}
	tmp := w.idxPath + "." + uuid.New().String()
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "samfile: creating index")
	}
	_, err = w.idx.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, w.idxPath)
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "samfile: writing index")
	}
	return nil
}
