// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"sort"

	"github.com/alexflint/go-arg"
	"github.com/biogo/hts/bgzf/index"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/biogo/alignio/remap"
	"github.com/biogo/alignio/sam"
	"github.com/biogo/alignio/samfile"
)

type convertArgs struct {
	Type      string `arg:"-t" help:"output type: sam, sam.gz, bam or bam+bai"`
	Level     int    `arg:"-l" help:"compression level for compressed output"`
	Index     string `arg:"-i" help:"index path for bam+bai output, default is output path with .bai appended"`
	Remap     string `arg:"-r" help:"BED file placing contigs on target sequences"`
	MaxBuffer int    `arg:"--max-buffer" help:"bound on header and index memory in bytes, 0 for no bound"`
	NoMerge   bool   `arg:"--no-merge" help:"do not coalesce adjacent index chunks"`
	Verbose   bool   `arg:"-v" help:"log debug messages"`
	Input     string `arg:"positional,required" help:"SAM or BAM input file"`
	Output    string `arg:"positional,required" help:"output file"`
}

func convertMain() {
	args := convertArgs{Type: "bam", Level: gzip.DefaultCompression}
	p := arg.MustParse(&args)
	_, err := samfile.ParseType(args.Type)
	if err != nil {
		p.Fail(err.Error())
	}
	fatal(convert(args, newLogger(args.Verbose)))
}

// convert copies alignments from args.Input to args.Output. References
// are written in name order and, for indexed output, alignments are
// sorted into the corresponding coordinate order.
func convert(args convertArgs, logger log.Logger) error {
	typ, err := samfile.ParseType(args.Type)
	if err != nil {
		return err
	}
	r, err := samfile.Open(args.Input)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetLogger(logger)
	if args.Remap != "" {
		m, err := remap.ReadBED(args.Remap)
		if err != nil {
			return err
		}
		level.Info(logger).Log("msg", "read placements", "path", args.Remap, "segments", m.Len())
		r.SetRemapper(m)
	}

	// Headerless SAM registers references as records are read, so its
	// records are buffered until the reference set is complete.
	headerless := r.Dictionary().Len() == 0
	var recs []*sam.Record
	if headerless || typ == samfile.BAMIndexed {
		recs, err = readAll(r)
		if err != nil {
			return errors.Wrapf(err, "reading %s", args.Input)
		}
		if headerless {
			level.Info(logger).Log("msg", "no @SQ header lines, lengths taken from alignments", "references", r.Dictionary().Len())
		}
	}

	w, err := samfile.Create(typ, args.Output, args.Level, args.Index, "")
	if err != nil {
		return err
	}
	w.SetLogger(logger)
	w.SetMaxBuffer(args.MaxBuffer)
	if args.NoMerge {
		w.SetMergeStrategy(index.Identity)
	}

	extent := extents(recs)
	refs := append([]*sam.Reference(nil), r.Dictionary().Refs()...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	for _, ref := range refs {
		length := ref.Len
		if length == 0 {
			length = extent[ref.Name]
		}
		err = w.AddReference(ref.Species, ref.Name, length)
		if err != nil {
			w.Close()
			return err
		}
	}
	err = w.StartAlignments()
	if err != nil {
		w.Close()
		return err
	}

	var n int
	switch {
	case typ == samfile.BAMIndexed:
		n, err = writeSorted(w, recs)
	case recs != nil:
		n, err = writeAll(w, recs)
	default:
		n, err = copyStream(w, r)
	}
	if err != nil {
		w.Close()
		return errors.Wrapf(err, "converting %s", args.Input)
	}
	err = w.Close()
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "converted", "input", args.Input, "output", args.Output, "type", typ, "records", n)
	return nil
}

func readAll(r *samfile.Reader) ([]*sam.Record, error) {
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

// extents returns the furthest position covered on each reference by
// recs, including mate positions, with a minimum of one base.
func extents(recs []*sam.Record) map[string]int {
	ext := make(map[string]int)
	grow := func(name string, end int) {
		if name == "" || name == "*" {
			return
		}
		if end < 1 {
			end = 1
		}
		if end > ext[name] {
			ext[name] = end
		}
	}
	for _, rec := range recs {
		grow(rec.RefName, rec.End)
		grow(rec.RefName, rec.Pos+1)
		grow(rec.MateRefName, rec.MatePos+1)
	}
	return ext
}

func writeAll(w *samfile.Writer, recs []*sam.Record) (int, error) {
	for i, rec := range recs {
		err := w.AddAlignment(rec, false)
		if err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

func copyStream(w *samfile.Writer, r *samfile.Reader) (int, error) {
	var n int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		err = w.AddAlignment(rec, false)
		if err != nil {
			return n, err
		}
		n++
	}
}

// writeSorted writes recs to w in coordinate order of w's dictionary,
// with unplaced records last.
func writeSorted(w *samfile.Writer, recs []*sam.Record) (int, error) {
	d := w.Dictionary()
	type keyed struct {
		id  int
		rec *sam.Record
	}
	ks := make([]keyed, len(recs))
	for i, rec := range recs {
		id := -1
		if rec.IsPlaced() {
			var ok bool
			id, ok = d.Resolve(rec.RefName)
			if !ok {
				return 0, errors.Wrapf(sam.ErrUnknownReference, "%s: %q", rec.Name, rec.RefName)
			}
		}
		ks[i] = keyed{id: id, rec: rec}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		switch {
		case a.id == b.id:
			return a.rec.Pos < b.rec.Pos
		case a.id < 0:
			return false
		case b.id < 0:
			return true
		}
		return a.id < b.id
	})

	last := -1
	for i, k := range ks {
		if k.id >= 0 {
			last = i
		}
	}
	for i, k := range ks {
		err := w.AddAlignment(k.rec, i == last)
		if err != nil {
			return i, err
		}
	}
	return len(ks), nil
}
