// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"io"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/biogo/alignio/remap"
	"github.com/biogo/alignio/samfile"
)

type viewArgs struct {
	NoHeader bool   `arg:"-H,--no-header" help:"omit the header"`
	Remap    string `arg:"-r" help:"BED file placing contigs on target sequences"`
	Verbose  bool   `arg:"-v" help:"log debug messages"`
	Input    string `arg:"positional,required" help:"SAM or BAM file"`
}

func viewMain() {
	var args viewArgs
	arg.MustParse(&args)
	fatal(view(os.Stdout, args))
}

func view(out io.Writer, args viewArgs) error {
	r, err := samfile.Open(args.Input)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetLogger(newLogger(args.Verbose))
	if args.Remap != "" {
		m, err := remap.ReadBED(args.Remap)
		if err != nil {
			return err
		}
		r.SetRemapper(m)
	}

	w := bufio.NewWriter(out)
	if !args.NoHeader {
		text, err := r.HeaderText()
		if err != nil {
			return err
		}
		_, err = w.Write(text)
		if err != nil {
			return err
		}
	}
	for {
		var line []byte
		if args.Remap != "" {
			// Remapping is applied during decoding, so records are
			// decoded and rendered rather than passed through.
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			line, err = rec.AppendSAM(nil)
			if err != nil {
				return err
			}
		} else {
			line, err = r.NextLine()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		w.Write(line)
		err = w.WriteByte('\n')
		if err != nil {
			return err
		}
	}
	return w.Flush()
}
