// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/alexflint/go-arg"
	"github.com/biogo/hts/bgzf/index"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/biogo/alignio/samfile"
)

type indexArgs struct {
	Output  string `arg:"-o" help:"index path, default is input path with .bai appended"`
	NoMerge bool   `arg:"--no-merge" help:"do not coalesce adjacent index chunks"`
	Input   string `arg:"positional,required" help:"coordinate sorted BAM file"`
}

func indexMain() {
	var args indexArgs
	arg.MustParse(&args)
	fatal(indexFile(args))
}

func indexFile(args indexArgs) error {
	if args.Output == "" {
		args.Output = args.Input + ".bai"
	}
	var merge []index.MergeStrategy
	if args.NoMerge {
		merge = append(merge, index.Identity)
	}

	f, err := os.Open(args.Input)
	if err != nil {
		return err
	}
	defer f.Close()

	tmp := args.Output + "." + uuid.New().String()
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = samfile.IndexBAM(f, out, merge...)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, args.Output)
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "indexing %s", args.Input)
	}
	return nil
}
