// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/biogo/alignio/samfile"
)

type estimateArgs struct {
	Input string `arg:"positional,required" help:"SAM or BAM file"`
}

func estimateMain() {
	var args estimateArgs
	arg.MustParse(&args)
	e, err := samfile.EstimateSizes(args.Input)
	fatal(err)
	printEstimate(os.Stdout, args.Input, e)
}

func printEstimate(w io.Writer, path string, e *samfile.Estimate) {
	kind := "estimated"
	if e.Exact {
		kind = "exact"
	}
	fmt.Fprintf(w, "file\t%s\n", path)
	fmt.Fprintf(w, "type\t%v\n", e.Type)
	fmt.Fprintf(w, "bytes\t%d\n", e.FileSize)
	fmt.Fprintf(w, "records\t%d (%s)\n", e.Records, kind)
	fmt.Fprintf(w, "name length\tmax=%d mean=%d\n", e.MaxNameLen, e.MeanNameLen)
	fmt.Fprintf(w, "sequence length\tmax=%d mean=%d\n", e.MaxSeqLen, e.MeanSeqLen)
}
