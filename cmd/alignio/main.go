// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// alignio reads, writes and indexes SAM and BAM files.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/biogo/alignio/samfile"
)

type command struct {
	help string
	main func()
}

var commands = map[string]command{
	"view":     {"print alignments as SAM text", viewMain},
	"convert":  {"convert between SAM and BAM, optionally indexing and remapping", convertMain},
	"estimate": {"estimate record count and field sizes of a SAM or BAM file", estimateMain},
	"index":    {"write a BAI index for a sorted BAM file", indexMain},
}

func usage() {
	var w io.Writer = os.Stderr
	fmt.Fprintf(w, "alignio version: %s (SAM %s)\n\n", samfile.Version, samfile.FormatVersion)
	var keys []string
	l := 5
	for k := range commands {
		keys = append(keys, k)
		if len(k) > l {
			l = len(k)
		}
	}
	format := "%-" + strconv.Itoa(l) + "s : %s\n"
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, format, k, commands[k].help)
	}
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	c, ok := commands[os.Args[1]]
	if !ok {
		usage()
	}
	os.Args = append(os.Args[:1], os.Args[2:]...)
	c.main()
}

// newLogger returns a logfmt logger on stderr allowing debug messages
// only when verbose is set.
func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func fatal(err error) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed).Add(color.Bold)
	fmt.Fprintf(os.Stderr, "%s\n", c.Sprintf("alignio: %v", err))
	os.Exit(1)
}
