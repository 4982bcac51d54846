// seehuhn.de/go/pdfcore - the object store of a PDF library
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Pdf-revisions lists the incremental updates of a PDF file.
//
// For every revision, the tool prints the position of the cross-reference
// section, the position of the closing %%EOF marker, and the number of
// objects written and freed.  Finally, the number of pages of the current
// version of the document is shown.
//
// Usage:
//
//	pdf-revisions [-v] [-debug] file.pdf
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/pagetree"
	"seehuhn.de/go/pdfcore/revision"
	"seehuhn.de/go/pdfcore/tools/internal/buildinfo"
)

func main() {
	verbose := flag.Bool("v", false, "list the objects of every revision")
	debug := flag.Bool("debug", false, "show diagnostic messages")
	version := flag.Bool("version", false, "show version information and exit")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: pdf-revisions [options] file.pdf")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Short("pdf-revisions"))
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *debug {
		pdf.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	err := run(os.Stdout, flag.Arg(0), *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(out *os.File, fname string, verbose bool) error {
	fd, err := os.Open(fname)
	if err != nil {
		return err
	}
	defer fd.Close()
	fi, err := fd.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()

	revs, err := revision.Read(fd, size)
	if err != nil {
		return err
	}
	numPages, err := countPages(fd, size)
	if err != nil {
		return err
	}

	var w io.Writer = out
	var tw *tabwriter.Writer
	if term.IsTerminal(int(out.Fd())) {
		tw = tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		w = tw
	}
	err = writeReport(w, revs, numPages, verbose)
	if err != nil {
		return err
	}
	if tw != nil {
		return tw.Flush()
	}
	return nil
}

// countPages returns the number of pages in the newest revision of the
// document.
func countPages(r io.ReaderAt, size int64) (int, error) {
	fr, err := pdf.NewReader(r, size, nil)
	if err != nil {
		return 0, err
	}
	doc := pdf.OpenDocument(fr)
	catalog, err := doc.Catalog()
	if err != nil {
		return 0, err
	}
	root, ok := catalog["Pages"].(pdf.Reference)
	if !ok {
		return 0, &pdf.MalformedFileError{Err: errNoPages}
	}
	tree, err := pagetree.Read(doc, root)
	if err != nil {
		return 0, err
	}
	return tree.NumPages(), nil
}

var errNoPages = errors.New("document has no page tree")

// writeReport writes one tab-separated line per revision.
func writeReport(w io.Writer, revs []revision.Revision, numPages int, verbose bool) error {
	_, err := fmt.Fprintln(w, "rev\txref\teof\tchanged\tfreed")
	if err != nil {
		return err
	}
	for i, rev := range revs {
		_, err = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
			i+1, rev.XRefPos, rev.EOF, len(rev.Changed), len(rev.Freed))
		if err != nil {
			return err
		}
		if verbose {
			_, err = fmt.Fprintf(w, "\tchanged:\t%s\n", formatRefs(rev.Changed))
			if err != nil {
				return err
			}
			if len(rev.Freed) > 0 {
				_, err = fmt.Fprintf(w, "\tfreed:\t%s\n", formatRefs(rev.Freed))
				if err != nil {
					return err
				}
			}
		}
	}
	_, err = fmt.Fprintf(w, "pages\t%d\n", numPages)
	return err
}

func formatRefs(refs []pdf.Reference) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = ref.String()
	}
	return strings.Join(parts, " ")
}
