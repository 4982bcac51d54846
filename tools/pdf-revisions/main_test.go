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

package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/revision"
)

func TestWriteReport(t *testing.T) {
	revs := []revision.Revision{
		{
			XRefPos: 100,
			EOF:     200,
			Changed: []pdf.Reference{pdf.NewReference(1, 0), pdf.NewReference(2, 0)},
		},
		{
			XRefPos: 300,
			EOF:     400,
			Changed: []pdf.Reference{pdf.NewReference(1, 0)},
			Freed:   []pdf.Reference{pdf.NewReference(2, 1)},
		},
	}

	buf := &bytes.Buffer{}
	err := writeReport(buf, revs, 7, true)
	if err != nil {
		t.Fatal(err)
	}

	want := "rev\txref\teof\tchanged\tfreed\n" +
		"1\t100\t200\t2\t0\n" +
		"\tchanged:\tobj_1 obj_2\n" +
		"2\t300\t400\t1\t1\n" +
		"\tchanged:\tobj_1\n" +
		"\tfreed:\tobj_2@1\n" +
		"pages\t7\n"
	if d := cmp.Diff(want, buf.String()); d != "" {
		t.Error(d)
	}
}
