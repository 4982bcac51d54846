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

package memfile

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteAfterSeek(t *testing.T) {
	f := New()
	f.Write([]byte("hello"))
	f.Seek(8, io.SeekStart)
	f.Write([]byte("!"))
	f.Seek(1, io.SeekStart)
	f.Write([]byte("EL"))

	want := []byte("hELlo\x00\x00\x00!")
	if d := cmp.Diff(want, f.Data); d != "" {
		t.Error(d)
	}
	if f.Size() != 9 {
		t.Errorf("wrong size %d", f.Size())
	}
}

func TestReadAt(t *testing.T) {
	f := NewBytes([]byte("0123456789"))

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	if n != 4 || err != nil || string(buf) != "3456" {
		t.Errorf("got %d %v %q", n, err, buf)
	}

	n, err = f.ReadAt(buf, 8)
	if n != 2 || err != io.EOF || string(buf[:n]) != "89" {
		t.Errorf("got %d %v %q", n, err, buf[:n])
	}

	_, err = f.ReadAt(buf, 10)
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if f.Offset != 0 {
		t.Error("ReadAt changed the file offset")
	}
}

func TestReadAll(t *testing.T) {
	f := New()
	f.Write([]byte("some data"))
	f.Seek(0, io.SeekStart)
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "some data" {
		t.Errorf("got %q", data)
	}
}
