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

package ascii85

import (
	"bytes"
	"encoding/ascii85"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeExamples(t *testing.T) {
	cases := []struct {
		in   string
		out  []byte
		fail bool
	}{
		{in: "~>", out: []byte{}},
		{in: "z~>", out: []byte{0, 0, 0, 0}},
		{in: "87cURD]i,\"Ebo80~>", out: []byte("Hello World!")},
		{in: " 87cU RD]i,\n\"Ebo 80 ~>", out: []byte("Hello World!")},
		{in: "87cURD]i", fail: true},
		{in: "87c{~>", fail: true},
		{in: "8~>", fail: true},
	}
	for _, c := range cases {
		out, err := io.ReadAll(Decode(bytes.NewReader([]byte(c.in))))
		if c.fail {
			if err == nil {
				t.Errorf("%q: expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if d := cmp.Diff(c.out, out); d != "" && !(len(c.out) == 0 && len(out) == 0) {
			t.Errorf("%q: %s", c.in, d)
		}
	}
}

func TestMissingEndMarker(t *testing.T) {
	_, err := io.ReadAll(Decode(bytes.NewReader([]byte("87cUR"))))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("1234"))
	f.Add([]byte("12345678"))
	f.Add([]byte("z"))
	f.Add([]byte("ABCDE"))

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, c := range data {
			if c <= ' ' && !isSpace(c) || c == '~' {
				return
			}
		}

		out1, err1 := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))

		data2 := append(bytes.Clone(data), '~', '>')
		out2, err2 := io.ReadAll(Decode(bytes.NewReader(data2)))

		if err2 != nil && err1 == nil {
			t.Errorf("err2=%v, err1=nil", err2)
		}
		if err1 == nil && !bytes.Equal(out1, out2) {
			t.Errorf("out1=%q, out2=%q", out1, out2)
		}
	})
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("Hello world!"))
	f.Add([]byte("\000"))
	f.Add(bytes.Repeat([]byte{0, 1, 2}, 100))

	f.Fuzz(func(t *testing.T, in []byte) {
		buf := &bytes.Buffer{}
		enc := Encode(withDummyClose{buf})
		_, err := enc.Write(in)
		if err != nil {
			t.Fatal(err)
		}
		err = enc.Close()
		if err != nil {
			t.Fatal(err)
		}

		out, err := io.ReadAll(Decode(buf))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("in=%q, out=%q", in, out)
		}
	})
}

// withDummyClose turns and io.Writer into an io.WriteCloser.
type withDummyClose struct {
	io.Writer
}

func (w withDummyClose) Close() error {
	return nil
}
