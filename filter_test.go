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

package pdf

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore/limitbuf"
)

func TestFilterRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 1200)
	rng.Read(random)
	text := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog.\n"), 40)

	cases := []struct {
		name    string
		filters []Filter
	}{
		{"none", nil},
		{"flate", []Filter{FilterFlate(nil)}},
		{"flate-png", []Filter{FilterFlate{"Predictor": Integer(12), "Columns": Integer(6)}}},
		{"ascii85", []Filter{FilterASCII85{}}},
		{"runlength", []Filter{FilterRunLength{}}},
		{"chain", []Filter{FilterASCII85{}, FilterFlate(nil)}},
		{"chain3", []Filter{FilterASCII85{}, FilterRunLength{}, FilterFlate{"Predictor": Integer(11), "Columns": Integer(4)}}},
	}
	for _, test := range cases {
		for _, data := range [][]byte{random, text, {}} {
			stm, err := EncodeStream(Dict{"Type": Name("Test")}, data, test.filters...)
			if err != nil {
				t.Fatalf("%s: %v", test.name, err)
			}
			if stm.Dict["Length"] != Integer(stm.R.(*bytes.Reader).Len()) {
				t.Errorf("%s: wrong /Length %v", test.name, stm.Dict["Length"])
			}

			out, err := DecodeStream(nil, stm, 0)
			if err != nil {
				t.Fatalf("%s: %v", test.name, err)
			}
			if !bytes.Equal(out, data) {
				t.Errorf("%s: round trip failed", test.name)
			}

			// the stream data can be decoded a second time
			again, err := DecodeStream(nil, stm, 0)
			if err != nil || !bytes.Equal(again, data) {
				t.Errorf("%s: second decoding failed", test.name)
			}
		}
	}
}

func TestEncodeStreamDict(t *testing.T) {
	stm, err := EncodeStream(nil, []byte("x"),
		FilterASCII85{}, FilterFlate{"Predictor": Integer(12)})
	if err != nil {
		t.Fatal(err)
	}
	wantFilter := Array{Name("ASCII85Decode"), Name("FlateDecode")}
	if d := cmp.Diff(wantFilter, stm.Dict["Filter"]); d != "" {
		t.Error(d)
	}
	wantParms := Array{nil, Dict{"Predictor": Integer(12)}}
	if d := cmp.Diff(wantParms, stm.Dict["DecodeParms"]); d != "" {
		t.Error(d)
	}

	// old filter entries are removed
	stm, err = EncodeStream(stm.Dict, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, has := stm.Dict["Filter"]; has {
		t.Error("/Filter not removed")
	}
	if _, has := stm.Dict["DecodeParms"]; has {
		t.Error("/DecodeParms not removed")
	}
}

func TestFilterAbbreviations(t *testing.T) {
	plain := []byte("abcabcabcabc")
	enc, err := EncodeStream(nil, plain, FilterASCII85{}, FilterRunLength{})
	if err != nil {
		t.Fatal(err)
	}
	enc.Dict["Filter"] = Array{Name("A85"), Name("RL")}

	out, err := DecodeStream(nil, enc, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, plain) {
		t.Errorf("got %q", out)
	}
}

func TestIndirectFilter(t *testing.T) {
	tab := NewTable(nil)
	stm, err := EncodeStream(nil, []byte("hello"), FilterFlate(nil))
	if err != nil {
		t.Fatal(err)
	}
	stm.Dict["Filter"] = tab.Register(Name("FlateDecode"))

	out, err := DecodeStream(tab, stm, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Errorf("got %q", out)
	}
}

func TestUnknownFilter(t *testing.T) {
	stm := &Stream{
		Dict: Dict{"Filter": Name("JBIG2Decode")},
		R:    bytes.NewReader([]byte("...")),
	}
	_, err := DecodeStream(nil, stm, 0)
	if err == nil {
		t.Error("unknown filter accepted")
	}

	stm.Dict["Filter"] = Integer(1)
	_, err = DecodeStream(nil, stm, 0)
	var malformed *MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}
}

func TestDecodeLimit(t *testing.T) {
	// highly compressible data
	data := make([]byte, 100000)
	stm, err := EncodeStream(nil, data, FilterFlate(nil))
	if err != nil {
		t.Fatal(err)
	}
	if stm.Dict["Length"].(Integer) > 1000 {
		t.Fatalf("compressed size %d", stm.Dict["Length"])
	}

	_, err = DecodeStream(nil, stm, 1000)
	if !errors.Is(err, limitbuf.ErrCapacityExceeded) {
		t.Errorf("expected capacity error, got %v", err)
	}
	var capErr *limitbuf.CapacityError
	if !errors.As(err, &capErr) || capErr.Limit != 1000 {
		t.Errorf("wrong error %v", err)
	}

	out, err := DecodeStream(nil, stm, len(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(data) {
		t.Errorf("got %d bytes", len(out))
	}
}
