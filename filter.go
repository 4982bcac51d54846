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
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"seehuhn.de/go/pdfcore/ascii85"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
	"seehuhn.de/go/pdfcore/internal/filter/runlength"
	"seehuhn.de/go/pdfcore/limitbuf"
)

// Filter represents a PDF stream filter.
//
// New filters can be plugged in by implementing this interface.
type Filter interface {
	// Name returns the value of the /Filter entry for this filter.
	Name() Name

	// Parms returns the value of the /DecodeParms entry for this filter,
	// or nil if no parameters are needed.
	Parms() Dict

	// Encode returns a writer which encodes data and writes the result
	// to w.  Closing the returned writer flushes all buffered data and
	// closes w.
	Encode(w io.WriteCloser) (io.WriteCloser, error)

	// Decode returns a reader which decodes data read from r.
	Decode(r io.Reader) (io.Reader, error)
}

// FilterFlate is the FlateDecode filter.  The map holds the entries of the
// /DecodeParms dictionary.
type FilterFlate Dict

// Name implements the [Filter] interface.
func (f FilterFlate) Name() Name {
	return "FlateDecode"
}

// Parms implements the [Filter] interface.
func (f FilterFlate) Parms() Dict {
	if len(f) == 0 {
		return nil
	}
	return Dict(f)
}

func (f FilterFlate) predictParams() *predict.Params {
	p := &predict.Params{
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
		Predictor:        1,
	}
	if x, ok := f["Predictor"].(Integer); ok {
		p.Predictor = int(x)
	}
	if x, ok := f["Colors"].(Integer); ok {
		p.Colors = int(x)
	}
	if x, ok := f["BitsPerComponent"].(Integer); ok {
		p.BitsPerComponent = int(x)
	}
	if x, ok := f["Columns"].(Integer); ok {
		p.Columns = int(x)
	}
	return p
}

// Encode implements the [Filter] interface.
func (f FilterFlate) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	zw, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	p := f.predictParams()
	return predict.NewWriter(&closeBoth{WriteCloser: zw, next: w}, p)
}

// Decode implements the [Filter] interface.
func (f FilterFlate) Decode(r io.Reader) (io.Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	return predict.NewReader(zr, f.predictParams())
}

// FilterASCII85 is the ASCII85Decode filter.
type FilterASCII85 struct{}

// Name implements the [Filter] interface.
func (f FilterASCII85) Name() Name {
	return "ASCII85Decode"
}

// Parms implements the [Filter] interface.
func (f FilterASCII85) Parms() Dict {
	return nil
}

// Encode implements the [Filter] interface.
func (f FilterASCII85) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return ascii85.Encode(w), nil
}

// Decode implements the [Filter] interface.
func (f FilterASCII85) Decode(r io.Reader) (io.Reader, error) {
	return ascii85.Decode(r), nil
}

// FilterRunLength is the RunLengthDecode filter.
type FilterRunLength struct{}

// Name implements the [Filter] interface.
func (f FilterRunLength) Name() Name {
	return "RunLengthDecode"
}

// Parms implements the [Filter] interface.
func (f FilterRunLength) Parms() Dict {
	return nil
}

// Encode implements the [Filter] interface.
func (f FilterRunLength) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return runlength.Encode(w), nil
}

// Decode implements the [Filter] interface.
func (f FilterRunLength) Decode(r io.Reader) (io.Reader, error) {
	return runlength.Decode(r), nil
}

// makeFilter returns the filter for the given /Filter and /DecodeParms
// values.
func makeFilter(name Name, parms Dict) (Filter, error) {
	switch name {
	case "FlateDecode", "Fl":
		return FilterFlate(parms), nil
	case "ASCII85Decode", "A85":
		return FilterASCII85{}, nil
	case "RunLengthDecode", "RL":
		return FilterRunLength{}, nil
	default:
		return nil, fmt.Errorf("unsupported filter %q", name)
	}
}

// Filters returns the filters listed in the stream dictionary, in the
// order in which they need to be applied for decoding.
func (x *Stream) Filters(r Getter) ([]Filter, error) {
	var res []Filter
	parms, err := Resolve(r, x.Dict["DecodeParms"])
	if err != nil {
		return nil, err
	}
	filter, err := Resolve(r, x.Dict["Filter"])
	if err != nil {
		return nil, err
	}

	switch filter := filter.(type) {
	case nil:
		// pass
	case Name:
		pDict, err := GetDict(r, parms)
		if err != nil {
			return nil, Wrap(err, "DecodeParms")
		}
		f, err := makeFilter(filter, pDict)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	case Array:
		pa, _ := parms.(Array)
		for i, fi := range filter {
			name, err := GetName(r, fi)
			if err != nil {
				return nil, Wrap(err, "Filter")
			}
			var pDict Dict
			if i < len(pa) {
				pDict, err = GetDict(r, pa[i])
				if err != nil {
					return nil, Wrap(err, "DecodeParms")
				}
			}
			f, err := makeFilter(name, pDict)
			if err != nil {
				return nil, err
			}
			res = append(res, f)
		}
	default:
		return nil, &MalformedFileError{
			Err: errors.New("invalid /Filter field"),
		}
	}
	return res, nil
}

// DecodeStream returns the decoded data of stm.  The decoded data is
// collected in a [limitbuf.Buffer] which holds at most limit bytes.  If
// limit is zero or negative, [limitbuf.DefaultLimit] is used.
//
// If the stream data is an [io.Seeker], the read position is restored
// afterwards so that the stream can be read again.
func DecodeStream(r Getter, stm *Stream, limit int) ([]byte, error) {
	filters, err := stm.Filters(r)
	if err != nil {
		return nil, err
	}

	var in io.Reader = stm.R
	if in == nil {
		return nil, nil
	}
	if seeker, ok := in.(io.Seeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err == nil {
			defer seeker.Seek(pos, io.SeekStart)
		}
	}

	for _, f := range filters {
		in, err = f.Decode(in)
		if err != nil {
			return nil, err
		}
	}

	buf := limitbuf.New(limit)
	_, err = buf.ReadFrom(in)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// closeBoth closes the encoder, and then the underlying writer.
// zlib.Writer.Close does not close the writer it writes to.
type closeBoth struct {
	io.WriteCloser
	next io.WriteCloser
}

func (c *closeBoth) Close() error {
	err := c.WriteCloser.Close()
	if err != nil {
		return err
	}
	return c.next.Close()
}

// EncodeStream creates a stream object with the given data.  The data is
// encoded using the given filters, and the /Filter, /DecodeParms and /Length
// entries of the stream dictionary are set accordingly.  The filters are
// given in the order in which they are applied for decoding.
func EncodeStream(dict Dict, data []byte, filters ...Filter) (*Stream, error) {
	dict = cloneDict(dict)

	buf := &bytes.Buffer{}
	var w io.WriteCloser = nopCloser{buf}
	for _, f := range filters {
		var err error
		w, err = f.Encode(w)
		if err != nil {
			return nil, err
		}
	}
	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}

	switch len(filters) {
	case 0:
		delete(dict, "Filter")
		delete(dict, "DecodeParms")
	case 1:
		dict["Filter"] = filters[0].Name()
		if parms := filters[0].Parms(); parms != nil {
			dict["DecodeParms"] = parms
		} else {
			delete(dict, "DecodeParms")
		}
	default:
		var names, parms Array
		hasParms := false
		for _, f := range filters {
			names = append(names, f.Name())
			p := f.Parms()
			if p != nil {
				hasParms = true
				parms = append(parms, p)
			} else {
				parms = append(parms, nil)
			}
		}
		dict["Filter"] = names
		if hasParms {
			dict["DecodeParms"] = parms
		} else {
			delete(dict, "DecodeParms")
		}
	}
	dict["Length"] = Integer(buf.Len())

	return &Stream{Dict: dict, R: bytes.NewReader(buf.Bytes())}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
