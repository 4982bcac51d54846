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

package limitbuf

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteWithinLimit(t *testing.T) {
	b := New(10)
	for _, s := range []string{"abc", "defg", "hij"} {
		n, err := b.Write([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		if n != len(s) {
			t.Errorf("wrote %d bytes, expected %d", n, len(s))
		}
	}
	if d := cmp.Diff([]byte("abcdefghij"), b.Bytes()); d != "" {
		t.Error(d)
	}
	if b.Cap() > b.Limit() {
		t.Errorf("capacity %d exceeds limit %d", b.Cap(), b.Limit())
	}
}

func TestWriteExceedsLimit(t *testing.T) {
	b := New(8)
	_, err := b.Write([]byte("12345"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.Write([]byte("6789"))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected *CapacityError, got %T", err)
	}
	if capErr.Size != 5 || capErr.Requested != 4 || capErr.Limit != 8 {
		t.Errorf("unexpected error details %+v", capErr)
	}

	// a failed write leaves the buffer unchanged
	if d := cmp.Diff([]byte("12345"), b.Bytes()); d != "" {
		t.Error(d)
	}

	// filling the buffer up to the limit is fine
	_, err = b.Write([]byte("678"))
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 8 {
		t.Errorf("wrong length %d", b.Len())
	}
	err = b.WriteByte('x')
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestOverflow(t *testing.T) {
	b := New(0)
	b.data = make([]byte, 10)
	err := b.ensure(math.MaxInt - 5)
	if !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("expected ErrCapacityOverflow, got %v", err)
	}
	if b.Len() != 10 {
		t.Errorf("buffer changed after failed write")
	}
}

func TestDefaultLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		b := New(limit)
		if b.Limit() != DefaultLimit {
			t.Errorf("New(%d).Limit() = %d", limit, b.Limit())
		}
	}
	if DefaultLimit != math.MaxInt32-8 {
		t.Errorf("unexpected default limit %d", DefaultLimit)
	}
}

func TestCapacityDoubles(t *testing.T) {
	b := New(5000)
	var caps []int
	for range 5000 {
		if err := b.WriteByte('a'); err != nil {
			t.Fatal(err)
		}
		if len(caps) == 0 || caps[len(caps)-1] != b.Cap() {
			caps = append(caps, b.Cap())
		}
	}
	expected := []int{256, 512, 1024, 2048, 4096, 5000}
	if d := cmp.Diff(expected, caps); d != "" {
		t.Error(d)
	}
}

func TestReadFrom(t *testing.T) {
	data := strings.Repeat("0123456789", 100)

	b := New(len(data))
	n, err := b.ReadFrom(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) || b.String() != data {
		t.Errorf("read %d bytes, buffer has %d", n, b.Len())
	}

	b = New(len(data) - 1)
	_, err = b.ReadFrom(strings.NewReader(data))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
	if b.Len() != len(data)-1 {
		t.Errorf("buffer has %d bytes", b.Len())
	}
}

func TestReset(t *testing.T) {
	b := New(4)
	b.Write([]byte("abcd"))
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("buffer not empty after Reset")
	}
	_, err := b.Write([]byte("efgh"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), []byte("efgh")) {
		t.Errorf("wrong contents %q", b.Bytes())
	}
}
