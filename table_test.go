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
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIdentityUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tab := NewTable(nil)

	live := make(map[Reference]bool)
	var liveList []Reference
	for range 5000 {
		if len(liveList) > 0 && rng.Intn(2) == 0 {
			i := rng.Intn(len(liveList))
			ref := liveList[i]
			err := tab.Free(ref)
			if err != nil {
				t.Fatal(err)
			}
			delete(live, ref)
			liveList = slices.Delete(liveList, i, i+1)
			continue
		}

		ref := tab.Register(Integer(len(liveList))).(Reference)
		if ref.Number() == 0 {
			t.Fatal("object number 0 allocated")
		}
		for other := range live {
			if other.Number() == ref.Number() {
				t.Fatalf("%s: object number already in use by %s", ref, other)
			}
		}
		if live[ref] {
			t.Fatalf("%s: duplicate reference", ref)
		}
		live[ref] = true
		liveList = append(liveList, ref)
	}

	var got []Reference
	for ref := range tab.Refs() {
		got = append(got, ref)
	}
	sortByNumber := func(refs []Reference) {
		slices.SortFunc(refs, func(a, b Reference) int {
			return int(a.Number()) - int(b.Number())
		})
	}
	sortByNumber(liveList)
	if d := cmp.Diff(liveList, got); d != "" {
		t.Error(d)
	}
}

func TestDirectOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogger(slog.New(slog.NewTextHandler(buf, nil)))
	defer SetLogger(nil)

	tab := NewTable(nil)
	for _, obj := range []Object{nil, Bool(true), Bool(false)} {
		res := tab.Register(obj)
		if res != obj {
			t.Errorf("Register(%v) = %v", obj, res)
		}
	}
	if tab.Size() != 1 {
		t.Errorf("objects were allocated: size %d", tab.Size())
	}
	if n := strings.Count(buf.String(), "promotion rejected"); n != 3 {
		t.Errorf("%d warnings logged, not 3:\n%s", n, buf.String())
	}

	// References are returned unchanged.
	ref := tab.Register(Integer(1))
	if again := tab.Register(ref); again != ref {
		t.Errorf("got %v, want %v", again, ref)
	}
	if tab.Size() != 2 {
		t.Errorf("wrong size %d", tab.Size())
	}
}

func TestStaleReference(t *testing.T) {
	tab := NewTable(nil)
	ref := tab.Register(Name("x")).(Reference)

	obj, err := tab.Get(ref)
	if err != nil || obj != Name("x") {
		t.Fatalf("got %v %v", obj, err)
	}

	err = tab.Free(ref)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tab.Get(ref)
	var stale *StaleReferenceError
	if !errors.As(err, &stale) || stale.State != Free {
		t.Errorf("expected stale reference error, got %v", err)
	}
	if err := tab.Free(ref); err == nil {
		t.Error("object freed twice")
	}

	// the object number is reused with the next generation
	ref2 := tab.Alloc()
	if ref2.Number() != ref.Number() || ref2.Generation() != ref.Generation()+1 {
		t.Errorf("got %s after freeing %s", ref2, ref)
	}
	_, err = tab.Get(ref)
	if !errors.As(err, &stale) || stale.State != Free {
		t.Errorf("old generation resolved: %v", err)
	}
	if tab.State(ref) != Free || tab.State(ref2) != Resident {
		t.Errorf("wrong states %s %s", tab.State(ref), tab.State(ref2))
	}

	_, err = tab.Get(NewReference(100, 0))
	if !errors.As(err, &stale) || stale.State != Unused {
		t.Errorf("unknown reference resolved: %v", err)
	}
	_, err = tab.Get(NewReference(0, 65535))
	if !errors.As(err, &stale) {
		t.Errorf("object 0 resolved: %v", err)
	}
}

func TestFreeListOrder(t *testing.T) {
	tab := NewTable(nil)
	var refs []Reference
	for range 5 {
		refs = append(refs, tab.Alloc())
	}
	tab.Free(refs[3])
	tab.Free(refs[1])
	tab.Free(refs[2])

	var got []uint32
	for range 4 {
		got = append(got, tab.Alloc().Number())
	}
	want := []uint32{2, 3, 4, 6}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestGenerationRetired(t *testing.T) {
	tab := NewTable(nil)
	old := NewReference(1, maxGeneration-1)
	tab.Declare(old, Location{}, false)
	if err := tab.Free(old); err != nil {
		t.Fatal(err)
	}

	ref := tab.Alloc()
	if ref.Number() == 1 {
		t.Errorf("retired object number reused: %s", ref)
	}
	if tab.State(NewReference(1, maxGeneration)) != Free {
		t.Error("wrong state for retired slot")
	}
}

func TestFlush(t *testing.T) {
	tab := NewTable(nil)
	a := tab.Register(Integer(1)).(Reference)
	b := tab.Register(Integer(2)).(Reference)
	tab.SetPinned(b, true)

	tab.Flush(a)
	tab.Flush(b)

	var stale *StaleReferenceError
	_, err := tab.Get(a)
	if !errors.As(err, &stale) || stale.State != Flushed {
		t.Errorf("released object resolved: %v", err)
	}
	obj, err := tab.Get(b)
	if err != nil || obj != Integer(2) {
		t.Errorf("pinned object: got %v %v", obj, err)
	}
	if err := tab.Put(b, Integer(3)); err == nil {
		t.Error("flushed object was modified")
	}

	tab.SetPinned(b, false)
	_, err = tab.Get(b)
	if !errors.As(err, &stale) {
		t.Errorf("unpinned object resolved: %v", err)
	}
}

func TestModified(t *testing.T) {
	tab := NewTable(nil)
	tab.Declare(NewReference(1, 0), Location{Pos: 10}, false)
	tab.Declare(NewReference(2, 0), Location{Pos: 20}, false)
	tab.Declare(NewReference(3, 0), Location{Pos: 30}, false)

	if len(tab.Modified()) != 0 {
		t.Error("declared objects are marked as modified")
	}

	tab.Put(NewReference(2, 0), Integer(7))
	ref := tab.Alloc()
	tab.Free(NewReference(3, 0))

	want := []Reference{NewReference(2, 0), NewReference(3, 1), ref}
	if d := cmp.Diff(want, tab.Modified()); d != "" {
		t.Error(d)
	}
	if !tab.IsModified(NewReference(2, 0)) || tab.IsModified(NewReference(1, 0)) {
		t.Error("IsModified is wrong")
	}

	tab.ClearModified()
	if len(tab.Modified()) != 0 {
		t.Error("ClearModified failed")
	}
	tab.SetModified(NewReference(1, 0))
	if d := cmp.Diff([]Reference{NewReference(1, 0)}, tab.Modified()); d != "" {
		t.Error(d)
	}
}

type countingLoader struct {
	calls int
}

func (l *countingLoader) Load(ref Reference, loc Location) (Object, error) {
	l.calls++
	return Integer(loc.Pos), nil
}

func TestLazyLoading(t *testing.T) {
	loader := &countingLoader{}
	tab := NewTable(loader)
	ref := NewReference(5, 2)
	tab.Declare(ref, Location{Pos: 1234}, false)

	if tab.State(ref) != NotLoaded {
		t.Errorf("wrong state %s", tab.State(ref))
	}
	for range 3 {
		obj, err := tab.Get(ref)
		if err != nil || obj != Integer(1234) {
			t.Fatalf("got %v %v", obj, err)
		}
	}
	if loader.calls != 1 {
		t.Errorf("object loaded %d times", loader.calls)
	}
	if tab.State(ref) != Resident {
		t.Errorf("wrong state %s", tab.State(ref))
	}
	if tab.Size() != 6 {
		t.Errorf("wrong size %d", tab.Size())
	}

	if n := tab.Alloc().Number(); n != 6 {
		t.Errorf("allocated object %d", n)
	}

	loc, ok := tab.Location(ref)
	if !ok || loc.Pos != 1234 {
		t.Errorf("wrong location %v", loc)
	}
	tab.SetObjectStream(ref, 7, 3)
	loc, _ = tab.Location(ref)
	if d := cmp.Diff(Location{Stream: 7, Index: 3}, loc); d != "" {
		t.Error(d)
	}
}

func TestResolveLoop(t *testing.T) {
	tab := NewTable(nil)
	a := tab.Alloc()
	b := tab.Alloc()
	tab.Put(a, b)
	tab.Put(b, a)

	_, err := Resolve(tab, a)
	var malformed *MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}

	c := tab.Register(Dict{"A": Integer(1)})
	d := tab.Register(c)
	dict, err := GetDict(tab, d)
	if err != nil || dict["A"] != Integer(1) {
		t.Errorf("got %v %v", dict, err)
	}
	_, err = GetArray(tab, d)
	if !errors.As(err, &malformed) {
		t.Errorf("wrong type accepted: %v", err)
	}
}
