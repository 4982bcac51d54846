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
	"errors"
	"iter"
	"log/slog"
	"math"
	"sort"
)

// State describes the state of one slot in a [Table].
type State uint8

// These are the possible states of a table slot.
const (
	// Unused slots have never been allocated.
	Unused State = iota

	// NotLoaded slots are known from the cross-reference table of the
	// underlying file, but the object has not been read yet.
	NotLoaded

	// Resident slots hold their object in memory.
	Resident

	// Flushed slots have been written to the output.  The object is only
	// kept in memory if the slot is pinned.
	Flushed

	// Free slots have been deleted.  The slot may be reused, with an
	// incremented generation number.
	Free
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case NotLoaded:
		return "not loaded"
	case Resident:
		return "resident"
	case Flushed:
		return "flushed"
	case Free:
		return "free"
	default:
		return "invalid state"
	}
}

// maxGeneration is the largest generation number a PDF file can store.
// Slots which reach this generation are never reused.
const maxGeneration = math.MaxUint16

// A Loader reads objects from the backing storage of a [Table].
type Loader interface {
	Load(ref Reference, loc Location) (Object, error)
}

// Location describes where an object is stored in the underlying file.
type Location struct {
	// Pos is the byte offset of the object in the file.  This is only used
	// for objects which are not stored in an object stream.
	Pos int64

	// Stream is the object number of the object stream containing the
	// object, or 0 if the object is stored in the file directly.
	Stream uint32

	// Index is the index of the object within the object stream.
	Index int
}

type slot struct {
	gen      uint16
	state    State
	obj      Object
	loc      Location
	modified bool
	pinned   bool
}

// Table owns all indirect objects of a document.
//
// The table is indexed by object number.  Object number 0 is reserved and
// never used.  Objects can be resolved in constant time.  If the table has a
// [Loader], objects declared by the cross-reference table of a file are read
// lazily on first access.
//
// A Table is not safe for concurrent use.
type Table struct {
	slots  []slot
	free   []uint32 // ascending
	loader Loader
}

// NewTable creates a new object table.  The loader is used to read objects
// which have been declared using [Table.Declare].  It may be nil.
func NewTable(loader Loader) *Table {
	t := &Table{loader: loader}
	t.slots = append(t.slots, slot{gen: maxGeneration, state: Free})
	return t
}

// Size returns the number of slots in the table, including the reserved slot
// for object number 0.  This is the value of /Size in the trailer.
func (t *Table) Size() int {
	return len(t.slots)
}

// Alloc allocates a new object number.  Freed object numbers are reused,
// lowest first, with the generation number incremented when the slot was
// freed.  The new slot holds the null object until [Table.Put] is called.
func (t *Table) Alloc() Reference {
	if len(t.free) > 0 {
		number := t.free[0]
		t.free = t.free[1:]
		s := &t.slots[number]
		s.state = Resident
		s.obj = nil
		s.loc = Location{}
		s.modified = true
		s.pinned = false
		return NewReference(number, s.gen)
	}

	number := uint32(len(t.slots))
	t.slots = append(t.slots, slot{state: Resident, modified: true})
	return NewReference(number, 0)
}

// Register promotes obj to an indirect object and returns the reference to
// the new object.  References are returned unchanged.
//
// The direct-only values null, true and false are never made indirect.  For
// these, a warning is logged and obj is returned unchanged.
func (t *Table) Register(obj Object) Object {
	if IsDirectOnly(obj) {
		Logger().Warn("promotion rejected",
			slog.String("object", Format(obj)),
			slog.Any("err", ErrDirectOnly))
		return obj
	}
	if ref, isReference := obj.(Reference); isReference {
		return ref
	}

	ref := t.Alloc()
	t.slots[ref.Number()].obj = obj
	return ref
}

// Put sets the value of the indirect object ref.  The reference must have
// been allocated before, either by [Table.Alloc] or by reading a file.
func (t *Table) Put(ref Reference, obj Object) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	if s.state == Flushed {
		return errors.New("object " + ref.String() + " has already been written")
	}
	s.obj = obj
	s.state = Resident
	s.modified = true
	return nil
}

// Get returns the object for ref.  Objects which have not been read yet are
// loaded using the table's Loader.
//
// If the reference does not correspond to a live object, a
// [*StaleReferenceError] is returned.
func (t *Table) Get(ref Reference) (Object, error) {
	s, err := t.live(ref)
	if err != nil {
		return nil, err
	}

	switch s.state {
	case Resident:
		return s.obj, nil
	case Flushed:
		if s.pinned {
			return s.obj, nil
		}
		return nil, &StaleReferenceError{Ref: ref, State: Flushed}
	case NotLoaded:
		if t.loader == nil {
			return nil, &StaleReferenceError{Ref: ref, State: NotLoaded}
		}
		obj, err := t.loader.Load(ref, s.loc)
		if err != nil {
			return nil, err
		}
		s.obj = obj
		s.state = Resident
		return obj, nil
	}
	panic("unreachable")
}

// Free deletes the object ref.  The slot may be reused by a later call to
// [Table.Alloc] or [Table.Register], with an incremented generation
// number.  Other references to the object are not invalidated, but
// resolving them fails from now on.
func (t *Table) Free(ref Reference) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	s.state = Free
	s.obj = nil
	s.modified = true
	s.pinned = false
	if s.gen < maxGeneration {
		s.gen++
	}
	if s.gen < maxGeneration {
		t.pushFree(ref.Number())
	}
	return nil
}

// Flush marks the object ref as written.  Unless the slot is pinned, the
// in-memory copy of the object is released.
func (t *Table) Flush(ref Reference) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	s.state = Flushed
	s.modified = false
	if !s.pinned {
		s.obj = nil
	}
	return nil
}

// SetPinned controls whether the object stays in memory after it has been
// flushed.
func (t *Table) SetPinned(ref Reference, pinned bool) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	s.pinned = pinned
	if !pinned && s.state == Flushed {
		s.obj = nil
	}
	return nil
}

// SetObjectStream records that the object ref is stored at position index
// inside the object stream with object number stm.
func (t *Table) SetObjectStream(ref Reference, stm uint32, index int) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	s.loc = Location{Stream: stm, Index: index}
	return nil
}

// Location returns the storage location of the object ref in the
// underlying file.
func (t *Table) Location(ref Reference) (Location, bool) {
	s, err := t.live(ref)
	if err != nil {
		return Location{}, false
	}
	return s.loc, true
}

// Declare records an object which is stored in the underlying file.  This
// is used when reading the cross-reference table of a file.  If free is
// true, the slot is marked as free and ref holds the generation number to
// be used when the slot is reused.
func (t *Table) Declare(ref Reference, loc Location, free bool) {
	number := ref.Number()
	if number == 0 {
		return
	}
	for uint32(len(t.slots)) <= number {
		t.slots = append(t.slots, slot{})
	}
	s := &t.slots[number]
	if s.state == Free {
		t.removeFree(number)
	}
	s.gen = ref.Generation()
	s.loc = loc
	s.obj = nil
	s.modified = false
	s.pinned = false
	if free {
		s.state = Free
		if s.gen < maxGeneration {
			t.pushFree(number)
		}
	} else {
		s.state = NotLoaded
	}
}

// State returns the state of the slot for ref.  If ref does not match the
// current generation of the slot, the reference is reported as [Free].
func (t *Table) State(ref Reference) State {
	number := ref.Number()
	if number == 0 || int(number) >= len(t.slots) {
		return Unused
	}
	s := &t.slots[number]
	if s.state == Unused {
		return Unused
	}
	if s.gen != ref.Generation() {
		return Free
	}
	return s.state
}

// IsModified reports whether the object ref has been changed since it was
// read or last written.
func (t *Table) IsModified(ref Reference) bool {
	s, err := t.live(ref)
	if err != nil {
		return false
	}
	return s.modified
}

// SetModified marks the object ref as changed.
func (t *Table) SetModified(ref Reference) error {
	s, err := t.live(ref)
	if err != nil {
		return err
	}
	s.modified = true
	return nil
}

// Modified returns the slots which have been changed since they were read
// or last written, in order of increasing object number.  For freed slots,
// the returned reference holds the generation number for the next use of
// the slot.
func (t *Table) Modified() []Reference {
	var res []Reference
	for number := 1; number < len(t.slots); number++ {
		s := &t.slots[number]
		if s.modified {
			res = append(res, NewReference(uint32(number), s.gen))
		}
	}
	return res
}

// ClearModified resets the modified flag of all slots.
func (t *Table) ClearModified() {
	for i := range t.slots {
		t.slots[i].modified = false
	}
}

// Refs iterates over the references of all live objects, in order of
// increasing object number.
func (t *Table) Refs() iter.Seq[Reference] {
	return func(yield func(Reference) bool) {
		for number := 1; number < len(t.slots); number++ {
			s := &t.slots[number]
			if s.state == Unused || s.state == Free {
				continue
			}
			if !yield(NewReference(uint32(number), s.gen)) {
				return
			}
		}
	}
}

// live returns the slot for ref, if ref refers to a live object.
func (t *Table) live(ref Reference) (*slot, error) {
	number := ref.Number()
	if number == 0 || int(number) >= len(t.slots) {
		return nil, &StaleReferenceError{Ref: ref, State: Unused}
	}
	s := &t.slots[number]
	switch {
	case s.state == Unused:
		return nil, &StaleReferenceError{Ref: ref, State: Unused}
	case s.gen != ref.Generation(), s.state == Free:
		return nil, &StaleReferenceError{Ref: ref, State: Free}
	}
	return s, nil
}

func (t *Table) pushFree(number uint32) {
	i := sort.Search(len(t.free), func(i int) bool { return t.free[i] >= number })
	if i < len(t.free) && t.free[i] == number {
		return
	}
	t.free = append(t.free, 0)
	copy(t.free[i+1:], t.free[i:])
	t.free[i] = number
}

func (t *Table) removeFree(number uint32) {
	i := sort.Search(len(t.free), func(i int) bool { return t.free[i] >= number })
	if i < len(t.free) && t.free[i] == number {
		t.free = append(t.free[:i], t.free[i+1:]...)
	}
}
