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

// Package pdfcopy copies graphs of PDF objects from one document to
// another.
package pdfcopy

import (
	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/dedup"
)

// A Copier is used to copy objects from one PDF document to another.  The
// Copier keeps track of the objects that have already been copied and
// ensures that each object is copied only once.
//
// Indirect objects are allocated in the target document as needed, and
// references are translated accordingly.
type Copier struct {
	trans map[pdf.Reference]pdf.Reference
	r     pdf.Getter
	w     pdf.Putter

	filter CopyFilter

	// used in smart mode
	ser  *dedup.Serializer
	seen *dedup.Map
	hits int
}

// A CopyFilter decides which dictionary entries are copied.
type CopyFilter interface {
	// Keep reports whether the entry key with value val of the source
	// dictionary dict is copied.
	Keep(dict pdf.Dict, key pdf.Name, val pdf.Object) bool
}

// Option configures a [Copier].
type Option func(*Copier)

// WithSmartMode enables deduplication: an indirect dictionary or stream
// which is structurally equal to an object copied before is not copied
// again.  Instead, references to the object are redirected to the
// existing copy.
func WithSmartMode() Option {
	return func(c *Copier) {
		c.ser = dedup.NewSerializer(c.r, nil)
		c.seen = dedup.NewMap()
	}
}

// WithFilter sets a filter which can drop dictionary entries while copying.
func WithFilter(f CopyFilter) Option {
	return func(c *Copier) {
		c.filter = f
	}
}

// New creates a new Copier, which reads objects from r and writes them
// to w.
func New(w pdf.Putter, r pdf.Getter, opts ...Option) *Copier {
	c := &Copier{
		trans: make(map[pdf.Reference]pdf.Reference),
		w:     w,
		r:     r,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy copies an object from the source document to the target document,
// recursively.
//
// The returned object has the same type as the input object.
func (c *Copier) Copy(obj pdf.Object) (pdf.Object, error) {
	switch x := obj.(type) {
	case pdf.Dict:
		return c.CopyDict(x)
	case pdf.Array:
		return c.CopyArray(x)
	case *pdf.Stream:
		dict, err := c.CopyDict(x.Dict)
		if err != nil {
			return nil, err
		}
		res := &pdf.Stream{
			Dict: dict,
			R:    x.R,
		}
		return res, nil
	case pdf.Reference:
		return c.CopyReference(x)
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary from the source document to the target
// document.  Entries rejected by the copy filter are omitted.
func (c *Copier) CopyDict(obj pdf.Dict) (pdf.Dict, error) {
	res := pdf.Dict{}
	for key, val := range obj {
		if c.filter != nil && !c.filter.Keep(obj, key, val) {
			continue
		}
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res[key] = repl
	}
	return res, nil
}

// CopyArray copies an array from the source document to the target
// document.
func (c *Copier) CopyArray(obj pdf.Array) (pdf.Array, error) {
	res := make(pdf.Array, 0, len(obj))
	for _, val := range obj {
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res = append(res, repl)
	}
	return res, nil
}

// CopyReference copies an indirect object from the source document to the
// target document, and returns the reference of the copy.
//
// This method shortens chains of indirect references, the returned reference
// always points to a direct object.
func (c *Copier) CopyReference(obj pdf.Reference) (pdf.Reference, error) {
	newRef, ok := c.trans[obj]
	if ok {
		return newRef, nil
	}

	val, err := pdf.Resolve(c.r, obj)
	if err != nil {
		return 0, err
	}

	var form dedup.Form
	smart := c.ser != nil && dedup.Candidate(val)
	if smart {
		form = c.ser.Canonicalize(obj, 0)
		if existing, found := c.seen.Lookup(form); found {
			pdf.Logger().Debug("pdfcopy: duplicate object",
				"ref", obj, "target", existing)
			c.trans[obj] = existing
			c.hits++
			return existing, nil
		}
	}

	newRef = c.w.Alloc()
	c.trans[obj] = newRef
	if smart {
		c.seen.Remember(form, newRef)
	}

	copied, err := c.Copy(val)
	if err != nil {
		return 0, err
	}
	err = c.w.Put(newRef, copied)
	if err != nil {
		return 0, err
	}

	return newRef, nil
}

// Redirect makes all future references to origRef in the source document
// point to newRef in the target document.
func (c *Copier) Redirect(origRef, newRef pdf.Reference) {
	c.trans[origRef] = newRef
}

// Duplicates returns the number of objects which were not copied because
// an equal object had been copied before.  This is always zero unless
// smart mode is enabled.
func (c *Copier) Duplicates() int {
	return c.hits
}
