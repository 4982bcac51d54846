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

package pagetree

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"seehuhn.de/go/pdfcore"
)

// MaxKids is the maximal number of children for the nodes created by
// [Tree.Append] and [Tree.Insert].
const MaxKids = 16

// ErrInvalidIndex is returned when a page index is out of range.
var ErrInvalidIndex = errors.New("page index out of range")

// Store is the object storage used by a page tree.  This is implemented
// by [*pdf.Table] and [*pdf.Document].
//
// If the store also has a method Free(pdf.Reference) error, the
// dictionaries of nodes which are removed from the tree are freed.
type Store interface {
	pdf.Getter
	pdf.Putter
}

type freer interface {
	Free(pdf.Reference) error
}

// Tree is the page tree of a document.
//
// After every change, the dictionaries of all modified nodes and the
// /Parent entries of all moved pages are written back into the store.
type Tree struct {
	store Store
	root  *Node
	nodes map[pdf.Reference]*Node

	dirty   map[pdf.Reference]bool
	removed []pdf.Reference
}

func newTree(store Store) *Tree {
	return &Tree{
		store: store,
		nodes: make(map[pdf.Reference]*Node),
		dirty: make(map[pdf.Reference]bool),
	}
}

// New creates an empty page tree.  A new object is allocated in store for
// the root node.
func New(store Store) (*Tree, error) {
	t := newTree(store)
	t.root = t.newNode()
	t.nodes[t.root.Ref] = t.root
	err := t.Sync()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Read loads the page tree with root node root from store.
//
// Repeated nodes and pages, and any cycles, are dropped from the tree with
// a warning.  The /Count values stored in the file are not trusted.  If
// they are wrong, they are corrected in the store on the next change of the
// tree, or by an explicit call to [Tree.Sync].
func Read(store Store, root pdf.Reference) (*Tree, error) {
	t := newTree(store)

	dict, err := pdf.GetDict(store, root)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, fmt.Errorf("page tree root %s not found", root)
	}

	seen := map[pdf.Reference]bool{root: true}
	t.root, err = t.readNode(root, dict, 0, seen)
	if err != nil {
		return nil, err
	}
	t.renumber()
	return t, nil
}

func (t *Tree) readNode(ref pdf.Reference, dict pdf.Dict, parent pdf.Reference, seen map[pdf.Reference]bool) (*Node, error) {
	n := &Node{Ref: ref, Parent: parent, tree: t}
	t.nodes[ref] = n

	kids, err := pdf.GetArray(t.store, dict["Kids"])
	if err != nil {
		return nil, pdf.Wrap(err, "page tree node "+ref.String())
	}
	for _, kid := range kids {
		kidRef, isReference := kid.(pdf.Reference)
		if !isReference || seen[kidRef] {
			pdf.Logger().Warn("page tree: skipping invalid child",
				"node", ref, "child", pdf.Format(kid))
			t.dirty[ref] = true
			continue
		}
		seen[kidRef] = true

		kidDict, err := pdf.GetDict(t.store, kidRef)
		if err != nil {
			return nil, pdf.Wrap(err, "page tree node "+ref.String())
		}
		if kidDict == nil {
			pdf.Logger().Warn("page tree: skipping missing child",
				"node", ref, "child", kidRef)
			t.dirty[ref] = true
			continue
		}

		if isNodeDict(kidDict) {
			child, err := t.readNode(kidRef, kidDict, ref, seen)
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, kidRef)
			n.Count += child.Count
		} else {
			n.Kids = append(n.Kids, kidRef)
			n.Count++
			if kidDict["Parent"] != ref {
				t.dirty[ref] = true
			}
		}
	}

	storedCount, _ := dict["Count"].(pdf.Integer)
	storedParent, _ := dict["Parent"].(pdf.Reference)
	if int(storedCount) != n.Count || storedParent != parent {
		t.dirty[ref] = true
	}
	return n, nil
}

func isNodeDict(dict pdf.Dict) bool {
	tp, _ := dict["Type"].(pdf.Name)
	if tp == "Pages" {
		return true
	}
	_, hasKids := dict["Kids"]
	return tp == "" && hasKids
}

// Root returns the reference of the root node.  This is the value of the
// /Pages entry in the document catalog.  The root reference never changes.
func (t *Tree) Root() pdf.Reference {
	return t.root.Ref
}

// RootNode returns the root node of the tree.
func (t *Tree) RootNode() *Node {
	return t.root
}

// NumPages returns the number of pages in the tree.
func (t *Tree) NumPages() int {
	return t.root.Count
}

// Find returns the deepest node which contains page idx.  If idx is out of
// range, nil is returned.
func (t *Tree) Find(idx int) *Node {
	if t.root.Locate(idx) != Within {
		return nil
	}
	n := t.root
descend:
	for {
		for _, kid := range n.Kids {
			child, isNode := t.nodes[kid]
			if isNode && child.Locate(idx) == Within {
				n = child
				continue descend
			}
		}
		return n
	}
}

// Page returns the reference of page idx.
func (t *Tree) Page(idx int) (pdf.Reference, error) {
	n := t.Find(idx)
	if n == nil {
		return 0, ErrInvalidIndex
	}
	pos := n.From
	for _, kid := range n.Kids {
		if _, isNode := t.nodes[kid]; !isNode && pos == idx {
			return kid, nil
		}
		pos += t.count(kid)
	}
	panic("unreachable")
}

// Append adds a page at the end of the document.
func (t *Tree) Append(page pdf.Reference) error {
	path := []*Node{t.root}
	for {
		n := path[len(path)-1]
		if len(n.Kids) == 0 {
			break
		}
		child, isNode := t.nodes[n.Kids[len(n.Kids)-1]]
		if !isNode {
			break
		}
		path = append(path, child)
	}

	k := len(path) - 1
	for k >= 0 && len(path[k].Kids) >= MaxKids {
		k--
	}
	if k < 0 {
		t.pushDown()
		return t.Append(page)
	}

	if k == len(path)-1 {
		path[k].AddLeaf(page)
		return t.Sync()
	}

	// Create a chain of new nodes, so that the new page is at the same
	// depth as the previous last page.
	sub := t.newNode()
	sub.AddLeaf(page)
	for range len(path) - 2 - k {
		up := t.newNode()
		up.MergeSubtree(sub)
		sub = up
	}
	path[k].MergeSubtree(sub)
	return t.Sync()
}

// Insert inserts a page so that it becomes page number idx.  Valid
// indices are 0 to [Tree.NumPages], inclusive.
func (t *Tree) Insert(idx int, page pdf.Reference) error {
	if idx < 0 || idx > t.NumPages() {
		return ErrInvalidIndex
	}
	if idx == t.NumPages() {
		return t.Append(page)
	}

	n := t.Find(idx)
	if !n.InsertLeaf(idx, page) {
		panic("unreachable")
	}
	t.split(n)
	return t.Sync()
}

// Remove removes page idx from the tree and returns its reference.
func (t *Tree) Remove(idx int) (pdf.Reference, error) {
	page, err := t.Page(idx)
	if err != nil {
		return 0, err
	}
	if !t.root.RemoveLeaf(idx) {
		panic("unreachable")
	}
	return page, t.Sync()
}

// Sync writes all modified node dictionaries, and the /Parent entries of
// the pages below them, to the store.  Nodes which have been removed from
// the tree are freed, if the store supports this.
//
// The methods of Tree call Sync automatically.  An explicit call is only
// needed after using the methods of [Node] directly.
func (t *Tree) Sync() error {
	refs := maps.Keys(t.dirty)
	slices.Sort(refs)
	for _, ref := range refs {
		n, attached := t.nodes[ref]
		if !attached {
			continue
		}
		err := t.writeNode(n)
		if err != nil {
			return err
		}
		delete(t.dirty, ref)
	}

	if f, canFree := t.store.(freer); canFree {
		for _, ref := range t.removed {
			err := f.Free(ref)
			if err != nil {
				return err
			}
		}
	}
	t.removed = t.removed[:0]
	return nil
}

func (t *Tree) writeNode(n *Node) error {
	old, err := pdf.GetDict(t.store, n.Ref)
	if err != nil {
		return err
	}
	dict := pdf.Dict{}
	if old != nil {
		dict = maps.Clone(old)
	}
	kids := make(pdf.Array, len(n.Kids))
	for i, kid := range n.Kids {
		kids[i] = kid
	}
	dict["Type"] = pdf.Name("Pages")
	dict["Kids"] = kids
	dict["Count"] = pdf.Integer(n.Count)
	if n.Parent != 0 {
		dict["Parent"] = n.Parent
	} else {
		delete(dict, "Parent")
	}
	err = t.store.Put(n.Ref, dict)
	if err != nil {
		return err
	}

	for _, kid := range n.Kids {
		if _, isNode := t.nodes[kid]; isNode {
			continue
		}
		page, err := pdf.GetDict(t.store, kid)
		if err != nil {
			return pdf.Wrap(err, "page "+kid.String())
		}
		if page["Parent"] == n.Ref {
			continue
		}
		page = maps.Clone(page)
		if page == nil {
			page = pdf.Dict{"Type": pdf.Name("Page")}
		}
		page["Parent"] = n.Ref
		err = t.store.Put(kid, page)
		if err != nil {
			return err
		}
	}
	return nil
}

// Check verifies the invariants of the tree: every node's /Count equals
// the number of pages below it, the From fields are correct, and all
// parent links agree with the Kids arrays.
func (t *Tree) Check() error {
	seen := make(map[pdf.Reference]bool)
	var check func(n *Node, from int) (int, error)
	check = func(n *Node, from int) (int, error) {
		if seen[n.Ref] {
			return 0, fmt.Errorf("%s: repeated node", n.Ref)
		}
		seen[n.Ref] = true
		if n.From != from {
			return 0, fmt.Errorf("%s: From is %d, not %d", n.Ref, n.From, from)
		}
		count := 0
		for _, kid := range n.Kids {
			child, isNode := t.nodes[kid]
			if !isNode {
				if seen[kid] {
					return 0, fmt.Errorf("%s: repeated page %s", n.Ref, kid)
				}
				seen[kid] = true
				count++
				continue
			}
			if child.Parent != n.Ref {
				return 0, fmt.Errorf("%s: wrong parent %s", kid, child.Parent)
			}
			c, err := check(child, from+count)
			if err != nil {
				return 0, err
			}
			count += c
		}
		if count != n.Count {
			return 0, fmt.Errorf("%s: Count is %d, not %d", n.Ref, n.Count, count)
		}
		return count, nil
	}

	if t.root.Parent != 0 {
		return errors.New("root node has a parent")
	}
	_, err := check(t.root, 0)
	if err != nil {
		return err
	}
	for ref := range t.nodes {
		if !seen[ref] {
			return fmt.Errorf("%s: node not reachable from the root", ref)
		}
	}
	return nil
}

// newNode allocates a new node, which is not yet attached to the tree.
func (t *Tree) newNode() *Node {
	n := &Node{Ref: t.store.Alloc(), tree: t}
	t.dirty[n.Ref] = true
	return n
}

func (t *Tree) parentOf(n *Node) *Node {
	if n.Parent == 0 {
		return nil
	}
	return t.nodes[n.Parent]
}

// count returns the number of pages represented by the child kid.
func (t *Tree) count(kid pdf.Reference) int {
	if child, isNode := t.nodes[kid]; isNode {
		return child.Count
	}
	return 1
}

// changeCount adds delta to the count of n and all its ancestors.
func (t *Tree) changeCount(n *Node, delta int) {
	for a := n; a != nil; a = t.parentOf(a) {
		a.Count += delta
		t.dirty[a.Ref] = true
	}
}

// detachEmpty removes n from the tree if it has become empty.  This
// continues upwards as long as the parent becomes empty, too.
func (t *Tree) detachEmpty(n *Node) {
	for n.Count == 0 && n.Parent != 0 {
		p := t.parentOf(n)
		p.Kids = slices.DeleteFunc(p.Kids, func(kid pdf.Reference) bool {
			return kid == n.Ref
		})
		t.dirty[p.Ref] = true

		delete(t.nodes, n.Ref)
		delete(t.dirty, n.Ref)
		t.removed = append(t.removed, n.Ref)
		n.Parent = 0
		n = p
	}
}

// renumber recomputes the From fields of all nodes.
func (t *Tree) renumber() {
	var walk func(n *Node, from int)
	walk = func(n *Node, from int) {
		n.From = from
		pos := from
		for _, kid := range n.Kids {
			if child, isNode := t.nodes[kid]; isNode {
				walk(child, pos)
				pos += child.Count
			} else {
				pos++
			}
		}
	}
	walk(t.root, 0)
}

// pushDown moves all children of the root into a new node, which becomes
// the only child of the root.
func (t *Tree) pushDown() {
	root := t.root
	c := t.newNode()
	c.Kids = root.Kids
	c.Count = root.Count
	c.Parent = root.Ref
	for _, kid := range c.Kids {
		if child, isNode := t.nodes[kid]; isNode {
			child.Parent = c.Ref
			t.dirty[kid] = true
		}
	}
	t.nodes[c.Ref] = c
	root.Kids = []pdf.Reference{c.Ref}
	t.dirty[root.Ref] = true
	t.renumber()
}

// split divides n, and if needed its ancestors, until no node has more
// than MaxKids children.
func (t *Tree) split(n *Node) {
	for n != nil && len(n.Kids) > MaxKids {
		if n == t.root {
			t.pushDown()
			n = t.nodes[t.root.Kids[0]]
		}
		p := t.parentOf(n)

		h := len(n.Kids) / 2
		sib := t.newNode()
		sib.Parent = p.Ref
		sib.Kids = slices.Clone(n.Kids[h:])
		n.Kids = slices.Clip(n.Kids[:h])
		for _, kid := range sib.Kids {
			if child, isNode := t.nodes[kid]; isNode {
				child.Parent = sib.Ref
				t.dirty[kid] = true
			}
			sib.Count += t.count(kid)
		}
		n.Count -= sib.Count
		t.nodes[sib.Ref] = sib
		t.dirty[n.Ref] = true

		i := slices.Index(p.Kids, n.Ref)
		p.Kids = slices.Insert(p.Kids, i+1, sib.Ref)
		t.dirty[p.Ref] = true

		n = p
	}
	t.renumber()
}
