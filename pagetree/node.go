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

// Package pagetree maintains the page tree of a PDF document.
//
// The page tree is a tree of /Pages dictionaries, with the page
// dictionaries as leaves.  Every node stores the number of pages below it
// in /Count.  This package keeps the nodes in memory, maintains the /Count
// of every node when pages are added or removed, and writes the changed
// dictionaries back into the document.
package pagetree

import (
	"slices"

	"seehuhn.de/go/pdfcore"
)

// Position describes where a page index lies relative to a node.
type Position int

// These are the possible results of [Node.Locate].
const (
	Before Position = iota - 1
	Within
	After
)

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case Within:
		return "within"
	case After:
		return "after"
	default:
		return "invalid position"
	}
}

// Node is an intermediate node of a page tree.
//
// Nodes are owned by a [Tree].  The fields must not be modified directly,
// use the methods of Node and Tree instead.
//
// The methods of Node only change the in-memory tree.  The node
// dictionaries, and the /Parent entries of the pages, are written to the
// document by [Tree.Sync].
type Node struct {
	// Ref is the reference of the /Pages dictionary for this node.
	Ref pdf.Reference

	// Parent is the reference of the parent node, or 0 for the root.
	Parent pdf.Reference

	// Kids lists the children of the node, in page order.  Every child
	// is either a page, or a node of the same tree.
	Kids []pdf.Reference

	// Count is the number of pages below this node.
	Count int

	// From is the index of the first page below this node, counted from
	// the start of the document.
	From int

	tree *Tree
}

// AddLeaf appends a page at the end of the node's children.  The /Count
// of the node and of all its ancestors is increased by one.  The /Parent
// entry of the page is set on the next call to [Tree.Sync].
func (n *Node) AddLeaf(page pdf.Reference) {
	n.Kids = append(n.Kids, page)
	n.tree.changeCount(n, 1)
	n.tree.renumber()
}

// InsertLeaf inserts page so that it becomes page number idx of the
// document.  If idx is not in the range from n.From to n.From+n.Count
// (inclusive), the node is not modified and false is returned.
//
// If the new page falls inside the range of a child node, the page is
// inserted into the child.  As for [Node.AddLeaf], the /Parent entry of
// the page is only written by [Tree.Sync].
func (n *Node) InsertLeaf(idx int, page pdf.Reference) bool {
	if idx < n.From || idx > n.From+n.Count {
		return false
	}

	pos := n.From
	for j, kid := range n.Kids {
		if pos == idx {
			n.Kids = slices.Insert(n.Kids, j, page)
			n.tree.changeCount(n, 1)
			n.tree.renumber()
			return true
		}
		count := n.tree.count(kid)
		if idx < pos+count {
			return n.tree.nodes[kid].InsertLeaf(idx, page)
		}
		pos += count
	}
	n.AddLeaf(page)
	return true
}

// RemoveLeaf removes page number idx of the document from the tree.  If idx
// is not in the range n.From to n.From+n.Count-1, the node is not modified
// and false is returned.
//
// Nodes which become empty are removed from the tree.  This can cascade
// upwards towards the root.  The root itself is never removed.
func (n *Node) RemoveLeaf(idx int) bool {
	if n.Locate(idx) != Within {
		return false
	}

	pos := n.From
	for j, kid := range n.Kids {
		count := n.tree.count(kid)
		if idx >= pos+count {
			pos += count
			continue
		}

		if child, isNode := n.tree.nodes[kid]; isNode {
			return child.RemoveLeaf(idx)
		}
		n.Kids = slices.Delete(n.Kids, j, j+1)
		n.tree.changeCount(n, -1)
		n.tree.detachEmpty(n)
		n.tree.renumber()
		return true
	}
	return false
}

// Locate reports whether the page with index idx lies before, within or
// after the range of pages below n.
func (n *Node) Locate(idx int) Position {
	switch {
	case idx < n.From:
		return Before
	case idx >= n.From+n.Count:
		return After
	default:
		return Within
	}
}

// MergeSubtree attaches the node other as the last child of n.  The
// /Count of n and of all ancestors is increased by the number of pages
// below other.
//
// The node other must not have a parent, and must not be the root of the
// tree containing n.  If these conditions are not met, nothing is changed
// and false is returned.
func (n *Node) MergeSubtree(other *Node) bool {
	if other == nil || other.Parent != 0 || other == n.tree.root || other.tree != n.tree {
		return false
	}
	for a := n; a != nil; a = n.tree.parentOf(a) {
		if a == other {
			return false
		}
	}

	n.tree.nodes[other.Ref] = other
	other.Parent = n.Ref
	n.tree.dirty[other.Ref] = true
	n.Kids = append(n.Kids, other.Ref)
	n.tree.changeCount(n, other.Count)
	n.tree.renumber()
	return true
}
