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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore"
)

func newPage(tab *pdf.Table) pdf.Reference {
	return tab.Register(pdf.Dict{"Type": pdf.Name("Page")}).(pdf.Reference)
}

// checkTree verifies the tree invariants, and that every page index is
// located correctly.
func checkTree(t *testing.T, tree *Tree, want []pdf.Reference) {
	t.Helper()

	err := tree.Check()
	if err != nil {
		t.Fatal(err)
	}
	if tree.NumPages() != len(want) {
		t.Fatalf("NumPages is %d, not %d", tree.NumPages(), len(want))
	}
	for i, ref := range want {
		got, err := tree.Page(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != ref {
			t.Fatalf("page %d: got %s, want %s", i, got, ref)
		}
		n := tree.Find(i)
		if n.Locate(i) != Within {
			t.Fatalf("page %d: Find returned wrong node", i)
		}
		if !containsLeaf(n, ref) {
			t.Fatalf("page %d: not a direct child of %s", i, n.Ref)
		}
	}
	if tree.Find(len(want)) != nil || tree.Find(-1) != nil {
		t.Fatal("Find succeeded for out of range index")
	}
}

func containsLeaf(n *Node, ref pdf.Reference) bool {
	for _, kid := range n.Kids {
		if kid == ref {
			return true
		}
	}
	return false
}

func TestAppend(t *testing.T) {
	for _, numPages := range []int{0, 1, MaxKids, MaxKids + 1, MaxKids*MaxKids + 1, 700} {
		tab := pdf.NewTable(nil)
		tree, err := New(tab)
		if err != nil {
			t.Fatal(err)
		}
		var pages []pdf.Reference
		for range numPages {
			page := newPage(tab)
			err := tree.Append(page)
			if err != nil {
				t.Fatal(err)
			}
			pages = append(pages, page)
		}
		checkTree(t, tree, pages)

		for ref, n := range tree.nodes {
			if len(n.Kids) > MaxKids {
				t.Errorf("%d pages: node %s has %d children", numPages, ref, len(n.Kids))
			}
		}
	}
}

func TestInsertRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tab := pdf.NewTable(nil)
	tree, err := New(tab)
	if err != nil {
		t.Fatal(err)
	}

	var pages []pdf.Reference
	for step := range 2000 {
		if len(pages) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(pages))
			ref, err := tree.Remove(i)
			if err != nil {
				t.Fatal(err)
			}
			if ref != pages[i] {
				t.Fatalf("step %d: removed %s instead of %s", step, ref, pages[i])
			}
			pages = append(pages[:i], pages[i+1:]...)
		} else {
			i := rng.Intn(len(pages) + 1)
			page := newPage(tab)
			err := tree.Insert(i, page)
			if err != nil {
				t.Fatal(err)
			}
			pages = append(pages[:i], append([]pdf.Reference{page}, pages[i:]...)...)
		}

		if step%97 == 0 {
			checkTree(t, tree, pages)
		}
	}
	checkTree(t, tree, pages)
}

func TestInvalidIndex(t *testing.T) {
	tab := pdf.NewTable(nil)
	tree, _ := New(tab)
	tree.Append(newPage(tab))

	if err := tree.Insert(2, newPage(tab)); err != ErrInvalidIndex {
		t.Errorf("Insert: got %v", err)
	}
	if _, err := tree.Remove(1); err != ErrInvalidIndex {
		t.Errorf("Remove: got %v", err)
	}
	if _, err := tree.Page(-1); err != ErrInvalidIndex {
		t.Errorf("Page: got %v", err)
	}

	root := tree.RootNode()
	if root.InsertLeaf(5, newPage(tab)) {
		t.Error("InsertLeaf succeeded out of range")
	}
	if root.RemoveLeaf(1) {
		t.Error("RemoveLeaf succeeded out of range")
	}
	if root.Count != 1 {
		t.Errorf("Count changed to %d", root.Count)
	}
}

func TestLocate(t *testing.T) {
	n := &Node{From: 10, Count: 5}
	cases := []struct {
		idx  int
		want Position
	}{
		{0, Before},
		{9, Before},
		{10, Within},
		{14, Within},
		{15, After},
		{100, After},
	}
	for _, c := range cases {
		if got := n.Locate(c.idx); got != c.want {
			t.Errorf("Locate(%d) = %s, want %s", c.idx, got, c.want)
		}
	}
}

func TestCascadingRemove(t *testing.T) {
	tab := pdf.NewTable(nil)
	tree, _ := New(tab)
	root := tree.RootNode()

	// root -> a -> b -> page
	a := tree.newNode()
	b := tree.newNode()
	page := newPage(tab)
	b.AddLeaf(page)
	a.MergeSubtree(b)
	root.MergeSubtree(a)
	other := newPage(tab)
	root.AddLeaf(other)
	if err := tree.Sync(); err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree, []pdf.Reference{page, other})
	if a.Count != 1 || b.Count != 1 || root.Count != 2 {
		t.Fatalf("wrong counts %d %d %d", root.Count, a.Count, b.Count)
	}

	if !root.RemoveLeaf(0) {
		t.Fatal("RemoveLeaf failed")
	}
	if err := tree.Sync(); err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree, []pdf.Reference{other})
	if d := cmp.Diff([]pdf.Reference{other}, root.Kids); d != "" {
		t.Error(d)
	}
	if tab.State(a.Ref) != pdf.Free || tab.State(b.Ref) != pdf.Free {
		t.Error("empty nodes were not freed")
	}

	// The root stays, even if it is empty.
	if _, err := tree.Remove(0); err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree, nil)
	if tab.State(tree.Root()) != pdf.Resident {
		t.Error("root node was freed")
	}
}

func TestMergeSubtree(t *testing.T) {
	tab := pdf.NewTable(nil)
	tree, _ := New(tab)
	root := tree.RootNode()
	p0 := newPage(tab)
	root.AddLeaf(p0)

	sub := tree.newNode()
	p1, p2 := newPage(tab), newPage(tab)
	sub.AddLeaf(p1)
	sub.AddLeaf(p2)

	if !root.MergeSubtree(sub) {
		t.Fatal("MergeSubtree failed")
	}
	if root.MergeSubtree(sub) {
		t.Error("node was attached twice")
	}
	if sub.MergeSubtree(root) {
		t.Error("root was attached to a child")
	}
	if err := tree.Sync(); err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree, []pdf.Reference{p0, p1, p2})
	if sub.From != 1 {
		t.Errorf("From is %d, not 1", sub.From)
	}
}

func TestWriteBack(t *testing.T) {
	tab := pdf.NewTable(nil)
	tree, _ := New(tab)
	var pages []pdf.Reference
	for range 40 {
		page := newPage(tab)
		tree.Append(page)
		pages = append(pages, page)
	}

	rootDict, err := pdf.GetDict(tab, tree.Root())
	if err != nil {
		t.Fatal(err)
	}
	if rootDict["Count"] != pdf.Integer(40) || rootDict["Type"] != pdf.Name("Pages") {
		t.Errorf("wrong root dict %v", pdf.Format(rootDict))
	}
	if _, hasParent := rootDict["Parent"]; hasParent {
		t.Error("root has /Parent")
	}
	for i, page := range pages {
		dict, _ := pdf.GetDict(tab, page)
		if dict["Parent"] != tree.Find(i).Ref {
			t.Errorf("page %d: wrong /Parent", i)
		}
	}

	// reading the tree back gives the same structure
	tree2, err := Read(tab, tree.Root())
	if err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree2, pages)
	if len(tree2.dirty) != 0 {
		t.Error("freshly written tree needs repairs")
	}
}

func TestReadRepairs(t *testing.T) {
	tab := pdf.NewTable(nil)
	root := tab.Alloc()
	inner := tab.Alloc()
	p0 := newPage(tab)
	p1 := newPage(tab)

	tab.Put(inner, pdf.Dict{
		"Type":   pdf.Name("Pages"),
		"Kids":   pdf.Array{p1, root, p1}, // cycle and repeated page
		"Count":  pdf.Integer(17),
		"Parent": root,
	})
	tab.Put(root, pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     pdf.Array{p0, inner},
		"Count":    pdf.Integer(99),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(100), pdf.Integer(100)},
	})

	tree, err := Read(tab, root)
	if err != nil {
		t.Fatal(err)
	}
	checkTree(t, tree, []pdf.Reference{p0, p1})

	err = tree.Sync()
	if err != nil {
		t.Fatal(err)
	}
	rootDict, _ := pdf.GetDict(tab, root)
	if rootDict["Count"] != pdf.Integer(2) {
		t.Errorf("wrong /Count %v", rootDict["Count"])
	}
	if _, hasMediaBox := rootDict["MediaBox"]; !hasMediaBox {
		t.Error("inherited attribute was lost")
	}
	innerDict, _ := pdf.GetDict(tab, inner)
	if d := cmp.Diff(pdf.Array{p1}, innerDict["Kids"]); d != "" {
		t.Error(d)
	}
}

func TestNodeChangesWrittenBySync(t *testing.T) {
	tab := pdf.NewTable(nil)
	tree, err := New(tab)
	if err != nil {
		t.Fatal(err)
	}
	first := newPage(tab)
	err = tree.Append(first)
	if err != nil {
		t.Fatal(err)
	}

	root := tree.RootNode()
	added := newPage(tab)
	root.AddLeaf(added)
	inserted := newPage(tab)
	if !root.InsertLeaf(0, inserted) {
		t.Fatal("InsertLeaf failed")
	}

	// the document is not changed yet
	dict, _ := pdf.GetDict(tab, added)
	if _, hasParent := dict["Parent"]; hasParent {
		t.Error("/Parent written before Sync")
	}
	rootDict, _ := pdf.GetDict(tab, tree.Root())
	if rootDict["Count"] != pdf.Integer(1) {
		t.Errorf("/Count written before Sync: %v", rootDict["Count"])
	}

	err = tree.Sync()
	if err != nil {
		t.Fatal(err)
	}
	for _, page := range []pdf.Reference{first, added, inserted} {
		dict, _ := pdf.GetDict(tab, page)
		if dict["Parent"] != tree.Root() {
			t.Errorf("%s: wrong /Parent %v", page, dict["Parent"])
		}
	}
	rootDict, _ = pdf.GetDict(tab, tree.Root())
	if rootDict["Count"] != pdf.Integer(3) {
		t.Errorf("wrong /Count %v", rootDict["Count"])
	}
	checkTree(t, tree, []pdf.Reference{inserted, first, added})
}
