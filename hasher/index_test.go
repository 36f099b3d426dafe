package hasher

import (
	"fmt"
	"sync"
	"testing"
)

func TestIndexDuplicateGroups(t *testing.T) {
	ix := NewIndex()
	ix.Insert("bbb", "C.pf")
	ix.Insert("aaa", "A.pf")
	ix.Insert("bbb", "B.pf")
	ix.Insert("ccc", "D.pf")

	groups := ix.DuplicateGroups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	g := groups[0]
	if g.Digest != "bbb" {
		t.Errorf("unexpected digest: %s", g.Digest)
	}
	if len(g.Files) != 2 || g.Files[0] != "B.pf" || g.Files[1] != "C.pf" {
		t.Errorf("expected sorted members [B.pf C.pf], got %v", g.Files)
	}
}

func TestIndexSingletonsNeverGrouped(t *testing.T) {
	ix := NewIndex()
	ix.Insert("aaa", "A.pf")
	if groups := ix.DuplicateGroups(); len(groups) != 0 {
		t.Fatalf("a file matching only itself must not be flagged: %v", groups)
	}
}

func TestIndexGroupOrderDeterministic(t *testing.T) {
	build := func() []Group {
		ix := NewIndex()
		ix.Insert("zzz", "F.pf")
		ix.Insert("zzz", "E.pf")
		ix.Insert("mmm", "B.pf")
		ix.Insert("mmm", "A.pf")
		return ix.DuplicateGroups()
	}
	first := build()
	second := build()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 groups, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Digest != second[i].Digest {
			t.Errorf("group order not deterministic at %d: %s != %s", i, first[i].Digest, second[i].Digest)
		}
	}
	if first[0].Digest != "mmm" {
		t.Errorf("groups should be sorted by digest, got %s first", first[0].Digest)
	}
}

func TestIndexConcurrentInsert(t *testing.T) {
	ix := NewIndex()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ix.Insert("shared", fmt.Sprintf("file-%02d.pf", i))
		}()
	}
	wg.Wait()

	groups := ix.DuplicateGroups()
	if len(groups) != 1 || len(groups[0].Files) != 16 {
		t.Fatalf("expected one group of 16, got %v", groups)
	}
}
