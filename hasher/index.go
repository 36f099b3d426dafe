package hasher

import (
	"sort"
	"sync"
)

// Index accumulates the digest → file name mapping for one run. Insert is the
// only synchronization point of the pipeline; every other per-file derivation
// is independent.
type Index struct {
	mu     sync.Mutex
	groups map[string][]string
}

// Group is one set of files sharing a content digest.
type Group struct {
	Digest string
	Files  []string
}

func NewIndex() *Index {
	return &Index{groups: make(map[string][]string)}
}

// Insert records that the named file hashed to digest. Safe for concurrent use.
func (ix *Index) Insert(digest, name string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.groups[digest] = append(ix.groups[digest], name)
}

// Len returns the number of distinct digests seen.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.groups)
}

// DuplicateGroups returns every group with two or more members, digests and
// member names sorted so identical runs produce identical output.
func (ix *Index) DuplicateGroups() []Group {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var dups []Group
	for digest, files := range ix.groups {
		if len(files) < 2 {
			continue
		}
		members := make([]string, len(files))
		copy(members, files)
		sort.Strings(members)
		dups = append(dups, Group{Digest: digest, Files: members})
	}
	sort.Slice(dups, func(i, j int) bool {
		return dups[i].Digest < dups[j].Digest
	})
	return dups
}
