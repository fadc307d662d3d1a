package repo

import (
	"sort"
	"testing"
	"time"

	"github.com/odvcencio/restack/pkg/object"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeTestBlob(t *testing.T, r *Repo, content string) object.Hash {
	t.Helper()
	h, err := r.Store.WriteBlob(&object.Blob{Data: []byte(content)})
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return h
}

// buildTestTree writes a tree holding the given path -> content files, all
// with the regular file mode.
func buildTestTree(t *testing.T, r *Repo, files map[string]string) object.Hash {
	t.Helper()
	stg := &Staging{Entries: make(map[string]*StagingEntry)}
	for p, content := range files {
		stg.Entries[p] = &StagingEntry{
			Path:     p,
			BlobHash: writeTestBlob(t, r, content),
			Mode:     object.TreeModeFile,
		}
	}
	h, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return h
}

func writeTestCommit(t *testing.T, r *Repo, tree object.Hash, parents ...object.Hash) object.Hash {
	t.Helper()
	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  tree,
		Parents:   parents,
		Author:    "test <test@example.com>",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix(),
		Message:   "test commit",
	})
	if err != nil {
		t.Fatalf("write commit: %v", err)
	}
	return h
}

// commitFiles writes a tree from files plus a commit on top of parents.
func commitFiles(t *testing.T, r *Repo, files map[string]string, parents ...object.Hash) object.Hash {
	t.Helper()
	return writeTestCommit(t, r, buildTestTree(t, r, files), parents...)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flattenToPathContent reads every file of a tree into a path -> content map.
func flattenToPathContent(t *testing.T, r *Repo, tree object.Hash) map[string]string {
	t.Helper()
	entries, err := r.FlattenTree(tree)
	if err != nil {
		t.Fatalf("flatten tree: %v", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		blob, err := r.Store.ReadBlob(e.BlobHash)
		if err != nil {
			t.Fatalf("read blob %s: %v", e.BlobHash, err)
		}
		out[e.Path] = string(blob.Data)
	}
	return out
}
