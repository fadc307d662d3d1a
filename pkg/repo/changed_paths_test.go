package repo

import (
	"errors"
	"testing"

	"github.com/odvcencio/restack/pkg/object"
)

func TestChangedPaths_IdenticalTrees(t *testing.T) {
	r := newTestRepo(t)
	tree := buildTestTree(t, r, map[string]string{
		"a.txt":     "alpha\n",
		"dir/b.txt": "beta\n",
	})

	changed, err := r.ChangedPaths(tree, tree)
	if err != nil {
		t.Fatalf("ChangedPaths: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("identical trees changed paths = %v, want none", sortedKeys(changed))
	}
}

func TestChangedPaths_AgainstNoTree(t *testing.T) {
	r := newTestRepo(t)
	tree := buildTestTree(t, r, map[string]string{
		"a.txt":         "alpha\n",
		"dir/b.txt":     "beta\n",
		"dir/sub/c.txt": "gamma\n",
	})

	changed, err := r.ChangedPathsSorted("", tree)
	if err != nil {
		t.Fatalf("ChangedPathsSorted: %v", err)
	}
	want := []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"}
	if !equalStrings(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
}

func TestChangedPaths_ContentAndAdditionsAndRemovals(t *testing.T) {
	r := newTestRepo(t)
	oldTree := buildTestTree(t, r, map[string]string{
		"kept.txt":        "same\n",
		"edited.txt":      "before\n",
		"removed.txt":     "going away\n",
		"dir/deep.txt":    "same deep\n",
		"dir/changed.txt": "old\n",
	})
	newTree := buildTestTree(t, r, map[string]string{
		"kept.txt":        "same\n",
		"edited.txt":      "after\n",
		"added.txt":       "brand new\n",
		"dir/deep.txt":    "same deep\n",
		"dir/changed.txt": "new\n",
	})

	changed, err := r.ChangedPathsSorted(oldTree, newTree)
	if err != nil {
		t.Fatalf("ChangedPathsSorted: %v", err)
	}
	want := []string{"added.txt", "dir/changed.txt", "edited.txt", "removed.txt"}
	if !equalStrings(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
}

// Subtrees with equal hashes must be skipped without being read. The
// shared subtree here is written once and referenced from both sides by
// hash; a dangling sibling subtree proves the skip, since descending into
// it would fail.
func TestChangedPaths_SkipsIdenticalSubtrees(t *testing.T) {
	r := newTestRepo(t)

	shared, err := r.Store.WriteTree(&object.TreeObj{
		Entries: []object.TreeEntry{
			{Name: "leaf.txt", Mode: object.TreeModeFile, BlobHash: writeTestBlob(t, r, "leaf\n")},
		},
	})
	if err != nil {
		t.Fatalf("write shared tree: %v", err)
	}

	// Never written to the store.
	dangling := object.HashBytes([]byte("not stored"))

	mkRoot := func(fileContent string) object.Hash {
		h, err := r.Store.WriteTree(&object.TreeObj{
			Entries: []object.TreeEntry{
				{Name: "dangling", IsDir: true, Mode: object.TreeModeDir, SubtreeHash: dangling},
				{Name: "file.txt", Mode: object.TreeModeFile, BlobHash: writeTestBlob(t, r, fileContent)},
				{Name: "shared", IsDir: true, Mode: object.TreeModeDir, SubtreeHash: shared},
			},
		})
		if err != nil {
			t.Fatalf("write root tree: %v", err)
		}
		return h
	}

	changed, err := r.ChangedPathsSorted(mkRoot("one\n"), mkRoot("two\n"))
	if err != nil {
		t.Fatalf("ChangedPathsSorted: %v", err)
	}
	want := []string{"file.txt"}
	if !equalStrings(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
}

func TestChangedPaths_ModeOnlyChange(t *testing.T) {
	r := newTestRepo(t)
	blob := writeTestBlob(t, r, "#!/bin/sh\n")

	mkTree := func(mode string) object.Hash {
		h, err := r.Store.WriteTree(&object.TreeObj{
			Entries: []object.TreeEntry{
				{Name: "run.sh", Mode: mode, BlobHash: blob},
			},
		})
		if err != nil {
			t.Fatalf("write tree: %v", err)
		}
		return h
	}

	changed, err := r.ChangedPathsSorted(mkTree(object.TreeModeFile), mkTree(object.TreeModeExecutable))
	if err != nil {
		t.Fatalf("ChangedPathsSorted: %v", err)
	}
	if !equalStrings(changed, []string{"run.sh"}) {
		t.Fatalf("changed = %v, want [run.sh]", changed)
	}
}

func TestChangedPaths_FileReplacedByDirectory(t *testing.T) {
	r := newTestRepo(t)
	oldTree := buildTestTree(t, r, map[string]string{
		"thing": "a plain file\n",
	})
	newTree := buildTestTree(t, r, map[string]string{
		"thing/a.txt": "now a dir\n",
		"thing/b.txt": "with two files\n",
	})

	changed, err := r.ChangedPathsSorted(oldTree, newTree)
	if err != nil {
		t.Fatalf("ChangedPathsSorted: %v", err)
	}
	want := []string{"thing", "thing/a.txt", "thing/b.txt"}
	if !equalStrings(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
}

func TestPathsTouchedByCommit(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"a.txt": "one\n",
		"b.txt": "two\n",
	})
	rootCommit, err := r.Store.ReadCommit(root)
	if err != nil {
		t.Fatalf("read root commit: %v", err)
	}

	child := commitFiles(t, r, map[string]string{
		"a.txt": "one changed\n",
		"b.txt": "two\n",
		"c.txt": "three\n",
	}, root)
	childCommit, err := r.Store.ReadCommit(child)
	if err != nil {
		t.Fatalf("read child commit: %v", err)
	}

	touched, err := r.PathsTouchedByCommit(rootCommit)
	if err != nil {
		t.Fatalf("PathsTouchedByCommit(root): %v", err)
	}
	if !equalStrings(sortedKeys(touched), []string{"a.txt", "b.txt"}) {
		t.Fatalf("root touched = %v", sortedKeys(touched))
	}

	touched, err = r.PathsTouchedByCommit(childCommit)
	if err != nil {
		t.Fatalf("PathsTouchedByCommit(child): %v", err)
	}
	if !equalStrings(sortedKeys(touched), []string{"a.txt", "c.txt"}) {
		t.Fatalf("child touched = %v", sortedKeys(touched))
	}
}

func TestPathsTouchedByCommit_MergeCommitRejected(t *testing.T) {
	r := newTestRepo(t)
	p1 := commitFiles(t, r, map[string]string{"a.txt": "one\n"})
	p2 := commitFiles(t, r, map[string]string{"b.txt": "two\n"})
	merge := commitFiles(t, r, map[string]string{"a.txt": "one\n", "b.txt": "two\n"}, p1, p2)

	mergeCommit, err := r.Store.ReadCommit(merge)
	if err != nil {
		t.Fatalf("read merge commit: %v", err)
	}
	if _, err := r.PathsTouchedByCommit(mergeCommit); !errors.Is(err, ErrMergeCommitUnsupported) {
		t.Fatalf("err = %v, want ErrMergeCommitUnsupported", err)
	}
}
