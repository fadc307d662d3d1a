package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/restack/pkg/object"
)

func writeWorkFile(t *testing.T, r *Repo, path, content string) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir for %q: %v", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestAmendFast_FromIndex(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"other.txt": "untouched\n"})
	commit := commitFiles(t, r, map[string]string{
		"other.txt":   "untouched\n",
		"initial.txt": "initial contents\n",
	}, root)

	writeWorkFile(t, r, "initial.txt", "updated contents\n")
	if err := r.Add([]string{"initial.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	treeHash, err := r.AmendFast(commit, FromIndex{Paths: []string{"initial.txt"}})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}

	got := flattenToPathContent(t, r, treeHash)
	if got["initial.txt"] != "updated contents\n" {
		t.Fatalf("initial.txt = %q, want staged contents", got["initial.txt"])
	}
	if got["other.txt"] != "untouched\n" {
		t.Fatalf("other.txt = %q, want untouched", got["other.txt"])
	}
}

func TestAmendFast_FromIndexMissingEntryIsRemoval(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"keep.txt": "kept\n"})
	commit := commitFiles(t, r, map[string]string{
		"keep.txt":  "kept\n",
		"gone.txt":  "to be removed\n",
		"other.txt": "also here\n",
	}, root)

	treeHash, err := r.AmendFast(commit, FromIndex{Paths: []string{"gone.txt"}})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}

	got := flattenToPathContent(t, r, treeHash)
	if _, ok := got["gone.txt"]; ok {
		t.Fatalf("requested path without staging entry survived: %v", got)
	}
	if got["other.txt"] != "also here\n" {
		t.Fatalf("other.txt = %q, want untouched", got["other.txt"])
	}
}

// A staging entry carrying the zero OID is defect state; the amend treats
// it as a removal rather than writing it into a tree.
func TestAmendFast_FromIndexZeroOIDEntryIsRemoval(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"keep.txt": "kept\n"})
	commit := commitFiles(t, r, map[string]string{
		"keep.txt":   "kept\n",
		"broken.txt": "committed contents\n",
	}, root)

	stg := &Staging{Entries: map[string]*StagingEntry{
		"broken.txt": {Path: "broken.txt", BlobHash: object.ZeroHash, Mode: object.TreeModeFile},
	}}
	if err := r.WriteStaging(stg); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}

	treeHash, err := r.AmendFast(commit, FromIndex{Paths: []string{"broken.txt"}})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}
	got := flattenToPathContent(t, r, treeHash)
	if _, ok := got["broken.txt"]; ok {
		t.Fatalf("zero-OID staging entry survived: %v", got)
	}
	if got["keep.txt"] != "kept\n" {
		t.Fatalf("keep.txt = %q, want untouched", got["keep.txt"])
	}
}

func TestAmendFast_FromWorkingCopy(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"a.txt": "base\n"})
	commit := commitFiles(t, r, map[string]string{
		"a.txt": "base\n",
		"b.txt": "committed b\n",
	}, root)

	writeWorkFile(t, r, "b.txt", "working copy b\n")

	entries := []StatusEntry{{
		IndexStatus:    StatusUnmodified,
		WorktreeStatus: StatusModified,
		Path:           "b.txt",
		WorktreeMode:   object.TreeModeFile,
	}}
	treeHash, err := r.AmendFast(commit, FromWorkingCopy{Entries: entries})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}

	got := flattenToPathContent(t, r, treeHash)
	if got["b.txt"] != "working copy b\n" {
		t.Fatalf("b.txt = %q, want working copy contents", got["b.txt"])
	}
	if got["a.txt"] != "base\n" {
		t.Fatalf("a.txt = %q, want untouched", got["a.txt"])
	}
}

func TestAmendFast_FromWorkingCopyDeleteLastFileYieldsEmptyTree(t *testing.T) {
	r := newTestRepo(t)
	commit := commitFiles(t, r, map[string]string{"initial.txt": "initial contents\n"})

	// The file is never written to the working copy, so it reads as deleted.
	entries := []StatusEntry{{
		IndexStatus:    StatusUnmodified,
		WorktreeStatus: StatusDeleted,
		Path:           "initial.txt",
	}}
	treeHash, err := r.AmendFast(commit, FromWorkingCopy{Entries: entries})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}
	if treeHash != object.EmptyTreeHash() {
		t.Fatalf("tree = %s, want canonical empty tree", treeHash)
	}
}

func TestAmendFast_RenameEntrySnapshotsBothSides(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"bystander.txt": "still here\n"})
	commit := commitFiles(t, r, map[string]string{
		"bystander.txt": "still here\n",
		"old.txt":       "moving contents\n",
	}, root)

	writeWorkFile(t, r, "new.txt", "moving contents\n")

	entries := []StatusEntry{{
		IndexStatus:    StatusUnmodified,
		WorktreeStatus: StatusRenamed,
		Path:           "new.txt",
		OrigPath:       "old.txt",
		WorktreeMode:   object.TreeModeFile,
	}}
	treeHash, err := r.AmendFast(commit, FromWorkingCopy{Entries: entries})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}

	got := flattenToPathContent(t, r, treeHash)
	if _, ok := got["old.txt"]; ok {
		t.Fatalf("rename source survived: %v", got)
	}
	if got["new.txt"] != "moving contents\n" {
		t.Fatalf("new.txt = %q, want moved contents", got["new.txt"])
	}
	if got["bystander.txt"] != "still here\n" {
		t.Fatalf("bystander.txt = %q, want untouched", got["bystander.txt"])
	}
}

// Paths the commit itself touched but the caller did not request keep the
// commit's own values rather than picking up unrelated state.
func TestAmendFast_UnrequestedTouchedPathsKeepCommitValues(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"a.txt": "base a\n",
		"b.txt": "base b\n",
	})
	commit := commitFiles(t, r, map[string]string{
		"a.txt": "commit a\n",
		"b.txt": "commit b\n",
	}, root)

	writeWorkFile(t, r, "a.txt", "amended a\n")

	entries := []StatusEntry{{
		IndexStatus:    StatusUnmodified,
		WorktreeStatus: StatusModified,
		Path:           "a.txt",
		WorktreeMode:   object.TreeModeFile,
	}}
	treeHash, err := r.AmendFast(commit, FromWorkingCopy{Entries: entries})
	if err != nil {
		t.Fatalf("AmendFast: %v", err)
	}

	got := flattenToPathContent(t, r, treeHash)
	if got["a.txt"] != "amended a\n" {
		t.Fatalf("a.txt = %q, want amended contents", got["a.txt"])
	}
	if got["b.txt"] != "commit b\n" {
		t.Fatalf("b.txt = %q, want the commit's own value", got["b.txt"])
	}
}
