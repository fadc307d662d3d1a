package repo

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/odvcencio/restack/pkg/object"
)

func TestCherryPickFast_CleanPick(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"a.txt": "base a\n",
		"b.txt": "base b\n",
	})
	patch := commitFiles(t, r, map[string]string{
		"a.txt": "patched a\n",
		"b.txt": "base b\n",
	}, root)
	target := commitFiles(t, r, map[string]string{
		"a.txt": "base a\n",
		"b.txt": "target b\n",
		"c.txt": "target only\n",
	}, root)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}

	got := flattenToPathContent(t, r, res.TreeHash)
	want := map[string]string{
		"a.txt": "patched a\n",
		"b.txt": "target b\n",
		"c.txt": "target only\n",
	}
	if len(got) != len(want) {
		t.Fatalf("result files = %v, want %v", got, want)
	}
	for p, content := range want {
		if got[p] != content {
			t.Fatalf("path %q = %q, want %q", p, got[p], content)
		}
	}
}

// When the patch's parent tree equals the target tree, the patch tree is
// reused verbatim.
func TestCherryPickFast_ElidesWhenParentTreeMatchesTarget(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"a.txt": "base\n"})
	patch := commitFiles(t, r, map[string]string{"a.txt": "patched\n"}, root)

	rootCommit, err := r.Store.ReadCommit(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	patchCommit, err := r.Store.ReadCommit(patch)
	if err != nil {
		t.Fatalf("read patch: %v", err)
	}

	// A distinct target commit holding the exact same tree as the patch's
	// parent.
	target := writeTestCommit(t, r, rootCommit.TreeHash)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}
	if res.TreeHash != patchCommit.TreeHash {
		t.Fatalf("tree = %s, want patch tree %s reused", res.TreeHash, patchCommit.TreeHash)
	}
}

func TestCherryPickFast_ElisionDisabledStillMerges(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"a.txt": "base\n"})
	patch := commitFiles(t, r, map[string]string{"a.txt": "patched\n"}, root)
	target := writeTestCommit(t, r, mustTree(t, r, root))

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}
	got := flattenToPathContent(t, r, res.TreeHash)
	if got["a.txt"] != "patched\n" {
		t.Fatalf("a.txt = %q, want patch applied", got["a.txt"])
	}
}

func TestCherryPickFast_DeletionPropagates(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"doomed.txt": "delete me\n",
		"keep.txt":   "base\n",
	})
	patch := commitFiles(t, r, map[string]string{
		"keep.txt": "base\n",
	}, root)
	target := commitFiles(t, r, map[string]string{
		"doomed.txt": "delete me\n",
		"keep.txt":   "target edit\n",
	}, root)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}
	got := flattenToPathContent(t, r, res.TreeHash)
	if _, ok := got["doomed.txt"]; ok {
		t.Fatalf("deletion did not propagate: %v", got)
	}
	if got["keep.txt"] != "target edit\n" {
		t.Fatalf("keep.txt = %q, want target content kept", got["keep.txt"])
	}
}

func TestCherryPickFast_ConflictReportsPaths(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{"file.txt": "base\n"})
	patch := commitFiles(t, r, map[string]string{"file.txt": "patch edit\n"}, root)
	target := commitFiles(t, r, map[string]string{"file.txt": "target edit\n"}, root)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if !res.Conflicted {
		t.Fatalf("expected conflict, got tree %s", res.TreeHash)
	}
	if !equalStrings(res.ConflictingPaths, []string{"file.txt"}) {
		t.Fatalf("conflicting paths = %v, want [file.txt]", res.ConflictingPaths)
	}

	// The dehydrated merge must report the same conflicts a merge over the
	// full trees would.
	fullMerge, err := r.MergeTrees(mustTree(t, r, root), mustTree(t, r, target), mustTree(t, r, patch))
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	fullPaths := conflictPaths(fullMerge.Conflicts())
	if !equalStrings(res.ConflictingPaths, fullPaths) {
		t.Fatalf("dehydrated conflicts %v differ from full-tree conflicts %v", res.ConflictingPaths, fullPaths)
	}
}

// A patch replacing a file with a directory of the same name must survive
// the dehydrated merge and hydration with its nested contents intact.
func TestCherryPickFast_FileToDirectoryTypechange(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"a":        "base file\n",
		"keep.txt": "base\n",
	})
	patch := commitFiles(t, r, map[string]string{
		"a/b":      "dir now\n",
		"keep.txt": "base\n",
	}, root)
	target := commitFiles(t, r, map[string]string{
		"a":        "base file\n",
		"keep.txt": "target edit\n",
	}, root)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}

	got := flattenToPathContent(t, r, res.TreeHash)
	want := map[string]string{
		"a/b":      "dir now\n",
		"keep.txt": "target edit\n",
	}
	if len(got) != len(want) {
		t.Fatalf("result files = %v, want %v", got, want)
	}
	for p, content := range want {
		if got[p] != content {
			t.Fatalf("path %q = %q, want %q", p, got[p], content)
		}
	}
}

// A conflicted index whose conflicts name no paths still reports a
// conflict, and the inconsistency is logged.
func TestConflictedResult_EmptyPathSetStillConflicts(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	mi := &MergeIndex{conflicts: []MergeConflict{{}}}
	res := conflictedResult(mi, "patch", "target")
	if !res.Conflicted {
		t.Fatalf("result not conflicted")
	}
	if len(res.ConflictingPaths) != 0 {
		t.Fatalf("paths = %v, want none", res.ConflictingPaths)
	}
	if !strings.Contains(buf.String(), "no conflicting paths") {
		t.Fatalf("missing diagnostic, log = %q", buf.String())
	}
}

func TestCherryPickFast_RootPatchRejected(t *testing.T) {
	r := newTestRepo(t)
	patch := commitFiles(t, r, map[string]string{"a.txt": "root\n"})
	target := commitFiles(t, r, map[string]string{"b.txt": "target\n"})

	_, err := r.CherryPickFast(patch, target, CherryPickFastOptions{})
	if !errors.Is(err, ErrPatchHasNoParent) {
		t.Fatalf("err = %v, want ErrPatchHasNoParent", err)
	}
}

func TestCherryPickFast_MergePatchRejected(t *testing.T) {
	r := newTestRepo(t)
	p1 := commitFiles(t, r, map[string]string{"a.txt": "one\n"})
	p2 := commitFiles(t, r, map[string]string{"b.txt": "two\n"})
	patch := commitFiles(t, r, map[string]string{"a.txt": "one\n", "b.txt": "two\n"}, p1, p2)
	target := commitFiles(t, r, map[string]string{"c.txt": "target\n"})

	_, err := r.CherryPickFast(patch, target, CherryPickFastOptions{})
	if !errors.Is(err, ErrPatchHasMultipleParents) {
		t.Fatalf("err = %v, want ErrPatchHasMultipleParents", err)
	}
}

// The dehydrated merge must decide conflicts exactly as a merge over the
// full trees would.
func TestCherryPickFast_MatchesFullTreeMergeOutcome(t *testing.T) {
	r := newTestRepo(t)
	root := commitFiles(t, r, map[string]string{
		"a.txt":     "base a\n",
		"b.txt":     "base b\n",
		"dir/c.txt": "base c\n",
	})
	patch := commitFiles(t, r, map[string]string{
		"a.txt":     "patch a\n",
		"b.txt":     "base b\n",
		"dir/c.txt": "patch c\n",
	}, root)
	target := commitFiles(t, r, map[string]string{
		"a.txt":     "base a\n",
		"b.txt":     "target b\n",
		"dir/c.txt": "base c\n",
	}, root)

	res, err := r.CherryPickFast(patch, target, CherryPickFastOptions{ReuseParentTreeIfPossible: true})
	if err != nil {
		t.Fatalf("CherryPickFast: %v", err)
	}
	if res.Conflicted {
		t.Fatalf("conflicted pick: %v", res.ConflictingPaths)
	}

	fullMerge, err := r.MergeTrees(mustTree(t, r, root), mustTree(t, r, target), mustTree(t, r, patch))
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	fullTree, err := fullMerge.WriteTree()
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if res.TreeHash != fullTree {
		t.Fatalf("dehydrated pick tree %s differs from full merge tree %s", res.TreeHash, fullTree)
	}
}

// mustTree reads the tree hash of a stored commit.
func mustTree(t *testing.T, r *Repo, commitHash object.Hash) object.Hash {
	t.Helper()
	c, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("read commit %s: %v", commitHash, err)
	}
	return c.TreeHash
}
