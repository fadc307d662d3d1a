package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/odvcencio/restack/pkg/object"
)

// CherryPickFastOptions controls the fast cherry-pick algorithm.
type CherryPickFastOptions struct {
	// ReuseParentTreeIfPossible enables the elision fast path: when the
	// patch's parent tree is identical to the target's tree, the patch tree
	// is returned as-is without merging.
	ReuseParentTreeIfPossible bool
}

// CherryPickFastResult is the outcome of a fast cherry-pick. On success
// TreeHash names the result tree; on conflict ConflictingPaths lists the
// paths that could not be merged.
type CherryPickFastResult struct {
	TreeHash         object.Hash
	Conflicted       bool
	ConflictingPaths []string
}

var (
	// ErrPatchHasNoParent is returned when the patch commit is a root
	// commit, so no "before" tree exists to derive the patch from.
	ErrPatchHasNoParent = errors.New("patch commit has no parent")

	// ErrPatchHasMultipleParents is returned when the patch commit is a
	// merge commit.
	ErrPatchHasMultipleParents = errors.New("patch commit has multiple parents")
)

// CherryPickFast applies the changes introduced by patchHash onto the tree
// of targetHash and returns the resulting tree without touching the working
// copy or any refs.
//
// The merge operates on dehydrated trees containing only the paths the
// patch touches, so the cost scales with the size of the patch rather than
// the size of the repository. The result tree is produced by replaying the
// merged entries over the target's full tree.
func (r *Repo) CherryPickFast(patchHash, targetHash object.Hash, opts CherryPickFastOptions) (*CherryPickFastResult, error) {
	patch, err := r.Store.ReadCommit(patchHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read patch commit %s: %w", patchHash, err)
	}
	target, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read target commit %s: %w", targetHash, err)
	}

	if opts.ReuseParentTreeIfPossible {
		if parentHash, ok := patch.OnlyParent(); ok {
			parent, err := r.Store.ReadCommit(parentHash)
			if err != nil {
				return nil, fmt.Errorf("cherry-pick: read patch parent %s: %w", parentHash, err)
			}
			if parent.TreeHash == target.TreeHash {
				// The patch applies to exactly the tree we are picking onto;
				// its result tree is already the answer.
				return &CherryPickFastResult{TreeHash: patch.TreeHash}, nil
			}
		}
	}

	parentHash, ok := patch.OnlyParent()
	if !ok {
		if len(patch.Parents) == 0 {
			return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, ErrPatchHasNoParent)
		}
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, ErrPatchHasMultipleParents)
	}
	patchParent, err := r.Store.ReadCommit(parentHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read patch parent %s: %w", parentHash, err)
	}

	changedPaths, err := r.ChangedPathsSorted(patchParent.TreeHash, patch.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, err)
	}

	dehydratedPatch, err := r.dehydrateCommit(patchHash, changedPaths, true)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, err)
	}
	dehydratedTarget, err := r.dehydrateCommit(targetHash, changedPaths, false)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, err)
	}

	patchCommit, err := r.Store.ReadCommit(dehydratedPatch)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read dehydrated patch: %w", err)
	}
	targetCommit, err := r.Store.ReadCommit(dehydratedTarget)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick: read dehydrated target: %w", err)
	}

	mi, err := r.CherryPickCommit(patchCommit, targetCommit)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, err)
	}

	if mi.HasConflicts() {
		return conflictedResult(mi, patchHash, targetHash), nil
	}

	overrides := make(map[string]*TreeEntryValue, len(changedPaths))
	for _, p := range changedPaths {
		entry, present := mi.Entry(p)
		if !present {
			overrides[p] = nil
			continue
		}
		if entry.BlobHash.IsZero() {
			slog.Warn("BUG: zero OID in merged entry; treating as removal", "path", p)
			overrides[p] = nil
			continue
		}
		overrides[p] = &TreeEntryValue{BlobHash: entry.BlobHash, Mode: entry.Mode}
	}

	treeHash, err := r.HydrateTree(target.TreeHash, overrides)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", patchHash, err)
	}
	return &CherryPickFastResult{TreeHash: treeHash}, nil
}

// conflictedResult reports a conflicted pick with the paths left unmerged.
// A conflicted index that names no paths at all would leave the caller with
// nothing to act on, so that case is logged as a defect.
func conflictedResult(mi *MergeIndex, patchHash, targetHash object.Hash) *CherryPickFastResult {
	paths := conflictPaths(mi.Conflicts())
	if len(paths) == 0 {
		slog.Warn("BUG: merge reported conflicts but no conflicting paths were found",
			"patch", patchHash, "target", targetHash)
	}
	return &CherryPickFastResult{Conflicted: true, ConflictingPaths: paths}
}

// conflictPaths collects the distinct paths named by any side of the given
// conflicts, sorted.
func conflictPaths(conflicts []MergeConflict) []string {
	seen := make(map[string]struct{})
	for _, c := range conflicts {
		for _, p := range []string{c.AncestorPath, c.OursPath, c.TheirsPath} {
			if p != "" {
				seen[p] = struct{}{}
			}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
