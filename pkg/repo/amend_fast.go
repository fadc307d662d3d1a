package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/odvcencio/restack/pkg/object"
)

// AmendSource names where the amended contents come from: the working copy
// (driven by status entries) or the staging area (an explicit path list).
type AmendSource interface {
	isAmendSource()
}

// FromWorkingCopy amends using the current on-disk file contents for the
// paths named by the given status entries.
type FromWorkingCopy struct {
	Entries []StatusEntry
}

// FromIndex amends using the staged blobs for the given paths.
type FromIndex struct {
	Paths []string
}

func (FromWorkingCopy) isAmendSource() {}
func (FromIndex) isAmendSource()       {}

// AmendFast folds the requested changes into the tree of parentHash and
// returns the resulting tree, without touching the working copy or any
// refs. The caller builds the replacement commit from the returned tree.
//
// Paths touched by the parent commit itself are carried through even when
// not requested, so an amend never silently reverts the commit being
// amended. Requested paths missing from the source are recorded as
// removals.
func (r *Repo) AmendFast(parentHash object.Hash, source AmendSource) (object.Hash, error) {
	parent, err := r.Store.ReadCommit(parentHash)
	if err != nil {
		return "", fmt.Errorf("amend: read commit %s: %w", parentHash, err)
	}

	requested, err := amendRequestedPaths(source)
	if err != nil {
		return "", err
	}

	touched, err := r.PathsTouchedByCommit(parent)
	if err != nil {
		return "", fmt.Errorf("amend %s: %w", parentHash, err)
	}
	changed := make(map[string]struct{}, len(touched)+len(requested))
	for p := range touched {
		changed[p] = struct{}{}
	}
	for _, p := range requested {
		changed[p] = struct{}{}
	}
	changedPaths := make([]string, 0, len(changed))
	for p := range changed {
		changedPaths = append(changedPaths, p)
	}
	sort.Strings(changedPaths)

	dehydratedParent, err := r.dehydrateCommit(parentHash, changedPaths, true)
	if err != nil {
		return "", fmt.Errorf("amend %s: %w", parentHash, err)
	}
	dehydratedCommit, err := r.Store.ReadCommit(dehydratedParent)
	if err != nil {
		return "", fmt.Errorf("amend: read dehydrated commit: %w", err)
	}

	overrides := make(map[string]*TreeEntryValue, len(changedPaths))
	switch src := source.(type) {
	case FromWorkingCopy:
		if err := r.amendFromWorkingCopy(src.Entries, overrides); err != nil {
			return "", err
		}
	case FromIndex:
		if err := r.amendFromIndex(src.Paths, overrides); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("amend: unknown source %T", source)
	}

	// Paths the parent touched but the caller did not request keep the
	// parent's own value.
	for _, p := range changedPaths {
		if _, ok := overrides[p]; ok {
			continue
		}
		entry, found, err := r.treeEntryAtPath(dehydratedCommit.TreeHash, p)
		if err != nil {
			return "", fmt.Errorf("amend: look up %q: %w", p, err)
		}
		if !found {
			overrides[p] = nil
			continue
		}
		overrides[p] = &TreeEntryValue{BlobHash: entry.BlobHash, Mode: entry.Mode}
	}

	treeHash, err := r.HydrateTree(parent.TreeHash, overrides)
	if err != nil {
		return "", fmt.Errorf("amend %s: %w", parentHash, err)
	}
	return treeHash, nil
}

// amendRequestedPaths expands the source into the explicitly requested
// paths. Rename entries request both sides.
func amendRequestedPaths(source AmendSource) ([]string, error) {
	switch src := source.(type) {
	case FromWorkingCopy:
		var paths []string
		for i := range src.Entries {
			paths = append(paths, src.Entries[i].Paths()...)
		}
		return paths, nil
	case FromIndex:
		return src.Paths, nil
	default:
		return nil, fmt.Errorf("amend: unknown source %T", source)
	}
}

// amendFromWorkingCopy snapshots the current on-disk contents of each
// entry's paths. A missing file is a removal; any other read failure aborts
// the amend so a partially readable working copy is never captured.
func (r *Repo) amendFromWorkingCopy(entries []StatusEntry, overrides map[string]*TreeEntryValue) error {
	for i := range entries {
		entry := &entries[i]
		for _, p := range entry.Paths() {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(p))
			content, err := os.ReadFile(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					overrides[p] = nil
					continue
				}
				return fmt.Errorf("amend: read working copy file %q: %w", p, err)
			}
			blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
			if err != nil {
				return fmt.Errorf("amend: write blob for %q: %w", p, err)
			}
			overrides[p] = &TreeEntryValue{
				BlobHash: blobHash,
				Mode:     entry.WorkingCopyFileMode(),
			}
		}
	}
	return nil
}

// amendFromIndex takes the staged blob for each requested path. A path with
// no staging entry is a removal.
func (r *Repo) amendFromIndex(paths []string, overrides map[string]*TreeEntryValue) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("amend: %w", err)
	}
	for _, p := range paths {
		entry, ok := stg.Entries[p]
		if !ok {
			overrides[p] = nil
			continue
		}
		if entry.BlobHash.IsZero() {
			slog.Warn("BUG: zero OID in staging entry; treating as removal", "path", p)
			overrides[p] = nil
			continue
		}
		overrides[p] = &TreeEntryValue{BlobHash: entry.BlobHash, Mode: entry.Mode}
	}
	return nil
}
