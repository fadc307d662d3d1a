package repo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/odvcencio/restack/pkg/object"
)

// ErrMergeCommitUnsupported is returned when an operation that derives a
// patch from a commit's sole parent encounters a merge commit.
var ErrMergeCommitUnsupported = errors.New("merge commits are not supported")

// ChangedPaths computes the set of file paths that differ between two trees:
// paths that exist in exactly one tree, or whose blob hash or mode differ.
// Either hash may be empty, meaning "no tree".
//
// Matching-name directory entries whose subtree hashes are equal are skipped
// without reading the subtree, so the cost is bounded by the number of
// changed subtrees rather than total tree size.
func (r *Repo) ChangedPaths(oldTree, newTree object.Hash) (map[string]struct{}, error) {
	changed := make(map[string]struct{})
	if oldTree == newTree {
		return changed, nil
	}
	if err := r.diffTreeDir(oldTree, newTree, "", changed); err != nil {
		return nil, err
	}
	return changed, nil
}

// ChangedPathsSorted is ChangedPaths with the result as a sorted slice.
func (r *Repo) ChangedPathsSorted(oldTree, newTree object.Hash) ([]string, error) {
	changed, err := r.ChangedPaths(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repo) diffTreeDir(oldHash, newHash object.Hash, prefix string, changed map[string]struct{}) error {
	oldObj, err := r.readTreeOrEmpty(oldHash)
	if err != nil {
		return fmt.Errorf("diff trees: %w", err)
	}
	newObj, err := r.readTreeOrEmpty(newHash)
	if err != nil {
		return fmt.Errorf("diff trees: %w", err)
	}

	names := unionEntryNames(oldObj, newObj)
	for _, name := range names {
		oldEntry, inOld := oldObj.Lookup(name)
		newEntry, inNew := newObj.Lookup(name)
		childPath := joinTreePath(prefix, name)

		switch {
		case inOld && inNew && oldEntry.IsDir && newEntry.IsDir:
			if oldEntry.SubtreeHash == newEntry.SubtreeHash {
				continue // identical subtree, skip entirely
			}
			if err := r.diffTreeDir(oldEntry.SubtreeHash, newEntry.SubtreeHash, childPath, changed); err != nil {
				return err
			}
		case inOld && inNew && !oldEntry.IsDir && !newEntry.IsDir:
			if oldEntry.BlobHash != newEntry.BlobHash ||
				object.NormalizeMode(oldEntry.Mode) != object.NormalizeMode(newEntry.Mode) {
				changed[childPath] = struct{}{}
			}
		case inOld && inNew:
			// File replaced by directory or vice versa: everything on both
			// sides of the name differs.
			if err := r.addEntryPaths(oldEntry, childPath, changed); err != nil {
				return err
			}
			if err := r.addEntryPaths(newEntry, childPath, changed); err != nil {
				return err
			}
		case inOld:
			if err := r.addEntryPaths(oldEntry, childPath, changed); err != nil {
				return err
			}
		default:
			if err := r.addEntryPaths(newEntry, childPath, changed); err != nil {
				return err
			}
		}
	}
	return nil
}

// addEntryPaths records the entry's path, or all file paths beneath it when
// the entry is a directory.
func (r *Repo) addEntryPaths(entry object.TreeEntry, fullPath string, changed map[string]struct{}) error {
	if !entry.IsDir {
		changed[fullPath] = struct{}{}
		return nil
	}
	sub, err := r.flattenTreeRec(entry.SubtreeHash, fullPath)
	if err != nil {
		return err
	}
	for _, fe := range sub {
		changed[fe.Path] = struct{}{}
	}
	return nil
}

// PathsTouchedByCommit returns the file paths added, removed, or changed by
// the given commit relative to its sole parent. A commit with no parents is
// diffed against no tree, so all of its paths are returned. Merge commits
// are rejected.
func (r *Repo) PathsTouchedByCommit(commit *object.CommitObj) (map[string]struct{}, error) {
	var parentTree object.Hash
	switch len(commit.Parents) {
	case 0:
	case 1:
		parent, err := r.Store.ReadCommit(commit.Parents[0])
		if err != nil {
			return nil, fmt.Errorf("paths touched: read parent commit %s: %w", commit.Parents[0], err)
		}
		parentTree = parent.TreeHash
	default:
		return nil, fmt.Errorf("paths touched: commit has %d parents: %w", len(commit.Parents), ErrMergeCommitUnsupported)
	}

	return r.ChangedPaths(parentTree, commit.TreeHash)
}

func (r *Repo) readTreeOrEmpty(h object.Hash) (*object.TreeObj, error) {
	if h == "" {
		return &object.TreeObj{}, nil
	}
	return r.Store.ReadTree(h)
}

func unionEntryNames(a, b *object.TreeObj) []string {
	seen := make(map[string]struct{}, len(a.Entries)+len(b.Entries))
	for _, e := range a.Entries {
		seen[e.Name] = struct{}{}
	}
	for _, e := range b.Entries {
		seen[e.Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinTreePath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
