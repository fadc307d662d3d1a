package repo

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/odvcencio/restack/pkg/object"
)

// TreeEntryValue is a (hash, mode) pair for a file path in a tree override
// map. A nil *TreeEntryValue denotes deletion.
type TreeEntryValue struct {
	BlobHash object.Hash
	Mode     string
}

// dehydratedCommitAuthor is the synthetic identity under which ephemeral
// dehydrated commits are written. They carry no persistent name and are
// eligible for garbage collection.
const dehydratedCommitAuthor = "restack"

// DehydrateTree builds a minimal tree containing only the entries of tree at
// the selected paths. Entries are copied verbatim; selected paths that do
// not exist in tree are omitted. Directory structure is reconstructed only
// along prefixes that contain at least one selected path.
func (r *Repo) DehydrateTree(tree object.Hash, paths []string) (object.Hash, error) {
	return r.dehydrateTreeDir(tree, paths)
}

func (r *Repo) dehydrateTreeDir(tree object.Hash, paths []string) (object.Hash, error) {
	treeObj, err := r.readTreeOrEmpty(tree)
	if err != nil {
		return "", fmt.Errorf("dehydrate tree: %w", err)
	}

	direct, subdirs := partitionPaths(paths)

	var names []string
	for name := range direct {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isDirect := direct[name]; !isDirect {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		entry, found := treeObj.Lookup(name)
		if !found {
			continue
		}

		if _, isDirect := direct[name]; isDirect {
			entries = append(entries, entry)
			continue
		}

		if !entry.IsDir {
			// A selected path descends through what is a file here; nothing
			// to select below it.
			continue
		}
		subHash, err := r.dehydrateTreeDir(entry.SubtreeHash, subdirs[name])
		if err != nil {
			return "", err
		}
		if subHash == object.EmptyTreeHash() {
			continue
		}
		entries = append(entries, object.TreeEntry{
			Name:        name,
			IsDir:       true,
			Mode:        object.TreeModeDir,
			SubtreeHash: subHash,
		})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("dehydrate tree: write: %w", err)
	}
	return h, nil
}

// HydrateTree applies overrides to base: a non-nil value sets the entry at
// that path, a nil value deletes it. All other paths keep their base value,
// and unmodified subtrees are carried over by hash rather than rewritten. A
// directory whose last entry is deleted collapses away entirely; hydrating
// everything away yields the canonical empty-tree hash.
func (r *Repo) HydrateTree(base object.Hash, overrides map[string]*TreeEntryValue) (object.Hash, error) {
	if len(overrides) == 0 {
		if base == "" {
			return r.Store.WriteTree(&object.TreeObj{})
		}
		return base, nil
	}

	// A zero OID must never surface as tree content; downgrade to deletion.
	clean := make(map[string]*TreeEntryValue, len(overrides))
	for p, v := range overrides {
		if v != nil && v.BlobHash.IsZero() {
			slog.Warn("zero OID in tree override; treating as deletion", "path", p)
			v = nil
		}
		clean[p] = v
	}

	return r.hydrateTreeDir(base, clean)
}

func (r *Repo) hydrateTreeDir(base object.Hash, overrides map[string]*TreeEntryValue) (object.Hash, error) {
	baseObj, err := r.readTreeOrEmpty(base)
	if err != nil {
		return "", fmt.Errorf("hydrate tree: %w", err)
	}

	direct := make(map[string]*TreeEntryValue)
	subdirs := make(map[string]map[string]*TreeEntryValue)
	for p, v := range overrides {
		name, rest, isDeep := strings.Cut(p, "/")
		if !isDeep {
			direct[name] = v
			continue
		}
		if subdirs[name] == nil {
			subdirs[name] = make(map[string]*TreeEntryValue)
		}
		subdirs[name][rest] = v
	}

	var entries []object.TreeEntry
	seen := make(map[string]struct{})
	for _, entry := range baseObj.Entries {
		seen[entry.Name] = struct{}{}

		if v, ok := direct[entry.Name]; ok {
			if v != nil {
				entries = append(entries, object.TreeEntry{
					Name:     entry.Name,
					Mode:     object.NormalizeMode(v.Mode),
					BlobHash: v.BlobHash,
				})
				continue
			}
			// Deleted. A file-to-directory typechange deletes the file and
			// sets paths beneath the same name; build those into a fresh
			// subtree rather than dropping them.
			if sub, hasSub := subdirs[entry.Name]; hasSub {
				subHash, err := r.hydrateTreeDir("", sub)
				if err != nil {
					return "", err
				}
				if subHash != object.EmptyTreeHash() {
					entries = append(entries, object.TreeEntry{
						Name:        entry.Name,
						IsDir:       true,
						Mode:        object.TreeModeDir,
						SubtreeHash: subHash,
					})
				}
			}
			continue
		}

		if sub, ok := subdirs[entry.Name]; ok {
			subBase := object.Hash("")
			if entry.IsDir {
				subBase = entry.SubtreeHash
			}
			subHash, err := r.hydrateTreeDir(subBase, sub)
			if err != nil {
				return "", err
			}
			if subHash == object.EmptyTreeHash() {
				continue // directory emptied out, collapse
			}
			entries = append(entries, object.TreeEntry{
				Name:        entry.Name,
				IsDir:       true,
				Mode:        object.TreeModeDir,
				SubtreeHash: subHash,
			})
			continue
		}

		// Untouched: carried over verbatim, subtrees by hash.
		entries = append(entries, entry)
	}

	// Overrides introducing paths absent from base.
	for name, v := range direct {
		if _, ok := seen[name]; ok || v == nil {
			continue
		}
		entries = append(entries, object.TreeEntry{
			Name:     name,
			Mode:     object.NormalizeMode(v.Mode),
			BlobHash: v.BlobHash,
		})
	}
	for name, sub := range subdirs {
		if _, ok := seen[name]; ok {
			continue
		}
		// A non-nil direct override is a file at this name and wins; a nil
		// one deletes nothing here, so the subtree overrides still apply.
		if v, isDirect := direct[name]; isDirect && v != nil {
			continue
		}
		subHash, err := r.hydrateTreeDir("", sub)
		if err != nil {
			return "", err
		}
		if subHash == object.EmptyTreeHash() {
			continue
		}
		entries = append(entries, object.TreeEntry{
			Name:        name,
			IsDir:       true,
			Mode:        object.TreeModeDir,
			SubtreeHash: subHash,
		})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("hydrate tree: write: %w", err)
	}
	return h, nil
}

// partitionPaths splits slash-separated paths into direct child names and
// per-subdirectory remainder groups.
func partitionPaths(paths []string) (map[string]struct{}, map[string][]string) {
	direct := make(map[string]struct{})
	subdirs := make(map[string][]string)
	for _, p := range paths {
		name, rest, isDeep := strings.Cut(p, "/")
		if !isDeep {
			direct[name] = struct{}{}
			continue
		}
		subdirs[name] = append(subdirs[name], rest)
	}
	return direct, subdirs
}

// dehydrateCommit writes an ephemeral commit whose tree contains only the
// selected paths of the given commit's tree. When baseOnParent is set and
// the commit has exactly one parent, a dehydrated copy of the parent is
// chained (one level, not recursive) so deletions merge correctly. The
// commit is written under a synthetic identity with a message naming the
// original commit, never referenced by a persistent name.
func (r *Repo) dehydrateCommit(commitHash object.Hash, paths []string, baseOnParent bool) (object.Hash, error) {
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return "", fmt.Errorf("dehydrate commit: read %s: %w", commitHash, err)
	}

	treeHash, err := r.DehydrateTree(commit.TreeHash, paths)
	if err != nil {
		return "", fmt.Errorf("dehydrate commit %s: %w", commitHash, err)
	}

	var parents []object.Hash
	if baseOnParent {
		if parentHash, ok := commit.OnlyParent(); ok {
			dehydratedParent, err := r.dehydrateCommit(parentHash, paths, false)
			if err != nil {
				return "", err
			}
			parents = append(parents, dehydratedParent)
		}
	}

	message := fmt.Sprintf(
		"restack: temporary dehydrated commit\n\nThis commit was originally: %s\n",
		commitHash,
	)
	dehydrated := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    dehydratedCommitAuthor,
		Timestamp: commit.Timestamp,
		Message:   message,
	}
	h, err := r.Store.WriteCommit(dehydrated)
	if err != nil {
		return "", fmt.Errorf("dehydrate commit %s: write: %w", commitHash, err)
	}
	return h, nil
}
