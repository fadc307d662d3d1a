package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/restack/pkg/diff3"
	"github.com/odvcencio/restack/pkg/object"
)

// MergeEntry is the merged (hash, mode) value for a single path.
type MergeEntry struct {
	BlobHash object.Hash
	Mode     string
}

// MergeConflict records the per-side paths of one unmerged entry. A side's
// path is empty when that side has no entry.
type MergeConflict struct {
	AncestorPath string
	OursPath     string
	TheirsPath   string
}

// MergeIndex is the queryable result of a three-way tree merge: per-path
// merged entries plus the set of entries left unmerged.
type MergeIndex struct {
	repo      *Repo
	entries   map[string]MergeEntry
	conflicts []MergeConflict
}

// HasConflicts reports whether any entry was left unmerged.
func (mi *MergeIndex) HasConflicts() bool {
	return len(mi.conflicts) > 0
}

// Conflicts returns the unmerged entries.
func (mi *MergeIndex) Conflicts() []MergeConflict {
	return mi.conflicts
}

// Entry returns the merged value at path. The second result is false when
// the merge resolved the path to absence.
func (mi *MergeIndex) Entry(path string) (MergeEntry, bool) {
	e, ok := mi.entries[path]
	return e, ok
}

// WriteTree materializes the merged entries as a full tree in the store.
// The index must be conflict-free.
func (mi *MergeIndex) WriteTree() (object.Hash, error) {
	if mi.HasConflicts() {
		return "", fmt.Errorf("write merge tree: index has %d conflicts", len(mi.conflicts))
	}
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(mi.entries))}
	for p, e := range mi.entries {
		stg.Entries[p] = &StagingEntry{Path: p, BlobHash: e.BlobHash, Mode: e.Mode}
	}
	return mi.repo.BuildTree(stg)
}

// MergeTrees computes a three-way merge of ours and theirs against base.
// Any tree hash may be empty ("no tree"). Changes on a single side win;
// concurrent edits to the same file are merged line-wise; everything else
// (modify/delete, add/add, diverging modes, file/directory) is reported as
// a conflict. The merge never mutates existing objects; merged file
// contents are written as new blobs.
func (r *Repo) MergeTrees(base, ours, theirs object.Hash) (*MergeIndex, error) {
	baseEntries, err := r.flattenToMap(base)
	if err != nil {
		return nil, fmt.Errorf("merge trees: flatten base: %w", err)
	}
	oursEntries, err := r.flattenToMap(ours)
	if err != nil {
		return nil, fmt.Errorf("merge trees: flatten ours: %w", err)
	}
	theirsEntries, err := r.flattenToMap(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge trees: flatten theirs: %w", err)
	}

	paths := make(map[string]struct{})
	for p := range baseEntries {
		paths[p] = struct{}{}
	}
	for p := range oursEntries {
		paths[p] = struct{}{}
	}
	for p := range theirsEntries {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	mi := &MergeIndex{repo: r, entries: make(map[string]MergeEntry)}
	for _, p := range sorted {
		b, inBase := baseEntries[p]
		o, inOurs := oursEntries[p]
		t, inTheirs := theirsEntries[p]

		switch {
		case sideEqual(o, inOurs, t, inTheirs):
			if inOurs {
				mi.entries[p] = o
			}
		case sideEqual(b, inBase, o, inOurs):
			// Only theirs changed.
			if inTheirs {
				mi.entries[p] = t
			}
		case sideEqual(b, inBase, t, inTheirs):
			// Only ours changed.
			if inOurs {
				mi.entries[p] = o
			}
		case inOurs && inTheirs:
			merged, ok, err := r.mergeFileContents(p, b, inBase, o, t)
			if err != nil {
				return nil, err
			}
			if !ok {
				mi.conflicts = append(mi.conflicts, conflictFor(p, inBase, inOurs, inTheirs))
				continue
			}
			mi.entries[p] = merged
		default:
			// Modify/delete: changed on one side, removed on the other.
			mi.conflicts = append(mi.conflicts, conflictFor(p, inBase, inOurs, inTheirs))
		}
	}

	// Flattening resolves each path in isolation, so a file added on one
	// side and entries added beneath that name on the other both survive
	// the loop above. No tree can hold both; report the pair as a conflict
	// instead of letting tree construction drop one silently.
	merged := make(map[string]struct{}, len(mi.entries))
	for p := range mi.entries {
		merged[p] = struct{}{}
	}
	for _, p := range sorted {
		if _, ok := merged[p]; !ok {
			continue
		}
		for _, anc := range ancestorDirs(p) {
			if _, ok := merged[anc]; !ok {
				continue
			}
			mi.conflicts = append(mi.conflicts, fileDirConflict(anc, p, baseEntries, oursEntries, theirsEntries))
			delete(mi.entries, anc)
			delete(mi.entries, p)
		}
	}

	return mi, nil
}

// ancestorDirs lists the proper directory prefixes of a slash-separated
// path, shortest first.
func ancestorDirs(p string) []string {
	var dirs []string
	for i, c := range p {
		if c == '/' {
			dirs = append(dirs, p[:i])
		}
	}
	return dirs
}

// fileDirConflict records a path merged as a file colliding with a path
// merged beneath it, attributing to each side whichever of the two paths
// that side holds.
func fileDirConflict(file, nested string, base, ours, theirs map[string]MergeEntry) MergeConflict {
	pick := func(m map[string]MergeEntry) string {
		if _, ok := m[file]; ok {
			return file
		}
		if _, ok := m[nested]; ok {
			return nested
		}
		return ""
	}
	return MergeConflict{
		AncestorPath: pick(base),
		OursPath:     pick(ours),
		TheirsPath:   pick(theirs),
	}
}

// CherryPickCommit merges a patch commit onto ourCommit using the patch's
// first parent tree as the merge base, mirroring an in-memory cherry-pick.
func (r *Repo) CherryPickCommit(patchCommit, ourCommit *object.CommitObj) (*MergeIndex, error) {
	var baseTree object.Hash
	if len(patchCommit.Parents) > 0 {
		parent, err := r.Store.ReadCommit(patchCommit.Parents[0])
		if err != nil {
			return nil, fmt.Errorf("cherry-pick merge: read patch parent %s: %w", patchCommit.Parents[0], err)
		}
		baseTree = parent.TreeHash
	}
	return r.MergeTrees(baseTree, ourCommit.TreeHash, patchCommit.TreeHash)
}

// mergeFileContents merges a concurrently edited file line-wise. It returns
// ok=false when the contents or modes cannot be reconciled.
func (r *Repo) mergeFileContents(path string, b MergeEntry, inBase bool, o, t MergeEntry) (MergeEntry, bool, error) {
	mode, ok := mergeModes(b, inBase, o, t)
	if !ok {
		return MergeEntry{}, false, nil
	}

	var baseData []byte
	if inBase {
		blob, err := r.Store.ReadBlob(b.BlobHash)
		if err != nil {
			return MergeEntry{}, false, fmt.Errorf("merge %q: read base blob: %w", path, err)
		}
		baseData = blob.Data
	}
	oursBlob, err := r.Store.ReadBlob(o.BlobHash)
	if err != nil {
		return MergeEntry{}, false, fmt.Errorf("merge %q: read ours blob: %w", path, err)
	}
	theirsBlob, err := r.Store.ReadBlob(t.BlobHash)
	if err != nil {
		return MergeEntry{}, false, fmt.Errorf("merge %q: read theirs blob: %w", path, err)
	}

	res := diff3.Merge(baseData, oursBlob.Data, theirsBlob.Data)
	if res.HasConflicts {
		return MergeEntry{}, false, nil
	}

	mergedHash, err := r.Store.WriteBlob(&object.Blob{Data: res.Merged})
	if err != nil {
		return MergeEntry{}, false, fmt.Errorf("merge %q: write merged blob: %w", path, err)
	}
	return MergeEntry{BlobHash: mergedHash, Mode: mode}, true, nil
}

// mergeModes resolves the merged file mode: an unchanged side yields to the
// changed one; both sides changing to different modes is a conflict.
func mergeModes(b MergeEntry, inBase bool, o, t MergeEntry) (string, bool) {
	oursMode := object.NormalizeMode(o.Mode)
	theirsMode := object.NormalizeMode(t.Mode)
	if oursMode == theirsMode {
		return oursMode, true
	}
	if !inBase {
		return "", false
	}
	baseMode := object.NormalizeMode(b.Mode)
	if oursMode == baseMode {
		return theirsMode, true
	}
	if theirsMode == baseMode {
		return oursMode, true
	}
	return "", false
}

func sideEqual(a MergeEntry, inA bool, b MergeEntry, inB bool) bool {
	if inA != inB {
		return false
	}
	if !inA {
		return true
	}
	return a.BlobHash == b.BlobHash && object.NormalizeMode(a.Mode) == object.NormalizeMode(b.Mode)
}

func conflictFor(p string, inBase, inOurs, inTheirs bool) MergeConflict {
	c := MergeConflict{}
	if inBase {
		c.AncestorPath = p
	}
	if inOurs {
		c.OursPath = p
	}
	if inTheirs {
		c.TheirsPath = p
	}
	return c
}

func (r *Repo) flattenToMap(tree object.Hash) (map[string]MergeEntry, error) {
	entries, err := r.FlattenTree(tree)
	if err != nil {
		return nil, err
	}
	out := make(map[string]MergeEntry, len(entries))
	for _, e := range entries {
		out[e.Path] = MergeEntry{BlobHash: e.BlobHash, Mode: e.Mode}
	}
	return out, nil
}
