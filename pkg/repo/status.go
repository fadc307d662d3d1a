package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/odvcencio/restack/pkg/object"
)

type headTreeState struct {
	BlobHash object.Hash
	Mode     string
}

// Status compares the working copy and staging area against HEAD and
// returns one entry per changed path, sorted by path. Clean paths are not
// reported. The entries use the same shape the machine status stream
// decodes to, so Status output can be fed straight into EncodeStatusEntries
// or AmendFast.
//
// Algorithm:
//  1. Read the staging index and flatten the HEAD tree.
//  2. Walk the working directory, skipping .restack/ and ignored paths.
//  3. Classify the index side (staging vs HEAD) and the worktree side
//     (disk vs staging), pairing up renames by content.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	headEntries, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles, err := r.scanWorkingCopy()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	result := make(map[string]*StatusEntry)
	entryFor := func(path string) *StatusEntry {
		e, ok := result[path]
		if !ok {
			e = &StatusEntry{
				IndexStatus:    StatusUnmodified,
				WorktreeStatus: StatusUnmodified,
				Submodule:      "N...",
				Path:           path,
			}
			result[path] = e
		}
		return e
	}

	// Index side: staging vs HEAD.
	indexNewToOld, indexOldToNew := detectIndexRenames(stg, headEntries)
	for path, se := range stg.Entries {
		e := entryFor(path)
		e.IndexMode = object.NormalizeMode(se.Mode)
		e.IndexHash = se.BlobHash

		head, inHead := headEntries[path]
		switch {
		case !inHead:
			if oldPath, renamed := indexNewToOld[path]; renamed {
				e.IndexStatus = StatusRenamed
				e.OrigPath = oldPath
				old := headEntries[oldPath]
				e.HeadMode = old.Mode
				e.HeadHash = old.BlobHash
			} else {
				e.IndexStatus = StatusAdded
			}
		case se.BlobHash != head.BlobHash || object.NormalizeMode(se.Mode) != head.Mode:
			e.IndexStatus = StatusModified
			e.HeadMode = head.Mode
			e.HeadHash = head.BlobHash
		default:
			e.HeadMode = head.Mode
			e.HeadHash = head.BlobHash
		}
	}
	for path, head := range headEntries {
		if _, inStaging := stg.Entries[path]; inStaging {
			continue
		}
		if _, renamed := indexOldToNew[path]; renamed {
			continue
		}
		e := entryFor(path)
		e.IndexStatus = StatusDeleted
		e.HeadMode = head.Mode
		e.HeadHash = head.BlobHash
	}

	// Worktree side: disk vs staging.
	workNewToOld, workOldToNew, err := r.detectWorktreeRenames(stg, workFiles)
	if err != nil {
		return nil, fmt.Errorf("status: detect renames: %w", err)
	}
	for path := range workFiles {
		se, inStaging := stg.Entries[path]
		if !inStaging {
			if oldPath, renamed := workNewToOld[path]; renamed {
				e := entryFor(path)
				e.WorktreeStatus = StatusRenamed
				e.OrigPath = oldPath
				if mode, err := r.worktreeMode(path); err == nil {
					e.WorktreeMode = mode
				}
				continue
			}
			e := entryFor(path)
			e.IndexStatus = StatusUntracked
			e.WorktreeStatus = StatusUntracked
			if mode, err := r.worktreeMode(path); err == nil {
				e.WorktreeMode = mode
			}
			continue
		}

		dirty, mode, err := r.worktreeDiffersFromStaging(path, se)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		e := entryFor(path)
		e.WorktreeMode = mode
		if dirty {
			e.WorktreeStatus = StatusModified
		}
	}
	for path := range stg.Entries {
		if workFiles[path] {
			continue
		}
		if _, renamed := workOldToNew[path]; renamed {
			continue
		}
		entryFor(path).WorktreeStatus = StatusDeleted
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		if e.IndexStatus == StatusUnmodified && e.WorktreeStatus == StatusUnmodified {
			continue
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// scanWorkingCopy walks the repository root and returns the repo-relative
// paths of all regular files not excluded by the ignore rules.
func (r *Repo) scanWorkingCopy() (map[string]bool, error) {
	ic := NewIgnoreChecker(r.RootDir)
	workFiles := make(map[string]bool)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return workFiles, nil
}

// worktreeDiffersFromStaging reports whether the on-disk file content or
// mode differs from the staged entry. Matching size and mtime short-circuit
// the content hash.
func (r *Repo) worktreeDiffersFromStaging(path string, se *StagingEntry) (bool, string, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	info, err := os.Stat(absPath)
	if err != nil {
		return false, "", fmt.Errorf("stat %q: %w", path, err)
	}
	mode := modeFromFileInfo(info)
	if mode != object.NormalizeMode(se.Mode) {
		return true, mode, nil
	}
	if info.Size() == se.Size && info.ModTime().UnixNano() == se.ModTime {
		return false, mode, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, "", fmt.Errorf("read %q: %w", path, err)
	}
	return object.HashObject(object.TypeBlob, content) != se.BlobHash, mode, nil
}

func (r *Repo) worktreeMode(path string) (string, error) {
	info, err := os.Stat(filepath.Join(r.RootDir, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return modeFromFileInfo(info), nil
}

// headTreeEntries flattens the HEAD commit's tree into a path map. A repo
// with no commits yet has an empty HEAD.
func (r *Repo) headTreeEntries() (map[string]headTreeState, error) {
	result := make(map[string]headTreeState)

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return result, nil
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		result[f.Path] = headTreeState{BlobHash: f.BlobHash, Mode: f.Mode}
	}
	return result, nil
}

// detectIndexRenames pairs paths added in staging with paths deleted from
// HEAD when their blob hash and mode match.
func detectIndexRenames(stg *Staging, headEntries map[string]headTreeState) (map[string]string, map[string]string) {
	newByKey := make(map[string][]string)
	oldByKey := make(map[string][]string)

	for path, se := range stg.Entries {
		if _, inHead := headEntries[path]; inHead {
			continue
		}
		key := renameMatchKey(se.BlobHash, se.Mode)
		newByKey[key] = append(newByKey[key], path)
	}
	for path, hs := range headEntries {
		if _, inStaging := stg.Entries[path]; inStaging {
			continue
		}
		key := renameMatchKey(hs.BlobHash, hs.Mode)
		oldByKey[key] = append(oldByKey[key], path)
	}

	return pairRenameCandidates(newByKey, oldByKey)
}

// detectWorktreeRenames pairs untracked files with staged entries missing
// from disk, again by content and mode.
func (r *Repo) detectWorktreeRenames(stg *Staging, workFiles map[string]bool) (map[string]string, map[string]string, error) {
	oldByKey := make(map[string][]string)
	newByKey := make(map[string][]string)

	for path, se := range stg.Entries {
		if workFiles[path] {
			continue
		}
		key := renameMatchKey(se.BlobHash, se.Mode)
		oldByKey[key] = append(oldByKey[key], path)
	}
	for path := range workFiles {
		if _, inStaging := stg.Entries[path]; inStaging {
			continue
		}
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, nil, err
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, nil, err
		}
		key := renameMatchKey(object.HashObject(object.TypeBlob, data), modeFromFileInfo(info))
		newByKey[key] = append(newByKey[key], path)
	}

	newToOld, oldToNew := pairRenameCandidates(newByKey, oldByKey)
	return newToOld, oldToNew, nil
}

// pairRenameCandidates matches up added and removed paths sharing a content
// key. Ambiguous groups pair off in sorted order so the result is stable.
func pairRenameCandidates(newByKey, oldByKey map[string][]string) (map[string]string, map[string]string) {
	newToOld := make(map[string]string)
	oldToNew := make(map[string]string)

	for key, newPaths := range newByKey {
		oldPaths := oldByKey[key]
		if len(oldPaths) == 0 {
			continue
		}
		sort.Strings(newPaths)
		sort.Strings(oldPaths)

		n := len(newPaths)
		if len(oldPaths) < n {
			n = len(oldPaths)
		}
		for i := 0; i < n; i++ {
			newToOld[newPaths[i]] = oldPaths[i]
			oldToNew[oldPaths[i]] = newPaths[i]
		}
	}
	return newToOld, oldToNew
}

func renameMatchKey(blobHash object.Hash, mode string) string {
	return string(blobHash) + "|" + object.NormalizeMode(mode)
}
