package repo

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/restack/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// Commit creates a new commit from the current staging area and advances
// the current branch (or detached HEAD) to it.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is
// provided.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: nothing staged")
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// The first commit has no parent; a failed HEAD resolution means the
	// current branch has no commits yet.
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	commitHash, err := r.writeSignedCommit(commitObj, signer)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if err := r.AdvanceHead(commitHash, parentHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

// CommitTree writes a commit for an already materialized tree, without
// consulting the staging area. It is the back end for cherry-pick and
// amend, which compute their result trees directly.
func (r *Repo) CommitTree(treeHash object.Hash, parents []object.Hash, message, author string, signer CommitSigner) (object.Hash, error) {
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	h, err := r.writeSignedCommit(commitObj, signer)
	if err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}
	return h, nil
}

// Reword writes a copy of the given commit with a new message, leaving the
// tree, parents, author, and timestamp intact. The new commit hash is
// returned; the caller moves any refs.
func (r *Repo) Reword(commitHash object.Hash, message string, signer CommitSigner) (object.Hash, error) {
	c, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return "", fmt.Errorf("reword: read commit %s: %w", commitHash, err)
	}

	reworded := &object.CommitObj{
		TreeHash:  c.TreeHash,
		Parents:   c.Parents,
		Author:    c.Author,
		Timestamp: c.Timestamp,
		Message:   message,
	}
	h, err := r.writeSignedCommit(reworded, signer)
	if err != nil {
		return "", fmt.Errorf("reword %s: %w", commitHash, err)
	}
	return h, nil
}

func (r *Repo) writeSignedCommit(c *object.CommitObj, signer CommitSigner) (object.Hash, error) {
	if signer != nil {
		payload := object.CommitSigningPayload(c)
		signature, err := signer(payload)
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = signature
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h, nil
}

// AdvanceHead moves the current branch, or detached HEAD itself, to the new
// commit with a compare-and-swap against the previous position. An empty
// oldHash means the branch is expected to have no commits yet.
func (r *Repo) AdvanceHead(commitHash, oldHash object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		var updateErr error
		if oldHash == "" {
			updateErr = r.UpdateRefCAS(head, commitHash)
		} else {
			updateErr = r.UpdateRefCAS(head, commitHash, oldHash)
		}
		if updateErr != nil {
			return fmt.Errorf("update ref %q: %w", head, updateErr)
		}
		return nil
	}

	if err := r.UpdateRefCAS("HEAD", commitHash, object.Hash(strings.TrimSpace(head))); err != nil {
		return fmt.Errorf("update detached HEAD: %w", err)
	}
	return nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	current := start

	for len(commits) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}
