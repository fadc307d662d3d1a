package main

import (
	"fmt"
	"regexp"

	"github.com/odvcencio/restack/pkg/object"
	"github.com/odvcencio/restack/pkg/repo"
	"github.com/spf13/cobra"
)

func newPickCmd() *cobra.Command {
	var noReuseParentTree bool
	var signKey string
	var noSign bool

	cmd := &cobra.Command{
		Use:   "pick <commit>",
		Short: "Apply a commit's changes on top of HEAD",
		Long: "Apply the changes a commit introduced relative to its parent onto the\n" +
			"current HEAD, as a new commit. The merge runs entirely in the object\n" +
			"store; the working copy and staging area are left untouched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			patch, err := resolveCommitish(r, args[0])
			if err != nil {
				return err
			}
			target, err := r.ResolveRef("HEAD")
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}

			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			opts := repo.CherryPickFastOptions{
				ReuseParentTreeIfPossible: cfg.ReuseParentTreeEnabled() && !noReuseParentTree,
			}

			res, err := r.CherryPickFast(patch, target, opts)
			if err != nil {
				return err
			}
			if res.Conflicted {
				out := cmd.ErrOrStderr()
				fmt.Fprintf(out, "cannot apply %s cleanly:\n", shortHash(patch))
				for _, p := range res.ConflictingPaths {
					fmt.Fprintf(out, "  conflict: %s\n", p)
				}
				return fmt.Errorf("pick aborted: %d conflicting paths", len(res.ConflictingPaths))
			}

			patchCommit, err := r.Store.ReadCommit(patch)
			if err != nil {
				return err
			}

			signer, err := resolveCommitSigner(r, signKey, noSign)
			if err != nil {
				return err
			}
			newHash, err := r.CommitTree(res.TreeHash, []object.Hash{target}, patchCommit.Message, r.AuthorName(), signer)
			if err != nil {
				return err
			}
			if err := r.AdvanceHead(newHash, target); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", currentBranchLabel(r), shortHash(newHash), firstLine(patchCommit.Message))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noReuseParentTree, "no-reuse-parent-tree", false, "always merge, even when the patch is based on the target tree")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key to sign with (default: config sign.key)")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "skip signing even when a key is configured")

	return cmd
}

var fullHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// resolveCommitish resolves a branch name, ref path, or full commit hash.
func resolveCommitish(r *repo.Repo, name string) (object.Hash, error) {
	if h, err := r.ResolveRef(name); err == nil {
		return h, nil
	}
	if fullHashPattern.MatchString(name) {
		h := object.Hash(name)
		if r.Store.Has(h) {
			return h, nil
		}
	}
	return "", fmt.Errorf("cannot resolve %q to a commit", name)
}
