package main

import (
	"fmt"

	"github.com/odvcencio/restack/pkg/repo"
	"github.com/spf13/cobra"
)

func newAmendCmd() *cobra.Command {
	var fromIndex bool
	var message string
	var signKey string
	var noSign bool

	cmd := &cobra.Command{
		Use:   "amend [--from-index [paths...]]",
		Short: "Fold current changes into the HEAD commit",
		Long: "Rewrite the HEAD commit so it also contains the current working copy\n" +
			"changes (default) or the staged values of the given paths\n" +
			"(--from-index). Only the touched paths are read; the rest of the tree\n" +
			"is carried over by hash.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			headHash, err := r.ResolveRef("HEAD")
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}
			headCommit, err := r.Store.ReadCommit(headHash)
			if err != nil {
				return err
			}

			var source repo.AmendSource
			if fromIndex {
				paths := args
				if len(paths) == 0 {
					stg, err := r.ReadStaging()
					if err != nil {
						return err
					}
					for p := range stg.Entries {
						paths = append(paths, p)
					}
				}
				source = repo.FromIndex{Paths: paths}
			} else {
				if len(args) > 0 {
					return fmt.Errorf("path arguments require --from-index")
				}
				entries, err := r.Status()
				if err != nil {
					return err
				}
				// Untracked files stay out of the amended commit.
				tracked := entries[:0]
				for _, e := range entries {
					if e.IndexStatus == repo.StatusUntracked && e.WorktreeStatus == repo.StatusUntracked {
						continue
					}
					tracked = append(tracked, e)
				}
				source = repo.FromWorkingCopy{Entries: tracked}
			}

			treeHash, err := r.AmendFast(headHash, source)
			if err != nil {
				return err
			}

			if message == "" {
				message = headCommit.Message
			}
			signer, err := resolveCommitSigner(r, signKey, noSign)
			if err != nil {
				return err
			}
			newHash, err := r.CommitTree(treeHash, headCommit.Parents, message, headCommit.Author, signer)
			if err != nil {
				return err
			}
			if err := r.AdvanceHead(newHash, headHash); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", currentBranchLabel(r), shortHash(newHash), firstLine(message))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromIndex, "from-index", false, "amend from staged entries instead of the working copy")
	cmd.Flags().StringVarP(&message, "message", "m", "", "replace the commit message as well")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key to sign with (default: config sign.key)")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "skip signing even when a key is configured")

	return cmd
}
