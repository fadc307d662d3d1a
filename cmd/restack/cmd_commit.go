package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/restack/pkg/object"
	"github.com/odvcencio/restack/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string
	var signKey string
	var noSign bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes in a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if author == "" {
				author = r.AuthorName()
			}

			signer, err := resolveCommitSigner(r, signKey, noSign)
			if err != nil {
				return err
			}

			h, err := r.CommitWithSigner(message, author, signer)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", currentBranchLabel(r), shortHash(h), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: config user.name)")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key to sign with (default: config sign.key)")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "skip signing even when a key is configured")

	return cmd
}

// resolveCommitSigner builds a signer from the flag or the repository
// config. A nil signer means the commit is written unsigned.
func resolveCommitSigner(r *repo.Repo, flagKey string, noSign bool) (repo.CommitSigner, error) {
	if noSign {
		return nil, nil
	}
	keyPath := flagKey
	if keyPath == "" {
		cfg, err := r.ReadConfig()
		if err != nil {
			return nil, err
		}
		keyPath = cfg.Sign.Key
	}
	if keyPath == "" {
		return nil, nil
	}
	signer, _, err := newSSHCommitSigner(keyPath)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func currentBranchLabel(r *repo.Repo) string {
	head, err := r.Head()
	if err == nil && strings.HasPrefix(head, "refs/heads/") {
		return strings.TrimPrefix(head, "refs/heads/")
	}
	return "HEAD"
}

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}
