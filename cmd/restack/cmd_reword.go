package main

import (
	"fmt"

	"github.com/odvcencio/restack/pkg/repo"
	"github.com/spf13/cobra"
)

func newRewordCmd() *cobra.Command {
	var message string
	var signKey string
	var noSign bool

	cmd := &cobra.Command{
		Use:   "reword",
		Short: "Replace the HEAD commit's message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("new message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			headHash, err := r.ResolveRef("HEAD")
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}

			signer, err := resolveCommitSigner(r, signKey, noSign)
			if err != nil {
				return err
			}
			newHash, err := r.Reword(headHash, message, signer)
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

	cmd.Flags().StringVarP(&message, "message", "m", "", "new commit message")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key to sign with (default: config sign.key)")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "skip signing even when a key is configured")

	return cmd
}
