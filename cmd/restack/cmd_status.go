package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/odvcencio/restack/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var porcelain bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if porcelain {
				// NUL-delimited machine format, one record per entry.
				_, err := out.Write(repo.EncodeStatusEntries(entries))
				return err
			}

			branch := "main"
			noCommits := true
			head, err := r.Head()
			if err == nil {
				if strings.HasPrefix(head, "refs/heads/") {
					branch = strings.TrimPrefix(head, "refs/heads/")
				}
				if _, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}

			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			var staged, unstaged, untracked []string
			for _, e := range entries {
				path := filepath.ToSlash(e.Path)

				switch e.IndexStatus {
				case repo.StatusAdded:
					staged = append(staged, fmt.Sprintf("  + %s", path))
				case repo.StatusModified:
					staged = append(staged, fmt.Sprintf("  ~ %s", path))
				case repo.StatusRenamed:
					staged = append(staged, fmt.Sprintf("  R %s -> %s", filepath.ToSlash(e.OrigPath), path))
				case repo.StatusDeleted:
					staged = append(staged, fmt.Sprintf("  - %s", path))
				}

				switch e.WorktreeStatus {
				case repo.StatusModified:
					unstaged = append(unstaged, fmt.Sprintf("  ~ %s", path))
				case repo.StatusRenamed:
					unstaged = append(unstaged, fmt.Sprintf("  R %s -> %s", filepath.ToSlash(e.OrigPath), path))
				case repo.StatusDeleted:
					if e.IndexStatus != repo.StatusUntracked {
						unstaged = append(unstaged, fmt.Sprintf("  - %s", path))
					}
				}

				if e.IndexStatus == repo.StatusUntracked && e.WorktreeStatus != repo.StatusRenamed {
					untracked = append(untracked, fmt.Sprintf("  %s", path))
				}
			}

			printSection := func(name string, lines []string) {
				if len(lines) == 0 {
					return
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s:\n", name)
				for _, s := range lines {
					fmt.Fprintln(out, s)
				}
			}
			printSection("staged", staged)
			printSection("unstaged", unstaged)
			printSection("untracked", untracked)

			return nil
		},
	}

	cmd.Flags().BoolVar(&porcelain, "porcelain", false, "machine-readable NUL-delimited output")
	return cmd
}
