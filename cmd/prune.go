package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"toolshed/internal/git"
	"toolshed/internal/models"

	"github.com/spf13/cobra"
)

var (
	dryRun    bool
	force     bool
	yes       bool
	olderThan string
)

var branchesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete merged branches",
	Long: `Delete local branches that have been merged into one of the base branches.
Protected branches and the checked-out branch are never deleted.

You can also prune by last commit age using --older-than (this bypasses the merge check):
  30d  (30 days)
  6M   (6 months)
  1y   (1 year)
  2w   (2 weeks)

When --older-than is specified, every unprotected branch whose last commit is older
than the duration is a candidate. Unmerged branches are only deleted with --force.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	branchesPruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted without actually deleting")
	branchesPruneCmd.Flags().BoolVar(&force, "force", false, "Delete branches even if git considers them unmerged (git branch -D)")
	branchesPruneCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	branchesPruneCmd.Flags().StringVar(&olderThan, "older-than", "", "Prune branches whose last commit is older than the duration, bypassing merge check (e.g., 30d, 6M, 1y, 2w)")
}

// parseDuration parses duration strings like "30d", "6M", "1y", "2w"
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return 0, fmt.Errorf("invalid duration: %s (use e.g. 30d, 2w, 6M or 1y)", s)
	}
	value, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s: %w", s, err)
	}

	switch unit := strings.ToLower(s[i:]); unit {
	case "d", "day", "days":
		return time.Duration(value) * 24 * time.Hour, nil
	case "w", "week", "weeks":
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case "m", "month", "months":
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	case "y", "year", "years":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %s (use d, w, M, or y)", unit)
	}
}

type pruneCandidate struct {
	report models.RepositoryBranchReport
	branch models.Branch
}

// selectCandidates picks the merged unprotected branches, or with a
// non-zero cutoff the unprotected branches last committed before it.
func selectCandidates(reports []models.RepositoryBranchReport, cutoff time.Time) []pruneCandidate {
	var candidates []pruneCandidate
	for _, report := range reports {
		if report.Error != "" {
			continue
		}
		for _, b := range report.Branches {
			if b.IsProtected || b.IsCurrent {
				continue
			}
			if cutoff.IsZero() {
				if !b.IsMerged {
					continue
				}
			} else {
				committed := b.LastCommit.Time()
				if committed.IsZero() || committed.After(cutoff) {
					continue
				}
			}
			candidates = append(candidates, pruneCandidate{report: report, branch: b})
		}
	}
	return candidates
}

func runPrune(cmd *cobra.Command, args []string) error {
	var cutoffTime time.Time
	if olderThan != "" {
		ageThreshold, err := parseDuration(olderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value: %w", err)
		}
		cutoffTime = time.Now().Add(-ageThreshold)
	}

	out := cmd.OutOrStdout()
	classifier := newClassifier()

	if olderThan != "" {
		fmt.Fprintf(out, "Checking for branches with no commits in the last %s...\n\n", olderThan)
	} else {
		fmt.Fprintf(out, "Checking for branches merged into %s...\n\n", strings.Join(classifier.BaseBranches, ", "))
	}

	reports, err := classifyAll(cmd.Context(), classifier)
	if err != nil {
		return err
	}
	for _, report := range reports {
		if report.Error != "" {
			fmt.Fprintf(out, "Warning: could not read branches of %s: %s\n", report.RepoPath, report.Error)
		}
	}

	candidates := selectCandidates(reports, cutoffTime)
	if len(candidates) == 0 {
		if olderThan != "" {
			fmt.Fprintln(out, "No branches found older than the specified duration.")
		} else {
			fmt.Fprintln(out, "No merged branches found.")
		}
		return nil
	}

	fmt.Fprintf(out, "Found %d branch(es) to delete:\n\n", len(candidates))
	printCandidates(out, candidates)

	if dryRun {
		fmt.Fprintln(out, "This was a dry run. Use --dry-run=false to actually delete the branches.")
		return nil
	}

	if !force {
		unmerged := 0
		for _, c := range candidates {
			if !c.branch.IsMerged {
				unmerged++
			}
		}
		if unmerged > 0 {
			fmt.Fprintf(out, "Warning: %d branch(es) are not merged and will be refused by git.\n", unmerged)
			fmt.Fprintln(out, "Use --force to delete them anyway.")
		}
	}

	if !yes {
		ok, err := confirm(cmd.InOrStdin(), out, "Do you want to proceed with deleting these branches? [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Operation cancelled.")
			return nil
		}
	}

	opts := models.PruneOptions{DryRun: false, Force: force}
	fmt.Fprintln(out, "\nDeleting branches...")
	failed := deleteCandidates(cmd, classifier, candidates, opts)

	fmt.Fprintln(out, "\nPrune operation completed.")
	if failed > 0 {
		return fmt.Errorf("%d branch(es) could not be deleted", failed)
	}
	return nil
}

func printCandidates(w io.Writer, candidates []pruneCandidate) {
	for _, c := range candidates {
		status := "merged"
		if !c.branch.IsMerged {
			status = "unmerged"
		}
		fmt.Fprintf(w, "  %s\n", c.report.RepoPath)
		fmt.Fprintf(w, "    Branch: %s\n", c.branch.Name)
		fmt.Fprintf(w, "    Status: %s\n", status)
		if t := c.branch.LastCommit.Time(); !t.IsZero() {
			fmt.Fprintf(w, "    Last commit: %s (%s ago) %s\n", t.Format("2006-01-02 15:04:05"), formatTimeSince(t), c.branch.LastCommit.Subject)
		}
		fmt.Fprintln(w)
	}
}

// deleteCandidates deletes the branches one repository at a time and returns
// how many deletions failed.
func deleteCandidates(cmd *cobra.Command, classifier *git.Classifier, candidates []pruneCandidate, opts models.PruneOptions) int {
	out := cmd.OutOrStdout()

	var order []string
	byRepo := make(map[string][]string)
	for _, c := range candidates {
		if _, ok := byRepo[c.report.RepoPath]; !ok {
			order = append(order, c.report.RepoPath)
		}
		byRepo[c.report.RepoPath] = append(byRepo[c.report.RepoPath], c.branch.Name)
	}

	failed := 0
	for _, repo := range order {
		results := git.DeleteBranches(cmd.Context(), classifier.Runner, repo, byRepo[repo], opts.Force)
		for _, res := range results {
			if res.Success {
				fmt.Fprintf(out, "  %s %s\n", okStyle.Render("✓"), res.Branch)
				continue
			}
			failed++
			fmt.Fprintf(out, "  %s %s: %s\n", errStyle.Render("✗"), res.Branch, res.Message)
		}
	}
	return failed
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
