package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"toolshed/internal/api"
	"toolshed/internal/git"
	"toolshed/internal/models"

	"github.com/spf13/cobra"
)

var (
	branchesPath string
	mergedOnly   bool
	branchesPort int
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Audit and clean up local git branches",
	Long: `Find the git repositories under the scan path and report, for every
local branch, whether it is merged into one of the base branches, whether it
is protected, and how far it is ahead of or behind the base.`,
}

var branchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the branches of every repository",
	Long: `List the local branches of every repository under the scan path.
Shows the last commit, the divergence from the base branch and the
merge/protection status of each branch.`,
	Args: cobra.NoArgs,
	RunE: runBranchesList,
}

var branchesServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the branch cleaner API",
	Args:  cobra.NoArgs,
	RunE:  runBranchesServe,
}

func init() {
	branchesCmd.PersistentFlags().StringVar(&branchesPath, "path", "", "Directory to scan for repositories (default from config)")

	branchesListCmd.Flags().BoolVar(&mergedOnly, "merged", false, "Show only merged branches that can be deleted")
	branchesServeCmd.Flags().IntVar(&branchesPort, "port", 0, "Port to listen on (default from config)")

	branchesCmd.AddCommand(branchesListCmd)
	branchesCmd.AddCommand(branchesPruneCmd)
	branchesCmd.AddCommand(branchesServeCmd)
}

func newClassifier() *git.Classifier {
	return &git.Classifier{
		Runner:            git.ExecRunner{},
		BaseBranches:      cfg.Branches.BaseBranches,
		ProtectedBranches: cfg.Branches.ProtectedBranches,
		Logger:            logger,
	}
}

func scanPath() string {
	if branchesPath == "" {
		return cfg.Branches.ScanPath
	}
	if abs, err := filepath.Abs(branchesPath); err == nil {
		return abs
	}
	return branchesPath
}

// classifyAll reports every repository under the scan path.
func classifyAll(ctx context.Context, classifier *git.Classifier) ([]models.RepositoryBranchReport, error) {
	root := scanPath()
	repos := git.ScanRepositories(root)
	if len(repos) == 0 {
		return nil, fmt.Errorf("no git repositories found under %s", root)
	}

	reports := make([]models.RepositoryBranchReport, 0, len(repos))
	for _, repo := range repos {
		reports = append(reports, classifier.Classify(ctx, repo))
	}
	return reports, nil
}

func runBranchesList(cmd *cobra.Command, args []string) error {
	reports, err := classifyAll(cmd.Context(), newClassifier())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, report := range reports {
		printReport(out, report, mergedOnly)
	}
	return nil
}

func printReport(w io.Writer, report models.RepositoryBranchReport, onlyDeletable bool) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(report.RepoName), dimStyle.Render(report.RepoPath))
	if report.Error != "" {
		fmt.Fprintf(w, "  %s\n\n", errStyle.Render("error: "+report.Error))
		return
	}

	branches := report.Branches
	if onlyDeletable {
		branches = report.Deletable()
	}
	if len(branches) == 0 {
		fmt.Fprintln(w, "  No branches found matching the criteria.")
		fmt.Fprintln(w)
		return
	}

	table := newTable(w, "Branch", "Last Commit", "Author", "Ahead", "Behind", "Status")
	for _, b := range branches {
		name := b.Name
		if b.IsCurrent {
			name = "* " + name
		}
		table.Append([]string{
			name,
			formatCommitAge(b.LastCommit),
			b.LastCommit.Author,
			strconv.Itoa(b.Ahead),
			strconv.Itoa(b.Behind),
			formatBranchStatus(b),
		})
	}
	table.Render()
	fmt.Fprintln(w)
}

func formatBranchStatus(b models.Branch) string {
	switch {
	case b.IsProtected:
		return dimStyle.Render("protected")
	case b.IsMerged:
		return okStyle.Render("merged")
	default:
		return warnStyle.Render("unmerged")
	}
}

func formatCommitAge(c models.CommitInfo) string {
	t := c.Time()
	if t.IsZero() {
		return "unknown"
	}
	return formatTimeSince(t) + " ago"
}

func runBranchesServe(cmd *cobra.Command, args []string) error {
	branchCfg := cfg.Branches
	branchCfg.ScanPath = scanPath()
	if branchesPort != 0 {
		branchCfg.Port = branchesPort
	}

	server := api.NewBranchServer(branchCfg, newClassifier(), logger)
	return serve(cmd.Context(), "branches", branchCfg.Port, server.Handler())
}
