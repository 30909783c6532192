package git

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"toolshed/internal/models"
)

const branchFormat = "%(refname:short)|%(committerdate:iso8601)|%(committername)|%(subject)"

// Classifier derives a RepositoryBranchReport for a repository from git's
// ref database. It holds no state between calls.
type Classifier struct {
	Runner            Runner
	BaseBranches      []string
	ProtectedBranches []string
	Logger            *slog.Logger
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// Classify lists the local branches of repoPath with their merge, protection
// and divergence status. Failures are reported in the Error field rather than
// returned, so callers can continue with the next repository.
func (c *Classifier) Classify(ctx context.Context, repoPath string) models.RepositoryBranchReport {
	report := models.RepositoryBranchReport{
		RepoPath:      repoPath,
		RepoName:      filepath.Base(repoPath),
		CurrentBranch: "unknown",
		Branches:      []models.Branch{},
	}

	current, err := CurrentBranch(ctx, c.Runner, repoPath)
	if err != nil {
		return c.failed(report, err)
	}

	output, err := c.Runner.Run(ctx, repoPath, "branch", "--format="+branchFormat)
	if err != nil {
		return c.failed(report, fmt.Errorf("failed to list branches: %w", err))
	}

	bases := newBaseSet(c.Runner, repoPath, c.BaseBranches)
	for _, ref := range parseBranchList(output) {
		branch := models.Branch{
			Name:        ref.name,
			IsCurrent:   ref.name == current,
			IsProtected: c.IsProtected(ref.name, current),
			LastCommit:  ref.commit,
		}
		branch.IsMerged = bases.isMerged(ctx, ref.name)
		branch.Ahead, branch.Behind = bases.divergence(ctx, ref.name)

		report.Branches = append(report.Branches, branch)
	}

	report.CurrentBranch = current
	return report
}

func (c *Classifier) failed(report models.RepositoryBranchReport, err error) models.RepositoryBranchReport {
	c.logger().Error("failed to get branches", "repo", report.RepoPath, "error", err)
	report.Error = err.Error()
	return report
}

// IsProtected reports whether name is in the protected list or is the
// current branch.
func (c *Classifier) IsProtected(name, current string) bool {
	return name == current || slices.Contains(c.ProtectedBranches, name)
}

// ProtectedIn returns the names that appear in the static protected list.
func (c *Classifier) ProtectedIn(names []string) []string {
	var hits []string
	for _, name := range names {
		if slices.Contains(c.ProtectedBranches, name) {
			hits = append(hits, name)
		}
	}
	return hits
}

// CurrentBranch resolves the symbolic HEAD of repoPath. A detached HEAD is
// returned as "HEAD".
func CurrentBranch(ctx context.Context, runner Runner, repoPath string) (string, error) {
	output, err := runner.Run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(output), nil
}

type branchRef struct {
	name   string
	commit models.CommitInfo
}

// parseBranchList parses `git branch --format` output. The subject is the
// last field so it may contain the separator.
func parseBranchList(output string) []branchRef {
	var refs []branchRef
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		parts := strings.SplitN(line, "|", 4)

		name := strings.TrimSpace(parts[0])
		// "(HEAD detached at ...)" is not a local branch
		if name == "" || strings.HasPrefix(name, "(") {
			continue
		}

		ref := branchRef{name: name}
		if len(parts) > 1 {
			ref.commit.Date = parts[1]
		}
		if len(parts) > 2 {
			ref.commit.Author = parts[2]
		}
		if len(parts) > 3 {
			ref.commit.Subject = parts[3]
		}
		refs = append(refs, ref)
	}

	return refs
}

// parseMergedList parses `git branch --merged` output, dropping the current
// ("* ") and other-worktree ("+ ") markers.
func parseMergedList(output string) map[string]bool {
	merged := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		name = strings.TrimPrefix(name, "* ")
		name = strings.TrimPrefix(name, "+ ")
		name = strings.TrimSpace(name)
		if name != "" {
			merged[name] = true
		}
	}
	return merged
}

// parseLeftRight parses `git rev-list --left-right --count base...branch`.
// The left count is commits only in base (behind), the right count commits
// only in branch (ahead).
func parseLeftRight(output string) (ahead, behind int, err error) {
	parts := strings.Fields(output)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", strings.TrimSpace(output))
	}
	if behind, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, err
	}
	if ahead, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// baseSet answers merge and divergence questions against the configured
// base branches, in priority order. Lookups are memoized for the lifetime of
// one Classify call.
type baseSet struct {
	runner   Runner
	repoPath string
	names    []string
	exists   map[string]bool
	merged   map[string]map[string]bool
}

func newBaseSet(runner Runner, repoPath string, names []string) *baseSet {
	return &baseSet{
		runner:   runner,
		repoPath: repoPath,
		names:    names,
		exists:   make(map[string]bool),
		merged:   make(map[string]map[string]bool),
	}
}

func (s *baseSet) has(ctx context.Context, base string) bool {
	if ok, seen := s.exists[base]; seen {
		return ok
	}
	_, err := s.runner.Run(ctx, s.repoPath, "rev-parse", "--verify", "--quiet", base)
	s.exists[base] = err == nil
	return err == nil
}

func (s *baseSet) mergedInto(ctx context.Context, base string) map[string]bool {
	if merged, ok := s.merged[base]; ok {
		return merged
	}
	output, err := s.runner.Run(ctx, s.repoPath, "branch", "--merged", base)
	merged := map[string]bool{}
	if err == nil {
		merged = parseMergedList(output)
	}
	s.merged[base] = merged
	return merged
}

func (s *baseSet) isMerged(ctx context.Context, branch string) bool {
	for _, base := range s.names {
		if !s.has(ctx, base) {
			continue
		}
		if s.mergedInto(ctx, base)[branch] {
			return true
		}
	}
	return false
}

// divergence counts commits against the first existing base only.
func (s *baseSet) divergence(ctx context.Context, branch string) (ahead, behind int) {
	for _, base := range s.names {
		if !s.has(ctx, base) {
			continue
		}
		output, err := s.runner.Run(ctx, s.repoPath, "rev-list", "--left-right", "--count", base+"..."+branch)
		if err != nil {
			continue
		}
		a, b, err := parseLeftRight(output)
		if err != nil {
			continue
		}
		return a, b
	}
	return 0, 0
}

// DeleteBranches deletes each named branch independently, with -D when force
// is set and -d otherwise. Results keep the order of names. No protection
// check is made here.
func DeleteBranches(ctx context.Context, runner Runner, repoPath string, names []string, force bool) []models.DeleteResult {
	flag := "-d"
	if force {
		flag = "-D"
	}

	results := make([]models.DeleteResult, 0, len(names))
	for _, name := range names {
		if _, err := runner.Run(ctx, repoPath, "branch", flag, "--", name); err != nil {
			results = append(results, models.DeleteResult{Branch: name, Success: false, Message: err.Error()})
			continue
		}
		results = append(results, models.DeleteResult{Branch: name, Success: true, Message: "Deleted successfully"})
	}
	return results
}
