package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"toolshed/internal/models"

	"github.com/go-git/go-git/v5"
)

const maxScanDepth = 3

var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// ScanRepositories finds git repositories under root, at most maxScanDepth
// levels down. A directory holding a .git directory is a repository and is
// not searched further. Unreadable directories are skipped.
func ScanRepositories(root string) []string {
	var repos []string

	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxScanDepth {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}

		for _, entry := range entries {
			if entry.IsDir() && entry.Name() == ".git" {
				repos = append(repos, dir)
				return
			}
		}

		for _, entry := range entries {
			name := entry.Name()
			if !entry.IsDir() || skippedDirs[name] || strings.HasPrefix(name, ".") {
				continue
			}
			walk(filepath.Join(dir, name), depth+1)
		}
	}

	walk(root, 0)
	return repos
}

// RepoStatus reports whether repoPath has uncommitted changes. The git
// binary is tried first; go-git is used when it cannot run.
func RepoStatus(ctx context.Context, runner Runner, repoPath string) models.RepoStatus {
	status := models.RepoStatus{
		RepoPath: repoPath,
		RepoName: filepath.Base(repoPath),
	}

	dirty, err := isDirty(ctx, runner, repoPath)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	current, err := CurrentBranch(ctx, runner, repoPath)
	if err != nil {
		current, err = currentBranchGoGit(repoPath)
		if err != nil {
			status.Error = err.Error()
			return status
		}
	}

	status.CurrentBranch = current
	status.HasUncommittedChanges = dirty
	status.Clean = !dirty
	return status
}

func isDirty(ctx context.Context, runner Runner, repoPath string) (bool, error) {
	output, err := runner.Run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		dirty, gerr := isDirtyGoGit(repoPath)
		if gerr != nil {
			return false, fmt.Errorf("failed to get status: %w", err)
		}
		return dirty, nil
	}

	return len(strings.TrimSpace(output)) > 0, nil
}

func isDirtyGoGit(path string) (bool, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := worktree.Status()
	if err != nil {
		return false, err
	}

	return !status.IsClean(), nil
}

func currentBranchGoGit(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "HEAD", nil
}
