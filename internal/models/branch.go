package models

import "time"

// CommitDateLayout is the layout of git's iso8601 committer date.
const CommitDateLayout = "2006-01-02 15:04:05 -0700"

// CommitInfo is the last-commit metadata of a branch as printed by git.
type CommitInfo struct {
	Date    string `json:"date"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
}

// Time parses Date. It returns the zero time when Date is not in git's
// iso8601 form.
func (c CommitInfo) Time() time.Time {
	t, err := time.Parse(CommitDateLayout, c.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Branch is one local branch of a repository, classified against the
// configured base and protected branch lists.
type Branch struct {
	Name        string     `json:"name"`
	IsCurrent   bool       `json:"current"`
	IsMerged    bool       `json:"merged"`
	IsProtected bool       `json:"protected"`
	LastCommit  CommitInfo `json:"lastCommit"`
	Ahead       int        `json:"ahead"`
	Behind      int        `json:"behind"`
}

type RepositoryBranchReport struct {
	RepoPath      string   `json:"repoPath"`
	RepoName      string   `json:"repoName"`
	CurrentBranch string   `json:"currentBranch"`
	Branches      []Branch `json:"branches"`
	Error         string   `json:"error,omitempty"`
}

// Deletable returns the branches that are merged and not protected.
func (r RepositoryBranchReport) Deletable() []Branch {
	var out []Branch
	for _, b := range r.Branches {
		if b.IsMerged && !b.IsProtected {
			out = append(out, b)
		}
	}
	return out
}

type DeleteResult struct {
	Branch  string `json:"branch"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RepoStatus struct {
	RepoPath              string `json:"repoPath"`
	RepoName              string `json:"repoName"`
	CurrentBranch         string `json:"currentBranch,omitempty"`
	HasUncommittedChanges bool   `json:"hasUncommittedChanges"`
	Clean                 bool   `json:"clean"`
	Error                 string `json:"error,omitempty"`
}

type Repository struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type PruneOptions struct {
	DryRun bool
	Force  bool
}
