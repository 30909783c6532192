package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"toolshed/internal/config"
	"toolshed/internal/git"
	"toolshed/internal/models"
)

// BranchCache holds the discovered repositories and their latest reports.
// Repository indexes in the API refer to positions in Repos.
type BranchCache struct {
	mu      sync.RWMutex
	repos   []string
	reports map[string]models.RepositoryBranchReport
}

func NewBranchCache() *BranchCache {
	return &BranchCache{reports: make(map[string]models.RepositoryBranchReport)}
}

func (c *BranchCache) Repos() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.repos)
}

func (c *BranchCache) SetRepos(repos []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = slices.Clone(repos)
}

func (c *BranchCache) Report(repo string) (models.RepositoryBranchReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reports[repo]
	return r, ok
}

func (c *BranchCache) SetReport(report models.RepositoryBranchReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[report.RepoPath] = report
}

// Clear forgets the repositories and every report.
func (c *BranchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = nil
	c.reports = make(map[string]models.RepositoryBranchReport)
}

// BranchServer serves branch reports for every repository under the scan
// path.
type BranchServer struct {
	cfg        config.BranchesConfig
	classifier *git.Classifier
	cache      *BranchCache
	logger     *slog.Logger
}

func NewBranchServer(cfg config.BranchesConfig, classifier *git.Classifier, logger *slog.Logger) *BranchServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BranchServer{cfg: cfg, classifier: classifier, cache: NewBranchCache(), logger: logger}
}

func (s *BranchServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/repos", s.handleRepos)
	mux.HandleFunc("GET /api/branches", s.handleBranches)
	mux.HandleFunc("GET /api/branches/merged", s.handleMerged)
	mux.HandleFunc("GET /api/branches/{repoIndex}", s.handleRepoBranches)
	mux.HandleFunc("POST /api/delete", s.handleDelete)
	mux.HandleFunc("GET /api/status/{repoIndex}", s.handleStatus)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /", indexHandler("Git Branch Cleaner", s.cfg.Port, []string{
		"GET /api/repos",
		"GET /api/branches",
		"GET /api/branches/merged",
		"GET /api/branches/{repoIndex}",
		"POST /api/delete",
		"GET /api/status/{repoIndex}",
		"POST /api/refresh",
		"GET /api/config",
	}))
	return middleware(mux, s.logger)
}

func (s *BranchServer) scan() []string {
	repos := git.ScanRepositories(s.cfg.ScanPath)
	if repos == nil {
		repos = []string{}
	}
	s.cache.SetRepos(repos)
	return repos
}

// repos returns the cached repositories, scanning when there are none.
func (s *BranchServer) repos() []string {
	if repos := s.cache.Repos(); len(repos) > 0 {
		return repos
	}
	return s.scan()
}

func (s *BranchServer) repoAt(r *http.Request) (string, bool) {
	index, err := strconv.Atoi(r.PathValue("repoIndex"))
	if err != nil {
		return "", false
	}
	return s.repoAtIndex(index)
}

func (s *BranchServer) repoAtIndex(index int) (string, bool) {
	repos := s.repos()
	if index < 0 || index >= len(repos) {
		return "", false
	}
	return repos[index], true
}

func (s *BranchServer) classify(ctx context.Context, repo string) models.RepositoryBranchReport {
	report := s.classifier.Classify(ctx, repo)
	s.cache.SetReport(report)
	return report
}

func (s *BranchServer) handleRepos(w http.ResponseWriter, r *http.Request) {
	repos := []models.Repository{}
	for _, path := range s.scan() {
		repos = append(repos, models.Repository{Path: path, Name: filepath.Base(path)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

func (s *BranchServer) handleBranches(w http.ResponseWriter, r *http.Request) {
	reports := []models.RepositoryBranchReport{}
	for _, repo := range s.repos() {
		reports = append(reports, s.classify(r.Context(), repo))
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": reports})
}

// handleMerged reports only the branches that can be deleted safely.
// Repositories without any are left out.
func (s *BranchServer) handleMerged(w http.ResponseWriter, r *http.Request) {
	reports := []models.RepositoryBranchReport{}
	for _, repo := range s.repos() {
		report := s.classify(r.Context(), repo)
		deletable := report.Deletable()
		if len(deletable) == 0 {
			continue
		}
		report.Branches = deletable
		reports = append(reports, report)
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": reports})
}

func (s *BranchServer) handleRepoBranches(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoAt(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}
	writeJSON(w, http.StatusOK, s.classify(r.Context(), repo))
}

type deleteRequest struct {
	RepoIndex *int     `json:"repoIndex"`
	Branches  []string `json:"branches"`
	Force     bool     `json:"force"`
}

func (s *BranchServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil || req.RepoIndex == nil || req.Branches == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	repo, ok := s.repoAtIndex(*req.RepoIndex)
	if !ok {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}

	if protected := s.classifier.ProtectedIn(req.Branches); len(protected) > 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Cannot delete protected branches: %s", strings.Join(protected, ", ")))
		return
	}

	results := git.DeleteBranches(r.Context(), s.classifier.Runner, repo, req.Branches, req.Force)
	for _, res := range results {
		s.logger.Info("delete branch", "repo", repo, "branch", res.Branch, "success", res.Success, "message", res.Message)
	}
	s.classify(r.Context(), repo)

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *BranchServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoAt(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}
	writeJSON(w, http.StatusOK, git.RepoStatus(r.Context(), s.classifier.Runner, repo))
}

func (s *BranchServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()
	repos := s.scan()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Cache refreshed",
		"repoCount": len(repos),
	})
}

func (s *BranchServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scanPath":          s.cfg.ScanPath,
		"baseBranches":      s.cfg.BaseBranches,
		"protectedBranches": s.cfg.ProtectedBranches,
		"showUnmerged":      s.cfg.ShowUnmerged,
	})
}
