package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"toolshed/internal/models"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30d", 30 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"6M", 180 * 24 * time.Hour},
		{"1y", 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if err != nil {
			t.Errorf("parseDuration(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"d", "10", "5x"} {
		if _, err := parseDuration(bad); err == nil {
			t.Errorf("parseDuration(%q) should fail", bad)
		}
	}
}

func TestSelectCandidates(t *testing.T) {
	old := time.Now().AddDate(0, -3, 0).Format(models.CommitDateLayout)
	recent := time.Now().Add(-time.Hour).Format(models.CommitDateLayout)

	reports := []models.RepositoryBranchReport{
		{
			RepoPath: "/src/app",
			Branches: []models.Branch{
				{Name: "main", IsCurrent: true, IsMerged: true, IsProtected: true, LastCommit: models.CommitInfo{Date: old}},
				{Name: "done", IsMerged: true, LastCommit: models.CommitInfo{Date: recent}},
				{Name: "stale", LastCommit: models.CommitInfo{Date: old}},
				{Name: "wip", LastCommit: models.CommitInfo{Date: recent}},
			},
		},
		{RepoPath: "/src/broken", Error: "not a git repository"},
	}

	merged := selectCandidates(reports, time.Time{})
	if len(merged) != 1 || merged[0].branch.Name != "done" {
		t.Errorf("Expected only 'done', got %+v", merged)
	}

	aged := selectCandidates(reports, time.Now().AddDate(0, -1, 0))
	if len(aged) != 1 || aged[0].branch.Name != "stale" {
		t.Errorf("Expected only 'stale', got %+v", aged)
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"y":     true,
	}
	for input, want := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(input), &out, "Proceed? ")
		if err != nil {
			t.Errorf("confirm(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("confirm(%q) = %v, want %v", input, got, want)
		}
		if out.String() != "Proceed? " {
			t.Errorf("unexpected prompt %q", out.String())
		}
	}

	if _, err := confirm(strings.NewReader(""), &bytes.Buffer{}, ""); err == nil {
		t.Error("Expected an error at end of input")
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := parseLevel("debug"); err != nil {
		t.Error(err)
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestFormatCommitAge(t *testing.T) {
	c := models.CommitInfo{Date: time.Now().Add(-3 * 24 * time.Hour).Format(models.CommitDateLayout)}
	if got := formatCommitAge(c); got != "3 days ago" {
		t.Errorf("Expected '3 days ago', got %q", got)
	}
	if got := formatCommitAge(models.CommitInfo{}); got != "unknown" {
		t.Errorf("Expected 'unknown', got %q", got)
	}
}
