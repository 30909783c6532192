// Package config loads the toolshed configuration file. The file holds one
// section per tool; anything it leaves out keeps the value from Default.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"toolshed/internal/fsutil"
	"toolshed/internal/models"
)

type Config struct {
	Downloads DownloadsConfig `json:"downloads"`
	Branches  BranchesConfig  `json:"branches"`
	Network   NetworkConfig   `json:"network"`
	Ports     PortsConfig     `json:"ports"`

	// Source is the file the configuration was read from, empty when the
	// defaults were used.
	Source string `json:"-"`
}

type DownloadsConfig struct {
	Port                  int        `json:"port"`
	WatchPath             string     `json:"watchPath"`
	SortedPath            string     `json:"sortedPath"`
	Categories            Categories `json:"categories"`
	IgnoredExtensions     []string   `json:"ignoredExtensions"`
	DuplicateCheckEnabled bool       `json:"duplicateCheckEnabled"`
	HistoryFile           string     `json:"historyFile"`
	StabilityThresholdMs  int        `json:"stabilityThresholdMs"`
	PollIntervalMs        int        `json:"pollIntervalMs"`
}

func (c DownloadsConfig) StabilityThreshold() time.Duration {
	return time.Duration(c.StabilityThresholdMs) * time.Millisecond
}

func (c DownloadsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type BranchesConfig struct {
	Port              int      `json:"port"`
	ScanPath          string   `json:"scanPath"`
	BaseBranches      []string `json:"baseBranches"`
	ProtectedBranches []string `json:"protectedBranches"`
	ShowUnmerged      bool     `json:"showUnmerged"`
}

type NetworkConfig struct {
	Port                 int    `json:"port"`
	ScanIntervalMs       int    `json:"scanInterval"`
	AutoScan             bool   `json:"autoScan"`
	EnableAlerts         bool   `json:"enableAlerts"`
	AlertSound           bool   `json:"alertSound"`
	OnlineTimeoutMinutes int    `json:"onlineTimeoutMinutes"`
	ResolveHostnames     bool   `json:"resolveHostnames"`
	DevicesFile          string `json:"devicesFile"`
}

func (c NetworkConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

func (c NetworkConfig) OnlineTimeout() time.Duration {
	return time.Duration(c.OnlineTimeoutMinutes) * time.Minute
}

type PortsConfig struct {
	Port              int                `json:"port"`
	RefreshIntervalMs int                `json:"refreshInterval"`
	ScanRanges        []models.PortRange `json:"scanRanges"`
	PreferencesFile   string             `json:"preferencesFile"`
}

func (c PortsConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Downloads: DownloadsConfig{
			Port:       3001,
			WatchPath:  "~/Downloads",
			SortedPath: "~/Downloads/Sorted",
			Categories: Categories{
				{Name: "images", Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".heic"}},
				{Name: "documents", Extensions: []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt", ".md"}},
				{Name: "spreadsheets", Extensions: []string{".xls", ".xlsx", ".csv", ".ods"}},
				{Name: "presentations", Extensions: []string{".ppt", ".pptx", ".key", ".odp"}},
				{Name: "archives", Extensions: []string{".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz"}},
				{Name: "videos", Extensions: []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".webm"}},
				{Name: "audio", Extensions: []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}},
				{Name: "code", Extensions: []string{".js", ".ts", ".py", ".go", ".java", ".c", ".cpp", ".html", ".css", ".json"}},
				{Name: "installers", Extensions: []string{".dmg", ".pkg", ".exe", ".msi", ".deb", ".rpm", ".appimage"}},
			},
			IgnoredExtensions:     []string{".crdownload", ".part", ".tmp", ".download"},
			DuplicateCheckEnabled: true,
			HistoryFile:           "history.json",
			StabilityThresholdMs:  2000,
			PollIntervalMs:        100,
		},
		Branches: BranchesConfig{
			Port:              3002,
			ScanPath:          "~/projects",
			BaseBranches:      []string{"main", "master", "develop"},
			ProtectedBranches: []string{"main", "master", "develop", "staging", "production"},
			ShowUnmerged:      true,
		},
		Network: NetworkConfig{
			Port:                 3003,
			ScanIntervalMs:       60000,
			AutoScan:             true,
			EnableAlerts:         true,
			OnlineTimeoutMinutes: 5,
			ResolveHostnames:     true,
			DevicesFile:          "devices.json",
		},
		Ports: PortsConfig{
			Port:              3004,
			RefreshIntervalMs: 5000,
			ScanRanges: []models.PortRange{
				{Name: "System", Start: 1, End: 1023},
				{Name: "Development", Start: 3000, End: 9999},
				{Name: "Dynamic", Start: 49152, End: 65535},
			},
			PreferencesFile: "preferences.json",
		},
	}
}

// Load reads the configuration at path over the defaults. A missing file is
// not an error. Relative paths in the result are resolved against the
// directory holding path.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg.resolvePaths(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(baseDir string) {
	for _, p := range []*string{
		&c.Downloads.WatchPath,
		&c.Downloads.SortedPath,
		&c.Downloads.HistoryFile,
		&c.Branches.ScanPath,
		&c.Network.DevicesFile,
		&c.Ports.PreferencesFile,
	} {
		*p = resolvePath(baseDir, *p)
	}
}

func resolvePath(baseDir, path string) string {
	if path == "" {
		return path
	}
	path = fsutil.ExpandHome(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

// Validate checks the values the tools cannot run without.
func (c *Config) Validate() error {
	var errs []error

	for name, port := range map[string]int{
		"downloads.port": c.Downloads.Port,
		"branches.port":  c.Branches.Port,
		"network.port":   c.Network.Port,
		"ports.port":     c.Ports.Port,
	} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", name, port))
		}
	}

	if c.Downloads.WatchPath == "" || c.Downloads.SortedPath == "" {
		errs = append(errs, errors.New("downloads.watchPath and downloads.sortedPath must be set"))
	}
	if len(c.Branches.BaseBranches) == 0 {
		errs = append(errs, errors.New("branches.baseBranches must not be empty"))
	}
	if c.Network.ScanIntervalMs <= 0 {
		errs = append(errs, errors.New("network.scanInterval must be positive"))
	}
	if c.Ports.RefreshIntervalMs <= 0 {
		errs = append(errs, errors.New("ports.refreshInterval must be positive"))
	}

	return errors.Join(errs...)
}
